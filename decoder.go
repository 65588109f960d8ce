package gifbolt

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/color"
	"image/gif"
	"io"
	"os"
	"sync"
	"time"

	"github.com/StanleySweet/gifbolt-go/cache"
	"github.com/StanleySweet/gifbolt-go/internal/compose"
	"github.com/StanleySweet/gifbolt-go/pixel"
)

// ErrNotLoaded is returned by frame accessors before a stream has been
// loaded.
var ErrNotLoaded = errors.New("gifbolt: no animation loaded")

// Metadata describes a loaded animation. It is computed once at load
// time and immutable thereafter.
type Metadata struct {
	// Width and Height are the logical canvas size in pixels.
	Width  int
	Height int

	// FrameCount is the number of frames in the stream.
	FrameCount int

	// LoopCount is the stream's loop metadata: -1 plays forever, 0
	// plays once, N repeats N more times after the first pass.
	LoopCount int

	// Looping reports whether LoopCount means forever.
	Looping bool

	// Background is the canvas backdrop: the stream's background color
	// for fully opaque streams, transparent otherwise.
	Background color.RGBA

	// HasTransparency reports whether any frame carries a transparent
	// palette entry.
	HasTransparency bool
}

// normalizeLoopCount maps image/gif's LoopCount convention (0 forever,
// -1 once, N for N repeats) onto Metadata.LoopCount's (-1 forever, 0
// once, N repeats).
func normalizeLoopCount(n int) int {
	switch {
	case n == 0:
		return -1
	case n < 0:
		return 0
	default:
		return n
	}
}

func emptyMetadata() Metadata {
	return Metadata{Background: color.RGBA{A: 0xFF}}
}

// Decoder decodes a GIF stream once and serves fully-composed frames
// from a bounded cache sized to the animation, with a background
// prefetcher keeping composition ahead of playback. Frames come out as
// reference-counted pixel buffers; see FrameRGBA and friends.
//
// A Decoder starts empty: zero frames, a 0x0 canvas, an opaque black
// background. Load binds it to a stream; a failed load keeps the
// previous state, so loading may simply be retried.
//
// All methods are safe for concurrent use.
type Decoder struct {
	mu       sync.Mutex
	opts     options
	g        *gif.GIF
	meta     Metadata
	delays   []time.Duration
	minDelay time.Duration
	cache    *cache.FrameCache
	prefetch *cache.Prefetcher
	loaded   bool
}

// New creates an empty decoder. Options tune cache sizing, prefetch
// behavior and delay handling for all subsequent loads.
func New(opts ...Option) *Decoder {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Decoder{
		opts:     o,
		minDelay: o.minFrameDelay,
		meta:     emptyMetadata(),
	}
}

// LoadFile reads and decodes the GIF at path.
func (d *Decoder) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("gifbolt: open %s: %w", path, err)
	}
	defer f.Close()
	return d.Load(f)
}

// LoadBytes decodes a GIF held in memory.
func (d *Decoder) LoadBytes(data []byte) error {
	return d.Load(bytes.NewReader(data))
}

// Load decodes a complete GIF stream from r and replaces the current
// animation. Decoding is eager; composition is lazy, driven by the
// cache and the prefetcher. On failure the decoder keeps whatever it
// had before, so a load may be retried with a different source.
func (d *Decoder) Load(r io.Reader) error {
	g, err := gif.DecodeAll(r)
	if err != nil {
		return fmt.Errorf("gifbolt: decode: %w", err)
	}
	if len(g.Image) == 0 {
		return errors.New("gifbolt: decode: stream has no frames")
	}

	comp := compose.New(g)
	width, height := comp.Size()
	loop := normalizeLoopCount(g.LoopCount)
	meta := Metadata{
		Width:           width,
		Height:          height,
		FrameCount:      len(g.Image),
		LoopCount:       loop,
		Looping:         loop == -1,
		Background:      comp.Background(),
		HasTransparency: comp.HasTransparency(),
	}

	delays := make([]time.Duration, meta.FrameCount)
	for i := range delays {
		if i < len(g.Delay) {
			// GIF delays are in hundredths of a second.
			delays[i] = time.Duration(g.Delay[i]) * 10 * time.Millisecond
		}
	}

	capacity := cache.AdaptiveCapacity(meta.FrameCount,
		d.opts.cachePercentage, d.opts.minCachedFrames, d.opts.maxCachedFrames)
	fc := cache.New(comp, capacity)

	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopPrefetchLocked()
	if d.cache != nil {
		d.cache.Reset()
	}
	d.g = g
	d.meta = meta
	d.delays = delays
	d.cache = fc
	d.prefetch = cache.NewPrefetcher(fc, d.opts.lookahead)
	d.loaded = true
	if d.opts.prefetch {
		d.prefetch.Start(context.Background(), 0)
	}

	Logger().Info("animation loaded",
		"frames", meta.FrameCount,
		"width", meta.Width,
		"height", meta.Height,
		"loop_count", meta.LoopCount,
		"cache_capacity", capacity)
	return nil
}

// stopPrefetchLocked joins the prefetch worker. Caller holds d.mu; the
// worker only ever takes the cache lock, so the join cannot deadlock.
func (d *Decoder) stopPrefetchLocked() {
	if d.prefetch != nil {
		d.prefetch.Stop()
	}
}

// Loaded reports whether a stream is currently loaded.
func (d *Decoder) Loaded() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.loaded
}

// Metadata returns the loaded animation's metadata.
func (d *Decoder) Metadata() Metadata {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.meta
}

// FrameCount returns the number of frames, 0 when nothing is loaded.
func (d *Decoder) FrameCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.meta.FrameCount
}

// Width returns the canvas width in pixels.
func (d *Decoder) Width() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.meta.Width
}

// Height returns the canvas height in pixels.
func (d *Decoder) Height() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.meta.Height
}

// IsLooping reports whether the stream's loop metadata means forever.
func (d *Decoder) IsLooping() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.meta.Looping
}

// HasTransparency reports whether any frame has transparent pixels.
func (d *Decoder) HasTransparency() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.meta.HasTransparency
}

// Background returns the canvas backdrop color.
func (d *Decoder) Background() color.RGBA {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.meta.Background
}

// FrameDelay returns the stream's delay for frame index as decoded,
// without the minimum-delay floor. Out-of-range indices return 0.
func (d *Decoder) FrameDelay(index int) time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	if index < 0 || index >= len(d.delays) {
		return 0
	}
	return d.delays[index]
}

// EffectiveFrameDelay returns the delay for frame index floored at
// MinFrameDelay. This is the duration a render loop should wait before
// the next advance.
func (d *Decoder) EffectiveFrameDelay(index int) time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	var raw time.Duration
	if index >= 0 && index < len(d.delays) {
		raw = d.delays[index]
	}
	return EffectiveDelay(raw, d.minDelay)
}

// MinFrameDelay returns the floor applied by EffectiveFrameDelay.
func (d *Decoder) MinFrameDelay() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.minDelay
}

// SetMinFrameDelay changes the delay floor. Negative values clamp to
// zero, which disables the floor.
func (d *Decoder) SetMinFrameDelay(min time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if min < 0 {
		min = 0
	}
	d.minDelay = min
}

// FrameRGBA returns a retained handle to the straight-RGBA pixels of
// frame index, composing it and any prior frames as needed. The caller
// must release the handle exactly once.
func (d *Decoder) FrameRGBA(index int) (*pixel.Buffer, error) {
	c := d.frameCache()
	if c == nil {
		return nil, ErrNotLoaded
	}
	return c.EnsureComposedUpTo(context.Background(), index)
}

// FrameBGRAPremultiplied returns a retained handle to the
// premultiplied-BGRA pixels of frame index. The conversion runs once
// per frame and is memoized alongside the cached RGBA frame, so a
// render loop pulling the same format every tick pays for it only on
// first sight. The caller must release the handle exactly once.
func (d *Decoder) FrameBGRAPremultiplied(index int) (*pixel.Buffer, error) {
	c := d.frameCache()
	if c == nil {
		return nil, ErrNotLoaded
	}
	if b, ok := c.Converted(index); ok {
		return b, nil
	}
	src, err := c.EnsureComposedUpTo(context.Background(), index)
	if err != nil {
		return nil, err
	}
	out := pixel.ToBGRAPremultiplied(src)
	_ = src.Release()
	c.StoreConverted(index, out)
	return out, nil
}

// FrameBGRAPremultipliedScaled returns frame index as premultiplied
// BGRA resampled to width x height with the given filter. FilterNone
// skips resampling and only converts. Scaled frames are derived on
// every call, not memoized. The caller must release the handle exactly
// once.
func (d *Decoder) FrameBGRAPremultipliedScaled(index, width, height int, filter pixel.Filter) (*pixel.Buffer, error) {
	src, err := d.FrameRGBA(index)
	if err != nil {
		return nil, err
	}
	out, err := pixel.ScaleBGRAPremultiplied(src, width, height, filter)
	_ = src.Release()
	return out, err
}

// frameCache returns the current cache without holding the decoder
// lock across composition. A concurrent load swaps in a new cache; a
// caller still composing against the old one is unaffected.
func (d *Decoder) frameCache() *cache.FrameCache {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cache
}

// SetCurrentFrame records the playback position. Purely advisory: it
// biases cache eviction away from the displayed frame and tells the
// prefetcher where demand is. It never blocks or composes.
func (d *Decoder) SetCurrentFrame(index int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cache == nil {
		return
	}
	d.cache.SetCursor(index)
	if d.prefetch != nil {
		d.prefetch.SetCurrentFrame(index)
	}
}

// CurrentFrame returns the last recorded playback position.
func (d *Decoder) CurrentFrame() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cache == nil {
		return 0
	}
	return d.cache.Cursor()
}

// StartPrefetching launches the background prefetcher with from as the
// initial playback position, replacing a worker already running. A
// decoder with nothing loaded ignores the call.
func (d *Decoder) StartPrefetching(from int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.prefetch == nil {
		return
	}
	d.prefetch.Start(context.Background(), from)
}

// StopPrefetching stops the background prefetcher and joins it. After
// it returns no composition is in flight.
func (d *Decoder) StopPrefetching() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopPrefetchLocked()
}

// PrefetchEnabled reports whether the background prefetcher is running.
func (d *Decoder) PrefetchEnabled() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.prefetch != nil && d.prefetch.Running()
}

// SetPrefetchEnabled starts the prefetcher from the current playback
// position, or stops it. The setting also becomes the default for
// subsequent loads.
func (d *Decoder) SetPrefetchEnabled(enabled bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.opts.prefetch = enabled
	if d.prefetch == nil {
		return
	}
	if !enabled {
		d.prefetch.Stop()
		return
	}
	if !d.prefetch.Running() {
		d.prefetch.Start(context.Background(), d.cache.Cursor())
	}
}

// ResetCanvas drops every cached frame and rewinds the compositor to
// its pre-frame-0 state. A running prefetcher is joined first and
// restarted from frame 0 after, so no in-flight composition races the
// reset. Handles already given out stay valid.
func (d *Decoder) ResetCanvas() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cache == nil {
		return
	}
	running := d.prefetch != nil && d.prefetch.Running()
	d.stopPrefetchLocked()
	d.cache.Reset()
	d.cache.SetCursor(0)
	if running {
		d.prefetch.Start(context.Background(), 0)
	}
}

// RepeatCount returns the repeat budget playback should start with,
// derived from the configured repeat policy and the stream's loop
// metadata. See ParseRepeatPolicy.
func (d *Decoder) RepeatCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return ParseRepeatPolicy(d.opts.repeatPolicy, d.meta.Looping)
}

// CachePercentage returns the configured fraction of the frame count
// kept resident.
func (d *Decoder) CachePercentage() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opts.cachePercentage
}

// MinCachedFrames returns the configured capacity floor.
func (d *Decoder) MinCachedFrames() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opts.minCachedFrames
}

// MaxCachedFrames returns the configured capacity ceiling.
func (d *Decoder) MaxCachedFrames() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opts.maxCachedFrames
}

// SetMaxCachedFrames changes the capacity ceiling and, when a stream is
// loaded, reapplies the adaptive capacity rule under the new bound.
// Non-positive values are ignored.
func (d *Decoder) SetMaxCachedFrames(n int) {
	if n < 1 {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.opts.maxCachedFrames = n
	if d.opts.minCachedFrames > n {
		d.opts.minCachedFrames = n
	}
	if d.cache != nil {
		d.cache.SetCapacity(cache.AdaptiveCapacity(
			d.meta.FrameCount, d.opts.cachePercentage,
			d.opts.minCachedFrames, d.opts.maxCachedFrames))
	}
}

// CacheCapacity returns the number of frames the cache may hold, as
// computed at load time or overridden since. Zero when nothing is
// loaded.
func (d *Decoder) CacheCapacity() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cache == nil {
		return 0
	}
	return d.cache.Capacity()
}

// SetCacheCapacity overrides the capacity computed at load. Lowering
// it evicts immediately; frames that stay resident remain valid. A
// decoder with nothing loaded ignores the call.
func (d *Decoder) SetCacheCapacity(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cache != nil {
		d.cache.SetCapacity(n)
	}
}

// CacheStats returns a snapshot of cache occupancy and hit counters.
func (d *Decoder) CacheStats() cache.Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cache == nil {
		return cache.Stats{}
	}
	return d.cache.Stats()
}

// Close stops the prefetcher, releases every cached frame, and returns
// the decoder to its empty state. The decoder remains usable; a new
// stream may be loaded afterward.
func (d *Decoder) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopPrefetchLocked()
	if d.cache != nil {
		d.cache.Reset()
	}
	d.g = nil
	d.meta = emptyMetadata()
	d.delays = nil
	d.cache = nil
	d.prefetch = nil
	d.loaded = false
}
