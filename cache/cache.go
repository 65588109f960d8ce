// Package cache bounds the memory held by composed GIF frames and keeps
// composition ahead of playback.
//
// GIF frames can only be resolved in order, so a naive player either
// recomposes from frame 0 on every seek or caches every frame it has
// ever seen. FrameCache does neither: it keeps a bounded window of
// resolved frames biased around the playback cursor, and transparently
// replays the stream from the start when a frame behind the window is
// requested again. The Prefetcher drives the same cache from a background
// goroutine so that playback normally never waits for composition.
package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/StanleySweet/gifbolt-go/internal/compose"
	"github.com/StanleySweet/gifbolt-go/pixel"
)

// ErrFrameOutOfRange is returned for indices outside [0, FrameCount).
var ErrFrameOutOfRange = errors.New("cache: frame index out of range")

// Default sizing parameters. Capacity scales with the animation length
// so short loops stay fully resident while long streams stay bounded.
const (
	// DefaultPercentage is the fraction of the frame count cached.
	DefaultPercentage = 0.25

	// DefaultMinFrames is the capacity floor.
	DefaultMinFrames = 4

	// DefaultMaxFrames is the capacity ceiling.
	DefaultMaxFrames = 64
)

// AdaptiveCapacity computes the cache capacity for an animation:
// frameCount*percentage rounded half-up, clamped to [minFrames, maxFrames].
// A non-positive frameCount yields minFrames.
func AdaptiveCapacity(frameCount int, percentage float64, minFrames, maxFrames int) int {
	if frameCount <= 0 {
		return minFrames
	}
	n := int(float64(frameCount)*percentage + 0.5)
	if n < minFrames {
		n = minFrames
	}
	if n > maxFrames {
		n = maxFrames
	}
	return n
}

// FrameCache is a bounded store of fully-composed frames keyed by frame
// index. It owns the Compositor: all composition, lookup, and eviction
// happen under one mutex, which is what makes the strictly-sequential
// compositor safe to share between the playback path and the Prefetcher.
//
// Cached values are reference-counted; a lookup hands out its own
// retained handle, so an entry evicted while a caller still holds it
// stays valid until that caller releases it.
type FrameCache struct {
	mu        sync.Mutex
	comp      *compose.Compositor
	entries   map[int]*pixel.Buffer // straight RGBA, one cache-owned reference each
	converted map[int]*pixel.Buffer // premultiplied-BGRA twins, dropped with their entry
	capacity  int

	// cursor is the last playback position the consumer reported. It
	// biases eviction and bounds how far ahead the Prefetcher runs.
	cursor atomic.Int64

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

// New creates a frame cache over comp holding at most capacity frames.
// A capacity below 1 is raised to 1.
func New(comp *compose.Compositor, capacity int) *FrameCache {
	if capacity < 1 {
		capacity = 1
	}
	return &FrameCache{
		comp:      comp,
		entries:   make(map[int]*pixel.Buffer),
		converted: make(map[int]*pixel.Buffer),
		capacity:  capacity,
	}
}

// FrameCount returns the number of frames in the underlying stream.
func (c *FrameCache) FrameCount() int {
	return c.comp.FrameCount()
}

// Len returns the number of resident frames.
func (c *FrameCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Capacity returns the maximum number of resident frames.
func (c *FrameCache) Capacity() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.capacity
}

// SetCapacity changes the resident-frame ceiling, evicting immediately
// if the cache is over the new limit. Values below 1 are raised to 1.
func (c *FrameCache) SetCapacity(n int) {
	if n < 1 {
		n = 1
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.capacity = n
	for len(c.entries) > c.capacity {
		victim, ok := c.victimLocked(-1)
		if !ok {
			break
		}
		c.dropLocked(victim)
	}
}

// Cursor returns the last reported playback index.
func (c *FrameCache) Cursor() int {
	return int(c.cursor.Load())
}

// SetCursor records the playback index. Purely advisory: it steers
// eviction away from the displayed frame and tells the Prefetcher where
// demand is, but never blocks.
func (c *FrameCache) SetCursor(index int) {
	c.cursor.Store(int64(index))
}

// Frame returns a retained handle to the resident frame at index, or
// (nil, false) on a miss. The caller releases the handle when done.
func (c *FrameCache) Frame(index int) (*pixel.Buffer, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.entries[index]
	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return b.Retain(), true
}

// EnsureComposedUpTo returns a retained handle to the frame at index,
// composing forward as needed. When index lies behind a frame that has
// already been evicted, the stream is replayed from frame 0; frames that
// are still resident are not re-stored during the replay.
//
// ctx is consulted between composition steps, so a cancelled caller
// never leaves the compositor mid-frame.
func (c *FrameCache) EnsureComposedUpTo(ctx context.Context, index int) (*pixel.Buffer, error) {
	if index < 0 || index >= c.comp.FrameCount() {
		return nil, fmt.Errorf("%w: %d of %d", ErrFrameOutOfRange, index, c.comp.FrameCount())
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if b, ok := c.entries[index]; ok {
		c.hits.Add(1)
		return b.Retain(), nil
	}
	c.misses.Add(1)

	// Behind the compositor and already evicted: the only way back to
	// index is to replay the deltas from the start.
	if index <= c.comp.LastComposed() {
		c.comp.Reset()
	}

	var out *pixel.Buffer
	for next := c.comp.LastComposed() + 1; next <= index; next++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		buf, err := c.comp.ComposeNext(next)
		if err != nil {
			return nil, err
		}
		if _, ok := c.entries[next]; ok {
			// Still resident from before the replay. The requested
			// index itself was a miss, so it never takes this branch.
			_ = buf.Release()
			continue
		}
		c.storeLocked(next, buf)
		if next == index {
			out = buf.Retain()
		}
	}
	return out, nil
}

// composeAhead advances the compositor at most one frame toward target,
// storing the result. It reports done=true when the cache has reached
// target (or the end of the stream) and there is nothing left to do.
// Unlike the lookup paths it does not touch the hit/miss counters; it is
// the Prefetcher's entry point, and stats describe consumer traffic.
func (c *FrameCache) composeAhead(ctx context.Context, target int) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := c.comp.LastComposed() + 1
	if next > target || next >= c.comp.FrameCount() {
		return true, nil
	}
	if err := ctx.Err(); err != nil {
		return true, err
	}
	buf, err := c.comp.ComposeNext(next)
	if err != nil {
		return true, err
	}
	if _, ok := c.entries[next]; ok {
		// A consumer replay left this frame resident; the compositor
		// still had to step through it.
		_ = buf.Release()
	} else {
		c.storeLocked(next, buf)
	}
	return next >= target, nil
}

// Converted returns a retained handle to the premultiplied-BGRA twin of
// the frame at index, if one has been stored and the frame is still
// resident.
func (c *FrameCache) Converted(index int) (*pixel.Buffer, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.converted[index]
	if !ok {
		return nil, false
	}
	return b.Retain(), true
}

// StoreConverted memoizes the premultiplied-BGRA twin for index. The
// cache takes its own reference; the caller keeps ownership of buf. The
// twin is dropped when its frame is evicted, so a twin for a frame that
// is no longer resident is not stored at all.
func (c *FrameCache) StoreConverted(index int, buf *pixel.Buffer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[index]; !ok {
		return
	}
	if old, ok := c.converted[index]; ok {
		_ = old.Release()
	}
	c.converted[index] = buf.Retain()
}

// Reset releases every resident frame and rewinds the compositor to its
// pre-frame-0 state. Handles already given out stay valid. Counters are
// preserved; a reset is part of normal looping, not a new cache.
func (c *FrameCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for index, b := range c.entries {
		_ = b.Release()
		delete(c.entries, index)
	}
	for index, b := range c.converted {
		_ = b.Release()
		delete(c.converted, index)
	}
	c.comp.Reset()
}

// storeLocked inserts buf at index, taking ownership of the caller's
// reference and evicting as needed to respect capacity.
// Caller must hold c.mu.
func (c *FrameCache) storeLocked(index int, buf *pixel.Buffer) {
	for len(c.entries) >= c.capacity {
		victim, ok := c.victimLocked(index)
		if !ok {
			// Only the cursor and the incoming frame remain; pinning
			// them may exceed capacity by one.
			break
		}
		c.dropLocked(victim)
	}
	c.entries[index] = buf
}

// victimLocked picks the eviction victim: the resident frame farthest
// behind the cursor, or farthest ahead when nothing is behind. The
// cursor's own frame and protect are never picked.
// Caller must hold c.mu.
func (c *FrameCache) victimLocked(protect int) (int, bool) {
	cursor := int(c.cursor.Load())
	behind, ahead := -1, -1
	behindDist, aheadDist := 0, 0
	for index := range c.entries {
		if index == cursor || index == protect {
			continue
		}
		if index < cursor {
			if d := cursor - index; d > behindDist {
				behind, behindDist = index, d
			}
		} else {
			if d := index - cursor; d > aheadDist {
				ahead, aheadDist = index, d
			}
		}
	}
	if behind >= 0 {
		return behind, true
	}
	if ahead >= 0 {
		return ahead, true
	}
	return 0, false
}

// dropLocked evicts the frame at index and its converted twin.
// Caller must hold c.mu.
func (c *FrameCache) dropLocked(index int) {
	if b, ok := c.entries[index]; ok {
		_ = b.Release()
		delete(c.entries, index)
		c.evictions.Add(1)
	}
	if b, ok := c.converted[index]; ok {
		_ = b.Release()
		delete(c.converted, index)
	}
}

// Stats contains cache statistics.
type Stats struct {
	// Len is the current number of resident frames.
	Len int
	// Capacity is the resident-frame ceiling.
	Capacity int
	// Hits is the number of lookups served from the cache.
	Hits uint64
	// Misses is the number of lookups that required composition.
	Misses uint64
	// HitRate is Hits/(Hits+Misses), 0.0 to 1.0.
	HitRate float64
	// Evictions is the number of frames dropped to respect capacity.
	Evictions uint64
}

// Stats returns current cache statistics. Counters cover consumer
// lookups only; background prefetch work is not demand.
func (c *FrameCache) Stats() Stats {
	hits := c.hits.Load()
	misses := c.misses.Load()

	var hitRate float64
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total)
	}

	return Stats{
		Len:       c.Len(),
		Capacity:  c.Capacity(),
		Hits:      hits,
		Misses:    misses,
		HitRate:   hitRate,
		Evictions: c.evictions.Load(),
	}
}

// ResetStats resets all statistics counters to zero.
func (c *FrameCache) ResetStats() {
	c.hits.Store(0)
	c.misses.Store(0)
	c.evictions.Store(0)
}
