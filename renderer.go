package gifbolt

import (
	"io"
	"sync"
	"time"

	"github.com/StanleySweet/gifbolt-go/backend"
)

// Renderer ties the three playback pieces together: a Decoder for
// pixels, a Player for the state machine, and a backend surface for
// display. A render loop calls AdvanceAndUpdateSurface once per tick
// and sleeps CurrentDelay between ticks; Play, Pause and Stop gate
// what a tick does.
//
// The surface is created lazily on the first update, walking the
// registered backends by priority (or the order given with
// WithBackendOrder). A backend that cannot initialize never fails the
// renderer itself; the failure is recorded and retrievable through
// LastError while the next backend in line is tried.
type Renderer struct {
	mu           sync.Mutex
	surface      backend.Surface
	backendOrder []string
	lastErr      string

	dec    *Decoder
	player *Player
}

// NewRenderer creates a renderer with its own decoder and a stopped
// player. Options apply to the decoder; WithBackendOrder additionally
// pins which surface backends are tried.
func NewRenderer(opts ...Option) *Renderer {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Renderer{
		dec:          New(opts...),
		player:       NewPlayer(),
		backendOrder: o.backendOrder,
	}
}

// Decoder returns the renderer's decoder for direct frame access and
// cache tuning.
func (r *Renderer) Decoder() *Decoder {
	return r.dec
}

// LoadFile loads the GIF at path and rebinds playback to it.
func (r *Renderer) LoadFile(path string) error {
	if err := r.dec.LoadFile(path); err != nil {
		r.recordErr(err)
		return err
	}
	r.configureAfterLoad()
	return nil
}

// Load loads a GIF stream from r0 and rebinds playback to it.
func (r *Renderer) Load(r0 io.Reader) error {
	if err := r.dec.Load(r0); err != nil {
		r.recordErr(err)
		return err
	}
	r.configureAfterLoad()
	return nil
}

// LoadBytes loads a GIF held in memory and rebinds playback to it.
func (r *Renderer) LoadBytes(data []byte) error {
	if err := r.dec.LoadBytes(data); err != nil {
		r.recordErr(err)
		return err
	}
	r.configureAfterLoad()
	return nil
}

// configureAfterLoad rewinds the player onto the new stream and drops a
// surface whose size no longer matches; the next update recreates it.
func (r *Renderer) configureAfterLoad() {
	r.player.Configure(r.dec.FrameCount(), r.dec.RepeatCount())
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.surface != nil &&
		(r.surface.Width() != r.dec.Width() || r.surface.Height() != r.dec.Height()) {
		r.surface.Destroy()
		r.surface = nil
	}
}

// Play starts or resumes playback from the current frame.
func (r *Renderer) Play() {
	r.player.Play()
}

// Pause suspends playback, keeping the current frame displayed.
func (r *Renderer) Pause() {
	r.player.Pause()
}

// Stop halts playback, rewinds to frame 0, restores the repeat budget,
// and resets the canvas so the next Play starts a clean pass.
func (r *Renderer) Stop() {
	r.player.Stop()
	r.dec.ResetCanvas()
}

// State returns the playback state.
func (r *Renderer) State() State {
	return r.player.State()
}

// CurrentFrame returns the frame the surface currently shows.
func (r *Renderer) CurrentFrame() int {
	return r.player.Current()
}

// SetCurrentFrame seeks playback to index (clamped to the stream)
// without touching the surface; the next update uploads it.
func (r *Renderer) SetCurrentFrame(index int) {
	r.player.SetCurrent(index)
	r.dec.SetCurrentFrame(r.player.Current())
}

// CurrentDelay returns how long a render loop should wait before the
// next AdvanceAndUpdateSurface, honoring the minimum-delay floor.
func (r *Renderer) CurrentDelay() time.Duration {
	return r.dec.EffectiveFrameDelay(r.player.Current())
}

// AdvanceAndUpdateSurface is the per-tick driver: when playing, it
// advances the state machine, composes the target frame if the
// prefetcher has not reached it yet, and pushes the pixels to the
// surface. It reports complete=true on the tick that finishes the last
// pass, after which the player is stopped and the last frame stays
// displayed. Ticks while paused or stopped do nothing.
func (r *Renderer) AdvanceAndUpdateSurface() (complete bool, err error) {
	if r.player.State() != StatePlaying {
		return false, nil
	}
	next, complete := r.player.Advance()
	if complete {
		return true, nil
	}
	if err := r.UpdateSurface(next); err != nil {
		return false, err
	}
	return false, nil
}

// UpdateSurface composes frame index if needed and replaces the
// surface content with it, creating the surface on first use. The
// frame becomes the current playback position.
func (r *Renderer) UpdateSurface(index int) error {
	buf, err := r.dec.FrameBGRAPremultiplied(index)
	if err != nil {
		r.recordErr(err)
		return err
	}
	defer buf.Release()

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.ensureSurfaceLocked(); err != nil {
		return err
	}
	if err := r.surface.Update(buf.Bytes()); err != nil {
		r.lastErr = err.Error()
		return err
	}
	r.player.SetCurrent(index)
	r.dec.SetCurrentFrame(index)
	return nil
}

// ensureSurfaceLocked creates the surface for the loaded canvas size.
// Caller must hold r.mu.
func (r *Renderer) ensureSurfaceLocked() error {
	if r.surface != nil {
		return nil
	}
	width, height := r.dec.Width(), r.dec.Height()
	s, err := backend.NewSurfaceOrdered(r.backendOrder, width, height)
	if err != nil {
		r.lastErr = err.Error()
		return err
	}
	r.surface = s
	Logger().Info("surface created", "width", width, "height", height)
	return nil
}

// NativeTexturePtr uploads frame index and returns the backend's
// native texture handle. Backends without one (software) return nil
// with no error.
func (r *Renderer) NativeTexturePtr(index int) (any, error) {
	if err := r.UpdateSurface(index); err != nil {
		return nil, err
	}
	return r.CurrentNativeHandle(), nil
}

// CurrentNativeHandle returns the native texture handle of the active
// surface, or nil before the first update.
func (r *Renderer) CurrentNativeHandle() any {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.surface == nil {
		return nil
	}
	return r.surface.NativeHandle()
}

// Surface returns the active backend surface, or nil before the first
// update. Embedders needing backend-specific operations assert it to
// the concrete type.
func (r *Renderer) Surface() backend.Surface {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.surface
}

// LastError returns the message of the most recent load or backend
// failure, or the empty string. Backend failures land here instead of
// failing the renderer; playback continues once a later attempt
// succeeds.
func (r *Renderer) LastError() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastErr
}

func (r *Renderer) recordErr(err error) {
	r.mu.Lock()
	r.lastErr = err.Error()
	r.mu.Unlock()
}

// Close stops playback, destroys the surface, and closes the decoder.
// The renderer remains usable; loading a new stream starts over.
func (r *Renderer) Close() {
	r.player.Stop()
	r.mu.Lock()
	if r.surface != nil {
		r.surface.Destroy()
		r.surface = nil
	}
	r.mu.Unlock()
	r.dec.Close()
}
