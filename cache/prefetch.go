package cache

import (
	"context"
	"sync"
	"time"
)

// DefaultLookahead is how many frames past the playback cursor the
// Prefetcher keeps composed.
const DefaultLookahead = 5

// pollInterval is how long the worker sleeps once it is ahead of demand.
// Frame delays are 10ms or more, so a couple of milliseconds keeps the
// worker responsive without spinning.
const pollInterval = 2 * time.Millisecond

// Prefetcher drives a FrameCache from a background goroutine, keeping
// composition up to lookahead frames ahead of the playback cursor. It
// only ever moves forward; seeks behind the window are the lookup path's
// replay problem, not the scheduler's.
//
// Start and Stop may be called from any goroutine. Stop joins the
// worker, so once it returns no composition is in flight and the caller
// may safely Reset the cache.
type Prefetcher struct {
	cache     *FrameCache
	lookahead int
	interval  time.Duration

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewPrefetcher creates a prefetcher over c. A lookahead below 1 falls
// back to DefaultLookahead.
func NewPrefetcher(c *FrameCache, lookahead int) *Prefetcher {
	if lookahead < 1 {
		lookahead = DefaultLookahead
	}
	return &Prefetcher{
		cache:     c,
		lookahead: lookahead,
		interval:  pollInterval,
	}
}

// Lookahead returns the configured lookahead window.
func (p *Prefetcher) Lookahead() int {
	return p.lookahead
}

// Start launches the background worker with from as the initial cursor,
// replacing any worker already running. ctx bounds the worker's
// lifetime; Stop cancels it earlier.
func (p *Prefetcher) Start(ctx context.Context, from int) {
	p.Stop()

	if from < 0 {
		from = 0
	}
	p.cache.SetCursor(from)

	p.mu.Lock()
	defer p.mu.Unlock()
	ctx, p.cancel = context.WithCancel(ctx)
	p.running = true
	p.wg.Add(1)
	go p.run(ctx)
}

// Stop cancels the worker and waits for it to exit. Safe to call when
// nothing is running, and safe to call repeatedly.
func (p *Prefetcher) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	p.cancel = nil
	p.running = false
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	p.wg.Wait()
}

// Running reports whether the worker is active. A worker that stopped
// itself after a composition error reports false.
func (p *Prefetcher) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// SetCurrentFrame forwards the playback cursor to the cache, moving the
// prefetch window.
func (p *Prefetcher) SetCurrentFrame(index int) {
	p.cache.SetCursor(index)
}

func (p *Prefetcher) run(ctx context.Context) {
	defer p.wg.Done()
	defer func() {
		p.mu.Lock()
		p.running = false
		p.mu.Unlock()
	}()

	for {
		if ctx.Err() != nil {
			return
		}

		// The window ends at the lookahead, the last frame that fits
		// in capacity alongside the cursor, or the end of the stream,
		// whichever is nearest.
		cursor := p.cache.Cursor()
		target := cursor + p.lookahead
		if m := cursor + p.cache.Capacity() - 1; target > m {
			target = m
		}
		if last := p.cache.FrameCount() - 1; target > last {
			target = last
		}

		done, err := p.cache.composeAhead(ctx, target)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger().Warn("prefetch stopped on composition failure",
				"target", target, "error", err)
			return
		}
		if !done {
			continue
		}

		// Ahead of demand; wait for the cursor to move.
		select {
		case <-ctx.Done():
			return
		case <-time.After(p.interval):
		}
	}
}
