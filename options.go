package gifbolt

import (
	"time"

	"github.com/StanleySweet/gifbolt-go/cache"
)

// DefaultMinFrameDelay is the floor applied to frame delays at playback.
// Streams full of zero or near-zero delays would otherwise spin the
// render loop.
const DefaultMinFrameDelay = 10 * time.Millisecond

// Option configures a Decoder or Renderer during creation.
// Use functional options to customize behavior.
//
// Example:
//
//	// Default configuration
//	dec := gifbolt.New()
//
//	// Larger cache, no background prefetch
//	dec := gifbolt.New(
//	    gifbolt.WithCachePercentage(0.5),
//	    gifbolt.WithPrefetch(false),
//	)
type Option func(*options)

// options holds optional configuration applied at creation.
type options struct {
	cachePercentage float64
	minCachedFrames int
	maxCachedFrames int
	minFrameDelay   time.Duration
	prefetch        bool
	lookahead       int
	repeatPolicy    string
	backendOrder    []string
}

// defaultOptions returns the default configuration.
func defaultOptions() options {
	return options{
		cachePercentage: cache.DefaultPercentage,
		minCachedFrames: cache.DefaultMinFrames,
		maxCachedFrames: cache.DefaultMaxFrames,
		minFrameDelay:   DefaultMinFrameDelay,
		prefetch:        true,
		lookahead:       cache.DefaultLookahead,
	}
}

// WithCachePercentage sets the fraction of the frame count kept in the
// frame cache, applied at load time through the adaptive capacity rule.
// Values outside (0, 1] fall back to the default.
func WithCachePercentage(pct float64) Option {
	return func(o *options) {
		if pct > 0 && pct <= 1 {
			o.cachePercentage = pct
		}
	}
}

// WithCacheBounds sets the floor and ceiling the adaptive cache capacity
// is clamped to. Non-positive or inverted bounds fall back to the
// defaults.
func WithCacheBounds(minFrames, maxFrames int) Option {
	return func(o *options) {
		if minFrames > 0 && maxFrames >= minFrames {
			o.minCachedFrames = minFrames
			o.maxCachedFrames = maxFrames
		}
	}
}

// WithMinFrameDelay sets the floor applied by EffectiveFrameDelay.
// Zero disables the floor; negative values are ignored.
func WithMinFrameDelay(d time.Duration) Option {
	return func(o *options) {
		if d >= 0 {
			o.minFrameDelay = d
		}
	}
}

// WithPrefetch enables or disables the background prefetcher started on
// load. Playback still works with prefetch off; missing frames are then
// composed synchronously on access.
func WithPrefetch(enabled bool) Option {
	return func(o *options) {
		o.prefetch = enabled
	}
}

// WithPrefetchLookahead sets how many frames past the playback cursor
// the prefetcher keeps composed. Non-positive values fall back to the
// default.
func WithPrefetchLookahead(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.lookahead = n
		}
	}
}

// WithRepeatPolicy sets the repeat policy string applied at load,
// overriding the stream's own loop metadata. See ParseRepeatPolicy for
// the accepted forms ("Forever", "3x", "" to defer to metadata).
func WithRepeatPolicy(policy string) Option {
	return func(o *options) {
		o.repeatPolicy = policy
	}
}

// WithBackendOrder sets the surface backends a Renderer tries, in order,
// overriding priority-based selection. Unknown names are skipped at
// surface creation.
//
// Example:
//
//	r := gifbolt.NewRenderer(gifbolt.WithBackendOrder("wgpu", "software"))
func WithBackendOrder(names ...string) Option {
	return func(o *options) {
		o.backendOrder = names
	}
}
