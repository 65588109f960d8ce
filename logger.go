package gifbolt

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/StanleySweet/gifbolt-go/backend"
	"github.com/StanleySweet/gifbolt-go/cache"
)

// nopHandler is a slog.Handler that silently discards all log records.
// The Enabled method returns false so the caller skips message formatting
// entirely, making disabled logging effectively zero-cost.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

// newNopLogger creates a logger that silently discards all output.
func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

// loggerPtr stores the active logger. Accessed atomically so that
// SetLogger can be called concurrently with logging from any goroutine.
var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	l := newNopLogger()
	loggerPtr.Store(l)
}

// SetLogger configures the logger for gifbolt and all its sub-packages.
// By default, gifbolt produces no log output. Call SetLogger to enable
// logging.
//
// SetLogger is safe for concurrent use: it stores the new logger
// atomically. Pass nil to disable logging (restore default silent
// behavior).
//
// Log levels used by gifbolt:
//   - [slog.LevelDebug]: per-frame events (compose, evict, prefetch)
//   - [slog.LevelInfo]: lifecycle events (image loaded, GPU device opened)
//   - [slog.LevelWarn]: non-fatal issues (backend fallback, prefetch abort)
//
// Example:
//
//	// Enable info-level logging to stderr:
//	gifbolt.SetLogger(slog.Default())
//
//	// Enable debug-level logging for full diagnostics:
//	gifbolt.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)

	// Sub-packages hold their own logger so they stay importable on
	// their own; propagate to keep configuration in one call.
	cache.SetLogger(l)
	backend.SetLogger(l)
}

// Logger returns the current logger used by gifbolt.
//
// Logger is safe for concurrent use.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}
