package cache

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/StanleySweet/gifbolt-go/internal/compose"
)

// waitUntil polls cond every few milliseconds until it holds or the
// deadline passes.
func waitUntil(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(3 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestPrefetcherFillsAhead(t *testing.T) {
	c := newTestCache(10, 8)
	p := NewPrefetcher(c, 3)

	p.Start(context.Background(), 0)
	defer p.Stop()

	waitUntil(t, "lookahead window to fill", func() bool {
		buf, ok := c.Frame(3)
		if ok {
			_ = buf.Release()
		}
		return ok
	})

	// Frames 0 through 3 are resident; the worker idles at the window
	// edge instead of racing to the end of the stream.
	for i := 0; i <= 3; i++ {
		buf, ok := c.Frame(i)
		if !ok {
			t.Errorf("expected frame %d resident", i)
			continue
		}
		_ = buf.Release()
	}
}

func TestPrefetcherStopJoins(t *testing.T) {
	c := newTestCache(20, 20)
	p := NewPrefetcher(c, 2)

	p.Start(context.Background(), 0)
	p.Stop()

	// A joined worker must not react to new demand.
	before := c.Len()
	c.SetCursor(10)
	time.Sleep(25 * time.Millisecond)
	if after := c.Len(); after != before {
		t.Errorf("cache grew from %d to %d after Stop", before, after)
	}
}

func TestPrefetcherLifecycle(t *testing.T) {
	c := newTestCache(10, 8)
	p := NewPrefetcher(c, 3)

	if p.Running() {
		t.Error("expected idle before Start")
	}

	p.Start(context.Background(), 0)
	if !p.Running() {
		t.Error("expected running after Start")
	}

	// Restart replaces the worker rather than stacking a second one.
	p.Start(context.Background(), 2)
	if !p.Running() {
		t.Error("expected running after restart")
	}

	p.Stop()
	if p.Running() {
		t.Error("expected idle after Stop")
	}
	p.Stop() // second Stop is a no-op
}

func TestPrefetcherFollowsCursor(t *testing.T) {
	c := newTestCache(12, 12)
	p := NewPrefetcher(c, 2)

	p.Start(context.Background(), 0)
	defer p.Stop()

	waitUntil(t, "initial window", func() bool {
		buf, ok := c.Frame(2)
		if ok {
			_ = buf.Release()
		}
		return ok
	})

	p.SetCurrentFrame(5)
	waitUntil(t, "window to follow the cursor", func() bool {
		buf, ok := c.Frame(7)
		if ok {
			_ = buf.Release()
		}
		return ok
	})
}

func TestPrefetcherRespectsCapacity(t *testing.T) {
	// A lookahead wider than the cache must not churn: the window stops
	// at the last frame that fits alongside the cursor.
	c := newTestCache(20, 3)
	p := NewPrefetcher(c, 10)

	p.Start(context.Background(), 0)
	defer p.Stop()

	waitUntil(t, "capacity-sized window", func() bool {
		return c.Len() >= 3
	})
	time.Sleep(25 * time.Millisecond)

	if got := c.Len(); got != 3 {
		t.Errorf("expected residency capped at 3, got %d", got)
	}
	if ev := c.Stats().Evictions; ev != 0 {
		t.Errorf("expected no evictions while idling at the window edge, got %d", ev)
	}
}

func TestPrefetcherParentContext(t *testing.T) {
	c := newTestCache(10, 8)
	p := NewPrefetcher(c, 3)

	ctx, cancel := context.WithCancel(context.Background())
	p.Start(ctx, 0)
	cancel()

	waitUntil(t, "worker to observe cancellation", func() bool {
		return !p.Running()
	})
	p.Stop() // still safe after self-termination
}

func TestPrefetcherMatchesSequentialComposition(t *testing.T) {
	// Frames served while the prefetcher races the consumer must be
	// byte-identical to a plain sequential composition.
	reference := make([][]byte, 10)
	ref := compose.New(testGIF(10))
	for i := 0; i < 10; i++ {
		buf, err := ref.ComposeNext(i)
		if err != nil {
			t.Fatalf("reference ComposeNext(%d): %v", i, err)
		}
		reference[i] = buf.AppendTo(nil)
		_ = buf.Release()
	}

	c := newTestCache(10, 4)
	p := NewPrefetcher(c, 3)
	p.Start(context.Background(), 0)
	defer p.Stop()

	for i := 0; i < 10; i++ {
		p.SetCurrentFrame(i)
		buf, err := c.EnsureComposedUpTo(context.Background(), i)
		if err != nil {
			t.Fatalf("EnsureComposedUpTo(%d): %v", i, err)
		}
		if !bytes.Equal(reference[i], buf.Bytes()) {
			t.Errorf("frame %d differs from sequential composition", i)
		}
		_ = buf.Release()
	}
}
