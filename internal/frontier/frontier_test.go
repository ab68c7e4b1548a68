package frontier

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/trawlhq/trawl/internal/model"
)

func seedTarget(t *testing.T, uri string) *model.Target {
	t.Helper()
	target, err := model.NewSeedTarget(uri)
	if err != nil {
		t.Fatal(err)
	}
	return target
}

// TestAddDeduplicates verifies duplicate normalized URIs are dropped.
func TestAddDeduplicates(t *testing.T) {
	t.Parallel()

	f := New(100, 2)

	if !f.Add(seedTarget(t, "http://example.com/page")) {
		t.Fatal("first add rejected")
	}
	if f.Add(seedTarget(t, "http://example.com/page")) {
		t.Error("exact duplicate accepted")
	}
	// Normalization collapses these to the same URI.
	if f.Add(seedTarget(t, "HTTP://EXAMPLE.COM/page#section")) {
		t.Error("normalized duplicate accepted")
	}
	if !f.Add(seedTarget(t, "http://example.com/other")) {
		t.Error("distinct target rejected")
	}

	if stats := f.Stats(); stats.Accepted != 2 {
		t.Errorf("accepted = %d, want 2", stats.Accepted)
	}
}

// TestAddDepthLimit verifies targets beyond the depth cap are dropped.
func TestAddDepthLimit(t *testing.T) {
	t.Parallel()

	f := New(100, 1)

	seed := seedTarget(t, "http://example.com/")
	if !f.Add(seed) {
		t.Fatal("seed rejected")
	}

	child, err := model.NewDiscoveredTarget("http://example.com/child", seed)
	if err != nil {
		t.Fatal(err)
	}
	if !f.Add(child) {
		t.Error("depth-1 target rejected with maxDepth 1")
	}

	grandchild, err := model.NewDiscoveredTarget("http://example.com/grandchild", child)
	if err != nil {
		t.Fatal(err)
	}
	if f.Add(grandchild) {
		t.Error("depth-2 target accepted with maxDepth 1")
	}
}

// TestAddTargetCap verifies the total-target bound.
func TestAddTargetCap(t *testing.T) {
	t.Parallel()

	f := New(3, 2)

	for i := 0; i < 3; i++ {
		if !f.Add(seedTarget(t, fmt.Sprintf("http://example.com/%d", i))) {
			t.Fatalf("target %d rejected under the cap", i)
		}
	}
	if f.Add(seedTarget(t, "http://example.com/overflow")) {
		t.Error("target accepted past the cap")
	}
}

// TestNextFIFO verifies hand-out order matches accept order.
func TestNextFIFO(t *testing.T) {
	t.Parallel()

	f := New(100, 2)
	uris := []string{"http://a.example/", "http://b.example/", "http://c.example/"}
	for _, uri := range uris {
		f.Add(seedTarget(t, uri))
	}

	for _, want := range uris {
		target, err := f.Next(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if target.URI != want {
			t.Errorf("next = %s, want %s", target.URI, want)
		}
		f.Done()
	}
}

// TestNextDrainsWhenComplete verifies the termination condition: empty
// queue and nothing in flight.
func TestNextDrainsWhenComplete(t *testing.T) {
	t.Parallel()

	f := New(100, 2)
	f.Add(seedTarget(t, "http://example.com/"))

	if _, err := f.Next(context.Background()); err != nil {
		t.Fatal(err)
	}
	f.Done()

	if _, err := f.Next(context.Background()); !errors.Is(err, ErrDrained) {
		t.Errorf("error = %v, want ErrDrained on completed frontier", err)
	}
}

// TestNextWaitsForInflightDiscovery verifies Next blocks while a
// handed-out target might still discover new work.
func TestNextWaitsForInflightDiscovery(t *testing.T) {
	t.Parallel()

	f := New(100, 2)
	seed := seedTarget(t, "http://example.com/")
	f.Add(seed)

	if _, err := f.Next(context.Background()); err != nil {
		t.Fatal(err)
	}

	got := make(chan error, 1)
	go func() {
		_, err := f.Next(context.Background())
		got <- err
	}()

	select {
	case err := <-got:
		t.Fatalf("Next returned %v while a target was in flight", err)
	case <-time.After(50 * time.Millisecond):
	}

	// The in-flight worker discovers a link, then finishes.
	child, err := model.NewDiscoveredTarget("http://example.com/child", seed)
	if err != nil {
		t.Fatal(err)
	}
	f.Add(child)
	f.Done()

	select {
	case err := <-got:
		if err != nil {
			t.Errorf("Next = %v, want the discovered target", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Next did not wake for the discovered target")
	}
}

// TestDrain verifies Drain discards the queue, reports the discards,
// and unblocks waiters.
func TestDrain(t *testing.T) {
	t.Parallel()

	f := New(100, 2)
	f.Add(seedTarget(t, "http://a.example/"))
	f.Add(seedTarget(t, "http://b.example/"))

	// Hand out one so a waiter would otherwise block on in-flight.
	if _, err := f.Next(context.Background()); err != nil {
		t.Fatal(err)
	}

	discarded := f.Drain()
	if len(discarded) != 1 {
		t.Fatalf("discarded = %d targets, want 1", len(discarded))
	}
	if discarded[0].URI != "http://b.example/" {
		t.Errorf("discarded %s, want the queued target", discarded[0].URI)
	}

	if _, err := f.Next(context.Background()); !errors.Is(err, ErrDrained) {
		t.Errorf("error = %v, want ErrDrained after Drain", err)
	}
	if f.Add(seedTarget(t, "http://c.example/")) {
		t.Error("draining frontier accepted a target")
	}
}

// TestNextCancelledContext verifies context cancellation unblocks
// Next.
func TestNextCancelledContext(t *testing.T) {
	t.Parallel()

	f := New(100, 2)
	f.Add(seedTarget(t, "http://example.com/"))
	if _, err := f.Next(context.Background()); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	got := make(chan error, 1)
	go func() {
		_, err := f.Next(ctx)
		got <- err
	}()

	cancel()

	select {
	case err := <-got:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("error = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Next did not unblock on cancel")
	}
}
