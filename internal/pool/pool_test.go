package pool

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/trawlhq/trawl/internal/model"
)

func testIdentity(id string, tier model.Tier) model.Identity {
	return model.Identity{
		ID:        id,
		Tier:      tier,
		ProxyURL:  "http://10.0.0.1:8080",
		UserAgent: "Mozilla/5.0",
	}
}

// TestAcquirePrefersLowestTier verifies that Acquire returns an
// identity from the lowest available tier at or above the hint.
func TestAcquirePrefersLowestTier(t *testing.T) {
	t.Parallel()

	p := New([]model.Identity{
		testIdentity("dc-01", model.TierDatacenter),
		testIdentity("res-01", model.TierResidential),
		testIdentity("mob-01", model.TierMobile),
	}, WithRandSource(rand.NewSource(1)))

	t.Run("datacenter hint yields datacenter", func(t *testing.T) {
		id, err := p.Acquire(context.Background(), model.TierDatacenter)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if id.Tier != model.TierDatacenter {
			t.Errorf("tier = %v, want datacenter", id.Tier)
		}
		p.Release(id.ID, true)
	})

	t.Run("residential hint skips datacenter", func(t *testing.T) {
		id, err := p.Acquire(context.Background(), model.TierResidential)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if id.Tier != model.TierResidential {
			t.Errorf("tier = %v, want residential", id.Tier)
		}
		p.Release(id.ID, true)
	})

	t.Run("hint above all borrowed tiers escalates", func(t *testing.T) {
		// Borrow the only residential identity; a residential hint must
		// then wait or escalate. With mobile free it escalates.
		res, err := p.Acquire(context.Background(), model.TierResidential)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer p.Release(res.ID, true)

		id, err := p.Acquire(context.Background(), model.TierMobile)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer p.Release(id.ID, true)
		if id.Tier != model.TierMobile {
			t.Errorf("tier = %v, want mobile", id.Tier)
		}
	})
}

// TestAcquireExclusive verifies that a borrowed identity is not lent
// twice.
func TestAcquireExclusive(t *testing.T) {
	t.Parallel()

	p := New([]model.Identity{
		testIdentity("dc-01", model.TierDatacenter),
		testIdentity("dc-02", model.TierDatacenter),
	})

	first, err := p.Acquire(context.Background(), model.TierDatacenter)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := p.Acquire(context.Background(), model.TierDatacenter)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if first.ID == second.ID {
		t.Errorf("identity %s lent twice concurrently", first.ID)
	}

	p.Release(first.ID, true)
	p.Release(second.ID, true)
}

// TestAcquireBlocksUntilRelease verifies that Acquire waits for a
// borrowed identity instead of failing.
func TestAcquireBlocksUntilRelease(t *testing.T) {
	t.Parallel()

	p := New([]model.Identity{testIdentity("dc-01", model.TierDatacenter)})

	held, err := p.Acquire(context.Background(), model.TierDatacenter)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	acquired := make(chan *model.Identity, 1)
	go func() {
		id, err := p.Acquire(context.Background(), model.TierDatacenter)
		if err != nil {
			t.Errorf("blocked acquire failed: %v", err)
		}
		acquired <- id
	}()

	select {
	case <-acquired:
		t.Fatal("acquire returned while the only identity was borrowed")
	case <-time.After(50 * time.Millisecond):
	}

	p.Release(held.ID, true)

	select {
	case id := <-acquired:
		if id.ID != "dc-01" {
			t.Errorf("acquired %s, want dc-01", id.ID)
		}
	case <-time.After(time.Second):
		t.Fatal("acquire did not wake after release")
	}
}

// TestAcquireCancelledContext verifies that a cancelled context
// unblocks a waiting Acquire.
func TestAcquireCancelledContext(t *testing.T) {
	t.Parallel()

	p := New([]model.Identity{testIdentity("dc-01", model.TierDatacenter)})

	held, err := p.Acquire(context.Background(), model.TierDatacenter)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer p.Release(held.ID, true)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := p.Acquire(ctx, model.TierDatacenter)
		errCh <- err
	}()

	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("error = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("acquire did not unblock on cancel")
	}
}

// TestQuarantine verifies that an identity crossing the failure
// threshold is benched and returns after the cooldown.
func TestQuarantine(t *testing.T) {
	t.Parallel()

	current := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p := New(
		[]model.Identity{testIdentity("dc-01", model.TierDatacenter)},
		WithQuarantinePolicy(0.5, 4, time.Minute),
		WithNowFunc(func() time.Time { return current }),
	)

	// Quarantine requires a full window; two failures in a window of
	// four gives rate 0.5, meeting the threshold on the fourth release.
	for i, healthy := range []bool{true, true, false, false} {
		id, err := p.Acquire(context.Background(), model.TierDatacenter)
		if err != nil {
			t.Fatalf("acquire %d: %v", i, err)
		}
		p.Release(id.ID, healthy)
	}

	if _, err := p.Acquire(context.Background(), model.TierDatacenter); !errors.Is(err, ErrPoolExhausted) {
		t.Fatalf("error = %v, want ErrPoolExhausted while quarantined", err)
	}

	stats := p.Stats()
	if stats.Quarantined != 1 || stats.Quarantines != 1 {
		t.Errorf("stats = %+v, want one quarantined, one event", stats)
	}

	// After the cooldown the identity is lendable again.
	current = current.Add(2 * time.Minute)
	id, err := p.Acquire(context.Background(), model.TierDatacenter)
	if err != nil {
		t.Fatalf("acquire after cooldown: %v", err)
	}
	if id.ID != "dc-01" {
		t.Errorf("acquired %s, want dc-01", id.ID)
	}
	p.Release(id.ID, true)
}

// TestQuarantineWindowSlides verifies that old outcomes age out of the
// sliding window.
func TestQuarantineWindowSlides(t *testing.T) {
	t.Parallel()

	p := New(
		[]model.Identity{testIdentity("dc-01", model.TierDatacenter)},
		WithQuarantinePolicy(0.75, 4, time.Minute),
	)

	// Two early failures followed by enough successes to push them out
	// of the window must not quarantine.
	outcomes := []bool{false, false, true, true, true, true}
	for i, healthy := range outcomes {
		id, err := p.Acquire(context.Background(), model.TierDatacenter)
		if err != nil {
			t.Fatalf("acquire %d: %v", i, err)
		}
		p.Release(id.ID, healthy)
	}

	if stats := p.Stats(); stats.Quarantined != 0 {
		t.Errorf("identity quarantined despite recovered window: %+v", stats)
	}
}

// TestAcquireExhaustedTier verifies ErrPoolExhausted when no identity
// at or above the hint exists.
func TestAcquireExhaustedTier(t *testing.T) {
	t.Parallel()

	p := New([]model.Identity{testIdentity("dc-01", model.TierDatacenter)})

	_, err := p.Acquire(context.Background(), model.TierMobile)
	if !errors.Is(err, ErrPoolExhausted) {
		t.Errorf("error = %v, want ErrPoolExhausted", err)
	}
}

// TestAddInjectsIdentity verifies post-construction registration, the
// path used for the embedded Tor endpoint.
func TestAddInjectsIdentity(t *testing.T) {
	t.Parallel()

	p := New([]model.Identity{testIdentity("dc-01", model.TierDatacenter)})

	if _, err := p.Acquire(context.Background(), model.TierTor); !errors.Is(err, ErrPoolExhausted) {
		t.Fatalf("error = %v, want ErrPoolExhausted before Add", err)
	}

	tor := model.Identity{
		ID:        "tor-embedded",
		Tier:      model.TierTor,
		ProxyURL:  "socks5://127.0.0.1:9050",
		UserAgent: "Mozilla/5.0",
	}
	p.Add(tor)

	id, err := p.Acquire(context.Background(), model.TierTor)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id.ID != "tor-embedded" {
		t.Errorf("acquired %s, want tor-embedded", id.ID)
	}
	p.Release(id.ID, true)
}

// TestWeightedPickFavorsHealthy verifies that selection leans toward
// identities with better recent success rates.
func TestWeightedPickFavorsHealthy(t *testing.T) {
	t.Parallel()

	p := New(
		[]model.Identity{
			testIdentity("good", model.TierDatacenter),
			testIdentity("bad", model.TierDatacenter),
		},
		// Threshold above 1 so the bad identity is never quarantined.
		WithQuarantinePolicy(1.0, 8, time.Minute),
		WithRandSource(rand.NewSource(42)),
	)

	// Seed divergent histories directly through the release path.
	for i := 0; i < 4; i++ {
		id, err := p.Acquire(context.Background(), model.TierDatacenter)
		if err != nil {
			t.Fatalf("seeding acquire: %v", err)
		}
		p.Release(id.ID, id.ID == "good")
	}
	for _, e := range p.entries {
		for e.windowLen < 4 {
			e.record(e.identity.ID == "good")
		}
	}

	counts := map[string]int{}
	for i := 0; i < 200; i++ {
		id, err := p.Acquire(context.Background(), model.TierDatacenter)
		if err != nil {
			t.Fatalf("acquire %d: %v", i, err)
		}
		counts[id.ID]++
		// Release without recording drift: keep the windows static by
		// repeating each identity's established pattern.
		p.Release(id.ID, id.ID == "good")
	}

	if counts["good"] <= counts["bad"] {
		t.Errorf("healthy identity not favored: good=%d bad=%d", counts["good"], counts["bad"])
	}
}
