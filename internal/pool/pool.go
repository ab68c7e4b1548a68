package pool

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/trawlhq/trawl/internal/model"
)

// ErrPoolExhausted is returned by Acquire when every identity at or
// above the requested tier is quarantined or the pool holds no
// identity of those tiers at all. It is terminal for the requesting
// target: waiting would not help, because quarantine cooldowns are
// long relative to a target's attempt budget.
var ErrPoolExhausted = errors.New("identity pool exhausted")

// Default quarantine policy. Overridable via options.
const (
	defaultQuarantineThreshold = 0.5
	defaultQuarantineWindow    = 10
	defaultQuarantineCooldown  = 5 * time.Minute
)

// entry is the pool's bookkeeping for one identity.
type entry struct {
	identity model.Identity

	// borrowed marks the identity as lent out to a worker.
	borrowed bool

	// window is a ring of recent outcomes, true for healthy.
	window []bool

	// windowPos is the next write position in the ring.
	windowPos int

	// windowLen is the number of valid entries in the ring, up to
	// len(window).
	windowLen int

	// quarantinedUntil benches the identity until this instant.
	// Zero means not quarantined.
	quarantinedUntil time.Time
}

// failureRate returns the fraction of unhealthy outcomes in the
// window. Returns 0 with no history.
func (e *entry) failureRate() float64 {
	if e.windowLen == 0 {
		return 0
	}
	failures := 0
	for i := 0; i < e.windowLen; i++ {
		if !e.window[i] {
			failures++
		}
	}
	return float64(failures) / float64(e.windowLen)
}

// record appends one outcome to the sliding window.
func (e *entry) record(healthy bool) {
	e.window[e.windowPos] = healthy
	e.windowPos = (e.windowPos + 1) % len(e.window)
	if e.windowLen < len(e.window) {
		e.windowLen++
	}
}

// Pool is the concurrency-safe identity pool.
//
// Design decision: We guard all state with a single mutex plus a
// condition variable instead of channels because:
//  1. Acquire must scan and compare every candidate atomically
//  2. Releases must wake waiters whose tier just became available
//  3. The hot path is short; contention on one lock is negligible next
//     to network round-trips
type Pool struct {
	mu   sync.Mutex
	cond *sync.Cond

	entries map[string]*entry

	// byTier indexes entry IDs by tier for tier-ordered scans.
	byTier map[model.Tier][]string

	threshold float64
	window    int
	cooldown  time.Duration

	// now is injectable for quarantine expiry tests.
	now func() time.Time

	rng    *rand.Rand
	logger *slog.Logger

	// quarantines counts quarantine events for the summary.
	quarantines int
}

// Option configures a Pool.
type Option func(*Pool)

// WithQuarantinePolicy sets the failure-rate threshold, sliding window
// size, and cooldown duration for quarantining identities.
func WithQuarantinePolicy(threshold float64, window int, cooldown time.Duration) Option {
	return func(p *Pool) {
		p.threshold = threshold
		p.window = window
		p.cooldown = cooldown
	}
}

// WithLogger sets the logger. The pool logs quarantine transitions at
// warn level and lend/return traffic at debug level.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pool) { p.logger = logger }
}

// WithNowFunc overrides the clock. For tests.
func WithNowFunc(now func() time.Time) Option {
	return func(p *Pool) { p.now = now }
}

// WithRandSource seeds the selection RNG. For tests.
func WithRandSource(src rand.Source) Option {
	return func(p *Pool) { p.rng = rand.New(src) } //nolint:gosec // Selection jitter, not cryptography
}

// New creates a pool over the given identities. Identities must be
// pre-validated; the pool copies them and never mutates the input.
func New(identities []model.Identity, opts ...Option) *Pool {
	p := &Pool{
		entries:   make(map[string]*entry, len(identities)),
		byTier:    make(map[model.Tier][]string),
		threshold: defaultQuarantineThreshold,
		window:    defaultQuarantineWindow,
		cooldown:  defaultQuarantineCooldown,
		now:       time.Now,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())), //nolint:gosec // Selection jitter, not cryptography
		logger:    slog.Default(),
	}
	p.cond = sync.NewCond(&p.mu)

	for _, opt := range opts {
		opt(p)
	}

	for _, id := range identities {
		p.add(id)
	}
	return p
}

// add registers an identity. Callers hold no lock; used during
// construction and by Add.
func (p *Pool) add(id model.Identity) {
	p.entries[id.ID] = &entry{
		identity: id,
		window:   make([]bool, p.window),
	}
	p.byTier[id.Tier] = append(p.byTier[id.Tier], id.ID)
}

// Add registers an identity after construction. Used to inject the
// embedded Tor endpoint once its bootstrap completes.
func (p *Pool) Add(id model.Identity) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.add(id)
	p.cond.Broadcast()
}

// Acquire lends out an identity from the lowest tier at or above
// tierHint with availability, preferring identities with the best
// recent success rate. It blocks while suitable identities exist but
// are all borrowed, and returns ErrPoolExhausted when every identity
// at or above the hint is quarantined or absent. The context cancels
// the wait.
func (p *Pool) Acquire(ctx context.Context, tierHint model.Tier) (*model.Identity, error) {
	// Wake the cond wait when the context is cancelled.
	stop := context.AfterFunc(ctx, func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		p.cond.Broadcast()
	})
	defer stop()

	p.mu.Lock()
	defer p.mu.Unlock()

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		e, anyBorrowed := p.pick(tierHint)
		if e != nil {
			e.borrowed = true
			p.logger.Debug("identity lent",
				slog.String("id", e.identity.ID),
				slog.String("tier", e.identity.Tier.String()),
				slog.String("proxy", e.identity.ProxyHost()),
			)
			id := e.identity
			return &id, nil
		}
		if !anyBorrowed {
			return nil, ErrPoolExhausted
		}

		p.cond.Wait()
	}
}

// pick selects an available entry from the lowest eligible tier, or
// nil. anyBorrowed reports whether any eligible identity is merely
// borrowed rather than quarantined, which means waiting can help.
// Caller holds p.mu.
func (p *Pool) pick(tierHint model.Tier) (chosen *entry, anyBorrowed bool) {
	now := p.now()

	for tier := tierHint; ; {
		var candidates []*entry
		for _, id := range p.byTier[tier] {
			e := p.entries[id]
			if !e.quarantinedUntil.IsZero() && now.Before(e.quarantinedUntil) {
				continue
			}
			if e.borrowed {
				anyBorrowed = true
				continue
			}
			candidates = append(candidates, e)
		}
		if len(candidates) > 0 {
			return p.weightedPick(candidates), anyBorrowed
		}

		next, ok := tier.Next()
		if !ok {
			return nil, anyBorrowed
		}
		tier = next
	}
}

// weightedPick chooses among candidates with probability proportional
// to recent success rate. A small floor keeps struggling identities in
// rotation so their windows can recover. Caller holds p.mu.
func (p *Pool) weightedPick(candidates []*entry) *entry {
	const floor = 0.1

	total := 0.0
	for _, e := range candidates {
		total += floor + (1 - e.failureRate())
	}

	r := p.rng.Float64() * total
	for _, e := range candidates {
		r -= floor + (1 - e.failureRate())
		if r <= 0 {
			return e
		}
	}
	return candidates[len(candidates)-1]
}

// Release returns a borrowed identity and records the attempt outcome
// in its health window. Crossing the quarantine threshold benches the
// identity for the cooldown period. Releasing an unknown or
// un-borrowed ID is a no-op.
func (p *Pool) Release(id string, healthy bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.entries[id]
	if !ok || !e.borrowed {
		return
	}
	e.borrowed = false
	e.record(healthy)

	// Quarantine only on a full window. A fresh identity's first failure
	// is a 100% rate over one sample and says nothing about its health.
	if rate := e.failureRate(); e.windowLen == len(e.window) && rate >= p.threshold {
		e.quarantinedUntil = p.now().Add(p.cooldown)
		// Reset the window so the identity returns from cooldown with a
		// clean slate instead of being re-benched on its first failure.
		e.windowLen = 0
		e.windowPos = 0
		p.quarantines++
		p.logger.Warn("identity quarantined",
			slog.String("id", e.identity.ID),
			slog.String("tier", e.identity.Tier.String()),
			slog.String("proxy", e.identity.ProxyHost()),
			slog.Float64("failure_rate", rate),
			slog.Time("until", e.quarantinedUntil),
		)
	}

	p.cond.Broadcast()
}

// Stats is a point-in-time snapshot of pool occupancy.
type Stats struct {
	// Total is the number of identities registered.
	Total int

	// Borrowed is the number currently lent out.
	Borrowed int

	// Quarantined is the number currently benched.
	Quarantined int

	// Quarantines is the cumulative count of quarantine events.
	Quarantines int
}

// Stats returns a snapshot of the pool.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	s := Stats{Total: len(p.entries), Quarantines: p.quarantines}
	for _, e := range p.entries {
		if e.borrowed {
			s.Borrowed++
		}
		if !e.quarantinedUntil.IsZero() && now.Before(e.quarantinedUntil) {
			s.Quarantined++
		}
	}
	return s
}
