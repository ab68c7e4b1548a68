package retry

import (
	"math"
	"time"

	"github.com/trawlhq/trawl/internal/model"
)

// Exhaustion reasons reported in the operation summary when a target
// is given up on.
const (
	ReasonAttemptsExhausted = "attempts_exhausted"
	ReasonPoolExhausted     = "pool_exhausted"
	ReasonCancelled         = "cancelled"
)

// Directive tells the pipeline what to do after an attempt.
type Directive struct {
	// Retry indicates another attempt should be scheduled. False means
	// the target is terminal: delivered, exhausted, or cancelled.
	Retry bool

	// ReuseIdentity asks the pipeline to retry through the same
	// identity instead of rotating. Only set for the first server-error
	// retry, where the fault is the origin's and not the identity's.
	ReuseIdentity bool

	// Tier is the minimum tier for the next attempt's identity.
	Tier model.Tier

	// Delay is how long to wait before the next attempt.
	Delay time.Duration

	// Reason is the terminal reason when Retry is false and the target
	// failed. Empty on success.
	Reason string
}

// Controller owns the retry policy shared by all targets.
//
// Design decision: Policy lives on the controller and per-target state
// lives on trackers because:
//  1. All targets share one policy; duplicating it per target invites
//     drift
//  2. Trackers are owned by exactly one worker, so they need no locks
//  3. The split keeps the tracker small enough to reason about as a
//     plain state machine
type Controller struct {
	maxAttempts         int
	escalationThreshold int
	tiers               []model.Tier

	backoffBase       time.Duration
	backoffMultiplier float64
	backoffCap        time.Duration
}

// Option configures a Controller.
type Option func(*Controller)

// WithBackoff shapes the geometric delay between attempts:
// base × multiplier^(attempt-1), capped.
func WithBackoff(base time.Duration, multiplier float64, cap time.Duration) Option {
	return func(c *Controller) {
		c.backoffBase = base
		c.backoffMultiplier = multiplier
		c.backoffCap = cap
	}
}

// WithEscalationThreshold sets how many failures at one tier trigger
// escalation to the next enabled tier.
func WithEscalationThreshold(n int) Option {
	return func(c *Controller) { c.escalationThreshold = n }
}

// New creates a controller. tiers is the enabled tier ladder in
// ascending order; maxAttempts is the per-target attempt budget across
// all tiers.
func New(maxAttempts int, tiers []model.Tier, opts ...Option) *Controller {
	c := &Controller{
		maxAttempts:         maxAttempts,
		escalationThreshold: 3,
		tiers:               tiers,
		backoffBase:         500 * time.Millisecond,
		backoffMultiplier:   2.0,
		backoffCap:          30 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Backoff returns the delay before the given 1-based attempt number's
// retry.
func (c *Controller) Backoff(attempt int) time.Duration {
	d := time.Duration(float64(c.backoffBase) * math.Pow(c.backoffMultiplier, float64(attempt-1)))
	if d > c.backoffCap || d < 0 {
		return c.backoffCap
	}
	return d
}

// Tracker is the retry state machine for a single target. It is owned
// by one worker and must not be shared.
type Tracker struct {
	c *Controller

	// attempts is the number of attempts observed so far.
	attempts int

	// tierIndex indexes into c.tiers for the current minimum tier.
	tierIndex int

	// tierFailures counts failures since the last escalation.
	tierFailures int

	// serverErrRetried marks that the one same-identity server-error
	// retry has been spent.
	serverErrRetried bool
}

// Track starts tracking a new target.
func (c *Controller) Track() *Tracker {
	return &Tracker{c: c}
}

// Tier returns the current minimum tier for the target.
func (t *Tracker) Tier() model.Tier {
	return t.c.tiers[t.tierIndex]
}

// Attempts returns the number of attempts observed so far.
func (t *Tracker) Attempts() int {
	return t.attempts
}

// Observe feeds one attempt outcome into the tracker and returns the
// directive for what to do next.
func (t *Tracker) Observe(kind model.OutcomeKind) Directive {
	t.attempts++

	switch kind {
	case model.OutcomeSuccess:
		return Directive{}
	case model.OutcomeCancelled:
		return Directive{Reason: ReasonCancelled}
	case model.OutcomePoolExhausted:
		return Directive{Reason: ReasonPoolExhausted}
	}

	if t.attempts >= t.c.maxAttempts {
		return Directive{Reason: ReasonAttemptsExhausted}
	}

	// One free same-identity retry for a server error: a 5xx is the
	// origin's fault, and rotating would waste a fresh identity on it.
	if kind == model.OutcomeServerError && !t.serverErrRetried {
		t.serverErrRetried = true
		return Directive{
			Retry:         true,
			ReuseIdentity: true,
			Tier:          t.Tier(),
			Delay:         t.c.Backoff(t.attempts),
		}
	}

	t.tierFailures++
	if t.tierFailures >= t.c.escalationThreshold && t.tierIndex < len(t.c.tiers)-1 {
		t.tierIndex++
		t.tierFailures = 0
	}

	return Directive{
		Retry: true,
		Tier:  t.Tier(),
		Delay: t.c.Backoff(t.attempts),
	}
}
