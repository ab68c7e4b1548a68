package frontier

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// HostLimiter enforces per-host politeness: at most perHost requests
// in flight against one host, and a jittered minimum delay between
// request starts.
//
// Design decision: We combine a weighted semaphore with a rate limiter
// per host because they bound different things:
//  1. The semaphore caps overlap, which matters for slow responses
//  2. The rate limiter spaces request starts, which matters for fast
//     ones
// Randomized jitter on top keeps the spacing itself from becoming a
// recognizable signature.
type HostLimiter struct {
	mu    sync.Mutex
	hosts map[string]*hostState

	perHost int64
	delay   time.Duration
	jitter  time.Duration

	rng *rand.Rand
}

type hostState struct {
	sem     *semaphore.Weighted
	limiter *rate.Limiter
}

// HostLimiterOption configures a HostLimiter.
type HostLimiterOption func(*HostLimiter)

// WithHostRandSource seeds the jitter RNG. For tests.
func WithHostRandSource(src rand.Source) HostLimiterOption {
	return func(l *HostLimiter) { l.rng = rand.New(src) } //nolint:gosec // Politeness jitter, not cryptography
}

// NewHostLimiter creates a limiter allowing perHost concurrent
// requests per host with at least delay (plus up to jitter) between
// request starts.
func NewHostLimiter(perHost int, delay, jitter time.Duration, opts ...HostLimiterOption) *HostLimiter {
	l := &HostLimiter{
		hosts:   make(map[string]*hostState),
		perHost: int64(perHost),
		delay:   delay,
		jitter:  jitter,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())), //nolint:gosec // Politeness jitter, not cryptography
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// state returns the host's limiter state, creating it on first use.
func (l *HostLimiter) state(host string) *hostState {
	l.mu.Lock()
	defer l.mu.Unlock()

	s, ok := l.hosts[host]
	if !ok {
		var limiter *rate.Limiter
		if l.delay > 0 {
			limiter = rate.NewLimiter(rate.Every(l.delay), 1)
		} else {
			limiter = rate.NewLimiter(rate.Inf, 1)
		}
		s = &hostState{
			sem:     semaphore.NewWeighted(l.perHost),
			limiter: limiter,
		}
		l.hosts[host] = s
	}
	return s
}

// Acquire blocks until a slot for the host is free and the minimum
// delay since the previous request start has elapsed. Every successful
// Acquire must be paired with a Release.
func (l *HostLimiter) Acquire(ctx context.Context, host string) error {
	s := l.state(host)

	if err := s.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	if err := s.limiter.Wait(ctx); err != nil {
		s.sem.Release(1)
		return err
	}

	if l.jitter > 0 {
		l.mu.Lock()
		pause := time.Duration(l.rng.Int63n(int64(l.jitter)))
		l.mu.Unlock()

		timer := time.NewTimer(pause)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			s.sem.Release(1)
			return ctx.Err()
		}
	}

	return nil
}

// Release frees the host slot taken by Acquire.
func (l *HostLimiter) Release(host string) {
	l.state(host).sem.Release(1)
}
