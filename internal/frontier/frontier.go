package frontier

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"

	"github.com/trawlhq/trawl/internal/model"
)

// ErrDrained is returned by Next when the frontier has no queued
// targets and never will again: either the crawl completed or Drain
// was called.
var ErrDrained = errors.New("frontier drained")

// bloomFalsePositiveRate tunes the prefilter. False positives only
// cost an exact-set lookup, so 1% is plenty.
const bloomFalsePositiveRate = 0.01

// Frontier is the concurrency-safe crawl queue.
type Frontier struct {
	mu   sync.Mutex
	cond *sync.Cond

	queue    []*model.Target
	inflight int
	draining bool

	// filter is the bloom prefilter over normalized URIs; seen is the
	// exact set behind it.
	filter *bloom.BloomFilter
	seen   map[string]struct{}

	maxTargets int
	maxDepth   int
	accepted   int

	logger *slog.Logger
}

// Option configures a Frontier.
type Option func(*Frontier)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Frontier) { f.logger = logger }
}

// New creates a frontier bounded to maxTargets total accepted targets
// and maxDepth link-following depth.
func New(maxTargets, maxDepth int, opts ...Option) *Frontier {
	f := &Frontier{
		filter:     bloom.NewWithEstimates(uint(maxTargets)*2, bloomFalsePositiveRate), //nolint:gosec // maxTargets is validated positive
		seen:       make(map[string]struct{}),
		maxTargets: maxTargets,
		maxDepth:   maxDepth,
		logger:     slog.Default(),
	}
	f.cond = sync.NewCond(&f.mu)
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Add offers a target to the frontier. It reports whether the target
// was accepted; duplicates, targets beyond the depth limit, and
// targets past the total cap are dropped.
func (f *Frontier) Add(target *model.Target) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.draining {
		return false
	}
	if target.Depth > f.maxDepth {
		return false
	}
	if f.accepted >= f.maxTargets {
		f.logger.Debug("frontier target cap reached", slog.String("dropped", target.URI))
		return false
	}

	uri := []byte(target.URI)
	if f.filter.Test(uri) {
		// Probably seen; the exact set decides.
		if _, ok := f.seen[target.URI]; ok {
			return false
		}
	}
	f.filter.Add(uri)
	f.seen[target.URI] = struct{}{}

	f.queue = append(f.queue, target)
	f.accepted++
	f.cond.Signal()
	return true
}

// Next blocks until a target is available and hands it out, or returns
// ErrDrained when the crawl is complete. The context cancels the wait.
func (f *Frontier) Next(ctx context.Context) (*model.Target, error) {
	stop := context.AfterFunc(ctx, func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.cond.Broadcast()
	})
	defer stop()

	f.mu.Lock()
	defer f.mu.Unlock()

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if len(f.queue) > 0 {
			target := f.queue[0]
			f.queue = f.queue[1:]
			f.inflight++
			return target, nil
		}
		if f.draining || f.inflight == 0 {
			return nil, ErrDrained
		}
		f.cond.Wait()
	}
}

// Done marks a handed-out target as finished. When the last in-flight
// target finishes with the queue empty, all Next waiters drain.
func (f *Frontier) Done() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.inflight--
	if f.inflight == 0 && len(f.queue) == 0 {
		f.cond.Broadcast()
	}
}

// Drain stops the frontier: pending targets are discarded and returned
// so the summary can account for them, and all Next waiters unblock
// with ErrDrained. Used on cancellation.
func (f *Frontier) Drain() []*model.Target {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.draining = true
	discarded := f.queue
	f.queue = nil
	f.cond.Broadcast()
	return discarded
}

// Stats is a point-in-time snapshot of the frontier.
type Stats struct {
	// Accepted is the total number of targets ever accepted.
	Accepted int

	// Queued is the number waiting to be handed out.
	Queued int

	// InFlight is the number handed out and not yet done.
	InFlight int
}

// Stats returns a snapshot of the frontier.
func (f *Frontier) Stats() Stats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return Stats{
		Accepted: f.accepted,
		Queued:   len(f.queue),
		InFlight: f.inflight,
	}
}
