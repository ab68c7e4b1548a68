package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/trawlhq/trawl/internal/audit"
	"github.com/trawlhq/trawl/internal/config"
	"github.com/trawlhq/trawl/internal/executor"
	"github.com/trawlhq/trawl/internal/extract"
	"github.com/trawlhq/trawl/internal/frontier"
	"github.com/trawlhq/trawl/internal/metrics"
	"github.com/trawlhq/trawl/internal/model"
	"github.com/trawlhq/trawl/internal/pool"
	"github.com/trawlhq/trawl/internal/retry"
	"github.com/trawlhq/trawl/internal/sink"
)

// ReasonDeliveryFailed marks a target whose content was fetched but
// could not be handed to the sink within the delivery retry budget.
const ReasonDeliveryFailed = "delivery_failed"

// Deps are the constructed components the runner orchestrates.
type Deps struct {
	Pool     *pool.Pool
	Executor *executor.Executor
	Retry    *retry.Controller
	Audit    *audit.Recorder
	Frontier *frontier.Frontier
	Hosts    *frontier.HostLimiter
	Sink     *sink.Sink
	Stages   *Chain
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
}

// Runner drives one acquisition operation end to end.
type Runner struct {
	cfg  *config.Config
	deps Deps
}

// NewRunner creates a runner. All deps except Metrics are required.
func NewRunner(cfg *config.Config, deps Deps) (*Runner, error) {
	if deps.Pool == nil || deps.Executor == nil || deps.Retry == nil ||
		deps.Audit == nil || deps.Frontier == nil || deps.Hosts == nil ||
		deps.Sink == nil || deps.Stages == nil || deps.Logger == nil {
		return nil, errors.New("pipeline runner is missing a required component")
	}
	return &Runner{cfg: cfg, deps: deps}, nil
}

// Run executes the operation until the frontier drains or the context
// is cancelled. The returned summary is complete in both cases; the
// error is non-nil only for operation-fatal faults, above all a dead
// audit trail.
func (r *Runner) Run(ctx context.Context) (*model.Summary, error) {
	summary := model.NewSummary(len(r.cfg.Seeds))

	for _, seed := range r.cfg.Seeds {
		target, err := model.NewSeedTarget(seed)
		if err != nil {
			return nil, fmt.Errorf("invalid seed: %w", err)
		}
		r.deps.Frontier.Add(target)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Concurrency)

	for {
		target, err := r.deps.Frontier.Next(gctx)
		if err != nil {
			// Drained, operator cancel, or a worker went fatal. All
			// three end the dispatch loop; g.Wait sorts out which.
			break
		}
		g.Go(func() error {
			defer r.deps.Frontier.Done()
			return r.process(gctx, target, summary)
		})
	}

	err := g.Wait()

	// Whatever is still queued was never attempted. Those targets are
	// accounted as cancelled in the summary but get no audit record:
	// the trail records attempts, and none was made.
	for _, target := range r.deps.Frontier.Drain() {
		summary.AddCancelled(target.URI, 0)
	}

	r.observeFinal()
	summary.Finish()
	return summary, err
}

// process carries one target through its whole attempt lifecycle.
// Returning an error aborts the operation; per-target failures are
// folded into the summary instead.
func (r *Runner) process(ctx context.Context, target *model.Target, summary *model.Summary) error {
	tracker := r.deps.Retry.Track()
	host := target.Host()
	site := r.siteFor(host)
	overrides := executor.Overrides{Cookie: site.Cookie, Headers: site.Headers}

	var held *model.Identity

	defer func() {
		summary.AddAttempts(tracker.Attempts())
		r.observeFrontier()
	}()

	for {
		if err := r.deps.Hosts.Acquire(ctx, host); err != nil {
			r.releaseHeld(held, true)
			summary.AddCancelled(target.URI, tracker.Attempts())
			return nil
		}

		identity := held
		held = nil
		if identity == nil {
			var err error
			identity, err = r.deps.Pool.Acquire(ctx, tracker.Tier())
			if err != nil {
				r.deps.Hosts.Release(host)
				if errors.Is(err, pool.ErrPoolExhausted) {
					return r.failPoolExhausted(target, tracker, summary)
				}
				// Context cancelled while waiting for an identity: no
				// attempt was started, so no audit record.
				summary.AddCancelled(target.URI, tracker.Attempts())
				return nil
			}
		}

		attempt := r.deps.Executor.Execute(ctx, target, identity, tracker.Attempts()+1, overrides)
		r.deps.Hosts.Release(host)

		if err := r.deps.Audit.Record(model.NewAuditRecord(attempt)); err != nil {
			r.deps.Pool.Release(identity.ID, true)
			return fmt.Errorf("audit trail unusable, aborting operation: %w", err)
		}
		if r.deps.Metrics != nil {
			r.deps.Metrics.ObserveAttempt(attempt.Outcome.Kind.String())
		}

		directive := tracker.Observe(attempt.Outcome.Kind)

		if directive.Retry && directive.ReuseIdentity {
			// Keep the identity borrowed across the one same-identity
			// server-error retry; its health sample lands on release.
			held = identity
		} else {
			r.deps.Pool.Release(identity.ID, identityHealthy(attempt.Outcome.Kind))
		}

		switch {
		case attempt.Outcome.Kind == model.OutcomeSuccess:
			r.deliver(ctx, target, attempt.Outcome.Artifact, tracker, site, summary)
			return nil

		case directive.Retry:
			if err := sleepCtx(ctx, directive.Delay); err != nil {
				r.releaseHeld(held, true)
				summary.AddCancelled(target.URI, tracker.Attempts())
				return nil
			}

		case directive.Reason == retry.ReasonCancelled:
			summary.AddCancelled(target.URI, tracker.Attempts())
			return nil

		default:
			summary.AddExhausted(target.URI, directive.Reason, tracker.Attempts())
			r.deps.Logger.Warn("target exhausted",
				slog.String("target", target.URI),
				slog.String("reason", directive.Reason),
				slog.Int("attempts", tracker.Attempts()),
			)
			return nil
		}
	}
}

// failPoolExhausted records the terminal pool-exhausted pseudo-attempt
// on the audit trail and in the summary.
func (r *Runner) failPoolExhausted(target *model.Target, tracker *retry.Tracker, summary *model.Summary) error {
	attempt := model.NewAttempt(target, nil, tracker.Attempts()+1)
	attempt.Outcome = model.Outcome{Kind: model.OutcomePoolExhausted, Err: pool.ErrPoolExhausted}

	if err := r.deps.Audit.Record(model.NewAuditRecord(attempt)); err != nil {
		return fmt.Errorf("audit trail unusable, aborting operation: %w", err)
	}
	if r.deps.Metrics != nil {
		r.deps.Metrics.ObserveAttempt(model.OutcomePoolExhausted.String())
	}

	directive := tracker.Observe(model.OutcomePoolExhausted)
	summary.AddExhausted(target.URI, directive.Reason, tracker.Attempts())
	r.deps.Logger.Warn("no identity available for target",
		slog.String("target", target.URI),
		slog.String("tier", tracker.Tier().String()),
	)
	return nil
}

// deliver stages, delivers, and link-extracts one successful artifact.
func (r *Runner) deliver(ctx context.Context, target *model.Target, artifact *model.Artifact, tracker *retry.Tracker, site config.SiteConfig, summary *model.Summary) {
	// The content is in hand; operator cancel should not discard it
	// mid-delivery.
	deliverCtx := context.WithoutCancel(ctx)

	r.deps.Stages.Run(deliverCtx, artifact)

	disposition, err := r.deps.Sink.Deliver(deliverCtx, artifact)
	if err != nil {
		summary.AddExhausted(target.URI, ReasonDeliveryFailed, tracker.Attempts())
		r.deps.Logger.Error("artifact delivery failed",
			slog.String("target", target.URI),
			slog.String("hash", artifact.Hash),
			slog.String("error", err.Error()),
		)
		return
	}

	switch disposition {
	case sink.Delivered:
		summary.AddDelivered()
		if r.deps.Metrics != nil {
			r.deps.Metrics.ObserveDelivery()
		}
	case sink.Duplicate:
		summary.AddDuplicate()
		if r.deps.Metrics != nil {
			r.deps.Metrics.ObserveDuplicate()
		}
	}

	r.discoverLinks(target, artifact, site)
}

// discoverLinks feeds same-host links from an HTML artifact back into
// the frontier, respecting the site's follow and ignore patterns.
func (r *Runner) discoverLinks(target *model.Target, artifact *model.Artifact, site config.SiteConfig) {
	maxDepth := r.cfg.MaxDepth
	if site.Depth != 0 {
		maxDepth = site.Depth
	}
	if target.Depth >= maxDepth || !strings.Contains(artifact.ContentType, "text/html") {
		return
	}

	parser, err := extract.NewParser(target.URI,
		extract.WithIgnorePatterns(site.IgnorePatterns),
		extract.WithFollowPatterns(site.FollowPatterns),
	)
	if err != nil {
		return
	}
	result, err := parser.Parse(bytes.NewReader(artifact.Content), artifact.ContentType)
	if err != nil {
		r.deps.Logger.Debug("link extraction failed",
			slog.String("target", target.URI),
			slog.String("error", err.Error()),
		)
		return
	}

	added := 0
	for _, link := range result.Follow {
		discovered, err := model.NewDiscoveredTarget(link, target)
		if err != nil {
			continue
		}
		if r.deps.Frontier.Add(discovered) {
			added++
		}
	}
	if added > 0 {
		r.deps.Logger.Debug("links discovered",
			slog.String("origin", target.URI),
			slog.Int("added", added),
		)
	}
	r.observeFrontier()
}

// siteFor resolves the roster's per-site configuration for a host.
func (r *Runner) siteFor(host string) config.SiteConfig {
	if r.cfg.Roster == nil {
		return config.SiteConfig{}
	}
	return r.cfg.Roster.SiteFor(host)
}

// releaseHeld returns a held same-identity-retry identity, if any.
func (r *Runner) releaseHeld(held *model.Identity, healthy bool) {
	if held != nil {
		r.deps.Pool.Release(held.ID, healthy)
	}
}

// observeFrontier publishes frontier gauges.
func (r *Runner) observeFrontier() {
	if r.deps.Metrics == nil {
		return
	}
	stats := r.deps.Frontier.Stats()
	r.deps.Metrics.SetFrontierQueued(stats.Queued)
	r.deps.Metrics.SetInFlight(stats.InFlight)
}

// observeFinal publishes end-of-run pool counters.
func (r *Runner) observeFinal() {
	if r.deps.Metrics == nil {
		return
	}
	stats := r.deps.Pool.Stats()
	for i := 0; i < stats.Quarantines; i++ {
		r.deps.Metrics.ObserveQuarantine()
	}
	r.observeFrontier()
}

// identityHealthy maps an outcome to the identity health signal fed
// back to the pool. Timeouts, blocks, and network failures implicate
// the egress path; origin-side statuses do not.
func identityHealthy(kind model.OutcomeKind) bool {
	switch kind {
	case model.OutcomeTimeout, model.OutcomeBlocked, model.OutcomeNetworkError:
		return false
	default:
		return true
	}
}

// sleepCtx waits for d or until the context is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
