// Package metrics exposes operation counters in Prometheus format for
// long-running acquisitions. The exporter is opt-in; a run without a
// metrics address registers nothing and listens nowhere.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the operation's instrument set on a private registry.
//
// Design decision: A private registry instead of the package-level
// default keeps tests and repeated runs in one process from fighting
// over duplicate registrations.
type Metrics struct {
	registry *prometheus.Registry

	attempts    *prometheus.CounterVec
	deliveries  prometheus.Counter
	duplicates  prometheus.Counter
	quarantines prometheus.Counter
	frontier    prometheus.Gauge
	inflight    prometheus.Gauge
}

// New creates and registers the instrument set.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trawl",
			Name:      "attempts_total",
			Help:      "Fetch attempts by outcome kind.",
		}, []string{"outcome"}),
		deliveries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "trawl",
			Name:      "deliveries_total",
			Help:      "Artifacts acknowledged by the delivery sink.",
		}),
		duplicates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "trawl",
			Name:      "duplicates_total",
			Help:      "Deliveries resolved as already-seen content.",
		}),
		quarantines: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "trawl",
			Name:      "quarantines_total",
			Help:      "Identity quarantine events.",
		}),
		frontier: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "trawl",
			Name:      "frontier_queued",
			Help:      "Targets queued in the frontier.",
		}),
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "trawl",
			Name:      "targets_inflight",
			Help:      "Targets currently being worked.",
		}),
	}

	m.registry.MustRegister(
		m.attempts, m.deliveries, m.duplicates,
		m.quarantines, m.frontier, m.inflight,
	)
	return m
}

// ObserveAttempt counts one attempt with its outcome wire name.
func (m *Metrics) ObserveAttempt(outcome string) {
	m.attempts.WithLabelValues(outcome).Inc()
}

// ObserveDelivery counts one acknowledged delivery.
func (m *Metrics) ObserveDelivery() { m.deliveries.Inc() }

// ObserveDuplicate counts one duplicate delivery.
func (m *Metrics) ObserveDuplicate() { m.duplicates.Inc() }

// ObserveQuarantine counts one identity quarantine.
func (m *Metrics) ObserveQuarantine() { m.quarantines.Inc() }

// SetFrontierQueued updates the queued-target gauge.
func (m *Metrics) SetFrontierQueued(n int) { m.frontier.Set(float64(n)) }

// SetInFlight updates the in-flight target gauge.
func (m *Metrics) SetInFlight(n int) { m.inflight.Set(float64(n)) }

// Serve exposes /metrics on addr until the context is cancelled.
// Intended to be run in its own goroutine; it returns once the server
// has shut down.
func (m *Metrics) Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics server shutdown failed", slog.String("error", err.Error()))
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
