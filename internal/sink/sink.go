package sink

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/trawlhq/trawl/internal/model"
)

// Disposition is the sink's answer for one delivery.
type Disposition int

const (
	// Delivered: the artifact was new and is now stored and indexed.
	Delivered Disposition = iota

	// Duplicate: identical content was already delivered; acknowledged
	// without storing again.
	Duplicate
)

// String returns the disposition name.
func (d Disposition) String() string {
	switch d {
	case Delivered:
		return "delivered"
	case Duplicate:
		return "duplicate"
	default:
		return "unknown"
	}
}

// deliveryRetryDelay spaces delivery retries. Local disk and SQLite
// faults are either instant-transient or permanent; long backoff buys
// nothing.
const deliveryRetryDelay = 100 * time.Millisecond

// Sink delivers artifacts exactly once per distinct content hash.
type Sink struct {
	store   Store
	index   *Index
	retries int
	logger  *slog.Logger
}

// Option configures a Sink.
type Option func(*Sink)

// WithRetries sets how many times a failed delivery is retried before
// the failure is surfaced. Delivery retries are independent of fetch
// retries; the content is already in hand.
func WithRetries(n int) Option {
	return func(s *Sink) { s.retries = n }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Sink) { s.logger = logger }
}

// New creates a sink over the given store and index.
func New(store Store, index *Index, opts ...Option) *Sink {
	s := &Sink{
		store:   store,
		index:   index,
		retries: 3,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Deliver stores one artifact. Identical content delivered twice
// resolves to Duplicate without a second write. Failed deliveries are
// retried up to the configured budget before the error is returned.
func (s *Sink) Deliver(ctx context.Context, artifact *model.Artifact) (Disposition, error) {
	var lastErr error
	for attempt := 0; attempt <= s.retries; attempt++ {
		if attempt > 0 {
			s.logger.Warn("retrying delivery",
				slog.String("hash", artifact.Hash),
				slog.Int("attempt", attempt),
				slog.String("error", lastErr.Error()),
			)
			timer := time.NewTimer(deliveryRetryDelay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return 0, ctx.Err()
			}
		}

		disposition, err := s.deliverOnce(ctx, artifact)
		if err == nil {
			return disposition, nil
		}
		lastErr = err
	}
	return 0, fmt.Errorf("delivery failed after %d retries: %w", s.retries, lastErr)
}

// deliverOnce is one delivery transaction: blob first, index row
// second. The index row is what makes an artifact visible, so it must
// never exist without its content. A crash between the two writes
// leaves only an orphan blob, which no reader can see and which the
// idempotent Put absorbs on resume; the reverse order would leave a
// visible row whose re-delivery dedupes away the bytes forever.
func (s *Sink) deliverOnce(ctx context.Context, artifact *model.Artifact) (Disposition, error) {
	if err := s.store.Put(artifact.Hash, artifact.Content); err != nil {
		return 0, err
	}

	inserted, err := s.index.InsertArtifact(ctx, artifact)
	if err != nil {
		return 0, err
	}
	if !inserted {
		s.logger.Debug("duplicate artifact acknowledged",
			slog.String("hash", artifact.Hash),
			slog.String("uri", artifact.Target.URI),
		)
		return Duplicate, nil
	}

	s.logger.Debug("artifact delivered",
		slog.String("hash", artifact.Hash),
		slog.String("uri", artifact.Target.URI),
		slog.Int64("size", artifact.Size),
	)
	return Delivered, nil
}
