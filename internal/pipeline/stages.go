package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/trawlhq/trawl/internal/extract"
	"github.com/trawlhq/trawl/internal/model"
)

// Stage is one enrichment step applied to a fetched artifact before
// delivery. Stages may rewrite metadata or content; the chain
// recomputes the content hash afterwards so delivery dedup always sees
// the bytes that will actually be stored.
type Stage interface {
	// Process transforms the artifact. Returning an error aborts the
	// chain; the artifact is delivered unenriched in that case.
	Process(ctx context.Context, artifact *model.Artifact) error

	// Name returns the stage name for logging.
	Name() string
}

// Chain runs stages in order.
type Chain struct {
	stages []Stage
	logger *slog.Logger
}

// NewChain creates a stage chain.
func NewChain(logger *slog.Logger, stages ...Stage) *Chain {
	return &Chain{stages: stages, logger: logger}
}

// DefaultChain is the standard enrichment chain: snapshot truncation,
// content-type correction, then title extraction.
func DefaultChain(logger *slog.Logger) *Chain {
	return NewChain(logger, &TruncateStage{}, &ContentTypeStage{}, &TitleStage{})
}

// Run applies the chain to an artifact. Stage failures are logged and
// skipped rather than failing the delivery; enrichment is best effort,
// the evidence itself is not.
func (c *Chain) Run(ctx context.Context, artifact *model.Artifact) {
	for _, stage := range c.stages {
		if err := ctx.Err(); err != nil {
			return
		}
		if err := stage.Process(ctx, artifact); err != nil {
			c.logger.Warn("artifact stage failed",
				slog.String("stage", stage.Name()),
				slog.String("uri", artifact.Target.URI),
				slog.String("error", err.Error()),
			)
		}
	}
	artifact.ComputeHash()
}

// TruncateStage caps the retained snapshot size. The executor already
// bounds what it reads off the wire; this stage bounds what is stored,
// so an operator can keep full-size fetches while archiving trimmed
// snapshots. The chain recomputes the hash afterwards, keeping content
// identity a function of the stored bytes.
type TruncateStage struct {
	// Limit is the maximum retained content size in bytes.
	// Zero means model.MaxArtifactSize.
	Limit int64
}

// Name returns the stage name.
func (s *TruncateStage) Name() string { return "truncate" }

// Process trims the artifact content to the configured limit.
func (s *TruncateStage) Process(_ context.Context, artifact *model.Artifact) error {
	limit := s.Limit
	if limit <= 0 {
		limit = model.MaxArtifactSize
	}
	if int64(len(artifact.Content)) <= limit {
		return nil
	}
	artifact.Content = artifact.Content[:limit]
	artifact.Size = int64(len(artifact.Content))
	return nil
}

// ContentTypeStage corrects missing or generic Content-Type headers by
// sniffing the content. Origins routinely mislabel HTML as
// octet-stream, and downstream tooling keys on the type.
type ContentTypeStage struct{}

// Name returns the stage name.
func (s *ContentTypeStage) Name() string { return "content-type" }

// Process sniffs and sets the content type when the server's answer is
// absent or uninformative.
func (s *ContentTypeStage) Process(_ context.Context, artifact *model.Artifact) error {
	ct := strings.TrimSpace(artifact.ContentType)
	if ct != "" && !strings.HasPrefix(ct, "application/octet-stream") {
		return nil
	}
	artifact.ContentType = http.DetectContentType(artifact.Content)
	return nil
}

// TitleStage extracts the page title for HTML artifacts.
type TitleStage struct{}

// Name returns the stage name.
func (s *TitleStage) Name() string { return "title" }

// Process parses HTML artifacts and records the title.
func (s *TitleStage) Process(_ context.Context, artifact *model.Artifact) error {
	if artifact.Title != "" || !strings.Contains(artifact.ContentType, "text/html") {
		return nil
	}

	parser, err := extract.NewParser(artifact.Target.URI)
	if err != nil {
		return fmt.Errorf("title stage: %w", err)
	}
	result, err := parser.Parse(bytes.NewReader(artifact.Content), artifact.ContentType)
	if err != nil {
		return fmt.Errorf("title stage: %w", err)
	}
	artifact.Title = result.Title
	return nil
}
