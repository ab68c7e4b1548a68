package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/trawlhq/trawl/internal/egress"
	"github.com/trawlhq/trawl/internal/model"
)

// Overrides carries per-site request extras resolved from the roster:
// a session cookie and extra headers layered on top of the identity's
// bundle.
type Overrides struct {
	// Cookie is a raw cookie string, e.g. "session=abc".
	Cookie string

	// Headers are site-specific headers. They win over the identity's
	// bundle on key collision.
	Headers map[string]string
}

// Executor issues fetch attempts through pool identities.
type Executor struct {
	factory *egress.Factory

	timeout     time.Duration
	maxBodySize int64
	blocked     map[int]bool

	logger *slog.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithMaxBodySize caps the response body read per attempt.
func WithMaxBodySize(n int64) Option {
	return func(e *Executor) { e.maxBodySize = n }
}

// WithBlockedStatuses sets the status codes classified as Blocked.
func WithBlockedStatuses(codes []int) Option {
	return func(e *Executor) {
		e.blocked = make(map[int]bool, len(codes))
		for _, c := range codes {
			e.blocked[c] = true
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) { e.logger = logger }
}

// New creates an executor. The timeout bounds one attempt end to end,
// including reading the body.
func New(factory *egress.Factory, timeout time.Duration, opts ...Option) *Executor {
	e := &Executor{
		factory:     factory,
		timeout:     timeout,
		maxBodySize: model.MaxArtifactSize,
		blocked:     map[int]bool{403: true, 429: true},
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute performs attempt number for the target through the given
// identity and returns the fully classified attempt. The returned
// attempt always has an outcome; errors are folded into it rather than
// returned separately, because a failed fetch is a result, not an
// exceptional condition.
func (e *Executor) Execute(ctx context.Context, target *model.Target, identity *model.Identity, number int, ov Overrides) *model.Attempt {
	attempt := model.NewAttempt(target, identity, number)
	start := time.Now()
	defer func() {
		attempt.Elapsed = time.Since(start)
		e.logger.Debug("attempt finished",
			slog.String("target", target.URI),
			slog.String("identity", identity.ID),
			slog.Int("number", number),
			slog.String("outcome", attempt.Outcome.Kind.String()),
			slog.Int("status", attempt.Outcome.StatusCode),
			slog.Duration("elapsed", attempt.Elapsed),
		)
	}()

	client, err := e.factory.ClientFor(identity)
	if err != nil {
		attempt.Outcome = model.Outcome{Kind: model.OutcomeNetworkError, Err: err}
		return attempt
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.URI, nil)
	if err != nil {
		attempt.Outcome = model.Outcome{Kind: model.OutcomeNetworkError, Err: err}
		return attempt
	}
	e.setHeaders(req, identity, ov)

	resp, err := client.Do(req)
	if err != nil {
		attempt.Outcome = classifyTransportError(ctx, err)
		return attempt
	}
	defer resp.Body.Close()

	// Bound the read so a hostile or broken server cannot balloon
	// memory. Anything past the cap is discarded, not fetched.
	body, err := io.ReadAll(io.LimitReader(resp.Body, e.maxBodySize))
	attempt.Bytes = int64(len(body))
	if err != nil {
		attempt.Outcome = classifyTransportError(ctx, err)
		return attempt
	}

	attempt.Outcome = e.classifyResponse(attempt, resp, body)
	return attempt
}

// setHeaders applies the identity's consistent bundle, then the
// site-specific overrides on top.
func (e *Executor) setHeaders(req *http.Request, identity *model.Identity, ov Overrides) {
	req.Header.Set("User-Agent", identity.UserAgent)
	for k, v := range identity.Headers {
		req.Header.Set(k, v)
	}
	for k, v := range ov.Headers {
		req.Header.Set(k, v)
	}
	if ov.Cookie != "" {
		if existing := req.Header.Get("Cookie"); existing != "" {
			req.Header.Set("Cookie", existing+"; "+ov.Cookie)
		} else {
			req.Header.Set("Cookie", ov.Cookie)
		}
	}
}

// classifyResponse maps an HTTP response to an outcome.
func (e *Executor) classifyResponse(attempt *model.Attempt, resp *http.Response, body []byte) model.Outcome {
	code := resp.StatusCode
	switch {
	case code >= 200 && code < 300:
		artifact := model.NewArtifact(
			attempt.Target,
			attempt.ID,
			code,
			resp.Header.Get("Content-Type"),
			body,
		)
		return model.Outcome{Kind: model.OutcomeSuccess, StatusCode: code, Artifact: artifact}
	case e.blocked[code]:
		return model.Outcome{
			Kind:       model.OutcomeBlocked,
			StatusCode: code,
			Err:        fmt.Errorf("definitive block status %d", code),
		}
	case code >= 500:
		return model.Outcome{
			Kind:       model.OutcomeServerError,
			StatusCode: code,
			Err:        fmt.Errorf("server error status %d", code),
		}
	default:
		return model.Outcome{
			Kind:       model.OutcomeHTTPStatus,
			StatusCode: code,
			Err:        fmt.Errorf("unexpected status %d", code),
		}
	}
}

// classifyTransportError maps a transport-level failure to an outcome.
// The attempt context distinguishes the operation being cancelled from
// the per-attempt deadline firing.
func classifyTransportError(ctx context.Context, err error) model.Outcome {
	switch {
	case errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled):
		return model.Outcome{Kind: model.OutcomeCancelled, Err: err}
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return model.Outcome{Kind: model.OutcomeTimeout, Err: err}
	}

	var timeoutErr interface{ Timeout() bool }
	if errors.As(err, &timeoutErr) && timeoutErr.Timeout() {
		return model.Outcome{Kind: model.OutcomeTimeout, Err: err}
	}

	return model.Outcome{Kind: model.OutcomeNetworkError, Err: err}
}
