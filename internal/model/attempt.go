package model

import (
	"time"

	"github.com/google/uuid"
)

// OutcomeKind classifies the terminal state of one attempt.
type OutcomeKind int

// Attempt outcome kinds.
const (
	// OutcomeSuccess: the response had a 2xx status and the body was
	// read completely within the timeout.
	OutcomeSuccess OutcomeKind = iota

	// OutcomeTimeout: the response was not fully received within the
	// wall-clock timeout. Retryable.
	OutcomeTimeout

	// OutcomeBlocked: the response carried one of the configured
	// definitive-block status codes (403/429 by default). Retryable,
	// but signals the controller to rotate identity rather than retry
	// the same one.
	OutcomeBlocked

	// OutcomeNetworkError: a connection-level failure (refused, reset,
	// DNS, proxy unreachable). Retryable.
	OutcomeNetworkError

	// OutcomeHTTPStatus: a non-2xx status outside the block and 5xx
	// sets. Retryable.
	OutcomeHTTPStatus

	// OutcomeServerError: a 5xx status. Retryable; the controller
	// retries the same identity once before rotating, since transient
	// server faults are unrelated to the egress identity.
	OutcomeServerError

	// OutcomePoolExhausted: no identity of the requested tier was
	// available. Terminal for the target.
	OutcomePoolExhausted

	// OutcomeCancelled: the operation was cancelled while this attempt
	// was pending or in flight. Terminal.
	OutcomeCancelled
)

// outcomeNames maps outcome kinds to their stable wire names used in
// audit records. Downstream tabular tooling depends on these strings.
var outcomeNames = map[OutcomeKind]string{
	OutcomeSuccess:       "success",
	OutcomeTimeout:       "timeout",
	OutcomeBlocked:       "blocked",
	OutcomeNetworkError:  "network_error",
	OutcomeHTTPStatus:    "http_status",
	OutcomeServerError:   "server_error",
	OutcomePoolExhausted: "pool_exhausted",
	OutcomeCancelled:     "cancelled",
}

// String returns the stable wire name of the outcome kind.
func (k OutcomeKind) String() string {
	if name, ok := outcomeNames[k]; ok {
		return name
	}
	return "unknown"
}

// Retryable reports whether the retry controller may schedule another
// attempt after this outcome.
func (k OutcomeKind) Retryable() bool {
	switch k {
	case OutcomeTimeout, OutcomeBlocked, OutcomeNetworkError, OutcomeHTTPStatus, OutcomeServerError:
		return true
	default:
		return false
	}
}

// Outcome is the classified result of a single attempt.
// Exactly one of Artifact (on success) or Err (on failure) is set;
// StatusCode is set whenever an HTTP response was received.
type Outcome struct {
	// Kind is the outcome classification.
	Kind OutcomeKind

	// StatusCode is the HTTP status code, or 0 if no response arrived.
	StatusCode int

	// Artifact is the fetched artifact. Only set for OutcomeSuccess.
	Artifact *Artifact

	// Err is the underlying error for failure outcomes.
	Err error
}

// Attempt records one execution of a Target against one Identity.
// Immutable once recorded.
type Attempt struct {
	// ID uniquely identifies the attempt across the operation.
	ID string

	// Target is the target this attempt executed.
	Target *Target

	// Identity is the identity borrowed for this attempt. Nil when the
	// pool was exhausted and no identity could be acquired.
	Identity *Identity

	// Number is the 1-based attempt counter for the target.
	Number int

	// StartedAt is when the request was issued.
	StartedAt time.Time

	// Elapsed is the wall-clock duration of the attempt.
	Elapsed time.Duration

	// Bytes is the number of response body bytes transferred.
	Bytes int64

	// Outcome is the classified result.
	Outcome Outcome
}

// NewAttempt creates an attempt with a fresh ID for the given target
// and identity. The identity may be nil for pool-exhausted attempts.
func NewAttempt(target *Target, identity *Identity, number int) *Attempt {
	return &Attempt{
		ID:        uuid.NewString(),
		Target:    target,
		Identity:  identity,
		Number:    number,
		StartedAt: time.Now().UTC(),
	}
}

// AuditRecord is the flattened, timestamped projection of an Attempt
// written to the audit trail, one JSON object per line.
//
// Field names and types are a stability contract: the trail is consumed
// by downstream tabular-analysis tooling, so fields may be added but
// never renamed or retyped.
type AuditRecord struct {
	// Timestamp is the attempt start time in ISO-8601 UTC.
	Timestamp string `json:"timestamp"`

	// TargetURI is the normalized target URI.
	TargetURI string `json:"target_uri"`

	// IdentityTier is the tier name of the identity used, or "none"
	// when no identity could be acquired.
	IdentityTier string `json:"identity_tier"`

	// ProxyID is the pool identifier of the identity used, or "none".
	// Deliberately the ID rather than the proxy URL so credentials
	// never reach the trail.
	ProxyID string `json:"proxy_id"`

	// UserAgent is the User-Agent presented on this attempt.
	UserAgent string `json:"user_agent"`

	// Outcome is the outcome kind wire name.
	Outcome string `json:"outcome"`

	// StatusCode is the HTTP status code, 0 if none was received.
	StatusCode int `json:"status_code"`

	// Attempt is the 1-based attempt number for the target.
	Attempt int `json:"attempt"`

	// ElapsedMS is the attempt duration in milliseconds.
	ElapsedMS int64 `json:"elapsed_ms"`

	// Bytes is the number of response body bytes transferred.
	Bytes int64 `json:"bytes"`
}

// NewAuditRecord flattens an attempt into its audit projection.
func NewAuditRecord(a *Attempt) AuditRecord {
	rec := AuditRecord{
		Timestamp:  a.StartedAt.UTC().Format(time.RFC3339Nano),
		TargetURI:  a.Target.URI,
		Outcome:    a.Outcome.Kind.String(),
		StatusCode: a.Outcome.StatusCode,
		Attempt:    a.Number,
		ElapsedMS:  a.Elapsed.Milliseconds(),
		Bytes:      a.Bytes,
	}
	if a.Identity != nil {
		rec.IdentityTier = a.Identity.Tier.String()
		rec.ProxyID = a.Identity.ID
		rec.UserAgent = a.Identity.UserAgent
	} else {
		rec.IdentityTier = "none"
		rec.ProxyID = "none"
	}
	return rec
}
