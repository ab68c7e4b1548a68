package model

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// TargetFailure describes one target that did not produce an artifact.
// Every failure's per-attempt detail remains inspectable in the audit
// trail; this is the operator-facing rollup.
type TargetFailure struct {
	// URI is the normalized target URI.
	URI string `json:"uri"`

	// Reason is the outcome kind wire name of the final attempt.
	Reason string `json:"reason"`

	// Attempts is the total number of attempts made.
	Attempts int `json:"attempts"`
}

// Summary aggregates the result of one acquisition operation.
// It is safe for concurrent use by the pipeline workers.
type Summary struct {
	// OperationID uniquely identifies this run.
	OperationID string `json:"operation_id"`

	// StartedAt and FinishedAt bound the operation wall clock.
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// Seeds is the number of operator-supplied seed targets.
	Seeds int `json:"seeds"`

	// Delivered is the number of artifacts acknowledged by the sink.
	Delivered int `json:"delivered"`

	// Duplicates is the number of artifacts the sink had already seen.
	Duplicates int `json:"duplicates"`

	// Exhausted is the number of targets that ran out of attempts.
	Exhausted int `json:"exhausted"`

	// Cancelled is the number of targets abandoned by operator cancel.
	Cancelled int `json:"cancelled"`

	// Attempts is the total attempt count across all targets.
	Attempts int `json:"attempts"`

	// Failures lists every exhausted or cancelled target with its
	// final failure reason.
	Failures []TargetFailure `json:"failures,omitempty"`

	mu sync.Mutex
}

// NewSummary creates a summary for a fresh operation.
func NewSummary(seeds int) *Summary {
	return &Summary{
		OperationID: uuid.NewString(),
		StartedAt:   time.Now().UTC(),
		Seeds:       seeds,
	}
}

// AddDelivered records one acknowledged delivery.
func (s *Summary) AddDelivered() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Delivered++
}

// AddDuplicate records one duplicate delivery.
func (s *Summary) AddDuplicate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Duplicates++
}

// AddAttempts adds n to the total attempt count.
func (s *Summary) AddAttempts(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Attempts += n
}

// AddExhausted records one exhausted target and its failure reason.
func (s *Summary) AddExhausted(uri, reason string, attempts int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Exhausted++
	s.Failures = append(s.Failures, TargetFailure{URI: uri, Reason: reason, Attempts: attempts})
}

// AddCancelled records one cancelled target.
func (s *Summary) AddCancelled(uri string, attempts int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Cancelled++
	s.Failures = append(s.Failures, TargetFailure{URI: uri, Reason: OutcomeCancelled.String(), Attempts: attempts})
}

// Finish stamps the completion time.
func (s *Summary) Finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.FinishedAt = time.Now().UTC()
}

// Elapsed returns the operation duration, or the duration so far if
// the operation has not finished.
func (s *Summary) Elapsed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FinishedAt.IsZero() {
		return time.Since(s.StartedAt)
	}
	return s.FinishedAt.Sub(s.StartedAt)
}
