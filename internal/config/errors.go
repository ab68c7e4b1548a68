package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() and provide specific
// information about what is wrong with the configuration.
//
// Design decision: We use package-level sentinel errors rather than
// creating new error instances in Validate(). This allows callers to use
// errors.Is() for programmatic error handling while still providing
// human-readable messages.
var (
	// ErrNoSeeds is returned when no seed target is specified.
	// This error occurs when neither --seeds nor positional arguments
	// provide a target URI.
	ErrNoSeeds = errors.New("no seed targets: provide one or more URIs or use --seeds")

	// ErrNoIdentities is returned by LoadRoster when a roster file
	// defines no identities. An explicit roster is expected to supply
	// the egress identities it exists for.
	ErrNoIdentities = errors.New("no identities configured: the roster file must define at least one identity")

	// ErrInvalidTimeout is returned when the request timeout is not
	// positive. A zero timeout would fail every attempt immediately.
	ErrInvalidTimeout = errors.New("invalid request timeout: must be positive")

	// ErrInvalidConcurrency is returned when the global worker count is
	// not positive.
	ErrInvalidConcurrency = errors.New("invalid concurrency: must be positive")

	// ErrInvalidHostConcurrency is returned when the per-host ceiling
	// is not positive. A ceiling of zero would deadlock every target.
	ErrInvalidHostConcurrency = errors.New("invalid per-host concurrency: must be positive")

	// ErrInvalidMaxAttempts is returned when max attempts per target is
	// not positive.
	ErrInvalidMaxAttempts = errors.New("invalid max attempts: must be positive")

	// ErrInvalidHostDelay is returned when the per-host delay is
	// negative. Use 0 for no delay.
	ErrInvalidHostDelay = errors.New("invalid per-host delay: must be non-negative")

	// ErrInvalidQuarantine is returned when the quarantine threshold is
	// outside (0, 1] or the cooldown is negative.
	ErrInvalidQuarantine = errors.New("invalid quarantine settings: threshold must be in (0, 1] and cooldown non-negative")

	// ErrInvalidBackoff is returned when backoff constants are not
	// usable (non-positive base or cap, multiplier below 1).
	ErrInvalidBackoff = errors.New("invalid backoff settings: base and cap must be positive, multiplier at least 1")

	// ErrNoTiersEnabled is returned when every proxy tier is disabled.
	ErrNoTiersEnabled = errors.New("no proxy tiers enabled")

	// ErrConflictingReportFormats is returned when both --json and
	// --markdown are specified. Only one output format can be used at
	// a time.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")
)
