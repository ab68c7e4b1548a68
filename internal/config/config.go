package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"

	"github.com/trawlhq/trawl/internal/model"
)

// Default configuration values.
// The retry, quarantine, and escalation defaults are deliberately
// conservative; every one of them is operator-tunable because no fixed
// constant suits both a patient evidence crawl and a fast sweep.
const (
	// DefaultRequestTimeout bounds one attempt end to end, including
	// reading the full body. Proxied egress is slow, so this is
	// generous; the retry controller, not the timeout, decides when to
	// give up on a target.
	DefaultRequestTimeout = 60 * time.Second

	// DefaultMaxAttempts is the total attempt budget per target across
	// all tiers. Six attempts cover two full rotations of a three-tier
	// escalation before a target is declared exhausted.
	DefaultMaxAttempts = 6

	// DefaultConcurrency is the global worker count. Each worker owns
	// one target's full attempt lifecycle at a time.
	DefaultConcurrency = 8

	// DefaultPerHostConcurrency keeps the pipeline from hammering a
	// single destination regardless of how many of its URLs are
	// queued. 1 is the polite default for investigative acquisition:
	// requests to one host never overlap.
	DefaultPerHostConcurrency = 1

	// DefaultPerHostDelay is the minimum pause between request starts
	// against the same host.
	DefaultPerHostDelay = 1 * time.Second

	// DefaultPerHostJitter randomizes the per-host delay so request
	// spacing does not itself become a signature.
	DefaultPerHostJitter = 500 * time.Millisecond

	// DefaultMaxDepth bounds link-following from the seeds. Link
	// following is opt-in: the default fetches only the seeds
	// themselves, so an operation never touches a URL the operator did
	// not name unless asked to.
	DefaultMaxDepth = 0

	// DefaultMaxTargets bounds the total number of targets accepted
	// into the frontier, preventing runaway crawls on link farms.
	DefaultMaxTargets = 500

	// DefaultQuarantineThreshold is the failure rate within the
	// sliding window that quarantines an identity.
	DefaultQuarantineThreshold = 0.5

	// DefaultQuarantineWindow is the number of recent outcomes
	// considered when computing an identity's failure rate.
	DefaultQuarantineWindow = 10

	// DefaultQuarantineCooldown is how long a quarantined identity is
	// excluded from acquisition.
	DefaultQuarantineCooldown = 5 * time.Minute

	// DefaultEscalationThreshold is the number of failures at one tier
	// before the controller requests the next higher tier.
	DefaultEscalationThreshold = 3

	// DefaultBackoffBase and friends shape the geometric retry delay:
	// base × multiplier^attempt, capped at DefaultBackoffCap.
	DefaultBackoffBase       = 500 * time.Millisecond
	DefaultBackoffMultiplier = 2.0
	DefaultBackoffCap        = 30 * time.Second

	// DefaultDeliveryRetries is how many times a failed sink delivery
	// is retried. Delivery retries are independent of fetch retries:
	// re-fetching is wasteful when the content is already in hand.
	DefaultDeliveryRetries = 3

	// DefaultMaxBodySize limits the response body read per attempt.
	DefaultMaxBodySize = 10 * 1024 * 1024 // 10MB

	// AppName is the application name used for XDG directory paths.
	AppName = "trawl"

	// AuditFileName is the audit trail file name within the operation
	// data directory.
	AuditFileName = "audit.ndjson"
)

// DefaultBlockedStatusCodes are the HTTP status codes treated as
// definitive blocks: they signal the retry controller to rotate
// identity instead of retrying the same one.
var DefaultBlockedStatusCodes = []int{403, 429}

// Config holds all options for one acquisition operation.
// It is populated from CLI flags and the roster file, validated once,
// and then passed to each component at construction. Nothing reads
// configuration from ambient global state.
//
// Design decision: We use a single flat struct instead of nested
// structs (PoolConfig, RetryConfig, ...) for simplicity. The number of
// options is manageable, and nesting would add complexity without
// significant benefit.
type Config struct {
	// Seeds is the ordered list of initial target URIs.
	Seeds []string

	// RequestTimeout is the hard wall-clock timeout for one attempt.
	RequestTimeout time.Duration

	// MaxAttempts is the attempt budget per target across all tiers.
	MaxAttempts int

	// Concurrency is the global bounded worker count.
	Concurrency int

	// PerHostConcurrency is the per-destination-host ceiling.
	PerHostConcurrency int

	// PerHostDelay is the minimum inter-request delay per host.
	PerHostDelay time.Duration

	// PerHostJitter is the random addition to PerHostDelay, drawn
	// uniformly from [0, PerHostJitter) before each request.
	PerHostJitter time.Duration

	// MaxDepth bounds link-following depth; 0 fetches seeds only.
	MaxDepth int

	// MaxTargets bounds the total targets accepted by the frontier.
	MaxTargets int

	// TiersEnabled lists the proxy tiers usable in ascending order.
	// The retry controller escalates along this list.
	TiersEnabled []model.Tier

	// QuarantineThreshold is the failure rate in (0, 1] within the
	// sliding window that quarantines an identity.
	QuarantineThreshold float64

	// QuarantineWindow is the sliding window size in outcomes.
	QuarantineWindow int

	// QuarantineCooldown is the quarantine duration.
	QuarantineCooldown time.Duration

	// EscalationThreshold is the same-tier failure count that triggers
	// escalation to the next enabled tier.
	EscalationThreshold int

	// BackoffBase, BackoffMultiplier, and BackoffCap shape the
	// geometric retry delay.
	BackoffBase       time.Duration
	BackoffMultiplier float64
	BackoffCap        time.Duration

	// BlockedStatusCodes are statuses classified as Blocked.
	BlockedStatusCodes []int

	// DeliveryRetries is the retry budget for sink deliveries.
	DeliveryRetries int

	// MaxBodySize limits the response body read per attempt.
	MaxBodySize int64

	// DataDir is the root directory for the sink store, metadata
	// index, and audit trail. Defaults to the XDG data directory.
	DataDir string

	// RosterPath is the path to the .trawl roster file. If empty, the
	// file is searched in the current directory and then the home
	// directory.
	RosterPath string

	// Roster holds the identities and per-site overrides loaded from
	// the roster file.
	Roster *Roster

	// EmbeddedTor starts an embedded Tor daemon and injects its SOCKS
	// endpoint as a tor-tier identity.
	EmbeddedTor bool

	// TorStartupTimeout bounds embedded Tor bootstrap.
	TorStartupTimeout time.Duration

	// MetricsAddr, when non-empty, serves Prometheus metrics on the
	// given address (e.g. ":9321") for the duration of the operation.
	MetricsAddr string

	// Verbose enables debug-level log output.
	Verbose bool

	// JSONLogs switches log output from text to JSON, for structured
	// log aggregation. Both forms mask credentials the same way.
	JSONLogs bool

	// JSONReport and MarkdownReport select the summary output format.
	// Mutually exclusive; the default is a human-readable summary.
	JSONReport     bool
	MarkdownReport bool

	// ReportFile, when set, writes the summary to this path instead of
	// stdout.
	ReportFile string
}

// NewConfig creates a Config with default values.
//
// Design decision: We use a constructor instead of relying on zero
// values because most defaults are non-zero. This also serves as
// documentation of what the defaults are.
func NewConfig() *Config {
	return &Config{
		RequestTimeout:      DefaultRequestTimeout,
		MaxAttempts:         DefaultMaxAttempts,
		Concurrency:         DefaultConcurrency,
		PerHostConcurrency:  DefaultPerHostConcurrency,
		PerHostDelay:        DefaultPerHostDelay,
		PerHostJitter:       DefaultPerHostJitter,
		MaxDepth:            DefaultMaxDepth,
		MaxTargets:          DefaultMaxTargets,
		TiersEnabled:        []model.Tier{model.TierDatacenter, model.TierResidential, model.TierMobile},
		QuarantineThreshold: DefaultQuarantineThreshold,
		QuarantineWindow:    DefaultQuarantineWindow,
		QuarantineCooldown:  DefaultQuarantineCooldown,
		EscalationThreshold: DefaultEscalationThreshold,
		BackoffBase:         DefaultBackoffBase,
		BackoffMultiplier:   DefaultBackoffMultiplier,
		BackoffCap:          DefaultBackoffCap,
		BlockedStatusCodes:  append([]int(nil), DefaultBlockedStatusCodes...),
		DeliveryRetries:     DefaultDeliveryRetries,
		MaxBodySize:         DefaultMaxBodySize,
		DataDir:             XDGDataDir(),
		TorStartupTimeout:   3 * time.Minute,
	}
}

// XDGDataDir returns the XDG data directory for trawl.
// On Linux: ~/.local/share/trawl
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for trawl.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// AuditPath returns the audit trail path within the data directory.
func (c *Config) AuditPath() string {
	return filepath.Join(c.DataDir, AuditFileName)
}

// EffectiveMaxDepth returns the deepest link-following depth any host
// may reach: MaxDepth raised by the largest roster depth override.
// This is the frontier's hard cap; the per-host depth itself is
// enforced at link discovery, where the site is known.
func (c *Config) EffectiveMaxDepth() int {
	depth := c.MaxDepth
	if c.Roster == nil {
		return depth
	}
	if c.Roster.Defaults.Depth > depth {
		depth = c.Roster.Defaults.Depth
	}
	for _, site := range c.Roster.Sites {
		if site.Depth > depth {
			depth = site.Depth
		}
	}
	return depth
}

// Validate checks the configuration and returns the first problem
// found as a sentinel error.
//
// We return the first error rather than collecting all of them because
// fixing one error often makes others irrelevant.
func (c *Config) Validate() error {
	if len(c.Seeds) == 0 {
		return ErrNoSeeds
	}
	if c.RequestTimeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}
	if c.PerHostConcurrency <= 0 {
		return ErrInvalidHostConcurrency
	}
	if c.MaxAttempts <= 0 {
		return ErrInvalidMaxAttempts
	}
	if c.PerHostDelay < 0 || c.PerHostJitter < 0 {
		return ErrInvalidHostDelay
	}
	if c.QuarantineThreshold <= 0 || c.QuarantineThreshold > 1 || c.QuarantineCooldown < 0 {
		return ErrInvalidQuarantine
	}
	if c.BackoffBase <= 0 || c.BackoffCap <= 0 || c.BackoffMultiplier < 1 {
		return ErrInvalidBackoff
	}
	if len(c.TiersEnabled) == 0 {
		return ErrNoTiersEnabled
	}
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}
	return nil
}

// IsBlockedStatus reports whether code is in the definitive-block set.
func (c *Config) IsBlockedStatus(code int) bool {
	for _, blocked := range c.BlockedStatusCodes {
		if code == blocked {
			return true
		}
	}
	return false
}
