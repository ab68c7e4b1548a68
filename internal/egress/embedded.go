package egress

import (
	"context"
	"fmt"
	"time"

	"github.com/nao1215/tornago"

	"github.com/trawlhq/trawl/internal/model"
)

// EmbeddedTor manages an embedded Tor daemon via tornago, so the tor
// tier works without an external Tor installation. Bootstrap takes
// one to three minutes: the daemon has to fetch directory information
// and build initial circuits before its SOCKS listener is usable.
type EmbeddedTor struct {
	process *tornago.TorProcess

	// socksAddr is the SOCKS5 listener in host:port form, set after a
	// successful Start.
	socksAddr string

	startupTimeout time.Duration
}

// EmbeddedTorOption configures an EmbeddedTor instance.
type EmbeddedTorOption func(*EmbeddedTor)

// WithStartupTimeout bounds how long Start waits for bootstrap.
func WithStartupTimeout(timeout time.Duration) EmbeddedTorOption {
	return func(e *EmbeddedTor) {
		e.startupTimeout = timeout
	}
}

// NewEmbeddedTor creates an embedded Tor manager. Call Start to launch
// the daemon.
func NewEmbeddedTor(opts ...EmbeddedTorOption) *EmbeddedTor {
	e := &EmbeddedTor{
		startupTimeout: 3 * time.Minute,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start launches the Tor daemon and blocks until it bootstraps or the
// startup timeout expires. Port 0 lets the OS choose the listeners so
// several operations can run side by side.
func (e *EmbeddedTor) Start(ctx context.Context) error {
	launchCfg, err := tornago.NewTorLaunchConfig(
		tornago.WithTorSocksAddr(":0"),
		tornago.WithTorControlAddr(":0"),
		tornago.WithTorStartupTimeout(e.startupTimeout),
	)
	if err != nil {
		return fmt.Errorf("failed to create Tor launch config: %w", err)
	}

	process, err := tornago.StartTorDaemon(launchCfg)
	if err != nil {
		return fmt.Errorf("failed to start embedded Tor daemon: %w", err)
	}

	// StartTorDaemon blocks; if the operation was cancelled while it
	// bootstrapped, tear the daemon back down.
	select {
	case <-ctx.Done():
		_ = process.Stop() //nolint:errcheck // Best effort cleanup
		return ctx.Err()
	default:
	}

	e.process = process
	e.socksAddr = process.SocksAddr()
	return nil
}

// Stop shuts down the daemon. Safe to call repeatedly or before Start.
func (e *EmbeddedTor) Stop() error {
	if e.process == nil {
		return nil
	}
	err := e.process.Stop()
	e.process = nil
	return err
}

// IsRunning reports whether the daemon is up.
func (e *EmbeddedTor) IsRunning() bool {
	return e.process != nil
}

// SocksAddr returns the daemon's SOCKS5 listener in host:port form, or
// empty before Start.
func (e *EmbeddedTor) SocksAddr() string {
	return e.socksAddr
}

// Identity packages the running daemon as a tor-tier pool identity
// presenting the given header bundle. Returns ErrTorNotRunning before
// a successful Start.
func (e *EmbeddedTor) Identity(userAgent string, headers map[string]string) (model.Identity, error) {
	if !e.IsRunning() {
		return model.Identity{}, ErrTorNotRunning
	}
	return model.Identity{
		ID:        "tor-embedded",
		Tier:      model.TierTor,
		ProxyURL:  "socks5://" + e.socksAddr,
		UserAgent: userAgent,
		Headers:   headers,
	}, nil
}
