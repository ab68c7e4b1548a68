package egress

import (
	"errors"
	"testing"
	"time"
)

// TestEmbeddedTorLifecycle exercises the unstarted daemon's API.
// Starting a real Tor daemon is an integration concern, not a unit
// test.
func TestEmbeddedTorLifecycle(t *testing.T) {
	t.Parallel()

	e := NewEmbeddedTor(WithStartupTimeout(time.Minute))

	if e.IsRunning() {
		t.Error("unstarted daemon reports running")
	}
	if addr := e.SocksAddr(); addr != "" {
		t.Errorf("unstarted daemon has SOCKS address %q", addr)
	}
	if err := e.Stop(); err != nil {
		t.Errorf("Stop on unstarted daemon returned %v", err)
	}
}

// TestEmbeddedTorIdentityRequiresRunning verifies the identity
// cannot be minted before bootstrap.
func TestEmbeddedTorIdentityRequiresRunning(t *testing.T) {
	t.Parallel()

	e := NewEmbeddedTor()

	_, err := e.Identity("Mozilla/5.0", nil)
	if !errors.Is(err, ErrTorNotRunning) {
		t.Errorf("error = %v, want ErrTorNotRunning", err)
	}
}
