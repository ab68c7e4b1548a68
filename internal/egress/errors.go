package egress

import "errors"

var (
	// ErrInvalidProxyURL is returned when an identity's proxy URL does
	// not parse.
	ErrInvalidProxyURL = errors.New("invalid proxy URL")

	// ErrUnsupportedProxyScheme is returned for proxy schemes other
	// than http, https, and socks5.
	ErrUnsupportedProxyScheme = errors.New("unsupported proxy scheme")

	// ErrTorNotRunning is returned when the embedded Tor daemon is
	// asked for its endpoint before Start succeeds.
	ErrTorNotRunning = errors.New("embedded Tor daemon is not running")
)
