// Package egress builds the HTTP clients that carry attempts out
// through pool identities.
//
// Each identity gets its own client: its own proxy route (HTTP
// CONNECT or SOCKS5), its own cookie jar, and its own connection
// pool. Sharing any of those across identities would let a
// destination correlate two supposedly unrelated visitors, which is
// exactly what identity rotation is meant to prevent.
//
// The package also manages the optional embedded Tor daemon, whose
// SOCKS endpoint is injected into the pool as a tor-tier identity
// once bootstrap completes.
package egress
