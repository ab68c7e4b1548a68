package egress

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"
	"time"

	"golang.org/x/net/proxy"

	"github.com/trawlhq/trawl/internal/model"
)

// maxRedirects caps redirect chains to prevent loops while allowing
// the usual www/https canonicalization hops.
const maxRedirects = 10

// Factory builds and caches one HTTP client per identity.
//
// Design decision: We cache clients by identity ID because:
//  1. The cookie jar must persist across a target's retries so a
//     session established on attempt one survives to attempt two
//  2. Rebuilding transports per request defeats connection reuse
//  3. A shared client across identities would mix jars and pools,
//     making two identities correlatable at the destination
type Factory struct {
	mu      sync.Mutex
	clients map[string]*http.Client

	timeout time.Duration
}

// NewFactory creates a client factory. The timeout is the per-request
// wall-clock budget applied to every client it builds.
func NewFactory(timeout time.Duration) *Factory {
	return &Factory{
		clients: make(map[string]*http.Client),
		timeout: timeout,
	}
}

// ClientFor returns the HTTP client for an identity, building it on
// first use. The client routes through the identity's proxy and
// carries the identity's private cookie jar.
func (f *Factory) ClientFor(identity *model.Identity) (*http.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if client, ok := f.clients[identity.ID]; ok {
		return client, nil
	}

	transport, err := newTransport(identity.ProxyURL)
	if err != nil {
		return nil, fmt.Errorf("identity %q: %w", identity.ID, err)
	}

	jar, _ := cookiejar.New(nil) //nolint:errcheck // cookiejar.New only fails with invalid options

	client := &http.Client{
		Transport: transport,
		Timeout:   f.timeout,
		Jar:       jar,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}

	f.clients[identity.ID] = client
	return client, nil
}

// newTransport builds a transport for the given proxy URL. An empty
// URL means direct egress.
func newTransport(proxyURL string) (*http.Transport, error) {
	// Conservative pool sizes: a client talks to a handful of hosts at
	// most, and proxied connections are expensive to hold open.
	transport := &http.Transport{
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     30 * time.Second,
		// The identity's own Accept-Encoding header must go out
		// unmodified; transparent compression would rewrite it and
		// break the consistency of the presented bundle.
		DisableCompression: true,
	}

	if proxyURL == "" {
		return transport, nil
	}

	u, err := url.Parse(proxyURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidProxyURL, err)
	}

	switch u.Scheme {
	case "http", "https":
		transport.Proxy = http.ProxyURL(u)
	case "socks5":
		// proxy.FromURL honors userinfo in the URL for SOCKS5 auth.
		dialer, err := proxy.FromURL(u, proxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidProxyURL, err)
		}
		transport.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
			if cd, ok := dialer.(proxy.ContextDialer); ok {
				return cd.DialContext(ctx, network, addr)
			}
			return dialContext(ctx, dialer, network, addr)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedProxyScheme, u.Scheme)
	}

	return transport, nil
}

// dialContext adapts a context-less proxy.Dialer. If the context is
// cancelled the goroutine's connection attempt may continue briefly;
// its result is closed when it lands.
func dialContext(ctx context.Context, dialer proxy.Dialer, network, addr string) (net.Conn, error) {
	type dialResult struct {
		conn net.Conn
		err  error
	}
	resultCh := make(chan dialResult, 1)

	go func() {
		conn, err := dialer.Dial(network, addr)
		resultCh <- dialResult{conn, err}
	}()

	select {
	case result := <-resultCh:
		return result.conn, result.err
	case <-ctx.Done():
		go func() {
			if result := <-resultCh; result.conn != nil {
				_ = result.conn.Close() //nolint:errcheck // Best effort cleanup
			}
		}()
		return nil, ctx.Err()
	}
}
