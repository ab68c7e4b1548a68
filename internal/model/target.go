package model

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Target represents a URI to fetch plus the metadata describing how it
// was discovered. Targets are unique by normalized URI within one
// operation; the frontier enforces that uniqueness.
type Target struct {
	// URI is the normalized URI of the target.
	// See NormalizeURI for the normalization rules.
	URI string `json:"uri"`

	// Origin is the URI of the page on which this target was discovered.
	// Empty for seed targets supplied by the operator.
	Origin string `json:"origin,omitempty"`

	// Depth is the crawl depth: 0 for seeds, parent depth + 1 for
	// discovered links.
	Depth int `json:"depth"`

	// DiscoveredAt is when the target entered the frontier.
	DiscoveredAt time.Time `json:"discovered_at"`
}

// NewSeedTarget creates a depth-0 Target from an operator-supplied URI.
// The URI is normalized; an error is returned if it cannot be parsed or
// is not an http(s) URI.
func NewSeedTarget(rawURI string) (*Target, error) {
	normalized, err := NormalizeURI(rawURI)
	if err != nil {
		return nil, err
	}
	return &Target{
		URI:          normalized,
		Depth:        0,
		DiscoveredAt: time.Now().UTC(),
	}, nil
}

// NewDiscoveredTarget creates a Target for a link discovered on origin.
// The new target's depth is the origin's depth plus one.
func NewDiscoveredTarget(rawURI string, origin *Target) (*Target, error) {
	normalized, err := NormalizeURI(rawURI)
	if err != nil {
		return nil, err
	}
	return &Target{
		URI:          normalized,
		Origin:       origin.URI,
		Depth:        origin.Depth + 1,
		DiscoveredAt: time.Now().UTC(),
	}, nil
}

// Host returns the lowercase host (without port) of the target URI.
// Returns an empty string if the URI cannot be parsed, which never
// happens for a Target constructed through NewSeedTarget or
// NewDiscoveredTarget.
func (t *Target) Host() string {
	u, err := url.Parse(t.URI)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// NormalizeURI normalizes a URI for deduplication.
//
// Design decision: We normalize URIs because:
//  1. The same page can have different URL representations
//  2. Fragments (#anchor) don't change content
//  3. An empty path and "/" address the same resource
//
// Rules: scheme and host are lowercased, the fragment is stripped, and
// an empty path becomes "/". Only http and https URIs are accepted; the
// frontier has no business fetching anything else.
func NormalizeURI(rawURI string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURI))
	if err != nil {
		return "", fmt.Errorf("invalid target URI %q: %w", rawURI, err)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported target scheme %q in %q", u.Scheme, rawURI)
	}
	if u.Host == "" {
		return "", fmt.Errorf("target URI %q has no host", rawURI)
	}

	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	if u.Path == "" {
		u.Path = "/"
	}

	return u.String(), nil
}
