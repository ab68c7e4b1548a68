package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/trawlhq/trawl/internal/model"
)

// DefaultRosterFile is the default roster file name.
const DefaultRosterFile = ".trawl"

// ErrRosterNotFound is returned when the roster file does not exist.
var ErrRosterNotFound = errors.New("roster file not found")

// SiteConfig holds per-host overrides for acquisition behavior.
// This allows customizing crawl behavior per destination site.
type SiteConfig struct {
	// Cookie is an HTTP cookie sent with requests to this host.
	// Format: "name=value" or "name1=value1; name2=value2"
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are extra HTTP headers for requests to this host,
	// applied on top of the identity's bundle.
	Headers map[string]string `yaml:"headers,omitempty"`

	// Depth overrides the global crawl depth for this host.
	// Zero means use the global MaxDepth.
	Depth int `yaml:"depth,omitempty"`

	// IgnorePatterns are URL path glob patterns to skip.
	IgnorePatterns []string `yaml:"ignorePatterns,omitempty"`

	// FollowPatterns are URL path glob patterns to follow. If set,
	// only matching paths are followed.
	FollowPatterns []string `yaml:"followPatterns,omitempty"`
}

// Roster is the parsed .trawl file: the identity roster grouped by
// tier plus per-site overrides.
type Roster struct {
	// Identities maps tier names (datacenter, residential, mobile,
	// tor) to the identities of that tier.
	Identities map[string][]model.Identity `yaml:"identities"`

	// Sites maps hostnames to their site-specific overrides.
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	// Defaults is the site configuration applied to all hosts unless
	// overridden in Sites.
	Defaults SiteConfig `yaml:"defaults,omitempty"`
}

// LoadRoster loads the roster from a YAML file. If the file does not
// exist, it returns ErrRosterNotFound. Identity tiers are assigned
// from the roster's tier grouping and validated.
func LoadRoster(path string) (*Roster, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided roster path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrRosterNotFound
		}
		return nil, err
	}

	var roster Roster
	if err := yaml.Unmarshal(data, &roster); err != nil {
		return nil, fmt.Errorf("failed to parse roster file: %w", err)
	}

	if roster.Sites == nil {
		roster.Sites = make(map[string]SiteConfig)
	}

	// Stamp each identity with its tier and validate it.
	for tierName, ids := range roster.Identities {
		tier, err := model.ParseTier(tierName)
		if err != nil {
			return nil, fmt.Errorf("roster file: %w", err)
		}
		for i := range ids {
			ids[i].Tier = tier
			if err := ids[i].Validate(); err != nil {
				return nil, fmt.Errorf("roster file: %w", err)
			}
		}
	}

	// An explicit roster with no identities is a misconfiguration, not
	// a request for the direct-connection fallback.
	if len(roster.AllIdentities()) == 0 {
		return nil, fmt.Errorf("roster file: %w", ErrNoIdentities)
	}

	return &roster, nil
}

// FindRosterFile searches for the roster file in the following order:
//  1. If rosterPath is specified, use it directly
//  2. Look for .trawl in the current directory
//  3. Look for .trawl in the XDG config directory
//  4. Look for .trawl in the user's home directory
//
// Returns the path if found, or an empty string.
func FindRosterFile(rosterPath string) string {
	if rosterPath != "" {
		if _, err := os.Stat(rosterPath); err == nil {
			return rosterPath
		}
		return ""
	}

	if cwd, err := os.Getwd(); err == nil {
		candidate := filepath.Join(cwd, DefaultRosterFile)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}

	candidate := filepath.Join(XDGConfigDir(), DefaultRosterFile)
	if _, err := os.Stat(candidate); err == nil {
		return candidate
	}

	if home, err := os.UserHomeDir(); err == nil {
		candidate := filepath.Join(home, DefaultRosterFile)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}

	return ""
}

// AllIdentities returns every identity in the roster.
func (r *Roster) AllIdentities() []model.Identity {
	var all []model.Identity
	for _, ids := range r.Identities {
		all = append(all, ids...)
	}
	return all
}

// SiteFor returns the effective configuration for a host: the defaults
// merged with the host's specific overrides. Host matching is
// case-insensitive.
func (r *Roster) SiteFor(host string) SiteConfig {
	result := r.Defaults
	// Copy the header map so merging never mutates the shared defaults.
	if len(result.Headers) > 0 {
		merged := make(map[string]string, len(result.Headers))
		for k, v := range result.Headers {
			merged[k] = v
		}
		result.Headers = merged
	}

	site, ok := r.Sites[strings.ToLower(host)]
	if !ok {
		return result
	}

	if site.Cookie != "" {
		result.Cookie = site.Cookie
	}
	if site.Depth != 0 {
		result.Depth = site.Depth
	}
	if len(site.Headers) > 0 {
		if result.Headers == nil {
			result.Headers = make(map[string]string)
		}
		for k, v := range site.Headers {
			result.Headers[k] = v
		}
	}
	if len(site.IgnorePatterns) > 0 {
		result.IgnorePatterns = site.IgnorePatterns
	}
	if len(site.FollowPatterns) > 0 {
		result.FollowPatterns = site.FollowPatterns
	}

	return result
}
