// Package main provides the entry point for the trawl CLI.
//
// Trawl is a resilient web acquisition tool for investigative work.
// It fetches a seed list of URLs through a pool of egress identities,
// escalating through proxy tiers when destinations block or throttle,
// and records every attempt on an append-only audit trail.
//
// Usage:
//
//	trawl run <url> [<url>...]
//	trawl history list
//
// See --help for all available options.
package main

// main is the entry point for trawl.
func main() {
	Execute()
}
