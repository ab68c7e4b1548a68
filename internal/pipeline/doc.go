// Package pipeline wires the whole operation together: frontier out,
// identities borrowed, attempts executed, outcomes audited, retries
// escalated, artifacts staged and delivered, links fed back in.
//
// The runner owns the worker pool. Each worker takes one target from
// the frontier and carries it through its entire attempt lifecycle,
// which is what keeps a target's audit records in order without any
// cross-worker coordination. Successful artifacts pass through a small
// stage chain for enrichment before delivery.
package pipeline
