// Package pool manages the roster of egress identities: proxy
// endpoints paired with the header bundles presented through them.
//
// The pool lends identities out exclusively. A borrowed identity is
// invisible to other workers until it is released, so one proxy
// endpoint never carries two overlapping requests with the same
// fingerprint. Each release reports whether the attempt looked healthy
// from the identity's point of view, and identities whose recent
// failure rate crosses the quarantine threshold are benched for a
// cooldown period.
//
// Selection is tiered: Acquire asks for a minimum tier (datacenter,
// residential, mobile, tor) and receives an identity from the lowest
// tier at or above it that has anyone available, weighted toward
// identities with the best recent success rate.
package pool
