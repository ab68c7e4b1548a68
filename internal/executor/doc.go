// Package executor performs single fetch attempts: one target, one
// borrowed identity, one classified outcome.
//
// The executor is deliberately stateless between attempts. It does not
// retry, rotate identities, or pace requests; the retry controller and
// frontier own those decisions. Its whole job is to issue the request
// with the identity's consistent header bundle, bound the body read,
// and classify whatever happened into one of the outcome kinds the
// controller understands.
package executor
