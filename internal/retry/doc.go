// Package retry decides what happens after each failed attempt: try
// again, wait how long, through which proxy tier, and with which
// identity.
//
// The controller is pure bookkeeping. It holds a per-target tracker
// that counts attempts and same-tier failures, escalates to the next
// enabled tier once a tier has failed often enough, and shapes the
// geometric backoff between attempts. It never touches the network;
// the pipeline feeds it outcomes and acts on its directives.
package retry
