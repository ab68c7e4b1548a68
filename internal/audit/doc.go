// Package audit maintains the append-only attempt trail: one JSON
// object per line, one line per attempt, flushed in the order the
// attempts concluded.
//
// The trail is the operation's chain of custody. Its guarantees are
// deliberately strict: every attempt is recorded whether it succeeded
// or failed, records are never rewritten, and a recorder that can no
// longer write aborts the operation rather than continue unaudited.
// Acquisition without a trail is worse than no acquisition at all,
// because it produces evidence that cannot be accounted for.
package audit
