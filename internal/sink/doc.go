// Package sink is the delivery boundary: fetched artifacts go in,
// exactly once per distinct content.
//
// An artifact's identity is the SHA-256 of its content. Delivery
// writes the content blob into a sharded filesystem store and the
// metadata row into a SQLite index whose hash column is UNIQUE; the
// index insert and the blob write commit together, so a reader going
// through the index never sees a half-delivered artifact. A hash the
// index has seen before is acknowledged as a duplicate without
// touching the store.
//
// The index doubles as the operation ledger. Finished runs persist
// their summaries here, which is what the history command reads.
package sink
