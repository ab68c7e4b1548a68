// Package frontier coordinates which targets get fetched, in what
// order, and how politely.
//
// The frontier is a FIFO of unique targets. Uniqueness is by
// normalized URI, checked against a bloom filter first and an exact
// set second; the filter makes the common "seen it" answer cheap and
// the set makes it exact. Depth and total-target caps bound the crawl
// so a link farm cannot turn one seed into an unbounded operation.
//
// Completion is tracked by in-flight accounting: the frontier knows
// the operation is finished when its queue is empty and every handed
// out target has been marked done, because only in-flight targets can
// discover new ones.
//
// The host limiter lives here too. It owns the per-host concurrency
// ceiling and the jittered minimum delay between requests to the same
// host.
package frontier
