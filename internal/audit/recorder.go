package audit

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/trawlhq/trawl/internal/model"
)

// ErrRecorderClosed is returned by Record after Close.
var ErrRecorderClosed = errors.New("audit recorder is closed")

// recordQueueSize bounds the in-flight record queue. Deep enough that
// workers rarely block on the disk, shallow enough that a dying disk
// surfaces within a few records.
const recordQueueSize = 256

// Recorder appends attempt records to the NDJSON trail.
//
// Design decision: A single writer goroutine owns the file and workers
// enqueue through a channel because:
//  1. Lines from concurrent workers must never interleave mid-record
//  2. One bufio.Writer amortizes syscalls without per-record locking
//  3. A write failure is observed in one place and latched once
//
// Per-target record order is preserved without extra machinery: one
// worker owns a target's whole attempt lifecycle, and the channel
// keeps each sender's records in order.
type Recorder struct {
	file *os.File
	buf  *bufio.Writer
	enc  *json.Encoder

	records chan model.AuditRecord
	done    chan struct{}

	// sendMu serializes enqueues against Close so a record is never
	// sent on a closed channel.
	sendMu sync.Mutex
	closed bool

	// mu guards the latched error. Separate from sendMu: the writer
	// goroutine latches errors while a sender may be blocked on a full
	// queue, and sharing one lock there would deadlock.
	mu  sync.Mutex
	err error
}

// New opens (creating if necessary) the trail at path in append-only
// mode and starts the writer. Parent directories are created.
func New(path string) (*Recorder, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("failed to create audit directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600) //nolint:gosec // Path comes from validated config
	if err != nil {
		return nil, fmt.Errorf("failed to open audit trail: %w", err)
	}

	buf := bufio.NewWriter(file)
	r := &Recorder{
		file:    file,
		buf:     buf,
		enc:     json.NewEncoder(buf),
		records: make(chan model.AuditRecord, recordQueueSize),
		done:    make(chan struct{}),
	}
	go r.run()
	return r, nil
}

// run is the writer goroutine. It drains the queue until the channel
// closes, then flushes and syncs.
func (r *Recorder) run() {
	defer close(r.done)

	for rec := range r.records {
		if r.Err() != nil {
			// Already failed; drain so senders never block forever.
			continue
		}
		if err := r.enc.Encode(rec); err != nil {
			r.setErr(fmt.Errorf("audit write failed: %w", err))
			continue
		}
		// Flush per record. The trail is the ground truth for what the
		// operation did; trading syscalls for records lost in a buffer
		// on crash is the wrong trade.
		if err := r.buf.Flush(); err != nil {
			r.setErr(fmt.Errorf("audit flush failed: %w", err))
		}
	}

	if r.Err() == nil {
		if err := r.buf.Flush(); err != nil {
			r.setErr(fmt.Errorf("audit flush failed: %w", err))
		} else if err := r.file.Sync(); err != nil {
			r.setErr(fmt.Errorf("audit sync failed: %w", err))
		}
	}
	_ = r.file.Close() //nolint:errcheck // Trail already flushed and synced
}

// Record enqueues one attempt record. It returns the latched write
// error if the trail has failed; callers must treat that as fatal for
// the operation.
func (r *Recorder) Record(rec model.AuditRecord) error {
	r.sendMu.Lock()
	if r.closed {
		r.sendMu.Unlock()
		return ErrRecorderClosed
	}
	if err := r.Err(); err != nil {
		r.sendMu.Unlock()
		return err
	}
	r.records <- rec
	r.sendMu.Unlock()

	// Report failures from earlier records too: by the time a write
	// error lands, the attempt that triggered it has already returned.
	return r.Err()
}

// Close drains pending records, flushes, and syncs the trail. Safe to
// call once; Record fails afterwards.
func (r *Recorder) Close() error {
	r.sendMu.Lock()
	if r.closed {
		r.sendMu.Unlock()
		return r.Err()
	}
	r.closed = true
	close(r.records)
	r.sendMu.Unlock()

	<-r.done
	return r.Err()
}

// Err returns the latched write error, if any.
func (r *Recorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

func (r *Recorder) setErr(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err == nil {
		r.err = err
	}
}
