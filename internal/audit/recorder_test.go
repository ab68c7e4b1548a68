package audit

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/trawlhq/trawl/internal/model"
)

func testRecord(uri string, attempt int, outcome string) model.AuditRecord {
	return model.AuditRecord{
		Timestamp:    "2026-03-01T12:00:00Z",
		TargetURI:    uri,
		IdentityTier: "datacenter",
		ProxyID:      "dc-01",
		UserAgent:    "Mozilla/5.0",
		Outcome:      outcome,
		StatusCode:   200,
		Attempt:      attempt,
	}
}

func readTrail(t *testing.T, path string) []model.AuditRecord {
	t.Helper()

	f, err := os.Open(path) //nolint:gosec // Test-owned temp path
	if err != nil {
		t.Fatalf("failed to open trail: %v", err)
	}
	defer f.Close()

	var records []model.AuditRecord
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var rec model.AuditRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			t.Fatalf("line %d is not valid JSON: %v", len(records)+1, err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		t.Fatal(err)
	}
	return records
}

// TestRecorderWritesNDJSON verifies one valid JSON object per line.
func TestRecorderWritesNDJSON(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "audit.ndjson")
	r, err := New(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i := 1; i <= 3; i++ {
		if err := r.Record(testRecord("http://example.com/", i, "timeout")); err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
	}
	if err := r.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	records := readTrail(t, path)
	if len(records) != 3 {
		t.Fatalf("record count = %d, want 3", len(records))
	}
	for i, rec := range records {
		if rec.Attempt != i+1 {
			t.Errorf("record %d attempt = %d, want %d", i, rec.Attempt, i+1)
		}
		if rec.TargetURI != "http://example.com/" {
			t.Errorf("record %d target = %q", i, rec.TargetURI)
		}
	}
}

// TestRecorderAppends verifies an existing trail is appended to, never
// truncated.
func TestRecorderAppends(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "audit.ndjson")

	r1, err := New(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := r1.Record(testRecord("http://first.example/", 1, "success")); err != nil {
		t.Fatal(err)
	}
	if err := r1.Close(); err != nil {
		t.Fatal(err)
	}

	r2, err := New(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := r2.Record(testRecord("http://second.example/", 1, "success")); err != nil {
		t.Fatal(err)
	}
	if err := r2.Close(); err != nil {
		t.Fatal(err)
	}

	records := readTrail(t, path)
	if len(records) != 2 {
		t.Fatalf("record count = %d, want 2 after reopen", len(records))
	}
	if records[0].TargetURI != "http://first.example/" || records[1].TargetURI != "http://second.example/" {
		t.Errorf("append order wrong: %v", records)
	}
}

// TestRecorderCreatesParentDirs verifies the data directory is created
// on demand.
func TestRecorderCreatesParentDirs(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "deeper", "audit.ndjson")
	r, err := New(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(path); err != nil {
		t.Errorf("trail file missing: %v", err)
	}
}

// TestRecorderConcurrentSenders verifies no records are lost or torn
// under concurrency and per-sender order is preserved.
func TestRecorderConcurrentSenders(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "audit.ndjson")
	r, err := New(path)
	if err != nil {
		t.Fatal(err)
	}

	const senders = 8
	const perSender = 50

	var wg sync.WaitGroup
	for s := 0; s < senders; s++ {
		wg.Add(1)
		go func(s int) {
			defer wg.Done()
			uri := fmt.Sprintf("http://host-%d.example/", s)
			for i := 1; i <= perSender; i++ {
				if err := r.Record(testRecord(uri, i, "timeout")); err != nil {
					t.Errorf("sender %d record %d: %v", s, i, err)
					return
				}
			}
		}(s)
	}
	wg.Wait()

	if err := r.Close(); err != nil {
		t.Fatal(err)
	}

	records := readTrail(t, path)
	if len(records) != senders*perSender {
		t.Fatalf("record count = %d, want %d", len(records), senders*perSender)
	}

	// Per-sender attempt numbers must be monotonically increasing.
	lastAttempt := make(map[string]int)
	for _, rec := range records {
		if rec.Attempt != lastAttempt[rec.TargetURI]+1 {
			t.Fatalf("target %s: attempt %d followed %d", rec.TargetURI, rec.Attempt, lastAttempt[rec.TargetURI])
		}
		lastAttempt[rec.TargetURI] = rec.Attempt
	}
}

// TestRecorderClosed verifies Record fails after Close.
func TestRecorderClosed(t *testing.T) {
	t.Parallel()

	r, err := New(filepath.Join(t.TempDir(), "audit.ndjson"))
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Close(); err != nil {
		t.Fatal(err)
	}

	if err := r.Record(testRecord("http://example.com/", 1, "success")); !errors.Is(err, ErrRecorderClosed) {
		t.Errorf("error = %v, want ErrRecorderClosed", err)
	}

	// Close is idempotent.
	if err := r.Close(); err != nil {
		t.Errorf("second close returned %v", err)
	}
}

// TestRecorderUnwritablePath verifies construction fails when the
// trail cannot be opened.
func TestRecorderUnwritablePath(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	// A directory where the file should be makes the open fail.
	if err := os.Mkdir(filepath.Join(dir, "audit.ndjson"), 0750); err != nil {
		t.Fatal(err)
	}

	if _, err := New(filepath.Join(dir, "audit.ndjson")); err == nil {
		t.Error("expected error opening a directory as the trail")
	}
}
