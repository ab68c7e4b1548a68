package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/trawlhq/trawl/internal/model"
)

// createTestSummary creates a summary with sample data for testing.
func createTestSummary() *model.Summary {
	summary := model.NewSummary(4)
	summary.AddDelivered()
	summary.AddDelivered()
	summary.AddDuplicate()
	summary.AddExhausted("http://blocked.example.com/", "blocked", 6)
	summary.AddAttempts(9)
	summary.Finish()
	return summary
}

// TestSimpleWriter tests the human-readable summary writer.
func TestSimpleWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes header and counters", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		summary := createTestSummary()

		if _, err := NewSimpleWriter(&buf).Write(summary); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		if !strings.Contains(output, "TRAWL OPERATION REPORT") {
			t.Error("expected output to contain the header")
		}
		if !strings.Contains(output, summary.OperationID) {
			t.Error("expected output to contain the operation ID")
		}
		if !strings.Contains(output, "DELIVERED:  2") {
			t.Error("expected output to contain the delivered count")
		}
		if !strings.Contains(output, "ATTEMPTS:   9") {
			t.Error("expected output to contain the attempt count")
		}
	})

	t.Run("writes failed targets", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).Write(createTestSummary()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		if !strings.Contains(output, "FAILED TARGETS") {
			t.Error("expected output to contain the failure section")
		}
		if !strings.Contains(output, "[blocked] http://blocked.example.com/ (6 attempts)") {
			t.Error("expected output to list the failed target")
		}
	})

	t.Run("omits failure section when clean", func(t *testing.T) {
		t.Parallel()

		summary := model.NewSummary(1)
		summary.AddDelivered()
		summary.Finish()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).Write(summary); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if strings.Contains(buf.String(), "FAILED TARGETS") {
			t.Error("expected no failure section for a clean operation")
		}
	})

	t.Run("truncates long failure lists without verbose", func(t *testing.T) {
		t.Parallel()

		summary := model.NewSummary(20)
		for i := 0; i < 15; i++ {
			summary.AddExhausted("http://example.com/", "timeout", 6)
		}
		summary.Finish()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).Write(summary); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "... and 5 more") {
			t.Error("expected the failure list to be truncated")
		}

		buf.Reset()
		if _, err := NewSimpleWriter(&buf, WithVerbose(true)).Write(summary); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if strings.Contains(buf.String(), "more") {
			t.Error("expected the full failure list in verbose mode")
		}
	})
}

// TestJSONWriter tests the JSON summary writer.
func TestJSONWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes valid compact json", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		summary := createTestSummary()

		n, err := NewJSONWriter(&buf).Write(summary)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n != buf.Len() {
			t.Errorf("reported %d bytes, wrote %d", n, buf.Len())
		}

		var decoded model.Summary
		if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
			t.Fatalf("output is not valid JSON: %v", err)
		}
		if decoded.OperationID != summary.OperationID {
			t.Errorf("operation ID = %s, want %s", decoded.OperationID, summary.OperationID)
		}
		if decoded.Delivered != 2 || decoded.Exhausted != 1 {
			t.Errorf("counts = %d/%d, want 2/1", decoded.Delivered, decoded.Exhausted)
		}
		if len(decoded.Failures) != 1 || decoded.Failures[0].Reason != "blocked" {
			t.Errorf("failures did not round-trip: %+v", decoded.Failures)
		}
	})

	t.Run("pretty print indents", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf, WithPrettyPrint()).Write(createTestSummary()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "\n  \"") {
			t.Error("expected indented output")
		}
	})
}

// TestMarkdownWriter tests the Markdown summary writer.
func TestMarkdownWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes tables and failure section", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		summary := createTestSummary()

		if _, err := NewMarkdownWriter(&buf).Write(summary); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		if !strings.Contains(output, "# Trawl Operation Report") {
			t.Error("expected a top-level heading")
		}
		if !strings.Contains(output, "## Acquisition Summary") {
			t.Error("expected the counter section")
		}
		if !strings.Contains(output, "`"+summary.OperationID+"`") {
			t.Error("expected the operation ID in the header table")
		}
		if !strings.Contains(output, "blocked.example.com") {
			t.Error("expected the failed target in the failure table")
		}
	})

	t.Run("clean operation gets a tip", func(t *testing.T) {
		t.Parallel()

		summary := model.NewSummary(1)
		summary.AddDelivered()
		summary.Finish()

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(summary); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		if !strings.Contains(output, "[!TIP]") {
			t.Error("expected a tip alert for a clean operation")
		}
		if strings.Contains(output, "## Failed Targets") {
			t.Error("expected no failure section for a clean operation")
		}
	})
}

// TestMultiWriter tests fan-out to several writers.
func TestMultiWriter(t *testing.T) {
	t.Parallel()

	var text, js bytes.Buffer
	mw := NewMultiWriter(NewSimpleWriter(&text), NewJSONWriter(&js))

	total, err := mw.Write(createTestSummary())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != text.Len()+js.Len() {
		t.Errorf("total = %d, want %d", total, text.Len()+js.Len())
	}
	if text.Len() == 0 || js.Len() == 0 {
		t.Error("expected both writers to receive output")
	}
}
