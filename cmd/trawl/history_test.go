package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/trawlhq/trawl/internal/model"
	"github.com/trawlhq/trawl/internal/sink"
)

// seedHistory writes one finished operation into a fresh index and
// returns the data directory and the operation ID.
func seedHistory(t *testing.T) (string, string) {
	t.Helper()

	dir := t.TempDir()
	index, err := sink.OpenIndex(dir, sink.DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	defer index.Close()

	summary := model.NewSummary(2)
	summary.AddDelivered()
	summary.AddExhausted("http://gone.example.com/", "timeout", 6)
	summary.AddAttempts(7)
	summary.Finish()

	if err := index.InsertOperation(context.Background(), summary); err != nil {
		t.Fatal(err)
	}
	return dir, summary.OperationID
}

// TestHistoryList tests the history list subcommand.
func TestHistoryList(t *testing.T) {
	t.Parallel()

	t.Run("lists recorded operations", func(t *testing.T) {
		t.Parallel()

		dir, operationID := seedHistory(t)

		cmd := NewHistoryCmd()
		var buf bytes.Buffer
		cmd.SetOut(&buf)
		cmd.SetArgs([]string{"list", "--data-dir", dir})

		if err := cmd.Execute(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		if !strings.Contains(output, "OPERATION") {
			t.Error("expected a table header")
		}
		if !strings.Contains(output, shortID(operationID)) {
			t.Error("expected the operation in the listing")
		}
	})

	t.Run("missing history is an error", func(t *testing.T) {
		t.Parallel()

		cmd := NewHistoryCmd()
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs([]string{"list", "--data-dir", t.TempDir()})

		if err := cmd.Execute(); err == nil {
			t.Error("expected an error for an empty data directory")
		}
	})
}

// TestHistoryShow tests the history show subcommand.
func TestHistoryShow(t *testing.T) {
	t.Parallel()

	t.Run("shows one operation", func(t *testing.T) {
		t.Parallel()

		dir, operationID := seedHistory(t)

		cmd := NewHistoryCmd()
		var buf bytes.Buffer
		cmd.SetOut(&buf)
		cmd.SetArgs([]string{"show", operationID, "--data-dir", dir})

		if err := cmd.Execute(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		if !strings.Contains(output, operationID) {
			t.Error("expected the full operation ID")
		}
		if !strings.Contains(output, "Delivered:  1") {
			t.Error("expected the delivered count")
		}
		if !strings.Contains(output, "[timeout] http://gone.example.com/ (6 attempts)") {
			t.Error("expected the failed target listing")
		}
	})

	t.Run("json output round-trips", func(t *testing.T) {
		t.Parallel()

		dir, operationID := seedHistory(t)

		cmd := NewHistoryCmd()
		var buf bytes.Buffer
		cmd.SetOut(&buf)
		cmd.SetArgs([]string{"show", operationID, "--data-dir", dir, "--json"})

		if err := cmd.Execute(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), `"`+operationID+`"`) {
			t.Error("expected JSON output with the operation ID")
		}
	})

	t.Run("unknown operation is an error", func(t *testing.T) {
		t.Parallel()

		dir, _ := seedHistory(t)

		cmd := NewHistoryCmd()
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs([]string{"show", "no-such-operation", "--data-dir", dir})

		if err := cmd.Execute(); err == nil {
			t.Error("expected an error for an unknown operation")
		}
	})
}
