package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/trawlhq/trawl/internal/model"
)

// SimpleWriter outputs human-readable text summaries.
// This format is designed for terminal display with clear section
// formatting.
//
// Design decision: We use plain text with ASCII formatting rather than
// ANSI colors by default because:
// 1. It works in all terminals without compatibility issues
// 2. It's easier to pipe to files or other tools
// 3. Color can be added as an option later if needed
type SimpleWriter struct {
	baseWriter

	// verbose enables the full per-target failure listing.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose enables verbose output with the full failure listing.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// maxFailuresShown caps the failure listing in non-verbose mode.
const maxFailuresShown = 10

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the summary in human-readable format.
func (w *SimpleWriter) Write(summary *model.Summary) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, summary)
	w.writeCounts(&sb, summary)
	w.writeFailures(&sb, summary)
	w.writeFooter(&sb)

	return w.output.Write([]byte(sb.String()))
}

// writeHeader writes the operation header.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, summary *model.Summary) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                        TRAWL OPERATION REPORT\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	sb.WriteString(fmt.Sprintf("Operation:  %s\n", summary.OperationID))
	sb.WriteString(fmt.Sprintf("Started:    %s\n", summary.StartedAt.Format("2006-01-02 15:04:05 MST")))
	sb.WriteString(fmt.Sprintf("Elapsed:    %s\n", summary.Elapsed().Round(time.Millisecond)))
	sb.WriteString(fmt.Sprintf("Seeds:      %d\n", summary.Seeds))
	sb.WriteString("\n")
}

// writeCounts writes the acquisition counters.
func (w *SimpleWriter) writeCounts(sb *strings.Builder, summary *model.Summary) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("ACQUISITION SUMMARY\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	sb.WriteString(fmt.Sprintf("  DELIVERED:  %d\n", summary.Delivered))
	sb.WriteString(fmt.Sprintf("  DUPLICATES: %d\n", summary.Duplicates))
	sb.WriteString(fmt.Sprintf("  EXHAUSTED:  %d\n", summary.Exhausted))
	sb.WriteString(fmt.Sprintf("  CANCELLED:  %d\n", summary.Cancelled))
	sb.WriteString(fmt.Sprintf("  ATTEMPTS:   %d\n", summary.Attempts))
	sb.WriteString("\n")
}

// writeFailures writes the per-target failure listing.
func (w *SimpleWriter) writeFailures(sb *strings.Builder, summary *model.Summary) {
	if len(summary.Failures) == 0 {
		return
	}

	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("FAILED TARGETS\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	shown := len(summary.Failures)
	if !w.verbose && shown > maxFailuresShown {
		shown = maxFailuresShown
	}

	for _, failure := range summary.Failures[:shown] {
		sb.WriteString(fmt.Sprintf("  [%s] %s (%d attempts)\n",
			failure.Reason, failure.URI, failure.Attempts))
	}
	if hidden := len(summary.Failures) - shown; hidden > 0 {
		sb.WriteString(fmt.Sprintf("  ... and %d more (use --verbose for the full list)\n", hidden))
	}
	sb.WriteString("\n")
}

// writeFooter writes the report footer.
func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}
