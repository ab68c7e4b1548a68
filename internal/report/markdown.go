package report

import (
	"io"
	"strconv"

	"github.com/nao1215/markdown"

	"github.com/trawlhq/trawl/internal/model"
)

// MarkdownWriter outputs summaries in Markdown format.
// This format is designed for documentation and sharing.
//
// Design decision: We use the nao1215/markdown library for fluent
// markdown generation which provides:
// 1. Type-safe markdown generation
// 2. Support for tables, lists, and code blocks
// 3. GitHub-flavored markdown alerts
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given
// writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the summary in Markdown format.
func (w *MarkdownWriter) Write(summary *model.Summary) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, summary)
	w.writeCounts(md, summary)
	w.writeFailures(md, summary)

	return len(md.String()), md.Build()
}

// writeHeader writes the report header with operation information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, summary *model.Summary) {
	md.H1("Trawl Operation Report")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Operation ID", "`" + summary.OperationID + "`"},
			{"Started", summary.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Elapsed", summary.Elapsed().String()},
			{"Seeds", strconv.Itoa(summary.Seeds)},
		},
	})
	md.PlainText("")
}

// writeCounts writes the acquisition counter section.
func (w *MarkdownWriter) writeCounts(md *markdown.Markdown, summary *model.Summary) {
	md.H2("Acquisition Summary")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Result", "Count"},
		Rows: [][]string{
			{"✅ Delivered", strconv.Itoa(summary.Delivered)},
			{"♻️ Duplicates", strconv.Itoa(summary.Duplicates)},
			{"❌ Exhausted", strconv.Itoa(summary.Exhausted)},
			{"⏹️ Cancelled", strconv.Itoa(summary.Cancelled)},
			{"**Attempts**", "**" + strconv.Itoa(summary.Attempts) + "**"},
		},
	})
	md.PlainText("")

	w.writeAlert(md, summary)
}

// writeAlert writes an appropriate alert based on the failure counts.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, summary *model.Summary) {
	switch {
	case summary.Cancelled > 0:
		md.Warningf(
			"The operation was cancelled before completion. %d target(s) were not acquired.",
			summary.Cancelled,
		)
	case summary.Exhausted > 0:
		md.Cautionf(
			"%d target(s) exhausted their attempt budget and were not acquired.",
			summary.Exhausted,
		)
	default:
		md.Tip("All targets were acquired.")
	}
	md.PlainText("")
}

// writeFailures writes the per-target failure listing.
func (w *MarkdownWriter) writeFailures(md *markdown.Markdown, summary *model.Summary) {
	if len(summary.Failures) == 0 {
		return
	}

	md.H2("Failed Targets")
	md.PlainText("")

	rows := make([][]string, 0, len(summary.Failures))
	for _, failure := range summary.Failures {
		rows = append(rows, []string{
			"`" + failure.URI + "`",
			failure.Reason,
			strconv.Itoa(failure.Attempts),
		})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Target", "Reason", "Attempts"},
		Rows:   rows,
	})
	md.PlainText("")
}
