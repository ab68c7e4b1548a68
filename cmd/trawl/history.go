package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/trawlhq/trawl/internal/config"
	"github.com/trawlhq/trawl/internal/sink"
)

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect past acquisition operations",
		Long: `History inspects the operation summaries persisted by previous runs.

Examples:
  # List recent operations
  trawl history list

  # Show one operation in full
  trawl history show 3f1c9a4e-...`,
	}

	cmd.PersistentFlags().String("data-dir", "",
		"Data directory holding the metadata index (default: XDG data dir)")

	cmd.AddCommand(newHistoryListCmd())
	cmd.AddCommand(newHistoryShowCmd())

	return cmd
}

// newHistoryListCmd creates the history list subcommand.
func newHistoryListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent operations",
		RunE:  runHistoryListCmd,
	}
	cmd.Flags().IntP("limit", "l", 20, "Maximum number of operations to list")
	return cmd
}

// newHistoryShowCmd creates the history show subcommand.
func newHistoryShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <operation-id>",
		Short: "Show one operation in full",
		Args:  cobra.ExactArgs(1),
		RunE:  runHistoryShowCmd,
	}
	cmd.Flags().BoolP("json", "j", false, "Output the operation record as JSON")
	return cmd
}

// openHistoryIndex opens the metadata index read-only for history
// inspection.
func openHistoryIndex(cmd *cobra.Command) (*sink.Index, error) {
	dataDir, err := cmd.Flags().GetString("data-dir")
	if err != nil {
		return nil, err
	}
	if dataDir == "" {
		dataDir = config.XDGDataDir()
	}

	opts := sink.DefaultOptions()
	opts.CreateIfNotExists = false
	index, err := sink.OpenIndex(dataDir, opts)
	if err != nil {
		return nil, fmt.Errorf("no operation history found in %s: %w", dataDir, err)
	}
	return index, nil
}

// runHistoryListCmd executes the history list subcommand.
func runHistoryListCmd(cmd *cobra.Command, _ []string) error {
	index, err := openHistoryIndex(cmd)
	if err != nil {
		return err
	}
	defer index.Close()

	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}

	operations, err := index.ListOperations(cmd.Context(), limit)
	if err != nil {
		return fmt.Errorf("failed to list operations: %w", err)
	}
	if len(operations) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No operations recorded.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "OPERATION\tSTARTED\tELAPSED\tSEEDS\tDELIVERED\tEXHAUSTED\tCANCELLED")
	for _, op := range operations {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%d\n",
			shortID(op.OperationID),
			op.StartedAt.Local().Format("2006-01-02 15:04"),
			op.FinishedAt.Sub(op.StartedAt).Round(time.Second),
			op.Seeds, op.Delivered, op.Exhausted, op.Cancelled,
		)
	}
	return w.Flush()
}

// runHistoryShowCmd executes the history show subcommand.
func runHistoryShowCmd(cmd *cobra.Command, args []string) error {
	index, err := openHistoryIndex(cmd)
	if err != nil {
		return err
	}
	defer index.Close()

	op, err := index.GetOperation(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("operation %s: %w", args[0], err)
	}

	asJSON, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}
	if asJSON {
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(op)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Operation:  %s\n", op.OperationID)
	fmt.Fprintf(out, "Started:    %s\n", op.StartedAt.Local().Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(out, "Elapsed:    %s\n", op.FinishedAt.Sub(op.StartedAt).Round(time.Millisecond))
	fmt.Fprintf(out, "Seeds:      %d\n", op.Seeds)
	fmt.Fprintf(out, "Delivered:  %d\n", op.Delivered)
	fmt.Fprintf(out, "Duplicates: %d\n", op.Duplicates)
	fmt.Fprintf(out, "Exhausted:  %d\n", op.Exhausted)
	fmt.Fprintf(out, "Cancelled:  %d\n", op.Cancelled)
	fmt.Fprintf(out, "Attempts:   %d\n", op.Attempts)

	if len(op.Failures) > 0 {
		fmt.Fprintln(out, "\nFailed targets:")
		for _, failure := range op.Failures {
			fmt.Fprintf(out, "  [%s] %s (%d attempts)\n",
				failure.Reason, failure.URI, failure.Attempts)
		}
	}
	return nil
}

// shortID abbreviates a UUID for the listing.
func shortID(id string) string {
	if idx := strings.Index(id, "-"); idx > 0 {
		return id[:idx]
	}
	return id
}
