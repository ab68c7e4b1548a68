package main

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

//go:embed templates/trawl.yaml
var rosterTemplate embed.FS

// rosterFileName is the default roster file name.
const rosterFileName = ".trawl"

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a new trawl roster file",
		Long: `Init creates a new .trawl roster file in the current directory.

The generated file includes:
- Commented examples for identities in every proxy tier
- Site-specific override examples (cookies, headers, depth, patterns)
- Documentation for all available options

Examples:
  # Create .trawl in current directory
  trawl init

  # Create roster file at a specific path
  trawl init -o myroster.yaml

  # Force overwrite existing file
  trawl init -f`,
		RunE: runInitCmd,
	}

	cmd.Flags().StringP("output", "o", rosterFileName,
		"Output file path for the roster")
	cmd.Flags().BoolP("force", "f", false,
		"Overwrite existing roster file")

	return cmd
}

// runInitCmd executes the init command.
func runInitCmd(cmd *cobra.Command, _ []string) error {
	outputPath, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}

	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}

	if !force {
		if _, err := os.Stat(outputPath); err == nil {
			return fmt.Errorf("roster file already exists: %s (use -f to overwrite)", outputPath)
		}
	}

	content, err := rosterTemplate.ReadFile("templates/trawl.yaml")
	if err != nil {
		return fmt.Errorf("failed to read roster template: %w", err)
	}

	dir := filepath.Dir(outputPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	// Rosters hold proxy credentials; owner-only permissions.
	if err := os.WriteFile(outputPath, content, 0600); err != nil {
		return fmt.Errorf("failed to write roster file: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created roster file: %s\n", outputPath)
	fmt.Fprintln(cmd.OutOrStdout(), "\nEdit this file to configure:")
	fmt.Fprintln(cmd.OutOrStdout(), "  - Proxy identities per tier (datacenter, residential, mobile, tor)")
	fmt.Fprintln(cmd.OutOrStdout(), "  - Authentication cookies and headers per site")
	fmt.Fprintln(cmd.OutOrStdout(), "  - Crawl depth and URL patterns per site")

	return nil
}
