// Package main provides the entry point for the trawl CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for trawl.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trawl",
		Short: "Resilient web acquisition for investigative work",
		Long: `Trawl acquires web content for investigations that cannot afford to miss.

It fetches a seed list of URLs through a pool of egress identities
(proxy endpoint + header bundle), escalating from datacenter through
residential and mobile proxies up to Tor when destinations block or
throttle. Every attempt is recorded on an append-only audit trail, and
delivered content is deduplicated by hash.`,
		Version:       resolveBuildInfo().version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	// Add subcommands
	cmd.AddCommand(NewRunCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
