package main

import (
	"fmt"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// Set at build time via -ldflags "-X main.version=...".
var (
	version = ""
	commit  = ""
	date    = ""
)

// buildInfo is the resolved version metadata for this binary.
type buildInfo struct {
	version string
	commit  string
	date    string
}

// resolveBuildInfo fills any field ldflags left empty from the
// binary's embedded module and VCS metadata, so source builds of the
// acquisition tool still report something traceable.
func resolveBuildInfo() buildInfo {
	info := buildInfo{version: version, commit: commit, date: date}

	if bi, ok := debug.ReadBuildInfo(); ok {
		if info.version == "" {
			info.version = bi.Main.Version
		}
		for _, setting := range bi.Settings {
			switch setting.Key {
			case "vcs.revision":
				if info.commit == "" {
					info.commit = shortRevision(setting.Value)
				}
			case "vcs.time":
				if info.date == "" {
					info.date = setting.Value
				}
			}
		}
	}

	if info.version == "" {
		info.version = "(devel)"
	}
	if info.commit == "" {
		info.commit = "unknown"
	}
	if info.date == "" {
		info.date = "unknown"
	}
	return info
}

// shortRevision trims a VCS revision to the conventional short hash.
func shortRevision(rev string) string {
	if len(rev) > 7 {
		return rev[:7]
	}
	return rev
}

// NewVersionCmd creates the version command.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long:  `Print the version, commit hash, and build date of trawl.`,
		Run: func(cmd *cobra.Command, _ []string) {
			info := resolveBuildInfo()
			fmt.Fprintf(cmd.OutOrStdout(), "trawl version %s\n", info.version)
			fmt.Fprintf(cmd.OutOrStdout(), "  commit: %s\n", info.commit)
			fmt.Fprintf(cmd.OutOrStdout(), "  built:  %s\n", info.date)
		},
	}
}
