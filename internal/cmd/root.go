package cmd

import (
	"github.com/spf13/cobra"
)

// Version is injected at build time via -ldflags
var Version = "dev"

// NewRootCommand creates and returns the root cobra command for filebatch
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "filebatch",
		Short: "Parallel batch processing of file trees",
		Long: `Filebatch walks one or more directory trees, selects files by suffix,
size, depth and ignore rules, and runs an operation on each of them
with a bounded pool of workers.

Per-file failures never abort a run. Every run ends with a summary of
successes, failures, skips and bytes changed, and is recorded in a local
history database so failed files can be found again.`,
		Version: Version,
		// Silence usage on errors to avoid duplicate help text
		SilenceUsage: true,
	}

	// Add subcommands
	cmd.AddCommand(NewRunCommand())
	cmd.AddCommand(NewOpsCommand())
	cmd.AddCommand(NewHistoryCommand())
	cmd.AddCommand(NewVersionCommand())

	return cmd
}

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the filebatch version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("filebatch version %s\n", Version)
		},
	}
}
