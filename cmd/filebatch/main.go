package main

import (
	"context"
	"fmt"
	"os"

	"github.com/harrison/filebatch/internal/cmd"
	"github.com/harrison/filebatch/internal/executor"
)

// Version is the current version of the filebatch application
const Version = "1.0.0"

// Exit codes. Per-file failures never change the exit code.
const (
	exitOK     = 0
	exitFailed = 1
	exitConfig = 2
)

func main() {
	if cmd.Version == "dev" {
		cmd.Version = Version
	}
	rootCmd := cmd.NewRootCommand()
	rootCmd.SilenceErrors = true

	err := rootCmd.ExecuteContext(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(exitCode(err))
}

// exitCode maps a command error to the process exit status.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case executor.IsConfigurationError(err):
		return exitConfig
	default:
		return exitFailed
	}
}
