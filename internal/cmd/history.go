package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harrison/filebatch/internal/config"
	"github.com/harrison/filebatch/internal/history"
	"github.com/harrison/filebatch/internal/logger"
)

// NewHistoryCommand creates the 'filebatch history' command group
func NewHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded runs",
		Long: `List the most recent runs recorded in the history database.

The database lives at $FILEBATCH_HOME/history.db (default ~/.filebatch)
unless history.db_path is set in the configuration file.`,
		Args: cobra.NoArgs,
		RunE: runHistoryList,
	}

	cmd.PersistentFlags().String("db", "", "Path to history database (default: $FILEBATCH_HOME/history.db)")
	cmd.Flags().IntP("limit", "n", 20, "Number of runs to show (0 = all)")

	cmd.AddCommand(newHistoryShowCommand())
	return cmd
}

func newHistoryShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one run and the files that failed",
		Long: `Show the counts of one recorded run and every file that failed,
with its failure message. A unique prefix of the run id is enough.`,
		Args: cobra.ExactArgs(1),
		RunE: runHistoryShow,
	}
}

// openHistory opens the store, returning nil when no database exists yet.
func openHistory(cmd *cobra.Command) (*history.Store, error) {
	dbFlag, _ := cmd.Flags().GetString("db")
	dbPath, err := config.GetHistoryDBPath(dbFlag)
	if err != nil {
		return nil, fmt.Errorf("failed to get history database path: %w", err)
	}

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return nil, nil
	}

	store, err := history.NewStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open history store: %w", err)
	}
	return store, nil
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	limit, _ := cmd.Flags().GetInt("limit")
	if limit < 0 {
		return fmt.Errorf("--limit must be >= 0, got %d", limit)
	}

	store, err := openHistory(cmd)
	if err != nil {
		return err
	}
	if store == nil {
		fmt.Fprintln(out, "No runs recorded yet")
		return nil
	}
	defer store.Close()

	runs, err := store.ListRuns(context.Background(), limit)
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded yet")
		return nil
	}

	printRunTable(out, runs)
	return nil
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	store, err := openHistory(cmd)
	if err != nil {
		return err
	}
	if store == nil {
		return fmt.Errorf("run %s not found: no runs recorded yet", args[0])
	}
	defer store.Close()

	run, err := store.GetRun(context.Background(), args[0])
	if errors.Is(err, history.ErrRunNotFound) {
		return fmt.Errorf("run %s not found", args[0])
	}
	if err != nil {
		return err
	}

	printRunDetail(cmd.OutOrStdout(), run)
	return nil
}

// printRunTable prints one line per run, newest first.
func printRunTable(w io.Writer, runs []*history.RunRecord) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tOP\tFILES\tOK\tFAILED\tSKIPPED\tDURATION\tROOTS")
	for _, run := range runs {
		status := ""
		if run.Cancelled {
			status = " (cancelled)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%s\t%s%s\n",
			shortID(run.ID),
			run.StartedAt.Local().Format("2006-01-02 15:04"),
			run.Op,
			run.Processed, run.Succeeded, run.Failed, run.Skipped,
			run.Duration.Round(time.Millisecond),
			strings.Join(run.Roots, ","),
			status)
	}
	tw.Flush()
}

// printRunDetail formats a single run and its failures.
func printRunDetail(w io.Writer, run *history.RunRecord) {
	cyan := color.New(color.FgCyan, color.Bold)
	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)
	yellow := color.New(color.FgYellow)
	gray := color.New(color.FgHiBlack)

	cyan.Fprintf(w, "\n=== Run %s: %s ===\n\n", run.ID, run.Op)

	fmt.Fprintf(w, "  Started: %s ", run.StartedAt.Local().Format("2006-01-02 15:04:05"))
	gray.Fprintf(w, "(%s)\n", humanize.Time(run.StartedAt))
	fmt.Fprintf(w, "  Duration: %s\n", run.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "  Roots: %s\n", strings.Join(run.Roots, ", "))
	if run.Cancelled {
		fmt.Fprintf(w, "  Status: ")
		yellow.Fprintf(w, "cancelled\n")
	}

	fmt.Fprintf(w, "  Files: %d (", run.Processed)
	green.Fprintf(w, "%d ok", run.Succeeded)
	fmt.Fprintf(w, ", ")
	if run.Failed > 0 {
		red.Fprintf(w, "%d failed", run.Failed)
	} else {
		fmt.Fprintf(w, "0 failed")
	}
	fmt.Fprintf(w, ", %d skipped)\n", run.Skipped)
	fmt.Fprintf(w, "  Bytes: %s -> %s (%s)\n",
		humanize.Bytes(uint64(max(run.BytesBefore, 0))),
		humanize.Bytes(uint64(max(run.BytesAfter, 0))),
		logger.FormatDelta(run.BytesBefore-run.BytesAfter))

	if len(run.Failures) > 0 {
		fmt.Fprintln(w)
		cyan.Fprintf(w, "Failures:\n")
		for _, f := range run.Failures {
			fmt.Fprintf(w, "  %s: ", f.Path)
			red.Fprintf(w, "%s\n", f.Message)
		}
	}
	fmt.Fprintln(w)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
