package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/harrison/filebatch/internal/config"
	"github.com/harrison/filebatch/internal/display"
	"github.com/harrison/filebatch/internal/executor"
	"github.com/harrison/filebatch/internal/fileutil"
	"github.com/harrison/filebatch/internal/history"
	"github.com/harrison/filebatch/internal/logger"
	"github.com/harrison/filebatch/internal/models"
	"github.com/harrison/filebatch/internal/ops"
)

// NewRunCommand creates the run command
func NewRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <operation> [path...]",
		Short: "Run an operation over every matching file",
		Long: `Run a built-in operation over every file under the given paths.

Files are discovered lazily and handed to a fixed pool of workers; at most
--max-in-flight files are queued or running at any time, so memory stays
flat on trees of any size. A failing file never stops the run: every file
gets a result line and the summary lists what failed.

Configuration is loaded from .filebatch/config.yaml if present.
CLI flags override configuration file settings.

Examples:
  filebatch run list .                                 # What would be processed
  filebatch run hash ~/photos --manifest SUMS          # Digest and find duplicates
  filebatch run trim src --include .go,.md --dry-run   # Preview whitespace cleanup
  filebatch run rmempty /var/tmp/build                 # Delete zero-byte files
  filebatch run md2html docs --overwrite               # Render Markdown
  filebatch run pdfpages ~/papers                      # Count PDF pages
  filebatch run exec media --include .wav --cmd "flac -s {} -o {out}" --out-ext flac --task-timeout 2m`,
		Args: cobra.MinimumNArgs(1),
		RunE: runCommand,
	}

	flags := cmd.Flags()
	flags.String("config", "", "Path to config file (default: .filebatch/config.yaml)")
	flags.IntP("workers", "w", 0, "Number of worker goroutines (default: number of CPUs)")
	flags.Int("max-in-flight", 0, "Maximum files queued or running at once (default: 2x workers)")
	flags.Duration("task-timeout", 0, "Time budget per file, e.g. 30s (0 = none)")
	flags.StringSlice("include", nil, "Only process these suffixes (e.g. .go,.md)")
	flags.StringSlice("exclude", nil, "Never process these suffixes")
	flags.StringSlice("exclude-dir", nil, "Additional directory names to skip")
	flags.Bool("follow-symlinks", false, "Process symlinks to files")
	flags.Bool("exclude-hidden", false, "Skip dot-files and dot-directories")
	flags.Bool("gitignore", false, "Skip paths matched by each root's .gitignore")
	flags.Int("max-depth", 0, "Maximum directory depth (0 = unlimited, 1 = root only)")
	flags.String("min-size", "", "Skip files smaller than this (e.g. 1KB)")
	flags.String("max-size", "", "Skip files larger than this (e.g. 50MB)")
	flags.Bool("dry-run", false, "Report what would change without modifying files")
	flags.Bool("verbose", false, "Show a line for every file, not just failures")
	flags.String("log-dir", "", "Directory for run logs (default: .filebatch/logs)")
	flags.Bool("no-history", false, "Do not record this run in the history database")

	flags.String("cmd", "", "exec: command template ({} = path, {out} = derived output)")
	flags.String("out-ext", "", "exec: extension of the derived output")
	flags.String("algo", ops.DefaultHashAlgo, "hash: blake3, sha256 or md5")
	flags.String("manifest", "", "hash: append \"digest  path\" lines to this file")
	flags.Bool("overwrite", false, "md2html/exec: replace existing outputs")

	return cmd
}

// runCommand implements the run command logic
func runCommand(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	opName := args[0]
	roots := args[1:]
	if len(roots) == 0 {
		roots = []string{"."}
	}

	cfg, err := loadRunConfig(cmd)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return executor.NewConfigurationError("", "%v", err)
	}

	op, err := ops.Lookup(opName, opOptions(cmd, cfg))
	if err != nil {
		return err
	}
	if err := op.Preflight(); err != nil {
		return err
	}

	verbose, _ := cmd.Flags().GetBool("verbose")
	logLevel := cfg.LogLevel
	if verbose {
		logLevel = "debug"
	}

	consoleLog := logger.NewConsoleLogger(out, logLevel)
	runLog := &multiLogger{loggers: []executor.RunLogger{consoleLog}}

	var fileLog *logger.FileLogger
	if cfg.LogDir != "" {
		fileLog, err = logger.NewFileLoggerWithDirAndLevel(cfg.LogDir, logLevel)
		if err != nil {
			consoleLog.Warnf("run log disabled: %v", err)
		} else {
			defer fileLog.Close()
			runLog.loggers = append(runLog.loggers, fileLog)
		}
	}

	if cfg.DryRun {
		consoleLog.LogInfo("Dry run: no files will be modified")
	}

	dispatcher := executor.NewDispatcher(cfg.Workers, cfg.EffectiveMaxInFlight(), cfg.TaskTimeout, runLog)
	walker := fileutil.NewWalker(nil, cfg.FilterRule(op.DefaultInclude()))
	orch := executor.NewOrchestrator(dispatcher, walker, runLog)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	startedAt := time.Now()
	summary, err := orch.Execute(ctx, op.Name(), roots, op.Apply)
	if err != nil {
		return err
	}

	if reporter, ok := op.(ops.Reporter); ok && summary.Processed > 0 {
		fmt.Fprintln(out)
		if err := reporter.Report(out); err != nil {
			consoleLog.Warnf("report failed: %v", err)
		}
	}

	var runID string
	if cfg.History.Enabled {
		runID = recordHistory(ctx, consoleLog, cfg, history.NewRunRecord(op.Name(), roots, startedAt, summary))
	}

	if summary.Cancelled {
		display.Interrupted(summary.Processed).Display(out)
	}
	if summary.Failed > 0 {
		display.FailedFiles(summary.Failed, runID).Display(out)
	}

	if fileLog != nil {
		fmt.Fprintf(out, "Log written to: %s\n", fileLog.RunFile())
	}

	return nil
}

// loadRunConfig loads the configuration file and applies changed flags.
func loadRunConfig(cmd *cobra.Command) (*config.Config, error) {
	configPath, _ := cmd.Flags().GetString("config")

	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadConfig(configPath)
		if err != nil {
			return nil, executor.NewConfigurationError("config", "failed to load %s: %v", configPath, err)
		}
	} else {
		cfg, err = config.LoadConfigFromDir(".")
		if err != nil {
			return nil, executor.NewConfigurationError("config", "%v", err)
		}
	}

	o, err := overridesFromFlags(cmd)
	if err != nil {
		return nil, err
	}
	cfg.MergeWithFlags(o)
	return cfg, nil
}

// overridesFromFlags collects only the flags the user actually set.
func overridesFromFlags(cmd *cobra.Command) (config.Overrides, error) {
	flags := cmd.Flags()
	var o config.Overrides

	if flags.Changed("workers") {
		v, _ := flags.GetInt("workers")
		o.Workers = &v
	}
	if flags.Changed("max-in-flight") {
		v, _ := flags.GetInt("max-in-flight")
		o.MaxInFlight = &v
	}
	if flags.Changed("task-timeout") {
		v, _ := flags.GetDuration("task-timeout")
		o.TaskTimeout = &v
	}
	if flags.Changed("include") {
		v, _ := flags.GetStringSlice("include")
		o.Include = &v
	}
	if flags.Changed("exclude") {
		v, _ := flags.GetStringSlice("exclude")
		o.Exclude = &v
	}
	if flags.Changed("exclude-dir") {
		v, _ := flags.GetStringSlice("exclude-dir")
		o.ExcludeDirs = &v
	}
	if flags.Changed("follow-symlinks") {
		v, _ := flags.GetBool("follow-symlinks")
		o.FollowSymlinks = &v
	}
	if flags.Changed("exclude-hidden") {
		v, _ := flags.GetBool("exclude-hidden")
		o.ExcludeHidden = &v
	}
	if flags.Changed("gitignore") {
		v, _ := flags.GetBool("gitignore")
		o.Gitignore = &v
	}
	if flags.Changed("max-depth") {
		v, _ := flags.GetInt("max-depth")
		o.MaxDepth = &v
	}
	if flags.Changed("dry-run") {
		v, _ := flags.GetBool("dry-run")
		o.DryRun = &v
	}
	if flags.Changed("log-dir") {
		v, _ := flags.GetString("log-dir")
		o.LogDir = &v
	}
	if flags.Changed("no-history") {
		v, _ := flags.GetBool("no-history")
		o.NoHistory = &v
	}

	for _, name := range []string{"min-size", "max-size"} {
		if !flags.Changed(name) {
			continue
		}
		raw, _ := flags.GetString(name)
		size, err := parseSize(raw)
		if err != nil {
			return o, executor.NewConfigurationError(name, "%v", err)
		}
		if name == "min-size" {
			o.MinSize = &size
		} else {
			o.MaxSize = &size
		}
	}

	return o, nil
}

// parseSize accepts plain byte counts and human sizes such as 10KB or 1.5GiB.
func parseSize(raw string) (int64, error) {
	n, err := humanize.ParseBytes(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", raw, err)
	}
	if n > uint64(1<<63-1) {
		return 0, fmt.Errorf("size %q is too large", raw)
	}
	return int64(n), nil
}

func opOptions(cmd *cobra.Command, cfg *config.Config) ops.Options {
	flags := cmd.Flags()
	command, _ := flags.GetString("cmd")
	outExt, _ := flags.GetString("out-ext")
	algo, _ := flags.GetString("algo")
	manifest, _ := flags.GetString("manifest")
	overwrite, _ := flags.GetBool("overwrite")

	return ops.Options{
		DryRun:    cfg.DryRun,
		Overwrite: overwrite,
		Algo:      algo,
		Manifest:  manifest,
		Command:   command,
		OutExt:    outExt,
	}
}

// recordHistory stores the run and prunes old ones, returning the run id.
// Failures only warn.
func recordHistory(ctx context.Context, log *logger.ConsoleLogger, cfg *config.Config, rec history.RunRecord) string {
	dbPath, err := config.GetHistoryDBPath(cfg.History.DBPath)
	if err != nil {
		log.Warnf("history disabled: %v", err)
		return ""
	}

	store, err := history.NewStore(dbPath)
	if err != nil {
		log.Warnf("history disabled: %v", err)
		return ""
	}
	defer store.Close()

	// Record even when the run itself was interrupted.
	ctx = context.WithoutCancel(ctx)

	id, err := store.RecordRun(ctx, rec)
	if err != nil {
		log.Warnf("failed to record run: %v", err)
		return ""
	}
	log.Debugf("Recorded run %s in %s", id, dbPath)

	if pruned, err := store.Prune(ctx, cfg.History.KeepRuns); err != nil {
		log.Warnf("failed to prune history: %v", err)
	} else if pruned > 0 {
		log.Debugf("Pruned %d old runs", pruned)
	}
	return id
}

// multiLogger implements executor.RunLogger by delegating to multiple loggers
type multiLogger struct {
	loggers []executor.RunLogger
}

// LogRunStart forwards to all loggers
func (ml *multiLogger) LogRunStart(op string, roots []string, workers, maxInFlight int) {
	for _, l := range ml.loggers {
		l.LogRunStart(op, roots, workers, maxInFlight)
	}
}

// LogResult forwards to all loggers
func (ml *multiLogger) LogResult(result models.TaskResult) {
	for _, l := range ml.loggers {
		l.LogResult(result)
	}
}

// LogSummary forwards to all loggers
func (ml *multiLogger) LogSummary(summary models.RunSummary) {
	for _, l := range ml.loggers {
		l.LogSummary(summary)
	}
}

func (ml *multiLogger) Warnf(format string, args ...interface{}) {
	for _, l := range ml.loggers {
		l.Warnf(format, args...)
	}
}

func (ml *multiLogger) Infof(format string, args ...interface{}) {
	for _, l := range ml.loggers {
		l.Infof(format, args...)
	}
}

func (ml *multiLogger) Debugf(format string, args ...interface{}) {
	for _, l := range ml.loggers {
		l.Debugf(format, args...)
	}
}
