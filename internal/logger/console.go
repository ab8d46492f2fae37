// Package logger provides logging implementations for filebatch runs.
//
// Loggers report the start of a run, every collected task result and the final
// run summary. Implementations are safe for concurrent use and write to the
// console, a per-run log file, or nowhere.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/harrison/filebatch/internal/models"
	"github.com/mattn/go-isatty"
)

// Log level constants for filtering
const (
	levelTrace int = 0
	levelDebug int = 1
	levelInfo  int = 2
	levelWarn  int = 3
	levelError int = 4
)

// ConsoleLogger logs run progress to a writer with timestamps and thread safety.
// All output is prefixed with [HH:MM:SS] timestamps.
// Color output is enabled when the writer is a terminal.
type ConsoleLogger struct {
	writer      io.Writer
	logLevel    string
	mutex       sync.Mutex
	colorOutput bool
	scheme      *colorScheme
}

// NewConsoleLogger creates a ConsoleLogger that writes to the provided io.Writer.
// If writer is nil, messages are silently discarded.
// Valid levels: trace, debug, info, warn, error (case-insensitive); anything
// else falls back to "info".
func NewConsoleLogger(writer io.Writer, logLevel string) *ConsoleLogger {
	return &ConsoleLogger{
		writer:      writer,
		logLevel:    normalizeLogLevel(logLevel),
		colorOutput: isTerminal(writer),
		scheme:      newColorScheme(),
	}
}

// isTerminal reports whether w is a TTY that should receive colors.
// NO_COLOR (honored by fatih/color) disables colors everywhere.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok || f == nil {
		return false
	}
	if color.NoColor {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// logLevels are the accepted level names, least to most severe.
var logLevels = map[string]int{
	"trace": levelTrace,
	"debug": levelDebug,
	"info":  levelInfo,
	"warn":  levelWarn,
	"error": levelError,
}

// normalizeLogLevel converts a log level string to lowercase and validates it.
// Returns "info" as default for empty or invalid levels.
func normalizeLogLevel(level string) string {
	normalized := strings.ToLower(strings.TrimSpace(level))
	if _, ok := logLevels[normalized]; ok {
		return normalized
	}
	return "info"
}

// ValidLogLevel reports whether level names a known log level
// (trace, debug, info, warn or error, case-insensitive).
func ValidLogLevel(level string) bool {
	_, ok := logLevels[strings.ToLower(strings.TrimSpace(level))]
	return ok
}

// shouldLog checks if a message at the given level should be logged.
func (cl *ConsoleLogger) shouldLog(messageLevel string) bool {
	return logLevelToInt(messageLevel) >= logLevelToInt(cl.logLevel)
}

// logLevelToInt converts a log level string to its numeric value.
// Unknown levels count as info.
func logLevelToInt(level string) int {
	if n, ok := logLevels[level]; ok {
		return n
	}
	return levelInfo
}

// LogInfo logs an info-level message.
// Format: "[HH:MM:SS] [INFO] <message>"
func (cl *ConsoleLogger) LogInfo(message string) {
	cl.logWithLevel("INFO", message)
}

// Debugf logs a formatted debug-level message.
func (cl *ConsoleLogger) Debugf(format string, args ...interface{}) {
	cl.logWithLevel("DEBUG", fmt.Sprintf(format, args...))
}

// Infof logs a formatted info-level message.
func (cl *ConsoleLogger) Infof(format string, args ...interface{}) {
	cl.logWithLevel("INFO", fmt.Sprintf(format, args...))
}

// Warnf logs a formatted warning-level message.
func (cl *ConsoleLogger) Warnf(format string, args ...interface{}) {
	cl.logWithLevel("WARN", fmt.Sprintf(format, args...))
}

// logWithLevel is a helper that logs a message at the specified level if filtering allows it.
func (cl *ConsoleLogger) logWithLevel(level string, message string) {
	if cl.writer == nil {
		return
	}

	if !cl.shouldLog(strings.ToLower(level)) {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	ts := timestamp()
	var formatted string

	if cl.colorOutput {
		formatted = cl.formatWithColor(ts, level, message)
	} else {
		formatted = fmt.Sprintf("[%s] [%s] %s\n", ts, level, message)
	}

	cl.writer.Write([]byte(formatted))
}

// formatWithColor formats a log message with ANSI color codes.
func (cl *ConsoleLogger) formatWithColor(ts, level, message string) string {
	var coloredLevel string

	switch strings.ToUpper(level) {
	case "TRACE":
		coloredLevel = color.New(color.FgHiBlack).Sprint(level)
	case "DEBUG":
		coloredLevel = color.New(color.FgCyan).Sprint(level)
	case "INFO":
		coloredLevel = color.New(color.FgBlue).Sprint(level)
	case "WARN":
		coloredLevel = color.New(color.FgYellow).Sprint(level)
	case "ERROR":
		coloredLevel = color.New(color.FgRed).Sprint(level)
	default:
		coloredLevel = level
	}

	return fmt.Sprintf("[%s] [%s] %s\n", ts, coloredLevel, message)
}

// LogRunStart logs the start of a run at INFO level.
// Format: "[HH:MM:SS] Running <op> over <roots> (workers: N, in flight: M)"
func (cl *ConsoleLogger) LogRunStart(op string, roots []string, workers, maxInFlight int) {
	cl.logWithLevel("INFO", formatRunStart(op, roots, workers, maxInFlight))
}

// LogResult logs one collected task result. Failures are logged at INFO so
// they show by default; successes and skips only at DEBUG.
// Format: "[HH:MM:SS] <status> <path>: <detail>"
func (cl *ConsoleLogger) LogResult(result models.TaskResult) {
	if cl.writer == nil {
		return
	}

	level := "debug"
	if result.IsFailure() {
		level = "info"
	}
	if !cl.shouldLog(level) {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	status := strings.ToUpper(result.Status)
	if status == "" {
		status = "UNKNOWN"
	}
	if cl.colorOutput {
		status = cl.scheme.forStatus(result.Status).Sprint(status)
	}

	message := fmt.Sprintf("[%s] %s %s", timestamp(), status, result.Entry.Path)
	if suffix := resultSuffix(result); suffix != "" {
		message += ": " + suffix
	}

	cl.writer.Write([]byte(message + "\n"))
}

// LogSummary writes the run summary, followed by every failed path. It is
// printed regardless of the configured level.
func (cl *ConsoleLogger) LogSummary(summary models.RunSummary) {
	if cl.writer == nil {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	ts := timestamp()
	bar := newRatioBar(summary.Succeeded, summary.Processed, 20, cl.colorOutput)

	var output string
	header := "=== Run Summary ==="
	if summary.Cancelled {
		header = "=== Run Summary (cancelled) ==="
	}

	if cl.colorOutput {
		output = fmt.Sprintf("[%s] %s\n", ts, color.New(color.Bold).Sprint(header))
		output += fmt.Sprintf("[%s] Processed: %d\n", ts, summary.Processed)
		output += fmt.Sprintf("[%s] %s\n", ts, cl.scheme.success.Sprintf("Succeeded: %d %s", summary.Succeeded, bar))
		if summary.Failed > 0 {
			output += fmt.Sprintf("[%s] %s\n", ts, cl.scheme.fail.Sprintf("Failed: %d", summary.Failed))
		} else {
			output += fmt.Sprintf("[%s] Failed: %d\n", ts, summary.Failed)
		}
		output += fmt.Sprintf("[%s] %s\n", ts, cl.scheme.skip.Sprintf("Skipped: %d", summary.Skipped))
	} else {
		output = fmt.Sprintf("[%s] %s\n", ts, header)
		output += fmt.Sprintf("[%s] Processed: %d\n", ts, summary.Processed)
		output += fmt.Sprintf("[%s] Succeeded: %d %s\n", ts, summary.Succeeded, bar)
		output += fmt.Sprintf("[%s] Failed: %d\n", ts, summary.Failed)
		output += fmt.Sprintf("[%s] Skipped: %d\n", ts, summary.Skipped)
	}

	output += fmt.Sprintf("[%s] Bytes: %s -> %s (%s)\n", ts,
		humanize.Bytes(nonNegative(summary.BytesBefore)),
		humanize.Bytes(nonNegative(summary.BytesAfter)),
		FormatDelta(summary.BytesDelta()))
	output += fmt.Sprintf("[%s] Duration: %s\n", ts, formatDuration(summary.Duration))

	if len(summary.Failures) > 0 {
		failedHeader := "Failed files:"
		if cl.colorOutput {
			failedHeader = cl.scheme.fail.Sprint(failedHeader)
		}
		output += fmt.Sprintf("[%s] %s\n", ts, failedHeader)
		for _, f := range summary.Failures {
			output += fmt.Sprintf("[%s]   - %s: %s\n", ts, f.Path, f.Message)
		}
	}

	cl.writer.Write([]byte(output))
}

// formatRunStart renders the run header shared by console and file loggers.
func formatRunStart(op string, roots []string, workers, maxInFlight int) string {
	return fmt.Sprintf("Running %s over %s (workers: %d, in flight: %d)",
		op, strings.Join(roots, ", "), workers, maxInFlight)
}

// resultSuffix renders the variant payload of a result.
func resultSuffix(result models.TaskResult) string {
	switch {
	case result.IsFailure():
		return result.Message
	case result.IsSkipped():
		return result.Reason
	case result.Detail != "":
		return result.Detail
	case result.BytesBefore != result.BytesAfter:
		return fmt.Sprintf("%s -> %s",
			humanize.Bytes(nonNegative(result.BytesBefore)),
			humanize.Bytes(nonNegative(result.BytesAfter)))
	}
	return ""
}

// FormatDelta renders a byte delta as "saved 1.2 kB" or "grew 300 B".
func FormatDelta(delta int64) string {
	switch {
	case delta > 0:
		return "saved " + humanize.Bytes(uint64(delta))
	case delta < 0:
		return "grew " + humanize.Bytes(uint64(-delta))
	default:
		return "no change"
	}
}

func nonNegative(n int64) uint64 {
	if n < 0 {
		return 0
	}
	return uint64(n)
}

// timestamp returns the current time formatted as "15:04:05" (HH:MM:SS).
func timestamp() string {
	return time.Now().Format("15:04:05")
}

// formatDuration converts a time.Duration to a human-readable string.
// Examples: "250ms", "5s", "1m30s", "2h15m"
func formatDuration(d time.Duration) string {
	switch {
	case d >= time.Hour:
		hours := d / time.Hour
		remainder := d % time.Hour
		if remainder == 0 {
			return fmt.Sprintf("%dh", hours)
		}
		minutes := remainder / time.Minute
		remainder = remainder % time.Minute
		if remainder == 0 {
			return fmt.Sprintf("%dh%dm", hours, minutes)
		}
		seconds := remainder / time.Second
		return fmt.Sprintf("%dh%dm%ds", hours, minutes, seconds)
	case d >= time.Minute:
		minutes := d / time.Minute
		remainder := d % time.Minute
		if remainder == 0 {
			return fmt.Sprintf("%dm", minutes)
		}
		seconds := remainder / time.Second
		return fmt.Sprintf("%dm%ds", minutes, seconds)
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	default:
		return fmt.Sprintf("%ds", int64(d.Seconds()))
	}
}
