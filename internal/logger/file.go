package logger

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/harrison/filebatch/internal/models"
	"github.com/harrison/filebatch/internal/summary"
)

// FileLogger writes a per-run log file and maintains a latest.log symlink
// pointing to the most recent run. Every task result is recorded regardless of
// level; free-form messages are filtered by level. It is thread-safe.
type FileLogger struct {
	logDir   string
	runLog   *os.File
	runFile  string
	logLevel string
	mu       sync.Mutex
}

// NewFileLogger creates a FileLogger in .filebatch/logs under the working directory.
func NewFileLogger() (*FileLogger, error) {
	return NewFileLoggerWithDirAndLevel(filepath.Join(".filebatch", "logs"), "info")
}

// NewFileLoggerWithDir creates a FileLogger with a custom log directory.
func NewFileLoggerWithDir(logDir string) (*FileLogger, error) {
	return NewFileLoggerWithDirAndLevel(logDir, "info")
}

// NewFileLoggerWithDirAndLevel creates a FileLogger with a custom log directory and log level.
// It creates the directory, opens run-YYYYMMDD-HHMMSS.log and repoints latest.log at it.
func NewFileLoggerWithDirAndLevel(logDir string, logLevel string) (*FileLogger, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	timestamp := time.Now().Format("20060102-150405")
	runFile := filepath.Join(logDir, fmt.Sprintf("run-%s.log", timestamp))

	file, err := os.OpenFile(runFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create run log file: %w", err)
	}

	symlinkPath := filepath.Join(logDir, "latest.log")

	if _, err := os.Lstat(symlinkPath); err == nil {
		if err := os.Remove(symlinkPath); err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to remove old symlink: %w", err)
		}
	}

	if err := os.Symlink(filepath.Base(runFile), symlinkPath); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to create symlink: %w", err)
	}

	logger := &FileLogger{
		logDir:   logDir,
		runLog:   file,
		runFile:  runFile,
		logLevel: normalizeLogLevel(logLevel),
	}

	logger.writeRunLog("=== filebatch Run Log ===\n")
	logger.writeRunLog(fmt.Sprintf("Started at: %s\n\n", time.Now().Format(time.RFC3339)))

	return logger, nil
}

// RunFile returns the path of the current run log.
func (fl *FileLogger) RunFile() string {
	return fl.runFile
}

// shouldLog checks if a message at the given level should be logged.
func (fl *FileLogger) shouldLog(messageLevel string) bool {
	return logLevelToInt(messageLevel) >= logLevelToInt(fl.logLevel)
}

// Debugf logs a formatted debug-level message.
func (fl *FileLogger) Debugf(format string, args ...interface{}) {
	fl.logWithLevel("DEBUG", fmt.Sprintf(format, args...))
}

// Infof logs a formatted info-level message.
func (fl *FileLogger) Infof(format string, args ...interface{}) {
	fl.logWithLevel("INFO", fmt.Sprintf(format, args...))
}

// Warnf logs a formatted warning-level message.
func (fl *FileLogger) Warnf(format string, args ...interface{}) {
	fl.logWithLevel("WARN", fmt.Sprintf(format, args...))
}

func (fl *FileLogger) logWithLevel(level string, message string) {
	if !fl.shouldLog(strings.ToLower(level)) {
		return
	}
	fl.writeRunLog(fmt.Sprintf("[%s] [%s] %s\n", time.Now().Format("15:04:05"), level, message))
}

// LogRunStart records the run header.
func (fl *FileLogger) LogRunStart(op string, roots []string, workers, maxInFlight int) {
	fl.writeRunLog(fmt.Sprintf("[%s] %s\n", time.Now().Format("15:04:05"),
		formatRunStart(op, roots, workers, maxInFlight)))
}

// LogResult records one task result.
// Format: "[HH:MM:SS] <status> <path> (<duration>): <detail>"
func (fl *FileLogger) LogResult(result models.TaskResult) {
	line := fmt.Sprintf("[%s] %s %s (%.3fs)", time.Now().Format("15:04:05"),
		strings.ToUpper(result.Status), result.Entry.Path, result.Duration.Seconds())
	if suffix := resultSuffix(result); suffix != "" {
		line += ": " + suffix
	}
	fl.writeRunLog(line + "\n")
}

// LogSummary records the run report followed by an overall status.
func (fl *FileLogger) LogSummary(s models.RunSummary) {
	timestamp := time.Now().Format("15:04:05")

	status := "SUCCESS"
	switch {
	case s.Cancelled:
		status = "CANCELLED"
	case s.Failed > 0 && s.Succeeded == 0:
		status = "FAILED"
	case s.Failed > 0:
		status = "PARTIAL"
	}

	var body bytes.Buffer
	fmt.Fprintf(&body, "\n[%s] === RUN SUMMARY ===\n", timestamp)
	if err := summary.Report(&body, s); err != nil {
		fmt.Fprintf(&body, "report: %v\n", err)
	}
	fmt.Fprintf(&body, "Status:       %s\n", status)
	fmt.Fprintf(&body, "Completed at: %s\n", time.Now().Format(time.RFC3339))

	fl.writeRunLog(body.String())
}

// Close flushes and closes the run log file.
func (fl *FileLogger) Close() error {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	if fl.runLog != nil {
		if err := fl.runLog.Sync(); err != nil {
			return fmt.Errorf("failed to sync run log: %w", err)
		}
		if err := fl.runLog.Close(); err != nil {
			return fmt.Errorf("failed to close run log: %w", err)
		}
		fl.runLog = nil
	}

	return nil
}

// writeRunLog is a thread-safe helper to write to the run log file.
func (fl *FileLogger) writeRunLog(message string) {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	if fl.runLog != nil {
		fl.runLog.WriteString(message)
	}
}
