package executor

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ConfigurationError reports an invalid setting detected before any file is
// processed. It is the only error class that makes a run exit non-zero.
type ConfigurationError struct {
	Field   string // Setting that failed validation (e.g. "workers")
	Message string // Human-readable explanation
}

// NewConfigurationError creates a ConfigurationError for field.
func NewConfigurationError(field, format string, args ...interface{}) *ConfigurationError {
	return &ConfigurationError{
		Field:   field,
		Message: fmt.Sprintf(format, args...),
	}
}

// Error implements the error interface for ConfigurationError.
func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return "invalid configuration: " + e.Message
	}
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Message)
}

// TimeoutError represents a task that exceeded its time budget.
type TimeoutError struct {
	Path      string        // File the task was processing
	Timeout   time.Duration // Budget that was exceeded
	Timestamp time.Time     // When the timeout fired
}

// NewTimeoutError creates a new TimeoutError with the current timestamp.
func NewTimeoutError(path string, timeout time.Duration) *TimeoutError {
	return &TimeoutError{
		Path:      path,
		Timeout:   timeout,
		Timestamp: time.Now(),
	}
}

// Error implements the error interface for TimeoutError.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: timeout after %v", e.Path, e.Timeout)
}

// Unwrap returns context.DeadlineExceeded to support error wrapping.
func (e *TimeoutError) Unwrap() error {
	return context.DeadlineExceeded
}

// IsConfigurationError checks if the error is or wraps a ConfigurationError.
func IsConfigurationError(err error) bool {
	if err == nil {
		return false
	}
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// IsTimeoutError checks if the error is or wraps a TimeoutError or context.DeadlineExceeded.
func IsTimeoutError(err error) bool {
	if err == nil {
		return false
	}

	var te *TimeoutError
	if errors.As(err, &te) {
		return true
	}

	return errors.Is(err, context.DeadlineExceeded)
}
