package models

import "time"

// Task result status constants
const (
	StatusSuccess = "success" // Operation completed
	StatusFailure = "failure" // Operation returned an error, panicked or timed out
	StatusSkipped = "skipped" // Operation declined to act on the file
)

// Skip reasons shared by built-in operations
const (
	ReasonTargetExists = "target exists"
	ReasonDryRun       = "dry run"
	ReasonUnchanged    = "unchanged"
)

// MessageTimeout is the failure message of a task that exceeded its time budget.
const MessageTimeout = "timeout"

// TaskResult is the outcome of running an operation on one PathEntry.
// Exactly one of the variant fields is meaningful, selected by Status.
type TaskResult struct {
	Entry       PathEntry     // The entry the task was run on
	Status      string        // StatusSuccess, StatusFailure or StatusSkipped
	BytesBefore int64         // Success: size before the operation
	BytesAfter  int64         // Success: size after the operation
	Message     string        // Failure: error message
	Reason      string        // Skipped: why the file was skipped
	Detail      string        // Optional operation output (digest, page count, ...)
	Duration    time.Duration // Time taken by the operation
}

// Success builds a successful result with byte sizes before and after.
func Success(entry PathEntry, before, after int64) TaskResult {
	return TaskResult{Entry: entry, Status: StatusSuccess, BytesBefore: before, BytesAfter: after}
}

// Failure builds a failed result carrying msg.
func Failure(entry PathEntry, msg string) TaskResult {
	return TaskResult{Entry: entry, Status: StatusFailure, Message: msg}
}

// Skipped builds a skipped result carrying reason.
func Skipped(entry PathEntry, reason string) TaskResult {
	return TaskResult{Entry: entry, Status: StatusSkipped, Reason: reason}
}

// WithDetail returns a copy of r with Detail set.
func (r TaskResult) WithDetail(detail string) TaskResult {
	r.Detail = detail
	return r
}

// IsSuccess reports whether the result is a success.
func (r TaskResult) IsSuccess() bool { return r.Status == StatusSuccess }

// IsFailure reports whether the result is a failure.
func (r TaskResult) IsFailure() bool { return r.Status == StatusFailure }

// IsSkipped reports whether the result is a skip.
func (r TaskResult) IsSkipped() bool { return r.Status == StatusSkipped }

// FailureDetail identifies a failed path for the end-of-run report.
type FailureDetail struct {
	Path    string
	Message string
}

// RunSummary is the immutable, aggregate report of a run.
type RunSummary struct {
	RunID       string          // Unique run identifier
	Processed   int             // Total results recorded
	Succeeded   int             // Successful results
	Failed      int             // Failed results
	Skipped     int             // Skipped results
	BytesBefore int64           // Sum of sizes before (successes only)
	BytesAfter  int64           // Sum of sizes after (successes only)
	Duration    time.Duration   // Wall-clock duration of the run
	Cancelled   bool            // Run was interrupted before the walk finished
	Failures    []FailureDetail // Failed paths with messages
}

// BytesDelta returns the bytes reclaimed by the run (negative when files grew).
func (s RunSummary) BytesDelta() int64 {
	return s.BytesBefore - s.BytesAfter
}
