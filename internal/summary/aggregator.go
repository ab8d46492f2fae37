// Package summary folds task results into a run-level report.
//
// An Aggregator is owned by the goroutine that collects results from the
// dispatcher. It is never shared with workers and needs no locking.
package summary

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/harrison/filebatch/internal/models"
)

// Aggregator accumulates TaskResults into a RunSummary.
type Aggregator struct {
	runID     string
	started   time.Time
	summary   models.RunSummary
	cancelled bool
}

// NewAggregator starts the run clock for runID.
func NewAggregator(runID string) *Aggregator {
	return &Aggregator{runID: runID, started: time.Now()}
}

// Record folds one result into the running totals. Results with an unknown
// status or negative sizes count as successes that changed nothing.
func (a *Aggregator) Record(r models.TaskResult) {
	a.summary.Processed++

	switch r.Status {
	case models.StatusFailure:
		a.summary.Failed++
		a.summary.Failures = append(a.summary.Failures, models.FailureDetail{
			Path:    r.Entry.Path,
			Message: r.Message,
		})
	case models.StatusSkipped:
		a.summary.Skipped++
	case models.StatusSuccess:
		a.summary.Succeeded++
		if r.BytesBefore >= 0 && r.BytesAfter >= 0 {
			a.summary.BytesBefore += r.BytesBefore
			a.summary.BytesAfter += r.BytesAfter
		}
	default:
		a.summary.Succeeded++
	}
}

// MarkCancelled flags the run as interrupted.
func (a *Aggregator) MarkCancelled() {
	a.cancelled = true
}

// Finalize returns an independent snapshot of the totals so far.
func (a *Aggregator) Finalize() models.RunSummary {
	s := a.summary
	s.RunID = a.runID
	s.Cancelled = a.cancelled
	s.Duration = time.Since(a.started)
	if len(a.summary.Failures) > 0 {
		s.Failures = make([]models.FailureDetail, len(a.summary.Failures))
		copy(s.Failures, a.summary.Failures)
	}
	return s
}

// Report writes a plain-text rendering of s to w.
func Report(w io.Writer, s models.RunSummary) error {
	status := "completed"
	if s.Cancelled {
		status = "cancelled"
	}

	_, err := fmt.Fprintf(w,
		"Run %s %s in %s\n"+
			"  processed: %s\n"+
			"  succeeded: %s\n"+
			"  failed:    %s\n"+
			"  skipped:   %s\n"+
			"  bytes:     %s -> %s (%s)\n",
		s.RunID, status, s.Duration.Round(time.Millisecond),
		humanize.Comma(int64(s.Processed)),
		humanize.Comma(int64(s.Succeeded)),
		humanize.Comma(int64(s.Failed)),
		humanize.Comma(int64(s.Skipped)),
		humanize.Bytes(clamp(s.BytesBefore)), humanize.Bytes(clamp(s.BytesAfter)),
		describeDelta(s.BytesDelta()),
	)
	if err != nil {
		return err
	}

	if len(s.Failures) == 0 {
		return nil
	}
	if _, err := fmt.Fprintf(w, "Failures (%d):\n", len(s.Failures)); err != nil {
		return err
	}
	for _, f := range s.Failures {
		if _, err := fmt.Fprintf(w, "  %s: %s\n", f.Path, f.Message); err != nil {
			return err
		}
	}
	return nil
}

func describeDelta(delta int64) string {
	switch {
	case delta > 0:
		return humanize.Bytes(uint64(delta)) + " reclaimed"
	case delta < 0:
		return humanize.Bytes(uint64(-delta)) + " added"
	default:
		return "unchanged"
	}
}

func clamp(n int64) uint64 {
	if n < 0 {
		return 0
	}
	return uint64(n)
}
