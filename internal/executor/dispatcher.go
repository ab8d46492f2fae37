package executor

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/harrison/filebatch/internal/models"
	"golang.org/x/sync/errgroup"
)

// Operation processes one file. A returned error becomes a failure result
// carrying the error text; the returned result is then ignored.
type Operation func(ctx context.Context, entry models.PathEntry) (models.TaskResult, error)

// Logger is the logging surface the dispatcher and the run pipeline consume.
type Logger interface {
	LogResult(result models.TaskResult)
	Warnf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

// MaxInFlightLimit caps MaxInFlight, which sizes Stream's result buffer.
const MaxInFlightLimit = 1 << 16

// Dispatcher runs an Operation over a lazy sequence of entries on a fixed pool
// of worker goroutines while keeping at most MaxInFlight tasks submitted but
// not yet collected.
type Dispatcher struct {
	PoolSize    int           // Number of worker goroutines
	MaxInFlight int           // Upper bound on submitted, uncollected tasks
	TaskTimeout time.Duration // Per-task budget; zero disables it
	Logger      Logger        // Optional; receives every collected result
}

// NewDispatcher constructs a Dispatcher. The logger may be nil.
func NewDispatcher(poolSize, maxInFlight int, timeout time.Duration, logger Logger) *Dispatcher {
	return &Dispatcher{
		PoolSize:    poolSize,
		MaxInFlight: maxInFlight,
		TaskTimeout: timeout,
		Logger:      logger,
	}
}

// Validate checks the pool bounds.
func (d *Dispatcher) Validate() error {
	if d.PoolSize < 1 {
		return NewConfigurationError("workers", "must be at least 1, got %d", d.PoolSize)
	}
	if d.MaxInFlight < d.PoolSize {
		return NewConfigurationError("max_in_flight", "must be at least workers (%d), got %d", d.PoolSize, d.MaxInFlight)
	}
	if d.MaxInFlight > MaxInFlightLimit {
		return NewConfigurationError("max_in_flight", "must be at most %d, got %d", MaxInFlightLimit, d.MaxInFlight)
	}
	if d.TaskTimeout < 0 {
		return NewConfigurationError("task_timeout", "must not be negative, got %v", d.TaskTimeout)
	}
	return nil
}

// Run executes op over every entry and returns the results in completion order.
// On cancellation it returns the partial results together with the context error.
func (d *Dispatcher) Run(ctx context.Context, entries iter.Seq[models.PathEntry], op Operation) ([]models.TaskResult, error) {
	var results []models.TaskResult
	err := d.Stream(ctx, entries, op, func(r models.TaskResult) {
		results = append(results, r)
	})
	return results, err
}

// Stream executes op over every entry, handing each result to sink on the
// calling goroutine as it completes. All workers have exited when Stream
// returns.
//
// When ctx is cancelled no further entries are submitted, tasks already
// submitted run to completion (bounded by TaskTimeout) and their results are
// still delivered; Stream then returns ctx.Err().
func (d *Dispatcher) Stream(ctx context.Context, entries iter.Seq[models.PathEntry], op Operation, sink func(models.TaskResult)) error {
	if err := d.Validate(); err != nil {
		return err
	}
	if op == nil {
		return NewConfigurationError("operation", "must not be nil")
	}

	// The result buffer holds MaxInFlight items so workers never block on
	// send; submissions past PoolSize queue in tasks until a worker is free.
	tasks := make(chan models.PathEntry, d.PoolSize)
	results := make(chan models.TaskResult, d.MaxInFlight)

	// Dispatched work drains even after the run is cancelled
	opCtx := context.WithoutCancel(ctx)

	var g errgroup.Group
	for i := 0; i < d.PoolSize; i++ {
		g.Go(func() error {
			for entry := range tasks {
				results <- d.execute(opCtx, op, entry)
			}
			return nil
		})
	}

	inFlight := 0
	deliver := func(r models.TaskResult) {
		inFlight--
		if d.Logger != nil {
			d.Logger.LogResult(r)
		}
		if sink != nil {
			sink(r)
		}
	}

	for entry := range entries {
		if ctx.Err() != nil {
			break
		}

		tasks <- entry
		inFlight++

		// At the bound, wait for any task to finish before pulling the next entry
		for inFlight >= d.MaxInFlight {
			deliver(<-results)
		}

		// Hand over whatever already finished so results stream promptly
		for drained := false; !drained; {
			select {
			case r := <-results:
				deliver(r)
			default:
				drained = true
			}
		}
	}
	close(tasks)

	for inFlight > 0 {
		deliver(<-results)
	}

	// Workers never return an error
	_ = g.Wait()

	return ctx.Err()
}

// execute runs op on one entry, converting errors, panics and timeouts into
// failure results.
func (d *Dispatcher) execute(ctx context.Context, op Operation, entry models.PathEntry) models.TaskResult {
	start := time.Now()

	var result models.TaskResult
	if d.TaskTimeout <= 0 {
		result = invoke(ctx, op, entry)
	} else {
		result = d.invokeWithTimeout(ctx, op, entry)
	}

	if result.Entry.Path == "" {
		result.Entry = entry
	}
	result.Duration = time.Since(start)
	return result
}

// invokeWithTimeout runs op in its own goroutine so the worker is released as
// soon as the budget expires, even if op ignores its context.
func (d *Dispatcher) invokeWithTimeout(ctx context.Context, op Operation, entry models.PathEntry) models.TaskResult {
	tctx, cancel := context.WithTimeout(ctx, d.TaskTimeout)
	defer cancel()

	done := make(chan models.TaskResult, 1)
	go func() {
		done <- invoke(tctx, op, entry)
	}()

	var result models.TaskResult
	select {
	case result = <-done:
	case <-tctx.Done():
		select {
		case result = <-done:
		default:
			result = models.Failure(entry, models.MessageTimeout)
		}
	}

	// An op that noticed the deadline itself still reports a timeout
	if result.IsFailure() && IsTimeoutError(tctx.Err()) {
		GracefulWarn(d.Logger, "%v", NewTimeoutError(entry.Path, d.TaskTimeout))
		result = models.Failure(entry, models.MessageTimeout)
	}
	return result
}

// invoke calls op, recovering panics.
func invoke(ctx context.Context, op Operation, entry models.PathEntry) (result models.TaskResult) {
	defer func() {
		if r := recover(); r != nil {
			result = models.Failure(entry, fmt.Sprintf("panic: %v", r))
		}
	}()

	result, err := op(ctx, entry)
	if err != nil {
		return models.Failure(entry, err.Error())
	}
	return result
}
