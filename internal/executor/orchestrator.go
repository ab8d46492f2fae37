package executor

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"github.com/harrison/filebatch/internal/fileutil"
	"github.com/harrison/filebatch/internal/models"
	"github.com/harrison/filebatch/internal/summary"
)

// RunLogger is the logging surface of a whole run.
type RunLogger interface {
	Logger
	LogRunStart(op string, roots []string, workers, maxInFlight int)
	LogSummary(summary models.RunSummary)
}

// Orchestrator wires the walker, the dispatcher and the summary aggregator
// into one run, turning SIGINT/SIGTERM into a graceful stop.
type Orchestrator struct {
	dispatcher *Dispatcher
	walker     *fileutil.Walker
	logger     RunLogger

	// HandleSignals installs SIGINT/SIGTERM handling for the duration of Execute.
	HandleSignals bool
}

// NewOrchestrator creates a new Orchestrator instance.
// The logger parameter is optional and can be nil.
func NewOrchestrator(dispatcher *Dispatcher, walker *fileutil.Walker, logger RunLogger) *Orchestrator {
	if dispatcher == nil {
		panic("dispatcher cannot be nil")
	}
	if walker == nil {
		panic("walker cannot be nil")
	}

	o := &Orchestrator{
		dispatcher:    dispatcher,
		walker:        walker,
		logger:        logger,
		HandleSignals: true,
	}

	if logger != nil {
		if dispatcher.Logger == nil {
			dispatcher.Logger = logger
		}
		if walker.OnError == nil {
			walker.OnError = func(err error) { logger.Warnf("%v", err) }
		}
	}
	return o
}

// Execute runs op over every qualifying file under roots and returns the run
// summary. Configuration problems (invalid pool bounds, missing roots) are
// returned as *ConfigurationError before anything is walked. Cancellation is
// not an error: the partial summary comes back flagged Cancelled.
func (o *Orchestrator) Execute(ctx context.Context, opName string, roots []string, op Operation) (models.RunSummary, error) {
	if err := o.dispatcher.Validate(); err != nil {
		return models.RunSummary{}, err
	}
	if op == nil {
		return models.RunSummary{}, NewConfigurationError("operation", "must not be nil")
	}
	if err := o.checkRoots(roots); err != nil {
		return models.RunSummary{}, err
	}

	if o.HandleSignals {
		var stop context.CancelFunc
		parent := ctx
		ctx, stop = signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()

		finished := make(chan struct{})
		defer close(finished)
		go func() {
			select {
			case <-ctx.Done():
				if parent.Err() == nil {
					GracefulWarn(o.logger, "Received interrupt signal, finishing in-flight tasks...")
				}
			case <-finished:
			}
		}()
	}

	agg := summary.NewAggregator(uuid.New().String())
	if o.logger != nil {
		o.logger.LogRunStart(opName, roots, o.dispatcher.PoolSize, o.dispatcher.MaxInFlight)
	}

	err := o.dispatcher.Stream(ctx, o.walker.WalkRoots(ctx, roots), op, agg.Record)
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		agg.MarkCancelled()
	default:
		return agg.Finalize(), err
	}

	result := agg.Finalize()
	if o.logger != nil {
		o.logger.LogSummary(result)
	}
	return result, nil
}

// checkRoots rejects an empty root list or any root that does not exist.
func (o *Orchestrator) checkRoots(roots []string) error {
	if len(roots) == 0 {
		return NewConfigurationError("paths", "at least one root is required")
	}
	for _, root := range roots {
		if _, err := o.walker.Stat(root); err != nil {
			return NewConfigurationError("paths", "%s: %v", root, err)
		}
	}
	return nil
}
