package ops

import (
	"context"
	"fmt"
	"os"

	"github.com/harrison/filebatch/internal/models"
)

// ReasonNotEmpty marks files rmempty leaves alone.
const ReasonNotEmpty = "not empty"

type rmEmptyOp struct {
	dryRun bool
}

func newRmEmpty(o Options) *rmEmptyOp { return &rmEmptyOp{dryRun: o.DryRun} }

func (o *rmEmptyOp) Name() string             { return "rmempty" }
func (o *rmEmptyOp) Description() string      { return "Delete zero-byte files" }
func (o *rmEmptyOp) DefaultInclude() []string { return nil }
func (o *rmEmptyOp) Preflight() error         { return nil }

func (o *rmEmptyOp) Apply(_ context.Context, entry models.PathEntry) (models.TaskResult, error) {
	// The cached size may be stale by the time a worker gets here.
	info, err := os.Stat(entry.Path)
	if err != nil {
		return models.TaskResult{}, err
	}
	if info.Size() > 0 {
		return models.Skipped(entry, ReasonNotEmpty), nil
	}
	if o.dryRun {
		return models.Skipped(entry, models.ReasonDryRun), nil
	}

	if err := os.Remove(entry.Path); err != nil {
		return models.TaskResult{}, fmt.Errorf("remove: %w", err)
	}
	return models.Success(entry, 0, 0).WithDetail("removed"), nil
}
