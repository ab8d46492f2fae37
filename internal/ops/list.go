package ops

import (
	"context"

	"github.com/harrison/filebatch/internal/models"
)

type listOp struct{}

func newList(Options) *listOp { return &listOp{} }

func (o *listOp) Name() string             { return "list" }
func (o *listOp) Description() string      { return "Report every matching file without changing it" }
func (o *listOp) DefaultInclude() []string { return nil }
func (o *listOp) Preflight() error         { return nil }

func (o *listOp) Apply(_ context.Context, entry models.PathEntry) (models.TaskResult, error) {
	return models.Success(entry, entry.Size, entry.Size), nil
}
