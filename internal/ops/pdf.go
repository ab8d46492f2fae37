package ops

import (
	"context"
	"fmt"

	"github.com/ledongthuc/pdf"

	"github.com/harrison/filebatch/internal/models"
)

type pdfPagesOp struct{}

func newPDFPages(Options) *pdfPagesOp { return &pdfPagesOp{} }

func (o *pdfPagesOp) Name() string             { return "pdfpages" }
func (o *pdfPagesOp) Description() string      { return "Count the pages of PDF documents" }
func (o *pdfPagesOp) DefaultInclude() []string { return []string{".pdf"} }
func (o *pdfPagesOp) Preflight() error         { return nil }

func (o *pdfPagesOp) Apply(_ context.Context, entry models.PathEntry) (models.TaskResult, error) {
	pages, err := CountPDFPages(entry.Path)
	if err != nil {
		return models.TaskResult{}, err
	}
	return models.Success(entry, entry.Size, entry.Size).WithDetail(fmt.Sprintf("%d pages", pages)), nil
}

// CountPDFPages returns the number of pages in the PDF at path.
// The pdf reader panics on some malformed inputs; those become errors.
func CountPDFPages(path string) (pages int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	return r.NumPage(), nil
}
