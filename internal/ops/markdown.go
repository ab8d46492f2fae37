package ops

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"os"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/harrison/filebatch/internal/filelock"
	"github.com/harrison/filebatch/internal/models"
)

const htmlTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>%s</title>
</head>
<body>
%s</body>
</html>
`

type markdownOp struct {
	dryRun    bool
	overwrite bool
	markdown  goldmark.Markdown
}

func newMarkdown(o Options) *markdownOp {
	return &markdownOp{
		dryRun:    o.DryRun,
		overwrite: o.Overwrite,
		markdown:  goldmark.New(goldmark.WithExtensions(extension.GFM)),
	}
}

func (o *markdownOp) Name() string             { return "md2html" }
func (o *markdownOp) Description() string      { return "Render Markdown files to sibling .html files" }
func (o *markdownOp) DefaultInclude() []string { return []string{".md", ".markdown"} }
func (o *markdownOp) Preflight() error         { return nil }

func (o *markdownOp) Apply(_ context.Context, entry models.PathEntry) (models.TaskResult, error) {
	target := derivedPath(entry.Path, ".html")

	if !o.overwrite {
		if _, err := os.Stat(target); err == nil {
			return models.Skipped(entry, models.ReasonTargetExists).WithDetail(target), nil
		}
	}

	source, err := os.ReadFile(entry.Path)
	if err != nil {
		return models.TaskResult{}, err
	}

	var body bytes.Buffer
	if err := o.markdown.Convert(source, &body); err != nil {
		return models.TaskResult{}, fmt.Errorf("render markdown: %w", err)
	}

	if o.dryRun {
		return models.Skipped(entry, models.ReasonDryRun).WithDetail(target), nil
	}

	page := fmt.Sprintf(htmlTemplate, html.EscapeString(entry.Stem()), body.String())
	if err := filelock.AtomicWrite(target, []byte(page), 0644); err != nil {
		return models.TaskResult{}, err
	}

	size := int64(len(source))
	return models.Success(entry, size, size).WithDetail(target), nil
}
