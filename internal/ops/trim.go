package ops

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/harrison/filebatch/internal/filelock"
	"github.com/harrison/filebatch/internal/models"
)

// ReasonBinary marks files that look binary and are left untouched.
const ReasonBinary = "binary"

// binarySniffLen is how much of a file is checked for NUL bytes.
const binarySniffLen = 8000

type trimOp struct {
	dryRun bool
}

func newTrim(o Options) *trimOp { return &trimOp{dryRun: o.DryRun} }

func (o *trimOp) Name() string        { return "trim" }
func (o *trimOp) Description() string { return "Strip trailing whitespace from every line" }
func (o *trimOp) DefaultInclude() []string {
	return []string{".txt", ".md", ".go", ".py", ".js", ".ts", ".css", ".html", ".json", ".yaml", ".yml", ".sh", ".toml"}
}
func (o *trimOp) Preflight() error { return nil }

func (o *trimOp) Apply(_ context.Context, entry models.PathEntry) (models.TaskResult, error) {
	info, err := os.Stat(entry.Path)
	if err != nil {
		return models.TaskResult{}, err
	}
	data, err := os.ReadFile(entry.Path)
	if err != nil {
		return models.TaskResult{}, err
	}

	if looksBinary(data) {
		return models.Skipped(entry, ReasonBinary), nil
	}

	trimmed := TrimTrailingWhitespace(data)
	if bytes.Equal(trimmed, data) {
		return models.Skipped(entry, models.ReasonUnchanged), nil
	}

	before, after := int64(len(data)), int64(len(trimmed))
	if o.dryRun {
		return models.Skipped(entry, models.ReasonDryRun).
			WithDetail(fmt.Sprintf("would remove %d bytes", before-after)), nil
	}

	// Rewrite the link target, not the link.
	target := entry.Path
	if entry.IsSymlink {
		if target, err = filepath.EvalSymlinks(entry.Path); err != nil {
			return models.TaskResult{}, err
		}
	}

	if err := filelock.AtomicWrite(target, trimmed, info.Mode()); err != nil {
		return models.TaskResult{}, err
	}
	return models.Success(entry, before, after), nil
}

// TrimTrailingWhitespace removes spaces and tabs at the end of every line.
// Line endings, including CRLF, are kept as they are.
func TrimTrailingWhitespace(data []byte) []byte {
	out := make([]byte, 0, len(data))
	for len(data) > 0 {
		line := data
		var eol []byte
		if i := bytes.IndexByte(data, '\n'); i >= 0 {
			line, eol, data = data[:i], data[i:i+1], data[i+1:]
		} else {
			data = nil
		}

		cr := bytes.HasSuffix(line, []byte("\r"))
		if cr {
			line = line[:len(line)-1]
		}
		out = append(out, bytes.TrimRight(line, " \t")...)
		if cr {
			out = append(out, '\r')
		}
		out = append(out, eol...)
	}
	return out
}

func looksBinary(data []byte) bool {
	if len(data) > binarySniffLen {
		data = data[:binarySniffLen]
	}
	return bytes.IndexByte(data, 0) >= 0
}
