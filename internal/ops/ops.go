// Package ops holds the built-in per-file operations that filebatch can
// dispatch over a tree.
//
// Every operation is safe to call concurrently from the dispatcher's
// workers. Operations report expected outcomes (already converted, not
// empty, dry run) as Skipped results and reserve errors for genuine
// failures, which the dispatcher turns into Failure results.
package ops

import (
	"context"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/harrison/filebatch/internal/executor"
	"github.com/harrison/filebatch/internal/models"
)

// Options configures an operation. Fields irrelevant to an operation are ignored.
type Options struct {
	DryRun    bool   // Report what would change without touching the filesystem
	Overwrite bool   // Replace existing derived outputs
	Algo      string // hash: blake3, sha256 or md5
	Manifest  string // hash: file receiving "digest  path" lines
	Command   string // exec: command template
	OutExt    string // exec: extension of the derived output substituted for {out}
}

// Operation is a named per-file action.
type Operation interface {
	Name() string
	Description() string
	// DefaultInclude lists the suffixes processed when no --include is given.
	// Nil means every file.
	DefaultInclude() []string
	// Preflight validates options before traversal starts. Errors are
	// *executor.ConfigurationError.
	Preflight() error
	Apply(ctx context.Context, entry models.PathEntry) (models.TaskResult, error)
}

// Reporter is implemented by operations that print a report after the run.
type Reporter interface {
	Report(w io.Writer) error
}

type constructor func(Options) Operation

var registry = map[string]constructor{
	"list":     func(o Options) Operation { return newList(o) },
	"hash":     func(o Options) Operation { return newHash(o) },
	"rmempty":  func(o Options) Operation { return newRmEmpty(o) },
	"trim":     func(o Options) Operation { return newTrim(o) },
	"md2html":  func(o Options) Operation { return newMarkdown(o) },
	"pdfpages": func(o Options) Operation { return newPDFPages(o) },
	"exec":     func(o Options) Operation { return newExec(o) },
}

// Names returns the registered operation names in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// All returns one instance of every operation with zero options, sorted by name.
func All() []Operation {
	all := make([]Operation, 0, len(registry))
	for _, name := range Names() {
		all = append(all, registry[name](Options{}))
	}
	return all
}

// Lookup builds the named operation. Unknown names are a configuration error.
func Lookup(name string, opts Options) (Operation, error) {
	build, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, executor.NewConfigurationError("op", "unknown operation %q (available: %s)",
			name, strings.Join(Names(), ", "))
	}
	return build(opts), nil
}

// derivedPath replaces the extension of path with ext.
func derivedPath(path, ext string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ext
}
