package fileutil

import (
	"context"
	"fmt"
	"io/fs"
	"iter"
	"path/filepath"
	"sort"
	"strings"

	"github.com/harrison/filebatch/internal/filter"
	"github.com/harrison/filebatch/internal/models"
	"github.com/spf13/afero"
)

// TraversalError describes a directory or entry the walker could not read.
// Traversal errors are reported and skipped; they never abort a walk.
type TraversalError struct {
	Path string // Path that failed
	Op   string // "readdir", "stat", "abs" or "gitignore"
	Err  error  // Underlying error
}

// Error implements the error interface for TraversalError.
func (e *TraversalError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *TraversalError) Unwrap() error {
	return e.Err
}

// Walker enumerates qualifying files under one or more roots.
type Walker struct {
	fs   afero.Fs
	rule models.FilterRule

	// OnError receives every *TraversalError. Nil discards them.
	OnError func(err error)
}

// NewWalker creates a Walker over fsys using rule. A nil fsys walks the OS filesystem.
func NewWalker(fsys afero.Fs, rule models.FilterRule) *Walker {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	return &Walker{fs: fsys, rule: rule}
}

// Stat returns file info for path on the walker's filesystem.
func (w *Walker) Stat(path string) (fs.FileInfo, error) {
	return w.fs.Stat(path)
}

// Walk returns a lazy sequence of accepted entries under root. Every call
// re-reads the filesystem. A root that is a regular file is yielded on its own
// if accepted. Excluded directories are pruned before they are opened and
// symlinked directories are never descended into.
func (w *Walker) Walk(ctx context.Context, root string) iter.Seq[models.PathEntry] {
	return func(yield func(models.PathEntry) bool) {
		w.walkRoot(ctx, root, yield)
	}
}

// WalkRoots walks several roots in order. Roots nested inside another root are
// dropped so no file is yielded twice in one run.
func (w *Walker) WalkRoots(ctx context.Context, roots []string) iter.Seq[models.PathEntry] {
	return func(yield func(models.PathEntry) bool) {
		for _, root := range w.dedupeRoots(roots) {
			if !w.walkRoot(ctx, root, yield) {
				return
			}
		}
	}
}

func (w *Walker) walkRoot(ctx context.Context, root string, yield func(models.PathEntry) bool) bool {
	if ctx.Err() != nil {
		return false
	}

	// Explicit roots are resolved even when they are symlinks
	info, err := w.fs.Stat(root)
	if err != nil {
		w.report(&TraversalError{Path: root, Op: "stat", Err: err})
		return true
	}

	if !info.IsDir() {
		lst := w.lstat(root, info)
		var target fs.FileInfo
		if lst.Mode()&fs.ModeSymlink != 0 {
			target = info
		}
		entry := models.NewPathEntry(filepath.Dir(root), root, lst, target)
		if !filter.Accepts(entry, w.rule) {
			return true
		}
		return yield(entry)
	}

	var ignore *filter.Gitignore
	if w.rule.RespectGitignore {
		ignore, err = filter.LoadGitignore(w.fs, root)
		if err != nil {
			w.report(&TraversalError{Path: root, Op: "gitignore", Err: err})
		}
	}

	return w.walkDir(ctx, root, root, 0, ignore, yield)
}

// walkDir visits one directory depth-first. It returns false once the consumer
// stops the iteration or the context is done.
func (w *Walker) walkDir(ctx context.Context, root, dir string, depth int, ignore *filter.Gitignore, yield func(models.PathEntry) bool) bool {
	if ctx.Err() != nil {
		return false
	}

	infos, err := afero.ReadDir(w.fs, dir)
	if err != nil {
		w.report(&TraversalError{Path: dir, Op: "readdir", Err: err})
		return true
	}

	for _, info := range infos {
		if ctx.Err() != nil {
			return false
		}

		path := filepath.Join(dir, info.Name())

		if info.IsDir() {
			if filter.DirExcluded(info.Name(), w.rule) || ignore.Ignored(path, true) {
				continue
			}
			if w.rule.MaxDepth > 0 && depth+1 >= w.rule.MaxDepth {
				continue
			}
			if !w.walkDir(ctx, root, path, depth+1, ignore, yield) {
				return false
			}
			continue
		}

		var target fs.FileInfo
		switch {
		case info.Mode()&fs.ModeSymlink != 0:
			if !w.rule.FollowSymlinks {
				continue
			}
			target, err = w.fs.Stat(path)
			if err != nil {
				w.report(&TraversalError{Path: path, Op: "stat", Err: err})
				continue
			}
			if target.IsDir() {
				continue
			}
		case !info.Mode().IsRegular():
			// Devices, sockets and pipes
			continue
		}

		if ignore.Ignored(path, false) {
			continue
		}

		entry := models.NewPathEntry(root, path, info, target)
		if !filter.Accepts(entry, w.rule) {
			continue
		}
		if !yield(entry) {
			return false
		}
	}

	return true
}

// lstat returns the link's own info when the filesystem supports it, falling
// back to the already resolved info.
func (w *Walker) lstat(path string, resolved fs.FileInfo) fs.FileInfo {
	if lstater, ok := w.fs.(afero.Lstater); ok {
		if info, _, err := lstater.LstatIfPossible(path); err == nil {
			return info
		}
	}
	return resolved
}

func (w *Walker) dedupeRoots(roots []string) []string {
	abs := make([]string, 0, len(roots))
	for _, root := range roots {
		p, err := filepath.Abs(root)
		if err != nil {
			w.report(&TraversalError{Path: root, Op: "abs", Err: err})
			continue
		}
		abs = append(abs, p)
	}

	// Shortest first so parents are kept before their children
	ordered := make([]string, len(abs))
	copy(ordered, abs)
	sort.SliceStable(ordered, func(i, j int) bool { return len(ordered[i]) < len(ordered[j]) })

	var kept []string
	for _, candidate := range ordered {
		if !coveredBy(candidate, kept) {
			kept = append(kept, candidate)
		}
	}

	// Preserve the caller's order among kept roots
	keep := make(map[string]bool, len(kept))
	for _, k := range kept {
		keep[k] = true
	}
	result := make([]string, 0, len(kept))
	for _, p := range abs {
		if keep[p] {
			result = append(result, p)
			delete(keep, p)
		}
	}
	return result
}

func coveredBy(path string, roots []string) bool {
	for _, root := range roots {
		if path == root {
			return true
		}
		prefix := root
		if !strings.HasSuffix(prefix, string(filepath.Separator)) {
			prefix += string(filepath.Separator)
		}
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func (w *Walker) report(err error) {
	if w.OnError != nil {
		w.OnError(err)
	}
}
