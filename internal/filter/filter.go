// Package filter decides which walked entries qualify for processing.
//
// Accepts is a pure function over a PathEntry and a FilterRule: it performs no
// I/O and only consults metadata cached on the entry. The walker prunes
// excluded directories before descending, so the ancestor check in Accepts is
// a second line of defense rather than the pruning mechanism.
package filter

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/harrison/filebatch/internal/models"
	gitignore "github.com/monochromegane/go-gitignore"
	"github.com/spf13/afero"
)

// Accepts reports whether entry qualifies for processing under rule.
func Accepts(entry models.PathEntry, rule models.FilterRule) bool {
	if entry.IsDir {
		return false
	}
	if entry.IsSymlink && !rule.FollowSymlinks {
		return false
	}

	for _, dir := range entry.AncestorDirs() {
		if DirExcluded(dir, rule) {
			return false
		}
	}

	if rule.ExcludeHidden && IsHidden(entry.Name()) {
		return false
	}

	suffix := strings.ToLower(entry.Suffix)
	if rule.ExcludeSuffixes[suffix] {
		return false
	}

	if rule.MinSize > 0 && entry.Size < rule.MinSize {
		return false
	}
	if rule.MaxSize > 0 && entry.Size > rule.MaxSize {
		return false
	}

	return len(rule.IncludeSuffixes) == 0 || rule.IncludeSuffixes[suffix]
}

// DirExcluded reports whether a directory with the given name must not be
// descended into.
func DirExcluded(name string, rule models.FilterRule) bool {
	if rule.ExcludeDirs[name] {
		return true
	}
	return rule.ExcludeHidden && IsHidden(name)
}

// IsHidden reports whether name is a dot-file or dot-directory.
func IsHidden(name string) bool {
	if name == "." || name == ".." {
		return false
	}
	return strings.HasPrefix(name, ".")
}

// Gitignore matches paths against the .gitignore found at a walk root.
// A nil *Gitignore ignores nothing.
type Gitignore struct {
	matcher gitignore.IgnoreMatcher
}

// LoadGitignore reads root/.gitignore from fsys. It returns (nil, nil) when the
// root has no .gitignore.
func LoadGitignore(fsys afero.Fs, root string) (*Gitignore, error) {
	path := filepath.Join(root, ".gitignore")
	f, err := fsys.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	return &Gitignore{matcher: gitignore.NewGitIgnoreFromReader(root, f)}, nil
}

// Ignored reports whether the absolute path is matched by the ignore rules.
func (g *Gitignore) Ignored(path string, isDir bool) bool {
	if g == nil || g.matcher == nil {
		return false
	}
	return g.matcher.Match(path, isDir)
}
