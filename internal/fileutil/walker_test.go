package fileutil

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/harrison/filebatch/internal/models"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingFs records every path opened or stat'ed through it
type recordingFs struct {
	afero.Fs
	mu      sync.Mutex
	touched []string
}

func (r *recordingFs) record(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.touched = append(r.touched, filepath.ToSlash(name))
}

func (r *recordingFs) Open(name string) (afero.File, error) {
	r.record(name)
	return r.Fs.Open(name)
}

func (r *recordingFs) Stat(name string) (os.FileInfo, error) {
	r.record(name)
	return r.Fs.Stat(name)
}

func (r *recordingFs) touchedUnder(prefix string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var hits []string
	for _, p := range r.touched {
		if p == prefix || strings.HasPrefix(p, prefix+"/") {
			hits = append(hits, p)
		}
	}
	return hits
}

// deniedFs fails to open one directory with a permission error
type deniedFs struct {
	afero.Fs
	denied string
}

func (d *deniedFs) Open(name string) (afero.File, error) {
	if name == d.denied {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrPermission}
	}
	return d.Fs.Open(name)
}

func writeTree(t *testing.T, fsys afero.Fs, root string, files []string) {
	t.Helper()
	for _, f := range files {
		path := filepath.Join(root, f)
		require.NoError(t, fsys.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, afero.WriteFile(fsys, path, []byte("test content"), 0644))
	}
}

func relPaths(entries []models.PathEntry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.RelPath)
	}
	sort.Strings(out)
	return out
}

func TestWalkExcludesDirectoriesAndSuffixes(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeTree(t, fsys, "/root", []string{
		"a.txt",
		"b.log",
		"sub/c.txt",
		"sub/__pycache__/d.pyc",
	})

	rule := models.NewFilterRule(models.RuleOptions{
		Exclude:     []string{".log"},
		ExcludeDirs: []string{"__pycache__"},
	})
	w := NewWalker(fsys, rule)

	got := slices.Collect(w.Walk(context.Background(), "/root"))
	assert.Equal(t, []string{"a.txt", "sub/c.txt"}, relPaths(got))
}

func TestWalkYieldsEveryAcceptedFileOnce(t *testing.T) {
	fsys := afero.NewMemMapFs()
	var files []string
	for i := 0; i < 5; i++ {
		for j := 0; j < 20; j++ {
			files = append(files, filepath.Join("d"+string(rune('a'+i)), "f"+string(rune('a'+j))+".md"))
		}
	}
	writeTree(t, fsys, "/root", files)

	w := NewWalker(fsys, models.NewFilterRule(models.RuleOptions{Include: []string{"md"}}))
	got := slices.Collect(w.Walk(context.Background(), "/root"))

	require.Len(t, got, len(files))
	seen := make(map[string]int)
	for _, e := range got {
		seen[e.Path]++
	}
	for path, n := range seen {
		assert.Equal(t, 1, n, "path %s yielded %d times", path, n)
	}
}

func TestWalkNeverTouchesExcludedSubtree(t *testing.T) {
	base := afero.NewMemMapFs()
	writeTree(t, base, "/root", []string{
		"keep.txt",
		"vendor/huge/a.txt",
		"vendor/huge/b.txt",
		"src/vendor/c.txt",
		"src/main.txt",
	})
	fsys := &recordingFs{Fs: base}

	w := NewWalker(fsys, models.NewFilterRule(models.RuleOptions{ExcludeDirs: []string{"vendor"}}))
	got := slices.Collect(w.Walk(context.Background(), "/root"))

	assert.Equal(t, []string{"keep.txt", "src/main.txt"}, relPaths(got))
	assert.Empty(t, fsys.touchedUnder("/root/vendor"), "excluded directory must not be opened")
	assert.Empty(t, fsys.touchedUnder("/root/src/vendor"), "nested excluded directory must not be opened")
}

func TestWalkIsRestartable(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeTree(t, fsys, "/root", []string{"a.go", "b/c.go", "b/d/e.go"})

	w := NewWalker(fsys, models.NewFilterRule(models.RuleOptions{}))
	seq := w.Walk(context.Background(), "/root")

	first := relPaths(slices.Collect(seq))
	second := relPaths(slices.Collect(seq))
	assert.Equal(t, first, second)
	assert.Len(t, first, 3)
}

func TestWalkContinuesPastUnreadableDirectory(t *testing.T) {
	base := afero.NewMemMapFs()
	writeTree(t, base, "/root", []string{"a.txt", "locked/secret.txt", "open/b.txt"})
	fsys := &deniedFs{Fs: base, denied: "/root/locked"}

	var errs []error
	w := NewWalker(fsys, models.NewFilterRule(models.RuleOptions{}))
	w.OnError = func(err error) { errs = append(errs, err) }

	got := slices.Collect(w.Walk(context.Background(), "/root"))

	assert.Equal(t, []string{"a.txt", "open/b.txt"}, relPaths(got))
	require.Len(t, errs, 1)
	var terr *TraversalError
	require.True(t, errors.As(errs[0], &terr))
	assert.Equal(t, "/root/locked", terr.Path)
	assert.Equal(t, "readdir", terr.Op)
	assert.True(t, errors.Is(errs[0], fs.ErrPermission))
}

func TestWalkMissingRootReportsError(t *testing.T) {
	var errs []error
	w := NewWalker(afero.NewMemMapFs(), models.NewFilterRule(models.RuleOptions{}))
	w.OnError = func(err error) { errs = append(errs, err) }

	got := slices.Collect(w.Walk(context.Background(), "/nope"))
	assert.Empty(t, got)
	assert.Len(t, errs, 1)
}

func TestWalkMaxDepth(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeTree(t, fsys, "/root", []string{"top.txt", "one/mid.txt", "one/two/deep.txt"})

	tests := []struct {
		name     string
		maxDepth int
		want     []string
	}{
		{"unlimited", 0, []string{"one/mid.txt", "one/two/deep.txt", "top.txt"}},
		{"root only", 1, []string{"top.txt"}},
		{"two levels", 2, []string{"one/mid.txt", "top.txt"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := NewWalker(fsys, models.NewFilterRule(models.RuleOptions{MaxDepth: tt.maxDepth}))
			got := slices.Collect(w.Walk(context.Background(), "/root"))
			assert.Equal(t, tt.want, relPaths(got))
		})
	}
}

func TestWalkHiddenAndGitignore(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeTree(t, fsys, "/root", []string{
		"main.go",
		"debug.log",
		".git/HEAD",
		"build/out.bin",
	})
	require.NoError(t, afero.WriteFile(fsys, "/root/.gitignore", []byte("*.log\nbuild\n"), 0644))

	w := NewWalker(fsys, models.NewFilterRule(models.RuleOptions{RespectGitignore: true, ExcludeHidden: true}))
	got := slices.Collect(w.Walk(context.Background(), "/root"))
	assert.Equal(t, []string{"main.go"}, relPaths(got))

	w = NewWalker(fsys, models.NewFilterRule(models.RuleOptions{}))
	got = slices.Collect(w.Walk(context.Background(), "/root"))
	assert.Equal(t, []string{".git/HEAD", ".gitignore", "build/out.bin", "debug.log", "main.go"}, relPaths(got))
}

func TestWalkYieldsDotFilesUnderEmptyRule(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeTree(t, fsys, "/r", []string{".env", ".config/app.txt", "a.txt"})

	w := NewWalker(fsys, models.NewFilterRule(models.RuleOptions{}))
	got := slices.Collect(w.Walk(context.Background(), "/r"))
	assert.Equal(t, []string{".config/app.txt", ".env", "a.txt"}, relPaths(got))

	w = NewWalker(fsys, models.NewFilterRule(models.RuleOptions{ExcludeHidden: true}))
	got = slices.Collect(w.Walk(context.Background(), "/r"))
	assert.Equal(t, []string{"a.txt"}, relPaths(got))
}

func TestWalkStopsWhenConsumerBreaks(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeTree(t, fsys, "/root", []string{"a/1.txt", "a/2.txt", "b/3.txt", "c/4.txt"})

	w := NewWalker(fsys, models.NewFilterRule(models.RuleOptions{}))
	count := 0
	for range w.Walk(context.Background(), "/root") {
		count++
		if count == 2 {
			break
		}
	}
	assert.Equal(t, 2, count)
}

func TestWalkStopsOnCancelledContext(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeTree(t, fsys, "/root", []string{"a.txt", "b.txt"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	w := NewWalker(fsys, models.NewFilterRule(models.RuleOptions{}))
	assert.Empty(t, slices.Collect(w.Walk(ctx, "/root")))
}

func TestWalkRootsDropsNestedRoots(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeTree(t, fsys, "/root", []string{"a.txt", "sub/b.txt", "sub/deeper/c.txt"})
	writeTree(t, fsys, "/other", []string{"d.txt"})

	w := NewWalker(fsys, models.NewFilterRule(models.RuleOptions{}))
	got := slices.Collect(w.WalkRoots(context.Background(), []string{"/root/sub", "/root", "/other", "/root"}))

	var paths []string
	for _, e := range got {
		paths = append(paths, e.Path)
	}
	sort.Strings(paths)
	assert.Equal(t, []string{"/other/d.txt", "/root/a.txt", "/root/sub/b.txt", "/root/sub/deeper/c.txt"}, paths)
}

func TestWalkFileRoot(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeTree(t, fsys, "/root", []string{"single.md", "other.txt"})

	w := NewWalker(fsys, models.NewFilterRule(models.RuleOptions{Include: []string{".md"}}))
	got := slices.Collect(w.WalkRoots(context.Background(), []string{"/root/single.md", "/root/other.txt"}))

	require.Len(t, got, 1)
	assert.Equal(t, "/root/single.md", got[0].Path)
	assert.Equal(t, "single.md", got[0].RelPath)
}

func TestWalkSelfReferentialSymlink(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "real.txt"), []byte("x"), 0644))
	if err := os.Symlink(".", filepath.Join(root, "loop")); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}
	require.NoError(t, os.Symlink("real.txt", filepath.Join(root, "alias.txt")))

	for _, follow := range []bool{false, true} {
		w := NewWalker(afero.NewOsFs(), models.NewFilterRule(models.RuleOptions{FollowSymlinks: follow}))
		got := slices.Collect(w.Walk(context.Background(), root))

		names := relPaths(got)
		assert.NotContains(t, names, "loop")
		for _, n := range names {
			assert.False(t, strings.HasPrefix(n, "loop/"), "walker descended into symlinked directory: %s", n)
		}

		if follow {
			assert.Equal(t, []string{"alias.txt", "real.txt"}, names)
			for _, e := range got {
				if e.RelPath == "alias.txt" {
					assert.True(t, e.IsSymlink)
					assert.Equal(t, int64(1), e.Size)
				}
			}
		} else {
			assert.Equal(t, []string{"real.txt"}, names)
		}
	}
}
