// Package fileutil enumerates the files a batch run will process.
//
// The Walker yields a lazy, restartable sequence of models.PathEntry values
// under one or more roots, consulting the filter package for every entry.
//
// # Traversal
//
//   - Depth-first; sibling order follows afero.ReadDir (sorted by name) but
//     consumers must not rely on it.
//   - Excluded directories (by name, hidden when excluded, gitignored or past MaxDepth) are
//     pruned before they are opened, so nothing under them is ever stat'ed.
//   - Symlinks to directories are never descended into, which keeps cyclic
//     links such as "loop -> ." from recursing.
//   - Symlinks to files are yielded with IsSymlink set when the rule follows
//     symlinks.
//   - Unreadable directories and vanished entries are reported through
//     Walker.OnError as *TraversalError and skipped.
//
// # Usage
//
//	w := fileutil.NewWalker(afero.NewOsFs(), models.NewFilterRule(models.RuleOptions{
//	    Include:     []string{".css", ".js"},
//	    ExcludeDirs: []string{"node_modules", "__pycache__"},
//	}))
//	w.OnError = func(err error) { log.Printf("skipped: %v", err) }
//	for entry := range w.WalkRoots(ctx, []string{"./site"}) {
//	    fmt.Println(entry.Path)
//	}
//
// The filesystem is an afero.Fs so tests can run against afero.NewMemMapFs()
// or a wrapper that records which paths were touched.
package fileutil
