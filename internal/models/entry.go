package models

import (
	"io/fs"
	"path/filepath"
	"strings"
	"time"
)

// PathEntry is a filesystem path yielded by the walker together with the
// metadata cached at enumeration time. It is a value type and is never
// modified after it has been yielded.
type PathEntry struct {
	Path      string    // Absolute path
	Root      string    // Root the entry was found under
	RelPath   string    // Path relative to Root (slash separated)
	IsSymlink bool      // Entry itself is a symbolic link
	IsDir     bool      // Entry resolves to a directory
	Size      int64     // Size in bytes (of the link target for symlinks)
	Suffix    string    // Lowercased extension including the dot, "" if none
	ModTime   time.Time // Modification time
}

// NewPathEntry builds a PathEntry from the entry's path, its root and file info.
// When target is non-nil (symlinks), size and directory flags come from the target.
func NewPathEntry(root, path string, info fs.FileInfo, target fs.FileInfo) PathEntry {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." {
		rel = filepath.Base(path)
	}

	entry := PathEntry{
		Path:      path,
		Root:      root,
		RelPath:   filepath.ToSlash(rel),
		IsSymlink: info.Mode()&fs.ModeSymlink != 0,
		IsDir:     info.IsDir(),
		Size:      info.Size(),
		Suffix:    SuffixOf(path),
		ModTime:   info.ModTime(),
	}

	if target != nil {
		entry.IsDir = target.IsDir()
		entry.Size = target.Size()
		entry.ModTime = target.ModTime()
	}

	return entry
}

// Name returns the base name of the entry.
func (e PathEntry) Name() string {
	return filepath.Base(e.Path)
}

// Stem returns the base name without its extension.
func (e PathEntry) Stem() string {
	name := e.Name()
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// AncestorDirs returns the directory names between Root and the entry,
// outermost first. The entry's own name is not included.
func (e PathEntry) AncestorDirs() []string {
	parts := strings.Split(e.RelPath, "/")
	if len(parts) <= 1 {
		return nil
	}
	return parts[:len(parts)-1]
}

// SuffixOf returns the lowercased extension of path including the leading dot.
func SuffixOf(path string) string {
	return strings.ToLower(filepath.Ext(path))
}
