// Package filelock rewrites files atomically and serialises appends to files
// shared by concurrent workers or processes.
package filelock

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// retryDelay is how often Acquire polls a lock held elsewhere.
const retryDelay = 25 * time.Millisecond

// Acquire takes an exclusive flock on lockPath, giving up when ctx is done.
// The returned function releases it.
func Acquire(ctx context.Context, lockPath string) (release func() error, err error) {
	fl := flock.New(lockPath)

	locked, err := fl.TryLockContext(ctx, retryDelay)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock on %s: %w", lockPath, err)
	}
	if !locked {
		return nil, fmt.Errorf("failed to acquire lock on %s", lockPath)
	}

	return func() error {
		if err := fl.Unlock(); err != nil {
			return fmt.Errorf("failed to release lock on %s: %w", lockPath, err)
		}
		return nil
	}, nil
}

// AtomicWrite replaces path with data through a temp file in the same
// directory and a rename, so readers see either the old or the new content.
// The result carries perm; pass the original file's mode to preserve it.
func AtomicWrite(path string, data []byte, perm os.FileMode) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err = os.Chmod(tmpPath, perm.Perm()); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err = os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file to %s: %w", path, err)
	}
	return nil
}

// LockAndAppend appends data to path while holding path+".lock", so lines
// written by concurrent goroutines or processes never interleave.
func LockAndAppend(ctx context.Context, path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}

	release, err := Acquire(ctx, path+".lock")
	if err != nil {
		return err
	}
	defer release()

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("failed to append to %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	return nil
}
