package core

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/valter-silva-au/spec-workflow/pkg/models"
)

const (
	defaultWriteAttempts  = 3
	defaultInitialBackoff = 100 * time.Millisecond
	maxWriteBackoff       = 2 * time.Second
)

// FileWriter writes whole files atomically and retries transient failures
// with capped exponential backoff. Permission errors are returned at once.
type FileWriter struct {
	maxAttempts    uint
	initialBackoff time.Duration

	// write performs a single attempt. Replaced in tests.
	write func(path string, data []byte, perm os.FileMode) error
}

// NewFileWriter creates a FileWriter from the write settings. Zero values fall
// back to 3 attempts starting at 100ms.
func NewFileWriter(cfg models.WriteConfig) *FileWriter {
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = defaultWriteAttempts
	}
	initial := cfg.InitialBackoff
	if initial <= 0 {
		initial = defaultInitialBackoff
	}
	return &FileWriter{
		maxAttempts:    uint(attempts),
		initialBackoff: initial,
		write:          writeAtomic,
	}
}

// WriteFile replaces path with data. Readers observe either the old or the
// new content, never a partial write.
func (w *FileWriter) WriteFile(ctx context.Context, path string, data []byte, perm os.FileMode) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = w.initialBackoff
	b.MaxInterval = maxWriteBackoff

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		if err := w.write(path, data, perm); err != nil {
			if errors.Is(err, fs.ErrPermission) {
				return struct{}{}, backoff.Permanent(err)
			}
			return struct{}{}, err
		}
		return struct{}{}, nil
	}, backoff.WithBackOff(b), backoff.WithMaxTries(w.maxAttempts))
	if err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// writeAtomic writes to a temp file in the target directory, syncs it and
// renames it over the target. An existing target keeps its permission bits,
// and a symlinked target is replaced at the file it points to.
func writeAtomic(path string, data []byte, perm os.FileMode) error {
	target, mode, err := resolveWriteTarget(path, perm)
	if err != nil {
		return err
	}

	dir := filepath.Dir(target)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(target)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Chmod(tmpName, mode); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmpName, target); err != nil {
		cleanup()
		return err
	}
	return nil
}

// resolveWriteTarget follows symlinks at path and returns the file to replace
// with the mode it should end up with. A missing target gets perm.
func resolveWriteTarget(path string, perm os.FileMode) (string, os.FileMode, error) {
	target := path
	info, err := os.Lstat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return target, perm, nil
	case err != nil:
		return "", 0, err
	}

	if info.Mode()&os.ModeSymlink != 0 {
		resolved, err := filepath.EvalSymlinks(path)
		if errors.Is(err, fs.ErrNotExist) {
			// Dangling link: create the file it names.
			dest, rerr := os.Readlink(path)
			if rerr != nil {
				return "", 0, rerr
			}
			if !filepath.IsAbs(dest) {
				dest = filepath.Join(filepath.Dir(path), dest)
			}
			return dest, perm, nil
		}
		if err != nil {
			return "", 0, err
		}
		target = resolved
		if info, err = os.Stat(target); err != nil {
			return "", 0, err
		}
	}
	if !info.Mode().IsRegular() {
		return "", 0, fmt.Errorf("%s is not a regular file", path)
	}
	return target, info.Mode().Perm(), nil
}
