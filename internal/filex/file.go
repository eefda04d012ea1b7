// Package filex holds small filesystem helpers shared by the storage media.
package filex

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// EnsureDir creates dir (and parents) if needed and returns its absolute path.
func EnsureDir(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("abs %s: %w", dir, err)
	}

	if err := os.MkdirAll(abs, 0o770); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", abs, err)
	}

	return abs, nil
}

// NonEmpty reports whether path is a regular file with at least one byte.
func NonEmpty(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.Mode().IsRegular() && fi.Size() > 0
}

// WriteAtomic streams r into a temp file next to path and renames it into
// place, so path is either absent or complete.
func WriteAtomic(path string, r io.Reader) (int64, error) {
	dir, err := EnsureDir(filepath.Dir(path))
	if err != nil {
		return 0, err
	}

	tmp, err := os.CreateTemp(dir, ".part-*")
	if err != nil {
		return 0, fmt.Errorf("create temp: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, r)
	if err != nil {
		_ = tmp.Close()
		return n, fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return n, fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return n, fmt.Errorf("rename %s: %w", path, err)
	}
	return n, nil
}

// Spool copies r into an anonymous temp file and rewinds it. The caller
// closes the file; it is already unlinked where the OS allows.
func Spool(r io.Reader) (*os.File, int64, error) {
	f, err := os.CreateTemp("", "zdbackup-spool-*")
	if err != nil {
		return nil, 0, fmt.Errorf("create spool: %w", err)
	}
	_ = os.Remove(f.Name())

	n, err := io.Copy(f, r)
	if err != nil {
		_ = f.Close()
		return nil, n, fmt.Errorf("spool: %w", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		_ = f.Close()
		return nil, n, fmt.Errorf("rewind spool: %w", err)
	}
	return f, n, nil
}
