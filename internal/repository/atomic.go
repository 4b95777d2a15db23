package repository

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// AtomicFile is a temp file that replaces its destination on Commit.
// Readers of the destination never observe a partially written file.
type AtomicFile struct {
	f       *os.File
	tmpPath string
	dstPath string
}

// CreateTemp opens a hidden temp file in the directory of dst, creating the directory if needed.
func CreateTemp(dst string) (*AtomicFile, error) {
	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrapf(err, "failed to create directory %s", dir)
	}

	f, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create temp file in %s", dir)
	}

	return &AtomicFile{f: f, tmpPath: f.Name(), dstPath: dst}, nil
}

func (a *AtomicFile) Write(p []byte) (int, error) {
	return a.f.Write(p)
}

// Commit syncs the temp file and renames it over the destination
func (a *AtomicFile) Commit() error {
	if err := a.f.Sync(); err != nil {
		a.Abort()
		return errors.Wrapf(err, "failed to sync file %s", a.tmpPath)
	}

	if err := a.f.Close(); err != nil {
		os.Remove(a.tmpPath)
		return errors.Wrapf(err, "failed to close file %s", a.tmpPath)
	}

	if err := os.Rename(a.tmpPath, a.dstPath); err != nil {
		os.Remove(a.tmpPath)
		return errors.Wrapf(err, "failed to rename %s to %s", a.tmpPath, a.dstPath)
	}

	return nil
}

// Abort discards the temp file. The destination is left untouched.
func (a *AtomicFile) Abort() error {
	a.f.Close()
	if err := os.Remove(a.tmpPath); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "failed to remove file %s", a.tmpPath)
	}
	return nil
}
