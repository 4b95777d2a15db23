package repository

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/varoOP/anidbkit/internal/domain"
)

const lockRetryDelay = 10 * time.Millisecond

// FileStore implements domain.Store with one file per key under a root directory
type FileStore struct {
	log  zerolog.Logger
	root string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewFileStore creates a file-backed store rooted at root. The directory is created if missing.
func NewFileStore(log zerolog.Logger, root string) (*FileStore, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, errors.Wrapf(err, "failed to create directory %s", root)
	}

	return &FileStore{
		log:   log.With().Str("module", "repository").Logger(),
		root:  root,
		locks: make(map[string]*sync.Mutex),
	}, nil
}

var _ domain.Store = (*FileStore)(nil)

// Root returns the directory holding the keys
func (s *FileStore) Root() string {
	return s.root
}

// Get reads the value stored for key
func (s *FileStore) Get(ctx context.Context, key string) ([]byte, error) {
	path, err := s.keyPath(key)
	if err != nil {
		return nil, err
	}

	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.ErrNotFound
		}
		return nil, errors.Wrapf(err, "failed to read file %s", path)
	}

	return b, nil
}

// Put writes value to a temp file and renames it over key
func (s *FileStore) Put(ctx context.Context, key string, value []byte) error {
	path, err := s.keyPath(key)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(s.root, 0755); err != nil {
		return errors.Wrapf(err, "failed to create directory %s", s.root)
	}

	if err := WriteFileAtomic(path, value); err != nil {
		return err
	}

	s.log.Trace().Str("key", key).Int("bytes", len(value)).Msg("stored value")
	return nil
}

// Update runs fn under an in-process mutex and an exclusive file lock on key
func (s *FileStore) Update(ctx context.Context, key string, fn domain.UpdateFunc) error {
	path, err := s.keyPath(key)
	if err != nil {
		return err
	}

	mu := s.keyLock(key)
	mu.Lock()
	defer mu.Unlock()

	if err := os.MkdirAll(s.root, 0755); err != nil {
		return errors.Wrapf(err, "failed to create directory %s", s.root)
	}

	fl := flock.New(filepath.Join(s.root, "."+key+".lock"))
	locked, err := fl.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return errors.Wrapf(err, "failed to lock %s", key)
	}
	if !locked {
		return errors.Errorf("failed to lock %s", key)
	}
	defer fl.Unlock()

	old, err := os.ReadFile(path)
	found := true
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return errors.Wrapf(err, "failed to read file %s", path)
		}
		old, found = nil, false
	}

	value, err := fn(old, found)
	if err != nil {
		return err
	}

	return WriteFileAtomic(path, value)
}

// Delete removes key. Missing keys are not an error.
func (s *FileStore) Delete(ctx context.Context, key string) error {
	path, err := s.keyPath(key)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return errors.Wrapf(err, "failed to remove file %s", path)
	}

	return nil
}

// Scan visits every regular, non-hidden file whose name starts with prefix
func (s *FileStore) Scan(ctx context.Context, prefix string, fn func(key string, value []byte) error) error {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return errors.Wrapf(err, "failed to read directory %s", s.root)
	}

	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasPrefix(name, prefix) {
			continue
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		b, err := os.ReadFile(filepath.Join(s.root, name))
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return errors.Wrapf(err, "failed to read file %s", name)
		}

		if err := fn(name, b); err != nil {
			return err
		}
	}

	return nil
}

// Close is a no-op for the file store
func (s *FileStore) Close() error {
	return nil
}

func (s *FileStore) keyLock(key string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	mu, ok := s.locks[key]
	if !ok {
		mu = &sync.Mutex{}
		s.locks[key] = mu
	}
	return mu
}

func (s *FileStore) keyPath(key string) (string, error) {
	if key == "" || strings.HasPrefix(key, ".") || strings.ContainsAny(key, `/\`) {
		return "", errors.Errorf("invalid key %q", key)
	}
	return filepath.Join(s.root, key), nil
}

// WriteFileAtomic writes data to a temp file next to path, syncs it and renames it into place,
// so path is either absent or complete.
func WriteFileAtomic(path string, data []byte) error {
	tmp, err := CreateTemp(path)
	if err != nil {
		return err
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Abort()
		return errors.Wrapf(err, "failed to write to file %s", path)
	}

	return tmp.Commit()
}
