package repository

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/varoOP/anidbkit/internal/domain"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	s, err := NewFileStore(zerolog.Nop(), filepath.Join(t.TempDir(), "cache"))
	require.NoError(t, err)
	return s
}

func TestFileStoreGetPutDelete(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.Get(ctx, "missing")
	require.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, s.Put(ctx, "abc", []byte("hello")))
	got, err := s.Get(ctx, "abc")
	require.NoError(t, err)
	require.Equal(t, "hello", string(got))

	require.NoError(t, s.Put(ctx, "abc", []byte("world")))
	got, err = s.Get(ctx, "abc")
	require.NoError(t, err)
	require.Equal(t, "world", string(got))

	require.NoError(t, s.Delete(ctx, "abc"))
	require.NoError(t, s.Delete(ctx, "abc"))
	_, err = s.Get(ctx, "abc")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestFileStoreRejectsInvalidKeys(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for _, key := range []string{"", ".hidden", "a/b", `a\b`, "../escape"} {
		require.Error(t, s.Put(ctx, key, []byte("x")), key)
	}
}

func TestFileStorePutLeavesNoTempFiles(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Put(ctx, "k", []byte("v")))

	entries, err := os.ReadDir(s.Root())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "k", entries[0].Name())
}

func TestFileStoreScan(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Put(ctx, "resp-1", []byte("a")))
	require.NoError(t, s.Put(ctx, "resp-2", []byte("b")))
	require.NoError(t, s.Put(ctx, "other", []byte("c")))
	require.NoError(t, os.MkdirAll(filepath.Join(s.Root(), "2024.3.7"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(s.Root(), ".resp-lock"), nil, 0644))

	seen := map[string]string{}
	err := s.Scan(ctx, "resp-", func(key string, value []byte) error {
		seen[key] = string(value)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, map[string]string{"resp-1": "a", "resp-2": "b"}, seen)

	all := 0
	require.NoError(t, s.Scan(ctx, "", func(string, []byte) error {
		all++
		return nil
	}))
	require.Equal(t, 3, all)
}

func TestFileStoreUpdateSerializes(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.Update(ctx, "counter", func(old []byte, found bool) ([]byte, error) {
				v := 0
				if found {
					var err error
					v, err = strconv.Atoi(string(old))
					if err != nil {
						return nil, err
					}
				}
				return []byte(strconv.Itoa(v + 1)), nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := s.Get(ctx, "counter")
	require.NoError(t, err)
	require.Equal(t, strconv.Itoa(n), string(got))
}

func TestFileStoreUpdateErrorKeepsOldValue(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Put(ctx, "k", []byte("old")))
	err := s.Update(ctx, "k", func(old []byte, found bool) ([]byte, error) {
		require.True(t, found)
		require.Equal(t, "old", string(old))
		return nil, domain.ErrMalformedDocument
	})
	require.ErrorIs(t, err, domain.ErrMalformedDocument)

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, "old", string(got))
}
