package cache

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/varoOP/anidbkit/internal/database"
	"github.com/varoOP/anidbkit/internal/domain"
	"github.com/varoOP/anidbkit/internal/httpcache"
	"github.com/varoOP/anidbkit/internal/ratelimit"
	"github.com/varoOP/anidbkit/internal/repository"
)

func TestMigrateStoreFileToSQLite(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	src, err := repository.NewFileStore(zerolog.Nop(), dir)
	require.NoError(t, err)

	db, err := database.NewDB(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)
	dst := database.NewStoreRepo(zerolog.Nop(), db)
	t.Cleanup(func() { dst.Close() })

	keyA := httpcache.Key("http://api.anidb.net:9001/httpapi?request=anime&aid=1")
	keyB := httpcache.Key("http://api.anidb.net:9001/httpapi?request=anime&aid=2")
	require.NoError(t, src.Put(ctx, keyA, []byte(`{"status":200}`)))
	require.NoError(t, src.Put(ctx, keyB, []byte(`{"status":200,"body":"b"}`)))
	require.NoError(t, src.Put(ctx, ratelimit.StateKey, []byte(`{"1700000000000":1}`)))
	require.NoError(t, src.Put(ctx, "notes.txt", []byte("unrelated")))

	res, err := MigrateStore(ctx, src, dst, zerolog.Nop())
	require.NoError(t, err)
	require.Equal(t, &MigrateResult{Responses: 2, RateLimit: true, Skipped: 1}, res)

	got, err := dst.Get(ctx, keyB)
	require.NoError(t, err)
	require.Equal(t, `{"status":200,"body":"b"}`, string(got))

	got, err = dst.Get(ctx, ratelimit.StateKey)
	require.NoError(t, err)
	require.Equal(t, `{"1700000000000":1}`, string(got))

	_, err = dst.Get(ctx, "notes.txt")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMigrateStoreEmpty(t *testing.T) {
	ctx := context.Background()

	src, err := repository.NewFileStore(zerolog.Nop(), t.TempDir())
	require.NoError(t, err)
	dst, err := repository.NewFileStore(zerolog.Nop(), t.TempDir())
	require.NoError(t, err)

	res, err := MigrateStore(ctx, src, dst, zerolog.Nop())
	require.NoError(t, err)
	require.Equal(t, &MigrateResult{}, res)
}
