package catalog

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/varoOP/anidbkit/internal/domain"
	"github.com/varoOP/anidbkit/internal/telemetry"
	"github.com/varoOP/anidbkit/pkg/animetitles"
)

const catalogXML = `<?xml version="1.0" encoding="UTF-8"?>
<animetitles>
	<anime aid="1">
		<title xml:lang="x-jat" type="main">Seikai no Monshou</title>
		<title xml:lang="en" type="official">Crest of the Stars</title>
	</anime>
	<anime aid="42">
		<title xml:lang="en" type="main">Foo</title>
		<title xml:lang="en" type="syn">Bar</title>
	</anime>
</animetitles>`

func gzipped(t *testing.T, s string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(s))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

type fixture struct {
	svc     Service
	root    string
	hits    *atomic.Int32
	metrics *telemetry.Metrics
	body    []byte
	status  int

	// with hold set the server signals started and blocks until unblock
	hold        atomic.Bool
	started     chan struct{}
	release     chan struct{}
	releaseOnce sync.Once
}

func (f *fixture) unblock() {
	f.releaseOnce.Do(func() { close(f.release) })
}

func newFixture(t *testing.T, interval time.Duration) *fixture {
	t.Helper()

	f := &fixture{
		root:    t.TempDir(),
		hits:    &atomic.Int32{},
		metrics: telemetry.NewMetrics(),
		body:    gzipped(t, catalogXML),
		status:  http.StatusOK,
		started: make(chan struct{}, 8),
		release: make(chan struct{}),
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.hits.Add(1)
		if f.hold.Load() {
			f.started <- struct{}{}
			<-f.release
		}
		w.WriteHeader(f.status)
		w.Write(f.body)
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(f.unblock)

	cfg := domain.DefaultConfig()
	cfg.DownloadURL = srv.URL + "/api/anime-titles.xml.gz"
	cfg.DownloadPath = f.root
	cfg.Catalog.RefreshInterval = interval

	now := func() time.Time { return time.Date(2024, time.March, 7, 13, 47, 0, 0, time.Local) }
	f.svc = NewService(zerolog.Nop(), &cfg, f.metrics, WithHTTPClient(srv.Client()), WithNow(now))
	return f
}

func requireNoTempFiles(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		require.False(t, strings.HasPrefix(e.Name(), ".tmp-"), e.Name())
	}
}

func TestAcquireFresh(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 24*time.Hour)

	snap, err := f.svc.Acquire(ctx)
	require.NoError(t, err)
	require.Equal(t, []Stage{StageDownload, StageDecompress, StageParse}, snap.Stages)
	require.Equal(t, filepath.Join(f.root, "2024.3.7"), snap.Dir)
	require.Equal(t, int32(1), f.hits.Load())

	xmlBytes, err := os.ReadFile(snap.XMLPath)
	require.NoError(t, err)
	require.Equal(t, catalogXML, string(xmlBytes))

	j, err := os.Open(snap.JSONPath)
	require.NoError(t, err)
	defer j.Close()

	c, err := animetitles.ReadJSON(j)
	require.NoError(t, err)
	require.Len(t, c.Anime, 2)
	require.Equal(t, 42, c.Anime[1].Aid)

	requireNoTempFiles(t, snap.Dir)
	require.Equal(t, float64(1), testutil.ToFloat64(f.metrics.CatalogStages.WithLabelValues("parse")))
}

func TestAcquireIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 24*time.Hour)

	_, err := f.svc.Acquire(ctx)
	require.NoError(t, err)

	snap, err := f.svc.Acquire(ctx)
	require.NoError(t, err)
	require.Empty(t, snap.Stages)
	require.Equal(t, int32(1), f.hits.Load())
	require.Equal(t, float64(1), testutil.ToFloat64(f.metrics.CatalogStages.WithLabelValues("download")))
}

func TestAcquireResumes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 24*time.Hour)

	snap, err := f.svc.Acquire(ctx)
	require.NoError(t, err)

	require.NoError(t, os.Remove(snap.JSONPath))
	snap, err = f.svc.Acquire(ctx)
	require.NoError(t, err)
	require.Equal(t, []Stage{StageParse}, snap.Stages)

	require.NoError(t, os.Remove(snap.JSONPath))
	require.NoError(t, os.Remove(snap.XMLPath))
	snap, err = f.svc.Acquire(ctx)
	require.NoError(t, err)
	require.Equal(t, []Stage{StageDecompress, StageParse}, snap.Stages)

	require.Equal(t, int32(1), f.hits.Load())
}

func TestAcquireRemoteFailure(t *testing.T) {
	ctx := context.Background()

	t.Run("status", func(t *testing.T) {
		f := newFixture(t, 24*time.Hour)
		f.status = http.StatusForbidden

		_, err := f.svc.Acquire(ctx)
		require.ErrorIs(t, err, domain.ErrRemoteRequestFailed)

		var reqErr *domain.RemoteRequestError
		require.ErrorAs(t, err, &reqErr)
		require.Equal(t, http.StatusForbidden, reqErr.StatusCode)

		paths := f.svc.Current()
		_, err = os.Stat(paths.CompressedPath)
		require.True(t, os.IsNotExist(err))
		requireNoTempFiles(t, paths.Dir)
	})

	t.Run("empty body", func(t *testing.T) {
		f := newFixture(t, 24*time.Hour)
		f.body = nil

		_, err := f.svc.Acquire(ctx)
		require.ErrorIs(t, err, domain.ErrRemoteRequestFailed)

		paths := f.svc.Current()
		_, err = os.Stat(paths.CompressedPath)
		require.True(t, os.IsNotExist(err))
		requireNoTempFiles(t, paths.Dir)

		// nothing was left behind, so the next attempt downloads again
		f.body = gzipped(t, catalogXML)
		snap, err := f.svc.Acquire(ctx)
		require.NoError(t, err)
		require.Len(t, snap.Stages, 3)
		require.Equal(t, int32(2), f.hits.Load())
	})
}

func TestAcquireMalformed(t *testing.T) {
	ctx := context.Background()

	t.Run("not gzip", func(t *testing.T) {
		f := newFixture(t, 24*time.Hour)
		f.body = []byte("<html>maintenance</html>")

		_, err := f.svc.Acquire(ctx)
		require.ErrorIs(t, err, domain.ErrMalformedCatalog)

		paths := f.svc.Current()
		for _, p := range []string{paths.CompressedPath, paths.XMLPath, paths.JSONPath} {
			_, err = os.Stat(p)
			require.True(t, os.IsNotExist(err), p)
		}
	})

	t.Run("error document", func(t *testing.T) {
		f := newFixture(t, 24*time.Hour)
		f.body = gzipped(t, "<error>Banned</error>")

		_, err := f.svc.Acquire(ctx)
		require.ErrorIs(t, err, domain.ErrMalformedCatalog)

		paths := f.svc.Current()
		for _, p := range []string{paths.CompressedPath, paths.XMLPath, paths.JSONPath} {
			_, err = os.Stat(p)
			require.True(t, os.IsNotExist(err), p)
		}
		requireNoTempFiles(t, paths.Dir)
	})
}

func TestAcquireConcurrentCallersShareWork(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 24*time.Hour)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Acquire(ctx)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	require.Equal(t, int32(1), f.hits.Load())
	require.Equal(t, float64(1), testutil.ToFloat64(f.metrics.CatalogStages.WithLabelValues("parse")))
}

func TestAcquireOutlivesCancelledCaller(t *testing.T) {
	f := newFixture(t, 24*time.Hour)
	f.hold.Store(true)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first := make(chan error, 1)
	go func() {
		_, err := f.svc.Acquire(ctx)
		first <- err
	}()

	select {
	case <-f.started:
	case <-time.After(5 * time.Second):
		t.Fatal("download never started")
	}

	type result struct {
		snap *Snapshot
		err  error
	}
	second := make(chan result, 1)
	go func() {
		snap, err := f.svc.Acquire(context.Background())
		second <- result{snap, err}
	}()

	cancel()
	require.ErrorIs(t, <-first, context.Canceled)

	f.unblock()
	res := <-second
	require.NoError(t, res.err)
	require.FileExists(t, res.snap.JSONPath)
	require.Equal(t, int32(1), f.hits.Load())
}

func TestCurrentHonorsInterval(t *testing.T) {
	f := newFixture(t, 6*time.Hour)
	require.Equal(t, filepath.Join(f.root, domain.SnapshotName(time.Date(2024, time.March, 7, 13, 47, 0, 0, time.Local), 6*time.Hour)), f.svc.Current().Dir)
}
