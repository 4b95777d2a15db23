package anidb

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/varoOP/anidbkit/internal/domain"
	"github.com/varoOP/anidbkit/internal/httpcache"
	"github.com/varoOP/anidbkit/internal/ratelimit"
	"github.com/varoOP/anidbkit/internal/repository"
	"github.com/varoOP/anidbkit/internal/telemetry"
)

const detailXML = `<?xml version="1.0" encoding="UTF-8"?>
<anime id="42" restricted="false">
	<type>TV Series</type>
	<episodecount>12</episodecount>
	<startdate>2024-01-05</startdate>
	<titles>
		<title xml:lang="en" type="main">Foo</title>
		<title xml:lang="en" type="synonym">Bar</title>
	</titles>
	<ratings>
		<permanent count="120">7.51</permanent>
	</ratings>
	<tags>
		<tag id="7" weight="400" localspoiler="false" globalspoiler="false" verified="true" update="2024-01-01">
			<name>comedy</name>
		</tag>
	</tags>
	<episodes>
		<episode id="1001" update="2024-01-05">
			<epno type="1">1</epno>
			<length>25</length>
			<title xml:lang="en">Pilot</title>
		</episode>
	</episodes>
</anime>`

const hotXML = `<hotanime>
	<anime id="1" restricted="false">
		<episodecount>13</episodecount>
		<title xml:lang="x-jat" type="main">Seikai no Monshou</title>
		<ratings><temporary count="10">8.1</temporary></ratings>
		<picture>1.jpg</picture>
	</anime>
	<anime id="42" restricted="false">
		<title xml:lang="en" type="main">Foo</title>
	</anime>
</hotanime>`

const mainXML = `<main>
	<hotanime><anime id="1"><title xml:lang="en" type="main">A</title></anime></hotanime>
	<randomsimilar>
		<similar>
			<source aid="1" restricted="false"><title xml:lang="en" type="main">A</title></source>
			<target aid="2" restricted="false"><title xml:lang="en" type="main">B</title></target>
		</similar>
	</randomsimilar>
	<randomrecommendation>
		<recommendation><anime id="3"><type>Movie</type><title xml:lang="en" type="main">C</title></anime></recommendation>
	</randomrecommendation>
</main>`

type fixture struct {
	svc      Service
	server   *httptest.Server
	hits     *atomic.Int32
	clock    *clock
	store    *repository.FileStore
	handlers map[string]http.HandlerFunc
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newFixture(t *testing.T, maxRequests int) *fixture {
	t.Helper()

	f := &fixture{
		hits:     &atomic.Int32{},
		clock:    &clock{t: time.Date(2024, time.March, 7, 12, 0, 0, 0, time.UTC)},
		handlers: map[string]http.HandlerFunc{},
	}

	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.hits.Add(1)
		if h, ok := f.handlers[r.URL.Query().Get("request")]; ok {
			h(w, r)
			return
		}
		http.NotFound(w, r)
	}))
	t.Cleanup(f.server.Close)

	store, err := repository.NewFileStore(zerolog.Nop(), t.TempDir())
	require.NoError(t, err)
	f.store = store

	m := telemetry.NewMetrics()
	cache := httpcache.NewService(zerolog.Nop(), store, domain.CacheConfig{}, m, httpcache.WithNow(f.clock.now))
	governor := ratelimit.NewService(zerolog.Nop(), store, domain.RateLimitConfig{MaxRequests: maxRequests, Window: 2 * time.Second}, m, ratelimit.WithNow(f.clock.now))

	cfg := domain.DefaultConfig()
	cfg.Client = "anidbkit"
	cfg.ClientVersion = 1
	cfg.Domain = f.server.URL + "/"

	f.svc = NewService(zerolog.Nop(), &cfg, cache, governor, WithHTTPClient(f.server.Client()))
	return f
}

func (f *fixture) serve(kind, body string) {
	f.handlers[kind] = func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/xml")
		w.Write([]byte(body))
	}
}

func TestBaseURL(t *testing.T) {
	f := newFixture(t, 1)
	require.Equal(t, f.server.URL+"/httpapi?client=anidbkit&clientver=1&protover=1", f.svc.BaseURL())
}

func TestFetchAnimeDetailsIsCached(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1)
	f.serve("anime", detailXML)

	a, err := f.svc.FetchAnimeDetails(ctx, 42)
	require.NoError(t, err)
	require.Equal(t, 42, a.ID)
	require.Equal(t, "TV Series", a.Type)
	require.Equal(t, 12, a.EpisodeCount)
	require.Equal(t, []Title{{Text: "Foo", Lang: "en", Type: "main"}, {Text: "Bar", Lang: "en", Type: "synonym"}}, a.Titles)
	require.Equal(t, 120, a.Ratings.Permanent.Count)
	require.Equal(t, "comedy", a.Tags[0].Name)
	require.True(t, a.Tags[0].Verified)
	require.Equal(t, "Pilot", a.Episodes[0].Titles[0].Text)
	require.Equal(t, 25, a.Episodes[0].Length)

	// the second call is served from cache and does not count against the one-request window
	a, err = f.svc.FetchAnimeDetails(ctx, 42)
	require.NoError(t, err)
	require.Equal(t, 42, a.ID)
	require.Equal(t, int32(1), f.hits.Load())
}

func TestRateLimitRefusesBeforeNetwork(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1)
	f.serve("hotanime", hotXML)

	_, err := f.svc.FetchHotAnime(ctx)
	require.NoError(t, err)

	_, err = f.svc.FetchHotAnime(ctx)
	require.ErrorIs(t, err, domain.ErrRateLimitExceeded)
	require.Equal(t, int32(1), f.hits.Load())

	f.clock.t = f.clock.t.Add(3 * time.Second)
	h, err := f.svc.FetchHotAnime(ctx)
	require.NoError(t, err)
	require.Len(t, h.Anime, 2)
	require.Equal(t, "Seikai no Monshou", h.Anime[0].Titles[0].Text)
	require.Equal(t, "x-jat", h.Anime[0].Titles[0].Lang)
	require.Equal(t, int32(2), f.hits.Load())
}

func TestFeedsBypassCache(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 10)
	f.serve("main", mainXML)

	m, err := f.svc.FetchMain(ctx)
	require.NoError(t, err)
	require.Len(t, m.HotAnime, 1)
	require.Equal(t, 2, m.RandomSimilar[0].Target.Aid)
	require.Equal(t, "Movie", m.RandomRecommendation[0].Type)

	_, err = f.svc.FetchMain(ctx)
	require.NoError(t, err)
	require.Equal(t, int32(2), f.hits.Load())

	_, err = f.store.Get(ctx, httpcache.Key(f.svc.BaseURL()+"&request=main"))
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRandomFeeds(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 10)
	f.serve("randomrecommendation", `<randomrecommendation><recommendation><anime id="5" restricted="true"><title xml:lang="en" type="main">E</title></anime></recommendation><recommendation><anime id="6"/></recommendation></randomrecommendation>`)
	f.serve("randomsimilar", `<randomsimilar><similar><source aid="7"/><target aid="8"/></similar></randomsimilar>`)

	rec, err := f.svc.FetchRecommendation(ctx)
	require.NoError(t, err)
	require.Len(t, rec.Anime, 2)
	require.True(t, rec.Anime[0].Restricted)

	sim, err := f.svc.FetchRandomSimilar(ctx)
	require.NoError(t, err)
	require.Equal(t, 7, sim.Similar[0].Source.Aid)
	require.Equal(t, 8, sim.Similar[0].Target.Aid)
}

func TestRemoteApplicationError(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 10)
	f.serve("anime", `<error code="500">banned</error>`)

	_, err := f.svc.FetchAnimeDetails(ctx, 42)
	require.ErrorIs(t, err, domain.ErrRemoteApplication)

	var appErr *domain.RemoteApplicationError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "500", appErr.Code)
	require.Equal(t, "banned", appErr.Message)

	// error documents are not cached
	_, err = f.svc.FetchAnimeDetails(ctx, 42)
	require.ErrorIs(t, err, domain.ErrRemoteApplication)
	require.Equal(t, int32(2), f.hits.Load())
}

func TestMalformedDocument(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 10)
	f.serve("anime", `<anime id="42"><titles>`)
	f.serve("hotanime", `<anime id="1"/>`)

	_, err := f.svc.FetchAnimeDetails(ctx, 42)
	require.ErrorIs(t, err, domain.ErrMalformedDocument)

	_, err = f.svc.FetchHotAnime(ctx)
	require.ErrorIs(t, err, domain.ErrMalformedDocument)
}

func TestNonSuccessStatus(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 10)
	f.handlers["anime"] = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	_, err := f.svc.FetchAnimeDetails(ctx, 42)
	require.ErrorIs(t, err, domain.ErrRemoteRequestFailed)

	var reqErr *domain.RemoteRequestError
	require.ErrorAs(t, err, &reqErr)
	require.Equal(t, http.StatusServiceUnavailable, reqErr.StatusCode)

	_, err = f.store.Get(ctx, httpcache.Key(f.svc.BaseURL()+"&request=anime&aid=42"))
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGzipBodyIsInflated(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 10)

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(detailXML))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	f.handlers["anime"] = func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		w.Write(buf.Bytes())
	}

	a, err := f.svc.FetchAnimeDetails(ctx, 42)
	require.NoError(t, err)
	require.Equal(t, 42, a.ID)

	resp, err := f.svc.Fetch(ctx, f.svc.BaseURL()+"&request=anime&aid=42", false)
	require.NoError(t, err)
	require.Equal(t, detailXML, resp.Body)
	require.Empty(t, resp.Headers.Get("Content-Encoding"))
}

func TestFetchForceRefreshSkipsCache(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 10)
	f.serve("anime", detailXML)

	url := f.svc.BaseURL() + "&request=anime&aid=42"
	_, err := f.svc.Fetch(ctx, url, true)
	require.NoError(t, err)

	_, err = f.store.Get(ctx, httpcache.Key(url))
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.svc.Fetch(ctx, url, false)
	require.NoError(t, err)
	_, err = f.svc.Fetch(ctx, url, false)
	require.NoError(t, err)
	_, err = f.svc.Fetch(ctx, url, true)
	require.NoError(t, err)
	require.Equal(t, int32(3), f.hits.Load())
}
