// Package anidb performs governed, cached requests against the AniDB HTTP API.
package anidb

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/varoOP/anidbkit/internal/domain"
)

type Service interface {
	BaseURL() string
	Fetch(ctx context.Context, url string, forceRefresh bool) (*domain.Response, error)
	FetchAnimeDetails(ctx context.Context, aid int) (*AnimeDetail, error)
	FetchHotAnime(ctx context.Context) (*HotAnime, error)
	FetchRecommendation(ctx context.Context) (*RandomRecommendation, error)
	FetchRandomSimilar(ctx context.Context) (*RandomSimilar, error)
	FetchMain(ctx context.Context) (*Main, error)
}

type Option func(*service)

// WithHTTPClient replaces the network primitive, http.DefaultClient by default.
func WithHTTPClient(c domain.HTTPDoer) Option {
	return func(s *service) {
		s.client = c
	}
}

type service struct {
	log      zerolog.Logger
	client   domain.HTTPDoer
	cache    domain.ResponseCache
	governor domain.Governor
	baseURL  string
}

func NewService(log zerolog.Logger, config *domain.Config, cache domain.ResponseCache, governor domain.Governor, opts ...Option) Service {
	s := &service{
		log:      log.With().Str("module", "anidb").Logger(),
		client:   http.DefaultClient,
		cache:    cache,
		governor: governor,
		baseURL:  baseURL(config),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func baseURL(config *domain.Config) string {
	return fmt.Sprintf("%s/httpapi?client=%s&clientver=%d&protover=%d",
		strings.TrimRight(config.Domain, "/"),
		url.QueryEscape(config.Client),
		config.ClientVersion,
		config.ProtocolVersion,
	)
}

func (s *service) BaseURL() string {
	return s.baseURL
}

// Fetch returns the response for rawURL. Unless forceRefresh is set a cached response is
// returned without consulting the governor; otherwise the request is rate checked, registered,
// sent and, when successful and not forced, cached. Non-2xx responses are returned, not cached.
func (s *service) Fetch(ctx context.Context, rawURL string, forceRefresh bool) (*domain.Response, error) {
	if !forceRefresh {
		resp, err := s.cache.GetCachedResponse(ctx, rawURL)
		if err == nil {
			return resp, nil
		}
		if !errors.Is(err, domain.ErrCacheMiss) {
			return nil, err
		}
	}

	if err := s.governor.VerifyRateLimit(ctx); err != nil {
		return nil, err
	}

	if err := s.governor.RegisterRequest(ctx); err != nil {
		return nil, err
	}

	resp, err := s.get(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	// AniDB reports failures such as bans as <error> documents with a 200 status, those are never cached
	if !forceRefresh && resp.OK() && !isErrorDocument(resp.Body) {
		if err := s.cache.CacheResponse(ctx, rawURL, resp); err != nil {
			return nil, err
		}
	}

	return resp, nil
}

func (s *service) get(ctx context.Context, rawURL string) (*domain.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Accept-Encoding", "gzip")

	s.log.Info().Str("url", rawURL).Msg("fetching")

	res, err := s.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to perform request")
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read response body")
	}

	body, err = inflate(body)
	if err != nil {
		return nil, err
	}

	headers := res.Header.Clone()
	headers.Del("Content-Encoding")
	headers.Del("Content-Length")

	s.log.Debug().Str("url", rawURL).Int("status", res.StatusCode).Int("bytes", len(body)).Msg("fetched")

	return &domain.Response{
		Status:     res.StatusCode,
		StatusText: res.Status,
		Headers:    headers,
		Body:       string(body),
	}, nil
}

var gzipMagic = []byte{0x1f, 0x8b}

// inflate decompresses body when it still carries the gzip magic bytes
func inflate(body []byte) ([]byte, error) {
	if !bytes.HasPrefix(body, gzipMagic) {
		return body, nil
	}

	zr, err := gzip.NewReader(bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "failed to open gzip body")
	}
	defer zr.Close()

	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, errors.Wrap(err, "failed to decompress body")
	}

	return out, nil
}

func (s *service) FetchAnimeDetails(ctx context.Context, aid int) (*AnimeDetail, error) {
	var v AnimeDetail
	if err := s.fetchDocument(ctx, "&request=anime&aid="+strconv.Itoa(aid), false, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// FetchHotAnime and the other feed requests always bypass the cache, their content changes between calls.
func (s *service) FetchHotAnime(ctx context.Context) (*HotAnime, error) {
	var v HotAnime
	if err := s.fetchDocument(ctx, "&request=hotanime", true, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func (s *service) FetchRecommendation(ctx context.Context) (*RandomRecommendation, error) {
	var v RandomRecommendation
	if err := s.fetchDocument(ctx, "&request=randomrecommendation", true, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func (s *service) FetchRandomSimilar(ctx context.Context) (*RandomSimilar, error) {
	var v RandomSimilar
	if err := s.fetchDocument(ctx, "&request=randomsimilar", true, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func (s *service) FetchMain(ctx context.Context) (*Main, error) {
	var v Main
	if err := s.fetchDocument(ctx, "&request=main", true, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func (s *service) fetchDocument(ctx context.Context, path string, forceRefresh bool, v any) error {
	rawURL := s.baseURL + path

	resp, err := s.Fetch(ctx, rawURL, forceRefresh)
	if err != nil {
		return err
	}

	if !resp.OK() {
		return &domain.RemoteRequestError{URL: rawURL, StatusCode: resp.Status, Status: resp.StatusText}
	}

	return decodeDocument(resp.Body, v)
}
