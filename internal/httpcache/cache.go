// Package httpcache stores prior HTTP responses keyed by a hash of their normalized URL.
package httpcache

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/zeebo/blake3"

	"github.com/varoOP/anidbkit/internal/domain"
	"github.com/varoOP/anidbkit/internal/telemetry"
)

type Option func(*Service)

// WithNow overrides the clock used for StoredAt and expiry checks.
func WithNow(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// Service implements domain.ResponseCache on top of a domain.Store
type Service struct {
	log     zerolog.Logger
	store   domain.Store
	cfg     domain.CacheConfig
	metrics *telemetry.Metrics
	now     func() time.Time
}

func NewService(log zerolog.Logger, store domain.Store, cfg domain.CacheConfig, metrics *telemetry.Metrics, opts ...Option) *Service {
	s := &Service{
		log:     log.With().Str("module", "httpcache").Logger(),
		store:   store,
		cfg:     cfg,
		metrics: metrics,
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

var _ domain.ResponseCache = (*Service)(nil)

// GetCachedResponse returns the stored snapshot for rawURL, or domain.ErrCacheMiss.
func (s *Service) GetCachedResponse(ctx context.Context, rawURL string) (*domain.Response, error) {
	key := Key(rawURL)

	b, err := s.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.miss(rawURL, "absent")
			return nil, domain.ErrCacheMiss
		}
		return nil, errors.Wrap(err, "failed to read cached response")
	}

	var resp domain.Response
	if err := json.Unmarshal(b, &resp); err != nil {
		// a corrupt entry is replaced on the next successful fetch
		s.log.Warn().Err(err).Str("key", key).Msg("discarding unreadable cache entry")
		s.miss(rawURL, "corrupt")
		return nil, domain.ErrCacheMiss
	}

	if s.expired(&resp) {
		if s.cfg.DeleteOnExpire {
			if err := s.store.Delete(ctx, key); err != nil {
				return nil, errors.Wrap(err, "failed to delete expired response")
			}
		}
		s.miss(rawURL, "expired")
		return nil, domain.ErrCacheMiss
	}

	s.metrics.CacheHits.Inc()
	s.log.Debug().Str("url", rawURL).Msg("cache hit")

	return &resp, nil
}

// CacheResponse persists resp under the key of rawURL, replacing any earlier entry.
func (s *Service) CacheResponse(ctx context.Context, rawURL string, resp *domain.Response) error {
	entry := *resp
	entry.URLHash = Key(rawURL)
	entry.URL = rawURL
	if entry.StoredAt.IsZero() {
		entry.StoredAt = s.now()
	}

	b, err := json.Marshal(&entry)
	if err != nil {
		return errors.Wrap(err, "failed to marshal response")
	}

	if err := s.store.Put(ctx, entry.URLHash, b); err != nil {
		return errors.Wrap(err, "failed to store response")
	}

	s.metrics.CacheWrites.Inc()
	s.log.Debug().Str("url", rawURL).Int("status", resp.Status).Msg("cached response")

	return nil
}

// Prune deletes every expired entry and returns how many were removed.
// Nothing expires when no TTL is configured.
func (s *Service) Prune(ctx context.Context) (int, error) {
	if s.cfg.TTL <= 0 {
		return 0, nil
	}

	var expired []string
	err := s.store.Scan(ctx, "", func(key string, value []byte) error {
		if !IsKey(key) {
			return nil
		}

		var resp domain.Response
		if err := json.Unmarshal(value, &resp); err != nil || s.expired(&resp) {
			expired = append(expired, key)
		}
		return nil
	})
	if err != nil {
		return 0, errors.Wrap(err, "failed to scan cache")
	}

	for _, key := range expired {
		if err := s.store.Delete(ctx, key); err != nil {
			return 0, errors.Wrapf(err, "failed to delete %s", key)
		}
	}

	s.metrics.CachePruned.Add(float64(len(expired)))
	s.log.Info().Int("removed", len(expired)).Msg("pruned response cache")

	return len(expired), nil
}

func (s *Service) expired(resp *domain.Response) bool {
	return s.cfg.TTL > 0 && s.now().Sub(resp.StoredAt) > s.cfg.TTL
}

func (s *Service) miss(rawURL, reason string) {
	s.metrics.CacheMisses.Inc()
	s.log.Debug().Str("url", rawURL).Str("reason", reason).Msg("cache miss")
}

// Key returns the store key of rawURL: the hex BLAKE3-256 of its normalized form.
func Key(rawURL string) string {
	sum := blake3.Sum256([]byte(NormalizeURL(rawURL)))
	return hex.EncodeToString(sum[:])
}

// IsKey reports whether key has the shape produced by Key.
func IsKey(key string) bool {
	if len(key) != 64 {
		return false
	}
	_, err := hex.DecodeString(key)
	return err == nil
}

// NormalizeURL lower-cases scheme and host, sorts query parameters and drops the fragment,
// so equivalent request URLs share a cache entry. Unparseable input is returned unchanged.
func NormalizeURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawFragment = ""
	if u.RawQuery != "" {
		u.RawQuery = u.Query().Encode()
	}

	return u.String()
}
