// Package ratelimit persists a sliding window of request timestamps and refuses requests that
// would exceed the configured rate.
package ratelimit

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/varoOP/anidbkit/internal/domain"
	"github.com/varoOP/anidbkit/internal/telemetry"
)

// StateKey is the store key of the request window.
const StateKey = "rate-limit.json"

// window maps a millisecond unix timestamp, as a decimal string, to the requests made at that instant
type window map[string]int

type Option func(*Service)

func WithNow(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// Service implements domain.Governor
type Service struct {
	log     zerolog.Logger
	store   domain.Store
	cfg     domain.RateLimitConfig
	metrics *telemetry.Metrics
	now     func() time.Time
}

func NewService(log zerolog.Logger, store domain.Store, cfg domain.RateLimitConfig, metrics *telemetry.Metrics, opts ...Option) *Service {
	s := &Service{
		log:     log.With().Str("module", "ratelimit").Logger(),
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

var _ domain.Governor = (*Service)(nil)

// VerifyRateLimit fails with a *domain.RateLimitError when one more request would exceed
// MaxRequests within the window. It does not record anything.
func (s *Service) VerifyRateLimit(ctx context.Context) error {
	w, err := s.load(ctx)
	if err != nil {
		return err
	}

	now := s.now().UnixMilli()
	count, oldest := w.inWindow(now, s.cfg.Window.Milliseconds())

	if count+1 > s.cfg.MaxRequests {
		retryAfter := time.Duration(oldest+s.cfg.Window.Milliseconds()-now+1) * time.Millisecond
		s.metrics.RateLimited.Inc()
		s.log.Debug().Int("count", count).Dur("retryAfter", retryAfter).Msg("rate limit reached")

		return &domain.RateLimitError{
			Count:       count,
			MaxRequests: s.cfg.MaxRequests,
			Window:      s.cfg.Window,
			RetryAfter:  retryAfter,
		}
	}

	return nil
}

// RegisterRequest records one request at the current millisecond.
func (s *Service) RegisterRequest(ctx context.Context) error {
	now := s.now().UnixMilli()

	err := s.store.Update(ctx, StateKey, func(old []byte, found bool) ([]byte, error) {
		w := window{}
		if found && len(old) > 0 {
			if err := json.Unmarshal(old, &w); err != nil {
				return nil, errors.Wrap(err, "failed to parse rate limit state")
			}
		}

		w[strconv.FormatInt(now, 10)]++

		// retention never drops buckets still inside the window
		if s.cfg.Retention > 0 {
			w.dropBefore(now - max(s.cfg.Retention, s.cfg.Window).Milliseconds())
		}

		return json.Marshal(w)
	})
	if err != nil {
		return errors.Wrap(err, "failed to register request")
	}

	s.metrics.Requests.Inc()
	return nil
}

func (s *Service) load(ctx context.Context) (window, error) {
	b, err := s.store.Get(ctx, StateKey)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return window{}, nil
		}
		return nil, errors.Wrap(err, "failed to read rate limit state")
	}

	w := window{}
	if len(b) == 0 {
		return w, nil
	}
	if err := json.Unmarshal(b, &w); err != nil {
		return nil, errors.Wrap(err, "failed to parse rate limit state")
	}

	return w, nil
}

// inWindow sums the counts of buckets with ts + size >= now and returns the oldest such ts
func (w window) inWindow(now, size int64) (int, int64) {
	count := 0
	oldest := now
	for k, n := range w {
		ts, err := strconv.ParseInt(k, 10, 64)
		if err != nil {
			continue
		}
		if ts+size >= now {
			count += n
			if ts < oldest {
				oldest = ts
			}
		}
	}
	return count, oldest
}

func (w window) dropBefore(cutoff int64) {
	for k := range w {
		ts, err := strconv.ParseInt(k, 10, 64)
		if err != nil || ts < cutoff {
			delete(w, k)
		}
	}
}
