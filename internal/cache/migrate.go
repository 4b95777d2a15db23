package cache

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/varoOP/anidbkit/internal/domain"
	"github.com/varoOP/anidbkit/internal/httpcache"
	"github.com/varoOP/anidbkit/internal/ratelimit"
)

// MigrateResult counts what MigrateStore copied.
type MigrateResult struct {
	Responses int  `json:"responses"`
	RateLimit bool `json:"rateLimit"`
	Skipped   int  `json:"skipped"`
}

// MigrateStore copies cached responses and the rate-limit window from src into dst, so the
// store backend can be switched without losing either. Keys that belong to neither are
// skipped. Existing keys in dst are overwritten.
func MigrateStore(ctx context.Context, src, dst domain.Store, log zerolog.Logger) (*MigrateResult, error) {
	log = log.With().Str("module", "cache-migrate").Logger()
	log.Info().Msg("starting store migration")

	res := &MigrateResult{}

	err := src.Scan(ctx, "", func(key string, value []byte) error {
		switch {
		case httpcache.IsKey(key):
			res.Responses++
		case key == ratelimit.StateKey:
			res.RateLimit = true
		default:
			res.Skipped++
			log.Debug().Str("key", key).Msg("skipping unknown key")
			return nil
		}

		if err := dst.Put(ctx, key, value); err != nil {
			return errors.Wrapf(err, "failed to copy %s", key)
		}

		if res.Responses > 0 && res.Responses%100 == 0 {
			log.Info().Int("responses", res.Responses).Msg("migration progress")
		}

		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to migrate store")
	}

	log.Info().
		Int("responses", res.Responses).
		Bool("rate_limit", res.RateLimit).
		Int("skipped", res.Skipped).
		Msg("store migration complete")

	return res, nil
}
