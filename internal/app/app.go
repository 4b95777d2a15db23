package app

import (
	"context"
	"net/http"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/varoOP/anidbkit/internal/anidb"
	"github.com/varoOP/anidbkit/internal/cache"
	"github.com/varoOP/anidbkit/internal/catalog"
	"github.com/varoOP/anidbkit/internal/database"
	"github.com/varoOP/anidbkit/internal/domain"
	"github.com/varoOP/anidbkit/internal/httpcache"
	"github.com/varoOP/anidbkit/internal/ratelimit"
	"github.com/varoOP/anidbkit/internal/repository"
	"github.com/varoOP/anidbkit/internal/telemetry"
	"github.com/varoOP/anidbkit/internal/titles"
)

type Option func(*options)

type options struct {
	client domain.HTTPDoer
}

// WithHTTPClient replaces the network primitive used for API requests and catalog downloads.
func WithHTTPClient(c domain.HTTPDoer) Option {
	return func(o *options) {
		o.client = c
	}
}

// App represents the main application with all dependencies initialized
type App struct {
	log     zerolog.Logger
	config  *domain.Config
	metrics *telemetry.Metrics

	store domain.Store

	Cache    *httpcache.Service
	Governor *ratelimit.Service
	AniDB    anidb.Service
	Catalog  catalog.Service
	Titles   titles.Service
}

// NewApp opens the configured store backend and wires every component on top of it.
func NewApp(log zerolog.Logger, cfg *domain.Config, opts ...Option) (*App, error) {
	o := &options{client: http.DefaultClient}
	for _, opt := range opts {
		opt(o)
	}

	a := &App{
		log:     log.With().Str("module", "app").Logger(),
		config:  cfg,
		metrics: telemetry.NewMetrics(),
	}

	if err := a.openStore(log); err != nil {
		return nil, err
	}

	a.Cache = httpcache.NewService(log, a.store, cfg.Cache, a.metrics)
	a.Governor = ratelimit.NewService(log, a.store, cfg.RateLimit, a.metrics)
	a.AniDB = anidb.NewService(log, cfg, a.Cache, a.Governor, anidb.WithHTTPClient(o.client))
	a.Catalog = catalog.NewService(log, cfg, a.metrics, catalog.WithHTTPClient(o.client))
	a.Titles = titles.NewService(log, a.Catalog, a.AniDB, a.metrics)

	a.log.Debug().
		Str("backend", string(cfg.Store.Backend)).
		Str("cache_path", cfg.CachePath).
		Str("download_path", cfg.DownloadPath).
		Msg("application initialized")

	return a, nil
}

func (a *App) openStore(log zerolog.Logger) error {
	store, err := OpenStore(log, a.config.CachePath, a.config.Store.Backend)
	if err != nil {
		return err
	}
	a.store = store
	return nil
}

// OpenStore opens the key/value store of the given backend rooted at dir.
func OpenStore(log zerolog.Logger, dir string, backend domain.StoreBackend) (domain.Store, error) {
	switch backend {
	case domain.StoreBackendSQLite:
		db, err := database.NewDB(dir, log)
		if err != nil {
			return nil, errors.Wrap(err, "failed to initialize database")
		}
		return database.NewStoreRepo(log, db), nil

	case domain.StoreBackendFile, "":
		fs, err := repository.NewFileStore(log, dir)
		if err != nil {
			return nil, errors.Wrap(err, "failed to initialize file store")
		}
		return fs, nil

	default:
		return nil, errors.Wrapf(domain.ErrInvalidConfig, "unknown store backend %q", backend)
	}
}

func (a *App) Config() *domain.Config {
	return a.config
}

func (a *App) Metrics() *telemetry.Metrics {
	return a.metrics
}

// SyncResult summarizes a catalog sync.
type SyncResult struct {
	Snapshot *catalog.Snapshot
	Titles   int
	Anime    int
}

// Sync acquires the current catalog snapshot and loads it into the title index.
func (a *App) Sync(ctx context.Context) (*SyncResult, error) {
	snap, err := a.Catalog.Acquire(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to acquire catalog")
	}

	if err := a.Titles.Init(ctx); err != nil && !errors.Is(err, domain.ErrAlreadyInitialized) {
		return nil, errors.Wrap(err, "failed to build title index")
	}

	all, err := a.Titles.Titles(ctx)
	if err != nil {
		return nil, err
	}

	res := &SyncResult{Snapshot: snap, Titles: len(all)}
	seen := make(map[int]struct{}, len(all))
	for _, t := range all {
		if _, ok := seen[t.Aid]; !ok {
			seen[t.Aid] = struct{}{}
			res.Anime++
		}
	}

	a.log.Info().
		Str("snapshot", snap.Dir).
		Int("stages_run", len(snap.Stages)).
		Int("anime", res.Anime).
		Int("titles", res.Titles).
		Msg("catalog synced")

	return res, nil
}

// PruneCache removes expired response cache entries.
func (a *App) PruneCache(ctx context.Context) (int, error) {
	n, err := a.Cache.Prune(ctx)
	if err != nil {
		return n, errors.Wrap(err, "failed to prune cache")
	}
	return n, nil
}

// MigrateStore copies the response cache and rate-limit state of the configured backend into
// the store of another backend under the same cache path.
func (a *App) MigrateStore(ctx context.Context, to domain.StoreBackend) (*cache.MigrateResult, error) {
	if to == a.config.Store.Backend {
		return nil, errors.Errorf("store backend is already %s", to)
	}

	dst, err := OpenStore(a.log, a.config.CachePath, to)
	if err != nil {
		return nil, err
	}
	defer dst.Close()

	return cache.MigrateStore(ctx, a.store, dst, a.log)
}

func (a *App) Close() error {
	var firstErr error

	if a.Titles != nil {
		if err := a.Titles.Close(); err != nil {
			firstErr = err
		}
	}

	if a.store != nil {
		if err := a.store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}
