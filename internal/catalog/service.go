// Package catalog materializes the bulk anime-titles catalog on disk, one snapshot directory per
// refresh period, resuming from whichever artifacts already exist.
package catalog

import (
	"context"
	"io"
	"io/fs"
	"net/http"
	"os"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/varoOP/anidbkit/internal/domain"
	"github.com/varoOP/anidbkit/internal/repository"
	"github.com/varoOP/anidbkit/internal/telemetry"
	"github.com/varoOP/anidbkit/pkg/animetitles"
)

type Stage string

const (
	StageDownload   Stage = "download"
	StageDecompress Stage = "decompress"
	StageParse      Stage = "parse"
)

// Snapshot is the result of an acquisition: the artifact paths and the stages that had to run.
type Snapshot struct {
	domain.SnapshotPaths
	Stages []Stage
}

type Service interface {
	Acquire(ctx context.Context) (*Snapshot, error)
	Current() *domain.SnapshotPaths
}

type Option func(*service)

func WithHTTPClient(c domain.HTTPDoer) Option {
	return func(s *service) {
		s.client = c
	}
}

func WithNow(now func() time.Time) Option {
	return func(s *service) {
		s.now = now
	}
}

type service struct {
	log     zerolog.Logger
	config  *domain.Config
	client  domain.HTTPDoer
	metrics *telemetry.Metrics
	now     func() time.Time

	group singleflight.Group
}

func NewService(log zerolog.Logger, config *domain.Config, metrics *telemetry.Metrics, opts ...Option) Service {
	s := &service{
		log:     log.With().Str("module", "catalog").Logger(),
		config:  config,
		client:  http.DefaultClient,
		metrics: metrics,
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Current returns the snapshot paths of the current period without touching the disk.
func (s *service) Current() *domain.SnapshotPaths {
	return domain.NewSnapshotPaths(s.config.DownloadPath, s.now(), s.config.Catalog.RefreshInterval)
}

// Acquire makes sure the current snapshot holds all three artifacts. Concurrent callers for the
// same snapshot share a single run, which is not cancelled with any one caller's ctx: a caller
// whose ctx ends stops waiting and the run completes for the others.
func (s *service) Acquire(ctx context.Context) (*Snapshot, error) {
	paths := s.Current()

	ch := s.group.DoChan(paths.Dir, func() (any, error) {
		return s.acquire(context.WithoutCancel(ctx), paths)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Snapshot), nil
	}
}

func (s *service) acquire(ctx context.Context, paths *domain.SnapshotPaths) (*Snapshot, error) {
	snap := &Snapshot{SnapshotPaths: *paths}

	if err := os.MkdirAll(paths.Dir, 0755); err != nil {
		return nil, errors.Wrapf(err, "failed to create directory %s", paths.Dir)
	}

	steps := []struct {
		stage  Stage
		output string
		run    func(context.Context, *domain.SnapshotPaths) error
	}{
		{StageDownload, paths.CompressedPath, s.download},
		{StageDecompress, paths.XMLPath, s.decompress},
		{StageParse, paths.JSONPath, s.parse},
	}

	for _, step := range steps {
		ok, err := exists(step.output)
		if err != nil {
			return nil, err
		}
		if ok {
			continue
		}

		start := time.Now()
		s.log.Info().Str("stage", string(step.stage)).Str("dir", paths.Dir).Msg("running catalog stage")

		if err := step.run(ctx, paths); err != nil {
			return nil, err
		}

		s.metrics.CatalogStages.WithLabelValues(string(step.stage)).Inc()
		s.log.Info().Str("stage", string(step.stage)).Dur("took", time.Since(start)).Msg("catalog stage done")
		snap.Stages = append(snap.Stages, step.stage)
	}

	return snap, nil
}

func (s *service) download(ctx context.Context, paths *domain.SnapshotPaths) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.config.DownloadURL, nil)
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}

	res, err := s.client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "failed to fetch %s", s.config.DownloadURL)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return &domain.RemoteRequestError{URL: s.config.DownloadURL, StatusCode: res.StatusCode, Status: res.Status}
	}

	tmp, err := repository.CreateTemp(paths.CompressedPath)
	if err != nil {
		return err
	}

	n, err := io.Copy(tmp, res.Body)
	if err != nil {
		tmp.Abort()
		return errors.Wrapf(err, "failed to download %s", s.config.DownloadURL)
	}

	if n == 0 {
		tmp.Abort()
		return &domain.RemoteRequestError{URL: s.config.DownloadURL}
	}

	s.log.Debug().Int64("bytes", n).Msg("downloaded catalog")

	return tmp.Commit()
}

// decompress inflates the compressed artifact. An unreadable archive is removed so the next
// acquisition downloads it again.
func (s *service) decompress(ctx context.Context, paths *domain.SnapshotPaths) error {
	f, err := os.Open(paths.CompressedPath)
	if err != nil {
		return errors.Wrapf(err, "failed to open %s", paths.CompressedPath)
	}
	defer f.Close()

	zr, err := gzip.NewReader(f)
	if err != nil {
		s.discard(paths.CompressedPath)
		return errors.Wrapf(domain.ErrMalformedCatalog, "%s: %v", paths.CompressedPath, err)
	}
	defer zr.Close()

	tmp, err := repository.CreateTemp(paths.XMLPath)
	if err != nil {
		return err
	}

	if _, err := io.Copy(tmp, zr); err != nil {
		tmp.Abort()
		s.discard(paths.CompressedPath)
		return errors.Wrapf(domain.ErrMalformedCatalog, "%s: %v", paths.CompressedPath, err)
	}

	return tmp.Commit()
}

// parse converts the XML artifact to normalized JSON. A malformed document invalidates both
// upstream artifacts, they are removed so the next acquisition starts over.
func (s *service) parse(ctx context.Context, paths *domain.SnapshotPaths) error {
	f, err := os.Open(paths.XMLPath)
	if err != nil {
		return errors.Wrapf(err, "failed to open %s", paths.XMLPath)
	}
	defer f.Close()

	c, err := animetitles.Decode(f)
	if err != nil {
		f.Close()
		s.discard(paths.XMLPath)
		s.discard(paths.CompressedPath)
		return errors.Wrapf(domain.ErrMalformedCatalog, "%s: %v", paths.XMLPath, err)
	}

	tmp, err := repository.CreateTemp(paths.JSONPath)
	if err != nil {
		return err
	}

	if err := animetitles.WriteJSON(tmp, c); err != nil {
		tmp.Abort()
		return err
	}

	s.log.Debug().Int("anime", len(c.Anime)).Int("titles", c.Len()).Msg("parsed catalog")

	return tmp.Commit()
}

func (s *service) discard(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.log.Warn().Err(err).Str("path", path).Msg("failed to remove invalid artifact")
		return
	}
	s.log.Warn().Str("path", path).Msg("removed invalid artifact")
}

func exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, errors.Wrapf(err, "failed to stat %s", path)
}
