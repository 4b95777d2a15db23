// Package titles loads the normalized catalog into memory and answers title lookups and fuzzy
// searches over it.
package titles

import (
	"context"
	"io/fs"
	"os"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/text/unicode/norm"

	"github.com/varoOP/anidbkit/internal/catalog"
	"github.com/varoOP/anidbkit/internal/domain"
	"github.com/varoOP/anidbkit/internal/telemetry"
	"github.com/varoOP/anidbkit/pkg/animetitles"
)

const DefaultLimit = 50

type State int

const (
	StateUninitialized State = iota
	StateInitializing
	StateReady
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	}
	return "unknown"
}

type Service interface {
	Init(ctx context.Context) error
	State() State
	AidByTitle(ctx context.Context, title string) (int, bool, error)
	SearchTitle(ctx context.Context, query string) ([]*Title, error)
	SuggestTitle(ctx context.Context, query string) ([]Suggestion, error)
	TitlesByAid(ctx context.Context, aid int) ([]*Title, error)
	TitlesByTitle(ctx context.Context, title, lang, typ string) ([]*Title, error)
	Titles(ctx context.Context) ([]*Title, error)
	Close() error
}

type Option func(*service)

// WithLimit caps the number of hits considered by search and suggest.
func WithLimit(n int) Option {
	return func(s *service) {
		s.limit = n
	}
}

type service struct {
	log      zerolog.Logger
	acquirer catalog.Service
	fetcher  DetailFetcher
	metrics  *telemetry.Metrics
	limit    int

	// lifecycle serializes Init and rebuilds
	lifecycle sync.Mutex

	mu        sync.RWMutex
	state     State
	jsonPath  string
	titles    []*Title
	byID      map[string]*Title
	byAid     map[int][]*Title
	aidByText map[string]int
	text      *textIndex
}

func NewService(log zerolog.Logger, acquirer catalog.Service, fetcher DetailFetcher, metrics *telemetry.Metrics, opts ...Option) Service {
	s := &service{
		log:      log.With().Str("module", "titles").Logger(),
		acquirer: acquirer,
		fetcher:  fetcher,
		metrics:  metrics,
		limit:    DefaultLimit,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *service) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Init acquires the current catalog snapshot and builds the index. It fails with
// domain.ErrAlreadyInitialized when the index is ready.
func (s *service) Init(ctx context.Context) error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	if s.State() == StateReady {
		return domain.ErrAlreadyInitialized
	}

	return s.build(ctx)
}

func (s *service) build(ctx context.Context) error {
	s.setState(StateInitializing)

	if err := s.load(ctx); err != nil {
		s.setState(StateUninitialized)
		return err
	}

	return nil
}

func (s *service) load(ctx context.Context) error {
	snap, err := s.acquirer.Acquire(ctx)
	if err != nil {
		return err
	}

	c, err := s.readCatalog(snap.JSONPath)
	if err != nil {
		return err
	}

	var (
		all       = make([]*Title, 0, c.Len())
		byID      = make(map[string]*Title, c.Len())
		byAid     = make(map[int][]*Title, len(c.Anime))
		aidByText = make(map[string]int, c.Len())
	)

	for _, a := range c.Anime {
		for _, ct := range a.Titles {
			text := norm.NFC.String(ct.Title)
			t := &Title{
				ID:      TitleID(a.Aid, text, ct.Type, ct.Lang),
				Aid:     a.Aid,
				Title:   text,
				Type:    ct.Type,
				Lang:    ct.Lang,
				fetcher: s.fetcher,
			}

			// duplicate rows collapse onto one id
			if _, ok := byID[t.ID]; ok {
				continue
			}

			all = append(all, t)
			byID[t.ID] = t
			byAid[t.Aid] = append(byAid[t.Aid], t)
			if _, ok := aidByText[text]; !ok {
				aidByText[text] = t.Aid
			}
		}
	}

	text, err := newTextIndex(all)
	if err != nil {
		return err
	}

	s.mu.Lock()
	old := s.text
	s.titles = all
	s.byID = byID
	s.byAid = byAid
	s.aidByText = aidByText
	s.text = text
	s.jsonPath = snap.JSONPath
	s.state = StateReady
	s.mu.Unlock()

	if old != nil {
		old.close()
	}

	s.metrics.IndexBuilds.Inc()
	s.metrics.IndexedTitles.Set(float64(len(all)))
	s.log.Info().Int("anime", len(c.Anime)).Int("titles", len(all)).Str("snapshot", snap.Dir).Msg("title index ready")

	return nil
}

// readCatalog loads the normalized JSON. An unreadable file is removed so the next acquisition
// parses it again.
func (s *service) readCatalog(path string) (*animetitles.Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", path)
	}
	defer f.Close()

	c, err := animetitles.ReadJSON(f)
	if err != nil {
		f.Close()
		if rmErr := os.Remove(path); rmErr != nil {
			s.log.Warn().Err(rmErr).Str("path", path).Msg("failed to remove invalid catalog")
		}
		return nil, errors.Wrapf(domain.ErrMalformedCatalog, "%s: %v", path, err)
	}

	return c, nil
}

func (s *service) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// checkAll initializes the index if needed and rebuilds it when the current snapshot is gone.
func (s *service) checkAll(ctx context.Context) error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	if s.State() != StateReady {
		return s.build(ctx)
	}

	return s.assureAidPresence(ctx)
}

// assureAidPresence treats the index as stale when the normalized catalog of the current period
// does not exist, which happens when it was deleted or a new refresh period began.
func (s *service) assureAidPresence(ctx context.Context) error {
	current := s.acquirer.Current().JSONPath

	_, err := os.Stat(current)
	if err == nil {
		return nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return errors.Wrapf(err, "failed to stat %s", current)
	}

	s.log.Info().Str("path", current).Str("previous", s.jsonPath).Msg("catalog snapshot missing, rebuilding index")

	s.mu.Lock()
	old := s.text
	s.text = nil
	s.titles = nil
	s.byID = nil
	s.byAid = nil
	s.aidByText = nil
	s.state = StateUninitialized
	s.mu.Unlock()

	if old != nil {
		old.close()
	}

	return s.build(ctx)
}

func (s *service) ready() error {
	if s.state != StateReady {
		return domain.ErrNotInitialized
	}
	return nil
}

func (s *service) aidByTitle(title string) (int, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.ready(); err != nil {
		return 0, false, err
	}

	aid, ok := s.aidByText[norm.NFC.String(title)]
	return aid, ok, nil
}

func (s *service) searchTitle(ctx context.Context, query string) ([]*Title, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.ready(); err != nil {
		return nil, err
	}

	hits, err := s.text.search(ctx, norm.NFC.String(query), false, s.limit)
	if err != nil {
		return nil, err
	}

	out := make([]*Title, 0, len(hits))
	for _, h := range hits {
		if t, ok := s.byID[h.id]; ok {
			out = append(out, t)
		}
	}

	return out, nil
}

func (s *service) suggestTitle(ctx context.Context, query string) ([]Suggestion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.ready(); err != nil {
		return nil, err
	}

	hits, err := s.text.search(ctx, norm.NFC.String(query), true, s.limit)
	if err != nil {
		return nil, err
	}

	return suggest(hits), nil
}

func (s *service) titlesByAid(aid int) ([]*Title, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.ready(); err != nil {
		return nil, err
	}

	return append([]*Title(nil), s.byAid[aid]...), nil
}

func (s *service) allTitles() ([]*Title, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.ready(); err != nil {
		return nil, err
	}

	return append([]*Title(nil), s.titles...), nil
}

// AidByTitle returns the aid of the first title, in catalog order, exactly equal to title.
func (s *service) AidByTitle(ctx context.Context, title string) (int, bool, error) {
	if err := s.checkAll(ctx); err != nil {
		return 0, false, err
	}
	return s.aidByTitle(title)
}

// SearchTitle returns titles matching any token of query, best first. Each query token matches
// index terms within an edit distance of a fifth of its length rounded, or as a prefix.
func (s *service) SearchTitle(ctx context.Context, query string) ([]*Title, error) {
	if err := s.checkAll(ctx); err != nil {
		return nil, err
	}
	return s.searchTitle(ctx, query)
}

// SuggestTitle completes query from the titles matching every one of its tokens.
func (s *service) SuggestTitle(ctx context.Context, query string) ([]Suggestion, error) {
	if err := s.checkAll(ctx); err != nil {
		return nil, err
	}
	return s.suggestTitle(ctx, query)
}

func (s *service) TitlesByAid(ctx context.Context, aid int) ([]*Title, error) {
	if err := s.checkAll(ctx); err != nil {
		return nil, err
	}
	return s.titlesByAid(aid)
}

// TitlesByTitle resolves title to its aid by exact match and returns the titles of that anime,
// optionally restricted to a language and a title type. Empty filters match anything.
func (s *service) TitlesByTitle(ctx context.Context, title, lang, typ string) ([]*Title, error) {
	if err := s.checkAll(ctx); err != nil {
		return nil, err
	}

	aid, ok, err := s.aidByTitle(title)
	if err != nil || !ok {
		return nil, err
	}

	all, err := s.titlesByAid(aid)
	if err != nil {
		return nil, err
	}

	out := make([]*Title, 0, len(all))
	for _, t := range all {
		if lang != "" && t.Lang != lang {
			continue
		}
		if typ != "" && t.Type != typ {
			continue
		}
		out = append(out, t)
	}

	return out, nil
}

func (s *service) Titles(ctx context.Context) ([]*Title, error) {
	if err := s.checkAll(ctx); err != nil {
		return nil, err
	}
	return s.allTitles()
}

func (s *service) Close() error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = StateUninitialized
	if s.text == nil {
		return nil
	}

	err := s.text.close()
	s.text = nil
	return err
}
