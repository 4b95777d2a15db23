package titles

import (
	"context"
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search"
	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/pkg/errors"
)

const (
	titleField = "title"
	batchSize  = 1000

	// fuzziness is the edit distance allowed per character of a query token
	fuzziness    = 0.2
	maxFuzziness = 2
)

// Suggestion is a completion built from the index terms a group of hits matched.
type Suggestion struct {
	Suggestion string   `json:"suggestion" yaml:"suggestion"`
	Terms      []string `json:"terms" yaml:"terms"`
	Score      float64  `json:"score" yaml:"score"`
}

type hit struct {
	id    string
	score float64
	terms []string
}

// textIndex is an in-memory full-text index over title text. Aid, type and lang are stored with
// each document but not indexed.
type textIndex struct {
	index   bleve.Index
	analyze func([]byte) analysis.TokenStream
}

func newIndexMapping() *mapping.IndexMappingImpl {
	title := bleve.NewTextFieldMapping()
	title.Analyzer = standard.Name
	title.Store = true
	title.IncludeTermVectors = true

	stored := bleve.NewTextFieldMapping()
	stored.Index = false
	stored.Store = true

	aid := bleve.NewNumericFieldMapping()
	aid.Index = false
	aid.Store = true

	doc := bleve.NewDocumentMapping()
	doc.Dynamic = false
	doc.AddFieldMappingsAt(titleField, title)
	doc.AddFieldMappingsAt("aid", aid)
	doc.AddFieldMappingsAt("type", stored)
	doc.AddFieldMappingsAt("lang", stored)

	m := bleve.NewIndexMapping()
	m.DefaultMapping = doc
	m.DefaultAnalyzer = standard.Name
	m.StoreDynamic = false
	m.IndexDynamic = false

	return m
}

func newTextIndex(titles []*Title) (*textIndex, error) {
	m := newIndexMapping()

	idx, err := bleve.NewMemOnly(m)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create index")
	}

	analyzer := m.AnalyzerNamed(standard.Name)
	if analyzer == nil {
		idx.Close()
		return nil, errors.Errorf("analyzer %s not registered", standard.Name)
	}

	b := idx.NewBatch()
	for _, t := range titles {
		doc := map[string]interface{}{
			titleField: t.Title,
			"aid":      float64(t.Aid),
			"type":     t.Type,
			"lang":     t.Lang,
		}
		if err := b.Index(t.ID, doc); err != nil {
			idx.Close()
			return nil, errors.Wrapf(err, "failed to index title %s", t.ID)
		}

		if b.Size() >= batchSize {
			if err := idx.Batch(b); err != nil {
				idx.Close()
				return nil, errors.Wrap(err, "failed to index batch")
			}
			b.Reset()
		}
	}

	if b.Size() > 0 {
		if err := idx.Batch(b); err != nil {
			idx.Close()
			return nil, errors.Wrap(err, "failed to index batch")
		}
	}

	return &textIndex{index: idx, analyze: analyzer.Analyze}, nil
}

// tokenQuery matches term on the title field within its fuzziness, or as a prefix.
func tokenQuery(term string) query.Query {
	pq := bleve.NewPrefixQuery(term)
	pq.SetField(titleField)

	fuzz := tokenFuzziness(term)
	if fuzz == 0 {
		tq := bleve.NewTermQuery(term)
		tq.SetField(titleField)
		return bleve.NewDisjunctionQuery(tq, pq)
	}

	fq := bleve.NewFuzzyQuery(term)
	fq.SetField(titleField)
	fq.SetFuzziness(fuzz)
	return bleve.NewDisjunctionQuery(fq, pq)
}

// query combines one tokenQuery per analyzed token of text. With all set every token must
// match, otherwise any may. It returns nil when text has no indexable tokens.
func (x *textIndex) query(text string, all bool) query.Query {
	var qs []query.Query
	for _, tok := range x.analyze([]byte(text)) {
		qs = append(qs, tokenQuery(string(tok.Term)))
	}

	if len(qs) == 0 {
		return nil
	}

	if all {
		return bleve.NewConjunctionQuery(qs...)
	}
	return bleve.NewDisjunctionQuery(qs...)
}

// tokenFuzziness is a fifth of the token length rounded to the nearest edit, capped at 2.
func tokenFuzziness(term string) int {
	return min(int(math.Round(fuzziness*float64(utf8.RuneCountInString(term)))), maxFuzziness)
}

func (x *textIndex) search(ctx context.Context, text string, all bool, limit int) ([]hit, error) {
	q := x.query(text, all)
	if q == nil {
		return nil, nil
	}

	req := bleve.NewSearchRequestOptions(q, limit, 0, false)
	req.IncludeLocations = true

	res, err := x.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to search index")
	}

	hits := make([]hit, 0, len(res.Hits))
	for _, dm := range res.Hits {
		hits = append(hits, hit{
			id:    dm.ID,
			score: dm.Score,
			terms: matchedTerms(dm.Locations[titleField]),
		})
	}

	return hits, nil
}

// matchedTerms returns the matched index terms ordered by their first position in the title
func matchedTerms(locations search.TermLocationMap) []string {
	type termPos struct {
		term string
		pos  uint64
	}

	var tp []termPos
	for term, locs := range locations {
		first := uint64(0)
		for i, l := range locs {
			if i == 0 || l.Pos < first {
				first = l.Pos
			}
		}
		tp = append(tp, termPos{term: term, pos: first})
	}

	sort.Slice(tp, func(i, j int) bool {
		if tp[i].pos != tp[j].pos {
			return tp[i].pos < tp[j].pos
		}
		return tp[i].term < tp[j].term
	})

	terms := make([]string, 0, len(tp))
	for _, t := range tp {
		terms = append(terms, t.term)
	}
	return terms
}

// suggest groups hits by the set of terms they matched and ranks the groups by summed score
func suggest(hits []hit) []Suggestion {
	groups := map[string]*Suggestion{}
	var order []string

	for _, h := range hits {
		if len(h.terms) == 0 {
			continue
		}

		key := strings.Join(h.terms, " ")
		s, ok := groups[key]
		if !ok {
			s = &Suggestion{Suggestion: key, Terms: h.terms}
			groups[key] = s
			order = append(order, key)
		}
		s.Score += h.score
	}

	out := make([]Suggestion, 0, len(order))
	for _, key := range order {
		out = append(out, *groups[key])
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})

	return out
}

func (x *textIndex) close() error {
	return x.index.Close()
}
