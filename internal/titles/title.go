package titles

import (
	"context"
	"encoding/hex"
	"strconv"

	"github.com/pkg/errors"
	"github.com/zeebo/blake3"

	"github.com/varoOP/anidbkit/internal/anidb"
)

// DetailFetcher loads the full record of one anime. anidb.Service satisfies it.
type DetailFetcher interface {
	FetchAnimeDetails(ctx context.Context, aid int) (*anidb.AnimeDetail, error)
}

// Title is one alias of an anime as listed in the catalog.
type Title struct {
	ID    string `json:"id" yaml:"id"`
	Aid   int    `json:"aid" yaml:"aid"`
	Title string `json:"title" yaml:"title"`
	Type  string `json:"type" yaml:"type"`
	Lang  string `json:"lang" yaml:"lang"`

	fetcher DetailFetcher
}

// FetchDetails requests the full anime record of t. Nothing is fetched until called.
func (t *Title) FetchDetails(ctx context.Context) (*anidb.AnimeDetail, error) {
	if t.fetcher == nil {
		return nil, errors.New("title has no detail fetcher")
	}
	return t.fetcher.FetchAnimeDetails(ctx, t.Aid)
}

// TitleID derives the deterministic id of a title: the first 16 bytes of the BLAKE3 hash of its
// fields, hex encoded.
func TitleID(aid int, title, typ, lang string) string {
	h := blake3.New()
	h.Write([]byte(strconv.Itoa(aid)))
	h.Write([]byte{0})
	h.Write([]byte(title))
	h.Write([]byte{0})
	h.Write([]byte(typ))
	h.Write([]byte{0})
	h.Write([]byte(lang))

	sum := h.Sum(nil)
	return hex.EncodeToString(sum[:16])
}
