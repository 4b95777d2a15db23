// Package animetitles reads the AniDB anime-titles dump and converts it to a normalized form.
package animetitles

import (
	"encoding/json"
	"encoding/xml"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/net/html/charset"
)

// XMLAnime is one <anime> element of the dump
type XMLAnime struct {
	Aid   string `xml:"aid,attr"`
	Title []struct {
		Text string `xml:",chardata"`
		Type string `xml:"type,attr"`
		Lang string `xml:"lang,attr"`
	} `xml:"title"`
}

// Catalog is the normalized catalog persisted as JSON.
type Catalog struct {
	Anime []Anime `json:"anime"`
}

type Anime struct {
	Aid    int     `json:"aid"`
	Titles []Title `json:"titles"`
}

type Title struct {
	Title string `json:"title"`
	Type  string `json:"type"`
	Lang  string `json:"lang"`
}

// Decode streams an <animetitles> document and returns the normalized catalog.
func Decode(r io.Reader) (*Catalog, error) {
	d := xml.NewDecoder(r)
	d.CharsetReader = charset.NewReaderLabel

	c := &Catalog{}
	rootSeen := false
	for {
		tok, err := d.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "failed to read xml token")
		}

		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}

		switch se.Name.Local {
		case "animetitles":
			rootSeen = true
		case "anime":
			if !rootSeen {
				return nil, errors.New("anime element outside animetitles")
			}
			var xa XMLAnime
			if err := d.DecodeElement(&xa, &se); err != nil {
				return nil, errors.Wrap(err, "failed to decode anime element")
			}
			a, err := normalize(xa)
			if err != nil {
				return nil, err
			}
			c.Anime = append(c.Anime, a)
		default:
			if !rootSeen {
				return nil, errors.Errorf("unexpected root element %q", se.Name.Local)
			}
		}
	}

	if !rootSeen {
		return nil, errors.New("missing animetitles root element")
	}

	return c, nil
}

func normalize(xa XMLAnime) (Anime, error) {
	aid, err := strconv.Atoi(strings.TrimSpace(xa.Aid))
	if err != nil {
		return Anime{}, errors.Wrapf(err, "invalid aid %q", xa.Aid)
	}

	a := Anime{Aid: aid, Titles: make([]Title, 0, len(xa.Title))}
	for _, t := range xa.Title {
		a.Titles = append(a.Titles, Title{
			Title: t.Text,
			Type:  t.Type,
			Lang:  t.Lang,
		})
	}

	return a, nil
}

// ReadJSON loads a normalized catalog.
func ReadJSON(r io.Reader) (*Catalog, error) {
	c := &Catalog{}
	if err := json.NewDecoder(r).Decode(c); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal catalog json")
	}

	return c, nil
}

// WriteJSON persists a normalized catalog.
func WriteJSON(w io.Writer, c *Catalog) error {
	if err := json.NewEncoder(w).Encode(c); err != nil {
		return errors.Wrap(err, "failed to marshal catalog json")
	}

	return nil
}

// Len returns the total number of titles across all anime.
func (c *Catalog) Len() int {
	n := 0
	for _, a := range c.Anime {
		n += len(a.Titles)
	}
	return n
}
