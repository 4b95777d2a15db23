package animetitles

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleXML = `<?xml version="1.0" encoding="UTF-8"?>
<!-- Created: Thu Mar  7 02:00:01 2024 -->
<animetitles>
	<anime aid="1">
		<title xml:lang="x-jat" type="main">Seikai no Monshou</title>
		<title xml:lang="en" type="official">Crest of the Stars</title>
	</anime>
	<anime aid="42">
		<title xml:lang="en" type="main">Foo</title>
		<title xml:lang="en" type="syn">Bar</title>
	</anime>
</animetitles>`

func TestDecode(t *testing.T) {
	c, err := Decode(strings.NewReader(sampleXML))
	require.NoError(t, err)

	require.Len(t, c.Anime, 2)
	require.Equal(t, 4, c.Len())

	require.Equal(t, 1, c.Anime[0].Aid)
	require.Equal(t, Title{Title: "Seikai no Monshou", Type: "main", Lang: "x-jat"}, c.Anime[0].Titles[0])
	require.Equal(t, 42, c.Anime[1].Aid)
	require.Equal(t, Title{Title: "Bar", Type: "syn", Lang: "en"}, c.Anime[1].Titles[1])
}

func TestDecodeMalformed(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{name: "empty", doc: ""},
		{name: "wrong root", doc: `<error>Banned</error>`},
		{name: "bad aid", doc: `<animetitles><anime aid="x"><title>A</title></anime></animetitles>`},
		{name: "truncated", doc: `<animetitles><anime aid="1"><title>A</ti`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.doc))
			require.Error(t, err)
		})
	}
}

func TestJSONRoundTrip(t *testing.T) {
	c, err := Decode(strings.NewReader(sampleXML))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, c))

	got, err := ReadJSON(&buf)
	require.NoError(t, err)
	require.Equal(t, c, got)
}
