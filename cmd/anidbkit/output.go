package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/varoOP/anidbkit/internal/anidb"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

// view is the tabular form of a command result. The raw value is what json and yaml output
// encode.
type view struct {
	raw     any
	headers []string
	rows    [][]string
	aligns  []columnAlignment
}

func render(cmd *cobra.Command, v view) error {
	format, _ := cmd.Flags().GetString("output")
	return writeView(cmd.OutOrStdout(), format, v)
}

func writeView(w io.Writer, format string, v view) error {
	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v.raw)

	case "yaml", "yml":
		// round trip through JSON so the json field names are kept
		b, err := json.Marshal(v.raw)
		if err != nil {
			return err
		}
		var generic any
		if err := json.Unmarshal(b, &generic); err != nil {
			return err
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(generic); err != nil {
			return err
		}
		return enc.Close()

	case "table", "":
		if len(v.rows) == 0 {
			_, err := fmt.Fprintln(w, "no results")
			return err
		}
		_, err := fmt.Fprintln(w, renderTable(v.headers, v.rows, v.aligns))
		return err

	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := 0; i < columns; i++ {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}

// mainTitle picks the main title of a list, falling back to the first one.
func mainTitle(ts []anidb.Title) string {
	for _, t := range ts {
		if t.Type == "main" {
			return t.Text
		}
	}
	if len(ts) > 0 {
		return ts[0].Text
	}
	return ""
}

func ratingValue(r *anidb.Rating) string {
	if r == nil {
		return ""
	}
	return r.Value
}

func summaryRows(anime []anidb.AnimeSummary) [][]string {
	rows := make([][]string, 0, len(anime))
	for _, a := range anime {
		rating := ratingValue(a.Ratings.Permanent)
		if rating == "" {
			rating = ratingValue(a.Ratings.Temporary)
		}
		rows = append(rows, []string{
			fmt.Sprint(a.ID),
			mainTitle(a.Titles),
			a.Type,
			fmt.Sprint(a.EpisodeCount),
			rating,
		})
	}
	return rows
}

var summaryHeaders = []string{"AID", "Title", "Type", "Episodes", "Rating"}

var summaryAligns = []columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignRight}

func similarRows(pairs []anidb.SimilarPair) [][]string {
	rows := make([][]string, 0, len(pairs))
	for _, p := range pairs {
		rows = append(rows, []string{
			fmt.Sprint(p.Source.Aid),
			mainTitle(p.Source.Titles),
			fmt.Sprint(p.Target.Aid),
			mainTitle(p.Target.Titles),
		})
	}
	return rows
}

var similarHeaders = []string{"Source AID", "Source", "Target AID", "Target"}

var similarAligns = []columnAlignment{alignRight, alignLeft, alignRight, alignLeft}
