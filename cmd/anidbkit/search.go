package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/varoOP/anidbkit/internal/app"
	"github.com/varoOP/anidbkit/internal/titles"
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search titles with typo tolerance",
	Long: `Search the title index. Every word of the query matches catalog words within a
small edit distance or as a prefix; results are ordered by relevance.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runWithApp(func(ctx context.Context, cmd *cobra.Command, args []string, a *app.App) error {
		res, err := a.Titles.SearchTitle(ctx, strings.Join(args, " "))
		if err != nil {
			return err
		}

		limit, _ := cmd.Flags().GetInt("limit")
		if limit > 0 && len(res) > limit {
			res = res[:limit]
		}

		return render(cmd, titleView(res))
	}),
}

var suggestCmd = &cobra.Command{
	Use:   "suggest <query>",
	Short: "Suggest completions for a partial title",
	Args:  cobra.MinimumNArgs(1),
	RunE: runWithApp(func(ctx context.Context, cmd *cobra.Command, args []string, a *app.App) error {
		res, err := a.Titles.SuggestTitle(ctx, strings.Join(args, " "))
		if err != nil {
			return err
		}

		limit, _ := cmd.Flags().GetInt("limit")
		if limit > 0 && len(res) > limit {
			res = res[:limit]
		}

		rows := make([][]string, 0, len(res))
		for _, s := range res {
			rows = append(rows, []string{s.Suggestion, fmt.Sprintf("%.3f", s.Score)})
		}

		return render(cmd, view{
			raw:     res,
			headers: []string{"Suggestion", "Score"},
			rows:    rows,
			aligns:  []columnAlignment{alignLeft, alignRight},
		})
	}),
}

func titleView(ts []*titles.Title) view {
	rows := make([][]string, 0, len(ts))
	for _, t := range ts {
		rows = append(rows, []string{fmt.Sprint(t.Aid), t.Title, t.Type, t.Lang})
	}

	if ts == nil {
		ts = []*titles.Title{}
	}

	return view{
		raw:     ts,
		headers: []string{"AID", "Title", "Type", "Lang"},
		rows:    rows,
		aligns:  []columnAlignment{alignRight},
	}
}

func init() {
	searchCmd.Flags().Int("limit", 20, "maximum number of results")
	suggestCmd.Flags().Int("limit", 10, "maximum number of suggestions")
	rootCmd.AddCommand(searchCmd, suggestCmd)
}
