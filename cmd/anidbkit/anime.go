package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/varoOP/anidbkit/internal/anidb"
	"github.com/varoOP/anidbkit/internal/app"
)

var detailsCmd = &cobra.Command{
	Use:   "details <aid>",
	Short: "Fetch the full record of an anime",
	Long: `Fetch request=anime for the given id. Responses are cached, so repeated calls
do not count against the request rate.`,
	Args: cobra.ExactArgs(1),
	RunE: runWithApp(func(ctx context.Context, cmd *cobra.Command, args []string, a *app.App) error {
		aid, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid anime id %q", args[0])
		}

		d, err := a.AniDB.FetchAnimeDetails(ctx, aid)
		if err != nil {
			return err
		}

		return render(cmd, detailView(d))
	}),
}

func detailView(d *anidb.AnimeDetail) view {
	rating := ratingValue(d.Ratings.Permanent)

	tags := make([]string, 0, len(d.Tags))
	for _, t := range d.Tags {
		tags = append(tags, t.Name)
	}

	rows := [][]string{
		{"AID", fmt.Sprint(d.ID)},
		{"Title", mainTitle(d.Titles)},
		{"Type", d.Type},
		{"Episodes", fmt.Sprint(d.EpisodeCount)},
		{"Aired", strings.TrimSuffix(d.StartDate+" - "+d.EndDate, " - ")},
		{"Rating", rating},
		{"Tags", strings.Join(tags, ", ")},
		{"URL", d.URL},
	}

	return view{raw: d, headers: []string{"Field", "Value"}, rows: rows}
}

var hotCmd = &cobra.Command{
	Use:   "hot",
	Short: "List currently popular anime",
	Args:  cobra.NoArgs,
	RunE: runWithApp(func(ctx context.Context, cmd *cobra.Command, args []string, a *app.App) error {
		hot, err := a.AniDB.FetchHotAnime(ctx)
		if err != nil {
			return err
		}

		return render(cmd, view{raw: hot, headers: summaryHeaders, rows: summaryRows(hot.Anime), aligns: summaryAligns})
	}),
}

var recommendationCmd = &cobra.Command{
	Use:   "recommendation",
	Short: "List random recommended anime",
	Args:  cobra.NoArgs,
	RunE: runWithApp(func(ctx context.Context, cmd *cobra.Command, args []string, a *app.App) error {
		rec, err := a.AniDB.FetchRecommendation(ctx)
		if err != nil {
			return err
		}

		return render(cmd, view{raw: rec, headers: summaryHeaders, rows: summaryRows(rec.Anime), aligns: summaryAligns})
	}),
}

var similarCmd = &cobra.Command{
	Use:   "similar",
	Short: "List random pairs of similar anime",
	Args:  cobra.NoArgs,
	RunE: runWithApp(func(ctx context.Context, cmd *cobra.Command, args []string, a *app.App) error {
		sim, err := a.AniDB.FetchRandomSimilar(ctx)
		if err != nil {
			return err
		}

		return render(cmd, view{raw: sim, headers: similarHeaders, rows: similarRows(sim.Similar), aligns: similarAligns})
	}),
}

var mainCmd = &cobra.Command{
	Use:   "main",
	Short: "Fetch the hot, similar and recommendation feeds in one request",
	Args:  cobra.NoArgs,
	RunE: runWithApp(func(ctx context.Context, cmd *cobra.Command, args []string, a *app.App) error {
		m, err := a.AniDB.FetchMain(ctx)
		if err != nil {
			return err
		}

		rows := make([][]string, 0, len(m.HotAnime)+len(m.RandomRecommendation)+len(m.RandomSimilar))
		for _, r := range summaryRows(m.HotAnime) {
			rows = append(rows, append([]string{"hot"}, r[:2]...))
		}
		for _, r := range summaryRows(m.RandomRecommendation) {
			rows = append(rows, append([]string{"recommendation"}, r[:2]...))
		}
		for _, p := range m.RandomSimilar {
			rows = append(rows, []string{
				"similar",
				fmt.Sprint(p.Source.Aid),
				fmt.Sprintf("%s ~ %s", mainTitle(p.Source.Titles), mainTitle(p.Target.Titles)),
			})
		}

		return render(cmd, view{
			raw:     m,
			headers: []string{"Feed", "AID", "Title"},
			rows:    rows,
			aligns:  []columnAlignment{alignLeft, alignRight},
		})
	}),
}

func init() {
	rootCmd.AddCommand(detailsCmd, hotCmd, recommendationCmd, similarCmd, mainCmd)
}
