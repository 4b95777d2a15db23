package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/varoOP/anidbkit/internal/app"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Download and index the current title catalog",
	Long: `Sync makes sure the catalog snapshot of the current period exists:
1. Downloads anime-titles.xml.gz
2. Decompresses it to anime-titles.xml
3. Parses it into anime-titles.json

Stages whose output already exists are skipped, so an interrupted sync resumes
where it stopped. The title index is then built from the snapshot.`,
	Args: cobra.NoArgs,
	RunE: runWithApp(func(ctx context.Context, cmd *cobra.Command, args []string, a *app.App) error {
		res, err := a.Sync(ctx)
		if err != nil {
			return err
		}

		stages := make([]string, 0, len(res.Snapshot.Stages))
		for _, s := range res.Snapshot.Stages {
			stages = append(stages, string(s))
		}

		return render(cmd, view{
			raw: syncOutput{
				Snapshot: res.Snapshot.Dir,
				Stages:   stages,
				Anime:    res.Anime,
				Titles:   res.Titles,
			},
			headers: []string{"Snapshot", "Stages run", "Anime", "Titles"},
			rows: [][]string{{
				res.Snapshot.Dir,
				fmt.Sprint(stages),
				fmt.Sprint(res.Anime),
				fmt.Sprint(res.Titles),
			}},
			aligns: []columnAlignment{alignLeft, alignLeft, alignRight, alignRight},
		})
	}),
}

type syncOutput struct {
	Snapshot string   `json:"snapshot"`
	Stages   []string `json:"stages"`
	Anime    int      `json:"anime"`
	Titles   int      `json:"titles"`
}

func init() {
	rootCmd.AddCommand(syncCmd)
}
