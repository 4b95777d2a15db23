package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/varoOP/anidbkit/internal/app"
)

var lookupCmd = &cobra.Command{
	Use:   "lookup <title>",
	Short: "Resolve an exact title to its anime id",
	Args:  cobra.MinimumNArgs(1),
	RunE: runWithApp(func(ctx context.Context, cmd *cobra.Command, args []string, a *app.App) error {
		title := strings.Join(args, " ")

		aid, ok, err := a.Titles.AidByTitle(ctx, title)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("no anime titled %q", title)
		}

		return render(cmd, view{
			raw:     lookupOutput{Title: title, Aid: aid},
			headers: []string{"Title", "AID"},
			rows:    [][]string{{title, fmt.Sprint(aid)}},
			aligns:  []columnAlignment{alignLeft, alignRight},
		})
	}),
}

type lookupOutput struct {
	Title string `json:"title"`
	Aid   int    `json:"aid"`
}

var titlesCmd = &cobra.Command{
	Use:   "titles <aid|title>",
	Short: "List every title of an anime",
	Long: `List the titles of an anime, given either its numeric id or one of its exact
titles. --lang and --type restrict the result when a title is given.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runWithApp(func(ctx context.Context, cmd *cobra.Command, args []string, a *app.App) error {
		query := strings.Join(args, " ")

		if aid, err := strconv.Atoi(query); err == nil {
			ts, err := a.Titles.TitlesByAid(ctx, aid)
			if err != nil {
				return err
			}
			return render(cmd, titleView(ts))
		}

		lang, _ := cmd.Flags().GetString("lang")
		typ, _ := cmd.Flags().GetString("type")

		ts, err := a.Titles.TitlesByTitle(ctx, query, lang, typ)
		if err != nil {
			return err
		}
		return render(cmd, titleView(ts))
	}),
}

func init() {
	titlesCmd.Flags().String("lang", "", "only titles in this language (e.g. en, x-jat)")
	titlesCmd.Flags().String("type", "", "only titles of this type (main, official, syn, short)")
	rootCmd.AddCommand(lookupCmd, titlesCmd)
}
