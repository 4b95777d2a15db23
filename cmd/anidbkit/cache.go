package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/varoOP/anidbkit/internal/app"
	"github.com/varoOP/anidbkit/internal/domain"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the response cache",
}

var cachePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove expired cached responses",
	Long: `Remove every cached response older than cache.ttl. Nothing expires when no
TTL is configured.`,
	Args: cobra.NoArgs,
	RunE: runWithApp(func(ctx context.Context, cmd *cobra.Command, args []string, a *app.App) error {
		n, err := a.PruneCache(ctx)
		if err != nil {
			return err
		}

		return render(cmd, view{
			raw:     pruneOutput{Removed: n, TTL: a.Config().Cache.TTL.String()},
			headers: []string{"Removed", "TTL"},
			rows:    [][]string{{fmt.Sprint(n), a.Config().Cache.TTL.String()}},
			aligns:  []columnAlignment{alignRight},
		})
	}),
}

var cacheMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Copy cached responses and rate limit state to another store backend",
	Long: `Copy every cached response and the rate limit window from the configured
store backend into the --to backend under the same cache path. Run it before
switching store.backend so the cache survives the switch.`,
	Args: cobra.NoArgs,
	RunE: runWithApp(func(ctx context.Context, cmd *cobra.Command, args []string, a *app.App) error {
		to, _ := cmd.Flags().GetString("to")

		res, err := a.MigrateStore(ctx, domain.StoreBackend(to))
		if err != nil {
			return err
		}

		return render(cmd, view{
			raw:     res,
			headers: []string{"Responses", "Rate limit", "Skipped"},
			rows:    [][]string{{fmt.Sprint(res.Responses), fmt.Sprint(res.RateLimit), fmt.Sprint(res.Skipped)}},
			aligns:  []columnAlignment{alignRight, alignLeft, alignRight},
		})
	}),
}

type pruneOutput struct {
	Removed int    `json:"removed"`
	TTL     string `json:"ttl"`
}

func init() {
	cacheMigrateCmd.Flags().String("to", string(domain.StoreBackendSQLite), "destination backend: file or sqlite")
	cacheCmd.AddCommand(cachePruneCmd, cacheMigrateCmd)
	rootCmd.AddCommand(cacheCmd)
}
