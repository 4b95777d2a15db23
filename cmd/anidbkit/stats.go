package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/varoOP/anidbkit/internal/app"
)

func printStats(cmd *cobra.Command, a *app.App) error {
	samples, err := a.Metrics().Snapshot()
	if err != nil {
		return err
	}

	rows := make([][]string, 0, len(samples))
	for _, s := range samples {
		rows = append(rows, []string{s.Name, s.Labels, fmt.Sprint(s.Value)})
	}

	return render(cmd, view{
		raw:     samples,
		headers: []string{"Metric", "Labels", "Value"},
		rows:    rows,
		aligns:  []columnAlignment{alignLeft, alignLeft, alignRight},
	})
}
