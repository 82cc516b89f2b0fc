package commands

import (
	"time"

	"catalogscraper/internal/catalogstore"
	"catalogscraper/pkg/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var runsDb *string
var runsFacet *string

func init() {
	runsDb = runsCmd.Flags().String("db", "results.db", "The sqlite database crawls were exported to.")
	runsFacet = runsCmd.Flags().String("facet", "", "List the shoots of the latest run carrying exactly this facet instead.")
	rootCmd.AddCommand(runsCmd)
}

var runsCmd = &cobra.Command{
	Use:   "runs [--db <path/to/results.db>] [--facet <name>]",
	Short: "Lists the crawls exported to a results database.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()

		database, err := catalogstore.Open(ctx, *runsDb)
		if err != nil {
			serviceutil.Fatal("failed to open results db", err)
		}
		defer database.Close()
		store := catalogstore.NewStore(database)

		runs, err := store.Runs(ctx)
		if err != nil {
			serviceutil.Fatal("failed to list runs", err)
		}

		if *runsFacet == "" {
			t := newTable()
			t.AppendHeader(table.Row{"Run", "Started", "Took", "Pages", "Shoots"})
			for _, run := range runs {
				started := time.Unix(run.Startedat, 0)
				t.AppendRow(table.Row{
					run.ID,
					started.Format(time.DateTime),
					time.Unix(run.Finishedat, 0).Sub(started).String(),
					run.Pages,
					run.Shoots,
				})
			}
			t.Render()
			return
		}

		if len(runs) == 0 {
			return
		}
		shoots, err := store.ShootsWithFacet(ctx, runs[0].ID, *runsFacet)
		if err != nil {
			serviceutil.Fatal("failed to list shoots", err)
		}
		t := newTable()
		t.AppendHeader(table.Row{"Page", "#", "Title", "Ref"})
		for _, shoot := range shoots {
			t.AppendRow(table.Row{shoot.Page, shoot.Item, shoot.Title, shoot.Ref})
		}
		t.Render()
	},
}
