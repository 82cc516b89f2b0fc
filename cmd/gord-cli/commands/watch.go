package commands

import (
	"context"
	"log/slog"
	"time"

	"catalogscraper/internal/components/chrono"
	"catalogscraper/pkg/serviceutil"

	"github.com/spf13/cobra"
)

const report_watch_crawl = "watch.crawl"

var watchSchedule *string
var watchDb *string

func init() {
	watchSchedule = watchCmd.Flags().String("schedule", "@daily", "The cron schedule to crawl on.")
	watchDb = watchCmd.Flags().String("db", "results.db", "The sqlite database to export every crawl to.")
	rootCmd.AddCommand(watchCmd)
}

var watchCmd = &cobra.Command{
	Use:   "watch [--schedule <cron spec>] [--db <path/to/results.db>]",
	Short: "Crawls the catalog on a schedule until interrupted, logging in again for every crawl.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		cfg := readConfig()

		cron := chrono.NewStandardCron(ctx, tel)
		err := cron.Cron(*watchSchedule, func(ctx context.Context) {
			shoots, err := crawl(ctx, cfg, *watchDb)
			if err != nil {
				tel.ReportBroken(report_watch_crawl, err)
				return
			}
			tel.ReportCount(report_watch_crawl, int64(len(shoots)))
			slog.Info("next crawl", "at", cron.Next().Format(time.DateTime))
		})
		if err != nil {
			serviceutil.Fatal("invalid schedule", err)
		}

		slog.Info(
			"watching catalog",
			"schedule", *watchSchedule,
			"db", *watchDb,
			"next", cron.Next().Format(time.DateTime),
		)
		<-ctx.Done()
		cron.Stop()
	},
}
