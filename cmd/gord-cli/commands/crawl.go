package commands

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"catalogscraper/internal/catalogstore"
	"catalogscraper/internal/scrapers/gord"
	"catalogscraper/pkg/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var crawlDb *string
var crawlFacet *string
var crawlThreshold *float64

func init() {
	crawlDb = crawlCmd.Flags().String("db", "", "The sqlite database to export the crawl to.")
	crawlFacet = crawlCmd.Flags().String("facet", "", "Only print shoots with a facet similar to this one.")
	crawlThreshold = crawlCmd.Flags().Float64("threshold", 0.9, "The minimum Jaro-Winkler similarity of --facet.")
	rootCmd.AddCommand(crawlCmd)
}

// crawl logs in, reads the whole catalog and exports it when dbPath is set.
func crawl(ctx context.Context, cfg Config, dbPath string) ([]gord.Shoot, error) {
	started := time.Now()

	client, err := login(ctx, cfg)
	if err != nil {
		return nil, err
	}
	crawler := newCrawler(client, cfg)

	meta, err := crawler.QueryMeta(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("crawling catalog", "pages", meta.Pages, "categories", len(meta.Categories))

	shoots, err := crawler.Query(ctx)
	if err != nil {
		return nil, err
	}
	finished := time.Now()
	slog.Info("crawled catalog", "shoots", len(shoots), "seconds", finished.Sub(started).Seconds())

	if dbPath == "" {
		return shoots, nil
	}

	database, err := catalogstore.Open(ctx, dbPath)
	if err != nil {
		return nil, err
	}
	defer database.Close()

	id, err := catalogstore.NewStore(database).SaveRun(ctx, catalogstore.Run{
		StartedAt:  started,
		FinishedAt: finished,
		Meta:       meta,
		Shoots:     shoots,
	})
	if err != nil {
		return nil, err
	}
	slog.Info("exported crawl", "run", id, "db", dbPath)

	return shoots, nil
}

func printShoots(shoots []gord.Shoot) {
	t := newTable()
	t.AppendHeader(table.Row{"Page", "#", "Title", "Media", "Facets"})
	for _, shoot := range shoots {
		media := []string{}
		for _, m := range shoot.Media {
			media = append(media, m.Type)
		}
		t.AppendRow(table.Row{
			shoot.Page,
			shoot.Item,
			shoot.Title,
			strings.Join(media, ", "),
			strings.Join(shoot.Facets, ", "),
		})
	}
	t.Render()
}

var crawlCmd = &cobra.Command{
	Use:   "crawl [--db <path/to/results.db>] [--facet <name>]",
	Short: "Logs in and crawls every page of the catalog.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := readConfig()

		shoots, err := crawl(cmd.Context(), cfg, *crawlDb)
		if err != nil {
			serviceutil.Fatal("failed to crawl", err)
		}
		if *crawlFacet != "" {
			shoots = gord.MatchFacet(shoots, *crawlFacet, *crawlThreshold)
		}
		printShoots(shoots)
	},
}
