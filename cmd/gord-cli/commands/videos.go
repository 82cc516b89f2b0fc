package commands

import (
	"catalogscraper/pkg/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(videosCmd)
}

var videosCmd = &cobra.Command{
	Use:   "videos <ref>",
	Short: "Lists the video files of one shoot, ref is the shoot's media link.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := readConfig()
		client := mustLogin(cmd.Context(), cfg)

		videos, err := newCrawler(client, cfg).Videos(cmd.Context(), args[0])
		if err != nil {
			serviceutil.Fatal("failed to get videos", err)
		}

		t := newTable()
		t.AppendHeader(table.Row{"Video", "Quality", "Size", "Link"})
		for _, video := range videos {
			t.AppendRow(table.Row{video.Name, "default", "", video.Default})
			for _, quality := range video.Qualities {
				t.AppendRow(table.Row{video.Name, quality.Name, quality.Size, quality.Ref})
			}
			t.AppendSeparator()
		}
		t.Render()
	},
}
