package commands

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(loginCmd)
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Logs in and lists the cookies of the resulting session.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := readConfig()
		client := mustLogin(cmd.Context(), cfg)

		t := newTable()
		t.AppendHeader(table.Row{"Cookie"})
		for _, name := range client.Jar.Names() {
			t.AppendRow(table.Row{name})
		}
		t.Render()
	},
}
