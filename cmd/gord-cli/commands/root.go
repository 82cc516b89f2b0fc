package commands

import (
	"context"
	"fmt"
	"os"

	"catalogscraper/internal/components/telemetry"
	"catalogscraper/pkg/serviceutil"

	"github.com/spf13/cobra"
)

var configPath *string
var verbose *bool
var dumpHttp *string

var tel telemetry.API = telemetry.SlogAPI{}

var rootCmd = &cobra.Command{
	Use:   "gord-cli",
	Short: "gord-cli logs into houseofgord.com and crawls its catalog.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		telemetry.InitSlog(*verbose)
		if *dumpHttp == "" {
			return
		}
		dump, err := telemetry.NewDirDump(*dumpHttp)
		if err != nil {
			serviceutil.Fatal("failed to create http dump directory", err)
		}
		telemetry.SetHttpDump(dump)
	},
}

func init() {
	configPath = rootCmd.PersistentFlags().String("config", "config.json5", "The config file holding credentials and the captcha api key.")
	verbose = rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log debug output.")
	dumpHttp = rootCmd.PersistentFlags().String("dump-http", "", "A directory to write every http exchange to, for debugging selectors.")
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
