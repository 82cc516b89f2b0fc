package commands

import (
	"fmt"

	"catalogscraper/pkg/serviceutil"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(balanceCmd)
}

var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Prints the balance of the captcha solving account.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := readConfig()
		balance, err := newSolver(cfg).Balance(cmd.Context())
		if err != nil {
			serviceutil.Fatal("failed to get balance", err)
		}
		fmt.Printf("balance: %.4f\n", balance)
	},
}
