package cmd

import (
	"vdt/internal/cmd/history"
	checks "vdt/internal/history"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded checks, newest first",
	Args:  cobra.NoArgs,
	Run:   history.Run,
}

func init() {
	historyCmd.Flags().Int("limit", checks.DefaultListLimit, "Maximum number of checks to list")
	_ = viper.BindPFlag("limit", historyCmd.Flags().Lookup("limit"))
	viper.SetDefault("limit", checks.DefaultListLimit)

	rootCmd.AddCommand(historyCmd)
}
