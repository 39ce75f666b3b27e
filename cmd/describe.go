package cmd

import (
	"vdt/internal/cmd/describe"

	"github.com/spf13/cobra"
)

var describeCmd = &cobra.Command{
	Use:   "describe <code>...",
	Short: "Print the catalog description of trouble codes",
	Args:  cobra.MinimumNArgs(1),
	Run:   describe.Run,
}

func init() {
	rootCmd.AddCommand(describeCmd)
}
