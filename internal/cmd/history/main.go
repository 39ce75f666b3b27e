package history

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"vdt/internal/cmd/common"
	"vdt/internal/models"
	"vdt/internal/report"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const timeLayout = "2006-01-02 15:04:05"

func Run(cmd *cobra.Command, args []string) {
	path := viper.GetString("history-db")
	if path == "" {
		fmt.Println("History is disabled.")
		return
	}

	store := common.OpenHistory(cmd.Context(), path)
	defer store.Close()

	records, err := store.List(cmd.Context(), viper.GetInt("limit"))
	if err != nil {
		common.Fatal("failed to list checks", err)
	}
	if err := printRecords(os.Stdout, records); err != nil {
		common.Fatal("failed to print checks", err)
	}
}

func printRecords(w io.Writer, records []models.CheckRecord) error {
	if len(records) == 0 {
		_, err := fmt.Fprintln(w, "No checks recorded.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tOUTCOME\tCODES\tID")
	for _, rec := range records {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", rec.CheckedAt.Local().Format(timeLayout), rec.Outcome, len(rec.Entries), rec.ID)
		for _, e := range rec.Entries {
			fmt.Fprintf(tw, "\t\t\t  %s\n", report.FormatLine(e))
		}
	}
	return tw.Flush()
}
