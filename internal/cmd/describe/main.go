package describe

import (
	"fmt"
	"io"
	"os"

	"vdt/internal/catalog"
	"vdt/internal/cmd/common"
	"vdt/internal/models"
	"vdt/internal/report"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func Run(cmd *cobra.Command, args []string) {
	cat := common.LoadCatalog(viper.GetString("catalog"))
	describe(os.Stdout, cat, args)
}

func describe(w io.Writer, cat *catalog.Catalog, args []string) {
	codes := make([]models.TroubleCode, 0, len(args))
	for _, arg := range args {
		codes = append(codes, models.TroubleCode(arg))
	}
	for _, e := range cat.DescribeAll(codes) {
		fmt.Fprintln(w, report.FormatLine(e))
	}
}
