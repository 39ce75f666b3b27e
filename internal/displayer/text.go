package displayer

import (
	"fmt"
	"io"
	"strings"

	"vdt/internal/diagnostic"
	"vdt/internal/models"

	"github.com/fatih/color"
)

const (
	NoCodesMessage = "No DTC codes found."
	codesHeader    = "Diagnostic Trouble Codes (DTC):\n"
)

var bannerLines = []string{
	"            _ _   ",
	" __   __ __| | |_ ",
	" \\ \\ / // _` | __|",
	"  \\ V /| (_| | |_ ",
	"   \\_/  \\__,_|\\__|",
	"",
	"Vehicle Diagnostic Tool",
}

// Banner is shown at the top of the window and on startup in headless mode.
var Banner = strings.Join(bannerLines, "\n")

func PrintBanner(w io.Writer) {
	_, _ = color.New(color.FgCyan).Fprintln(w, Banner)
}

// SummaryText renders the dialog body for a list of entries.
func SummaryText(entries []models.DTCEntry) string {
	if len(entries) == 0 {
		return NoCodesMessage
	}
	var b strings.Builder
	b.WriteString(codesHeader)
	for _, e := range entries {
		fmt.Fprintf(&b, "Code: %s, Description: %s\n", e.Code, e.Description)
	}
	return b.String()
}

// DialogText renders the dialog body for a check result. Failed checks show
// the same text as a clean vehicle; the failure itself is reported on the
// console.
func DialogText(res diagnostic.Result) string {
	if res.Outcome != models.OutcomeSuccess {
		return NoCodesMessage
	}
	text := SummaryText(res.Entries)
	if res.Err != nil {
		text += fmt.Sprintf("\nWarning: results could not be saved: %v", res.Err)
	}
	return text
}
