package report

import (
	"fmt"
	"strings"

	"vdt/internal/models"

	"github.com/phpdave11/gofpdf"
)

const pdfTimeLayout = "2006-01-02 15:04:05"

// WritePDF renders rec as an A4 report at path.
func WritePDF(path string, rec models.CheckRecord) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(14, 14, 14)
	pdf.SetAutoPageBreak(true, 14)
	pdf.SetTitle("Vehicle Diagnostic Tool - Diagnostic Report", false)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 9, "Diagnostic Report", "", 1, "L", false, 0, "")

	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(60, 60, 60)
	pdf.CellFormat(0, 6, fmt.Sprintf("Check ID: %s", rec.ID), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Checked at: %s", rec.CheckedAt.Format(pdfTimeLayout)), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Outcome: %s", strings.ReplaceAll(string(rec.Outcome), "_", " ")), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	pdf.SetTextColor(20, 20, 20)
	if len(rec.Entries) == 0 {
		pdf.SetFont("Helvetica", "", 11)
		pdf.MultiCell(0, 6, "No DTC codes found.", "", "L", false)
	} else {
		pdf.SetFont("Helvetica", "B", 11)
		pdf.SetFillColor(230, 230, 230)
		pdf.CellFormat(30, 7, "Code", "1", 0, "L", true, 0, "")
		pdf.CellFormat(0, 7, "Description", "1", 1, "L", true, 0, "")

		pdf.SetFont("Helvetica", "", 10)
		for _, e := range rec.Entries {
			pdf.CellFormat(30, 6, tr(string(e.Code)), "1", 0, "L", false, 0, "")
			pdf.CellFormat(0, 6, tr(e.Description), "1", 1, "L", false, 0, "")
		}
	}

	if err := pdf.OutputFileAndClose(path); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}
