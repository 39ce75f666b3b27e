package report

import (
	"fmt"
	"os"
	"strings"

	"vdt/internal/models"
	"vdt/pkg/log"

	"go.uber.org/zap"
)

const (
	DefaultLogFile    = "diagnostic.log"
	DefaultReportFile = "report.txt"

	// Header opens every text report.
	Header = "Diagnostic Report\n=================\n"
)

// Config names the files a Sink writes. An empty PDFFile disables the PDF
// report.
type Config struct {
	LogFile    string
	ReportFile string
	PDFFile    string
}

// Sink writes check results to the code log and the report files. It is
// created once at startup and shared by every check.
type Sink struct {
	logger     *zap.Logger
	closeLog   func()
	reportFile string
	pdfFile    string
}

// NewSink opens the code log in append mode. The code log is never rotated
// or truncated.
func NewSink(cfg Config) (*Sink, error) {
	if cfg.LogFile == "" {
		cfg.LogFile = DefaultLogFile
	}
	if cfg.ReportFile == "" {
		cfg.ReportFile = DefaultReportFile
	}
	ws, closeLog, err := zap.Open(cfg.LogFile)
	if err != nil {
		return nil, fmt.Errorf("open code log: %w", err)
	}
	return &Sink{
		logger:     log.NewTextLogger(ws),
		closeLog:   closeLog,
		reportFile: cfg.ReportFile,
		pdfFile:    cfg.PDFFile,
	}, nil
}

// FormatLine renders one entry as "Code: <code>, Description: <description>".
func FormatLine(e models.DTCEntry) string {
	return fmt.Sprintf("Code: %s, Description: %s", e.Code, e.Description)
}

// Render returns the text report for entries.
func Render(entries []models.DTCEntry) string {
	var sb strings.Builder
	sb.WriteString(Header)
	for _, e := range entries {
		sb.WriteString(FormatLine(e))
		sb.WriteByte('\n')
	}
	return sb.String()
}

// LogCodes appends one line per entry to the code log.
func (s *Sink) LogCodes(entries []models.DTCEntry) {
	for _, e := range entries {
		s.logger.Info(FormatLine(e))
	}
}

// GenerateReport overwrites the report file. The header is written even
// when there are no entries.
func (s *Sink) GenerateReport(entries []models.DTCEntry) error {
	if err := os.WriteFile(s.reportFile, []byte(Render(entries)), 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// ReportFile returns the path of the text report.
func (s *Sink) ReportFile() string {
	return s.reportFile
}

// PDFEnabled reports whether a PDF report is configured.
func (s *Sink) PDFEnabled() bool {
	return s.pdfFile != ""
}

// GeneratePDF writes the PDF report for rec when one is configured.
func (s *Sink) GeneratePDF(rec models.CheckRecord) error {
	if !s.PDFEnabled() {
		return nil
	}
	return WritePDF(s.pdfFile, rec)
}

func (s *Sink) Close() error {
	err := s.logger.Sync()
	s.closeLog()
	if err != nil {
		return fmt.Errorf("sync code log: %w", err)
	}
	return nil
}
