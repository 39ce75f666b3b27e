package report

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"vdt/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testEntries = []models.DTCEntry{
	{Code: "P0001", Description: "Fuel Volume Regulator Control Circuit/Open"},
	{Code: "P0099", Description: "Unknown error code"},
}

func newTestSink(t *testing.T, dir string) *Sink {
	t.Helper()
	s, err := NewSink(Config{
		LogFile:    filepath.Join(dir, "diagnostic.log"),
		ReportFile: filepath.Join(dir, "report.txt"),
	})
	require.NoError(t, err)
	return s
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.Split(strings.TrimSuffix(string(raw), "\n"), "\n")
}

func TestRender(t *testing.T) {
	assert.Equal(t, Header, Render(nil))
	assert.Equal(t,
		"Diagnostic Report\n=================\n"+
			"Code: P0001, Description: Fuel Volume Regulator Control Circuit/Open\n"+
			"Code: P0099, Description: Unknown error code\n",
		Render(testEntries))
}

func TestGenerateReport_Overwrites(t *testing.T) {
	dir := t.TempDir()
	s := newTestSink(t, dir)
	defer s.Close()
	path := filepath.Join(dir, "report.txt")

	require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("stale\n", 50)), 0o644))

	require.NoError(t, s.GenerateReport(testEntries))
	first, err := os.ReadFile(path)
	require.NoError(t, err)

	require.NoError(t, s.GenerateReport(testEntries))
	second, err := os.ReadFile(path)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, Render(testEntries), string(second))
}

func TestGenerateReport_HeaderOnlyWhenEmpty(t *testing.T) {
	dir := t.TempDir()
	s := newTestSink(t, dir)
	defer s.Close()

	require.NoError(t, s.GenerateReport(nil))

	assert.Equal(t, []string{"Diagnostic Report", "================="}, readLines(t, s.ReportFile()))
}

func TestGenerateReport_WriteError(t *testing.T) {
	dir := t.TempDir()
	s, err := NewSink(Config{
		LogFile:    filepath.Join(dir, "diagnostic.log"),
		ReportFile: filepath.Join(dir, "missing", "report.txt"),
	})
	require.NoError(t, err)
	defer s.Close()

	assert.Error(t, s.GenerateReport(testEntries))
}

func TestLogCodes_Appends(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "diagnostic.log")

	s := newTestSink(t, dir)
	s.LogCodes(testEntries)
	s.LogCodes(testEntries)
	require.NoError(t, s.Close())

	// a later run appends to the same file
	s = newTestSink(t, dir)
	s.LogCodes(testEntries)
	require.NoError(t, s.Close())

	lines := readLines(t, path)
	require.Len(t, lines, 3*len(testEntries))

	line := regexp.MustCompile(`^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2},\d{3} - INFO - Code: (\w+), Description: (.+)$`)
	for i, l := range lines {
		m := line.FindStringSubmatch(l)
		require.NotNil(t, m, "line %d: %q", i, l)
		want := testEntries[i%len(testEntries)]
		assert.Equal(t, string(want.Code), m[1])
		assert.Equal(t, want.Description, m[2])
	}
}

func TestLogCodes_EmptyWritesNothing(t *testing.T) {
	dir := t.TempDir()
	s := newTestSink(t, dir)
	s.LogCodes(nil)
	require.NoError(t, s.Close())

	info, err := os.Stat(filepath.Join(dir, "diagnostic.log"))
	require.NoError(t, err)
	assert.Zero(t, info.Size())
}

func TestLogCodes_NeverRotates(t *testing.T) {
	dir := t.TempDir()
	s := newTestSink(t, dir)

	// well past the 10 MB rotation size of the application log
	entries := []models.DTCEntry{{Code: "P0300", Description: strings.Repeat("Random/Multiple Cylinder Misfire Detected ", 25)}}
	const runs = 12000
	for i := 0; i < runs; i++ {
		s.LogCodes(entries)
	}
	require.NoError(t, s.Close())

	files, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "diagnostic.log", files[0].Name())

	info, err := files[0].Info()
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(10*1024*1024))
	assert.Len(t, readLines(t, filepath.Join(dir, "diagnostic.log")), runs)
}

func TestNewSink_Defaults(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	s, err := NewSink(Config{})
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, DefaultReportFile, s.ReportFile())
	assert.False(t, s.PDFEnabled())
	assert.NoError(t, s.GeneratePDF(models.CheckRecord{}))
}

func TestGeneratePDF(t *testing.T) {
	dir := t.TempDir()
	pdfPath := filepath.Join(dir, "report.pdf")
	s, err := NewSink(Config{
		LogFile:    filepath.Join(dir, "diagnostic.log"),
		ReportFile: filepath.Join(dir, "report.txt"),
		PDFFile:    pdfPath,
	})
	require.NoError(t, err)
	defer s.Close()
	require.True(t, s.PDFEnabled())

	rec := models.CheckRecord{
		ID:        "3f1c7a52-0000-4000-8000-000000000000",
		CheckedAt: time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC),
		Outcome:   models.OutcomeSuccess,
		Entries:   testEntries,
	}
	require.NoError(t, s.GeneratePDF(rec))

	raw, err := os.ReadFile(pdfPath)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(raw), "%PDF-"))
}

func TestWritePDF_NoCodes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.pdf")

	require.NoError(t, WritePDF(path, models.CheckRecord{Outcome: models.OutcomeNotConnected}))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}
