package root

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"vdt/internal/cmd/common"
	"vdt/internal/diagnostic"
	"vdt/internal/displayer"
	"vdt/internal/models"
	"vdt/internal/obd"
	"vdt/internal/obd/mock"
	"vdt/internal/obd/serial"
	"vdt/internal/report"
	"vdt/pkg/log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func Run(cmd *cobra.Command, args []string) {
	ctx := cmd.Context()

	provider, err := newProvider()
	if err != nil {
		common.Fatal("failed to create OBD provider", err)
	}
	cat := common.LoadCatalog(viper.GetString("catalog"))

	sink, err := report.NewSink(report.Config{
		LogFile:    viper.GetString("log-file"),
		ReportFile: viper.GetString("report-file"),
		PDFFile:    viper.GetString("pdf-report"),
	})
	if err != nil {
		common.Fatal("failed to open code log", err)
	}
	defer sink.Close()
	if sink.PDFEnabled() {
		log.Info("PDF report enabled", zap.String("path", viper.GetString("pdf-report")))
	}

	var opts []diagnostic.Option
	if path := viper.GetString("history-db"); path != "" {
		store := common.OpenHistory(ctx, path)
		defer store.Close()
		opts = append(opts, diagnostic.WithRecorder(store))
	}

	displayer.PrintBanner(os.Stdout)

	if viper.GetBool("no-tui") {
		workflow := diagnostic.New(provider, cat, sink, os.Stdout, opts...)
		res := workflow.Check(ctx)
		fmt.Println(displayer.DialogText(res))
		return
	}

	// console messages would paint over the UI, replay them once it exits
	console := &lockedBuffer{}
	workflow := diagnostic.New(provider, cat, sink, console, opts...)
	d := displayer.New(workflow)
	err = d.Run()
	_, _ = console.WriteTo(os.Stdout)
	if err != nil {
		log.Error("UI stopped with error", zap.Error(err))
		fmt.Printf("error: %v\n", err)
	}
}

func newProvider() (obd.OBDProvider, error) {
	if viper.GetBool("mock") {
		cfg := mock.Config{
			Codes: parseCodes(viper.GetString("mock-codes")),
			Delay: viper.GetDuration("mock-delay"),
		}
		switch v := viper.GetString("mock-fail"); v {
		case "":
		case "connect":
			cfg.FailConnect = true
		case "query":
			cfg.FailQuery = true
		default:
			return nil, fmt.Errorf("invalid mock-fail value %q, want connect or query", v)
		}
		log.Info("Using mock OBD provider", zap.Int("codes", len(cfg.Codes)))
		return mock.New(cfg), nil
	}

	return serial.New(serial.Config{
		Port:       viper.GetString("port"),
		Baud:       viper.GetInt("baud"),
		ResetDelay: serial.DefaultResetDelay,
	}), nil
}

// parseCodes splits a comma separated code list.
func parseCodes(s string) []models.TroubleCode {
	var codes []models.TroubleCode
	for _, part := range strings.Split(s, ",") {
		part = strings.ToUpper(strings.TrimSpace(part))
		if part != "" {
			codes = append(codes, models.TroubleCode(part))
		}
	}
	return codes
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) WriteTo(w io.Writer) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.WriteTo(w)
}
