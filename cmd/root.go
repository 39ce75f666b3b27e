package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"vdt/internal/cmd/root"
	"vdt/internal/history"
	"vdt/internal/report"
	"vdt/pkg/log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const defaultAppLog = "vdt.log"

var rootCmd = &cobra.Command{
	Use:   "vdt",
	Short: "Read diagnostic trouble codes from an OBD-II vehicle",
	Args:  cobra.NoArgs,
	Run:   root.Run,
}

func init() {
	cobra.OnInitialize(initConfig, initLogger)

	flags := rootCmd.PersistentFlags()
	flags.Bool("debug", false, "Enable debug mode")
	flags.Bool("no-tui", false, "Run one check without TUI and print the result")
	flags.Bool("mock", false, "Use mock OBD provider")
	flags.String("mock-codes", "P0001,P0002", "Comma separated codes reported by the mock provider")
	flags.String("mock-fail", "", "Make the mock provider fail: connect or query")
	flags.Duration("mock-delay", 0, "Delay before the mock provider connects")
	flags.String("port", "", "Serial port of the ELM327 adapter (auto-detected when empty)")
	flags.Int("baud", 0, "Baud rate for serial connection (auto-detected when 0)")
	flags.String("catalog", "", "YAML file with code descriptions (built-in catalog when empty)")
	flags.String("log-file", report.DefaultLogFile, "File the read codes are appended to")
	flags.String("report-file", report.DefaultReportFile, "File the latest report is written to")
	flags.String("pdf-report", "", "Also write the latest report as PDF to this file")
	flags.String("history-db", history.DefaultPath, "SQLite database of past checks (empty disables)")
	flags.String("app-log", defaultAppLog, "Application log file (stderr when empty)")

	for _, name := range []string{
		"debug", "no-tui", "mock", "mock-codes", "mock-fail", "mock-delay",
		"port", "baud", "catalog", "log-file", "report-file", "pdf-report",
		"history-db", "app-log",
	} {
		_ = viper.BindPFlag(name, flags.Lookup(name))
	}

	// Set default values
	viper.SetDefault("debug", false)
	viper.SetDefault("no-tui", false)
	viper.SetDefault("mock", false)
	viper.SetDefault("baud", 0)
	viper.SetDefault("log-file", report.DefaultLogFile)
	viper.SetDefault("report-file", report.DefaultReportFile)
	viper.SetDefault("history-db", history.DefaultPath)
	viper.SetDefault("app-log", defaultAppLog)
}

func initConfig() {
	viper.SetEnvPrefix("VDT")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func initLogger() {
	log.InitLogger(viper.GetBool("debug"), viper.GetString("app-log"))
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	log.Sync()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
