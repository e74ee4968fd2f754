package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/ternarybob/arbor"
	arbor_models "github.com/ternarybob/arbor/models"

	"github.com/linkmeAman/JHuntAutomator/internal/config"
)

var (
	dataDirFlag string
	addrFlag    string
	logLevel    string
)

var rootCmd = &cobra.Command{
	Use:           "engine",
	Short:         "Job search crawl engine",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dataDirFlag, "data-dir", "", "data directory (default $JHUNT_DATA_DIR or .)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error (default $JHUNT_LOG_LEVEL)")
	serveCmd.Flags().StringVar(&addrFlag, "addr", "", "listen address (default $JHUNT_ADDR)")
	rootCmd.Flags().AddFlagSet(serveCmd.Flags())

	rootCmd.AddCommand(serveCmd, crawlCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "engine:", err)
		os.Exit(1)
	}
}

// loadRuntime reads JHUNT_* env and applies the command line overrides.
func loadRuntime() (config.Runtime, error) {
	rt, err := config.LoadRuntime()
	if err != nil {
		return rt, fmt.Errorf("environment: %w", err)
	}
	if dataDirFlag != "" {
		rt.DataDir = dataDirFlag
	}
	if addrFlag != "" {
		rt.Addr = addrFlag
	}
	if logLevel != "" {
		rt.LogLevel = logLevel
	}
	return rt, nil
}

func newLogger(level string) arbor.ILogger {
	return arbor.NewLogger().WithConsoleWriter(arbor_models.WriterConfiguration{
		Type:       arbor_models.LogWriterTypeConsole,
		TimeFormat: "15:04:05.000",
	}).WithLevelFromString(level)
}
