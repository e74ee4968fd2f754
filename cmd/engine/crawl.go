package main

import (
	"encoding/json"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/linkmeAman/JHuntAutomator/internal/crawl"
	"github.com/linkmeAman/JHuntAutomator/internal/domain"
)

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Run one crawl and print the result as JSON",
	RunE:  runCrawl,
}

func runCrawl(cmd *cobra.Command, _ []string) error {
	rt, err := loadRuntime()
	if err != nil {
		return err
	}
	logger := newLogger(rt.LogLevel)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, rt, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")

	run, err := a.orch.Run(ctx, crawl.TriggerCLI)
	if errors.Is(err, crawl.ErrRunInProgress) {
		return enc.Encode(domain.CrawlResult{Status: "busy", Message: "a crawl is already running"})
	}
	if err != nil {
		return err
	}
	return enc.Encode(domain.ResultFromRun(run))
}
