package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/linkmeAman/JHuntAutomator/internal/httpapi"
	"github.com/linkmeAman/JHuntAutomator/internal/scheduler"
	"github.com/linkmeAman/JHuntAutomator/internal/secrets"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the daily crawl schedule",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
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

	sched := scheduler.New(a.orch, logger, time.Local)
	s := a.settings.Get()
	if err := sched.Start(ctx, s.CrawlHour, s.CrawlMinute); err != nil {
		return err
	}
	defer sched.Stop()

	token, err := httpapi.NewShutdownToken(16)
	if err != nil {
		return fmt.Errorf("shutdown token: %w", err)
	}

	srv := &http.Server{
		ReadHeaderTimeout: 5 * time.Second,
		// requests, including a running rescan, end with the signal context
		BaseContext: func(net.Listener) context.Context { return ctx },
	}
	srv.Handler = httpapi.NewRouter(httpapi.Deps{
		Store:           a.db,
		Settings:        a.settings,
		Scheduler:       sched,
		Runs:            a.orch,
		Hub:             a.hub,
		Metrics:         a.metrics,
		Logger:          logger,
		CORSOrigins:     rt.CORSOrigins,
		SetIMAPPassword: secrets.SetIMAPPassword,
		ShutdownToken:   token,
		Shutdown:        stop,
	})

	ln, err := net.Listen("tcp", rt.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", rt.Addr, err)
	}
	// the desktop shell reads this line from stdout
	fmt.Printf("SHUTDOWN_TOKEN=%s\n", token)
	logger.Info().Str("addr", ln.Addr().String()).Msg("engine listening")

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("http shutdown")
	}
	return nil
}
