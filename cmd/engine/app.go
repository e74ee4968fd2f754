package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/ternarybob/arbor"

	"github.com/linkmeAman/JHuntAutomator/internal/config"
	"github.com/linkmeAman/JHuntAutomator/internal/crawl"
	"github.com/linkmeAman/JHuntAutomator/internal/dedup"
	"github.com/linkmeAman/JHuntAutomator/internal/events"
	"github.com/linkmeAman/JHuntAutomator/internal/metrics"
	"github.com/linkmeAman/JHuntAutomator/internal/notify"
	"github.com/linkmeAman/JHuntAutomator/internal/scrape"
	"github.com/linkmeAman/JHuntAutomator/internal/scrape/util"
	"github.com/linkmeAman/JHuntAutomator/internal/store"
)

const dbFileName = "jobs.db"

// app is everything serve and crawl share.
// linkedInRPS holds the whitelist crawl well under the general host rate.
const linkedInRPS = 0.5

type app struct {
	rt       config.Runtime
	logger   arbor.ILogger
	settings *config.Store
	db       *store.DB
	hub      *events.Hub
	metrics  *metrics.Recorder
	registry *scrape.Registry
	orch     *crawl.Orchestrator
	redis    *redis.Client
}

func newApp(ctx context.Context, rt config.Runtime, logger arbor.ILogger) (*app, error) {
	if err := os.MkdirAll(rt.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("data dir: %w", err)
	}
	settingsPath, err := config.EnsureUserSettings(rt.DataDir)
	if err != nil {
		return nil, fmt.Errorf("settings bootstrap: %w", err)
	}
	settings, err := config.OpenStore(settingsPath)
	if err != nil {
		return nil, fmt.Errorf("settings %s: %w", settingsPath, err)
	}

	dbPath := filepath.Join(rt.DataDir, dbFileName)
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", dbPath, err)
	}

	a := &app{
		rt:       rt,
		logger:   logger,
		settings: settings,
		db:       db,
		hub:      events.NewHub(),
		metrics:  metrics.New(),
	}

	limiter := util.NewHostLimiter(rt.HostRPS, rt.HostBurst)
	limiter.Override("linkedin.com", linkedInRPS)
	client := util.NewClient(rt.RequestTimeout, limiter, rt.RequestRetries)
	a.registry = scrape.NewRegistry(client, logger, scrape.OptionsFromRuntime(rt))

	var lock crawl.Locker = crawl.NewRunLock(filepath.Join(rt.DataDir, "crawl.lock"))
	if rt.RedisURL != "" {
		rc, err := crawl.NewRedisClient(ctx, rt.RedisURL)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		a.redis = rc
		lock = crawl.NewRedisLock(rc, "", time.Hour, lock)
		logger.Info().Msg("crawl lock shared through redis")
	}

	a.orch = crawl.New(crawl.Deps{
		Store:    db,
		Sources:  a.registry,
		Engine:   dedup.NewEngine(db, nil, logger),
		Settings: settings.Get,
		Lock:     lock,
		Events:   a.hub,
		Metrics:  a.metrics,
		Notifier: notify.New(notify.SenderFromSecrets(logger), logger),
		Logger:   logger,
	}, crawl.OptionsFromRuntime(rt))

	logger.Info().
		Str("data_dir", rt.DataDir).
		Str("settings", settingsPath).
		Str("db", dbPath).
		Strs("sources", a.registry.IDs()).
		Msg("engine initialized")
	return a, nil
}

func (a *app) Close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if err := a.db.Checkpoint(context.Background()); err != nil {
		a.logger.Warn().Err(err).Msg("wal checkpoint on close failed")
	}
	if err := a.db.Close(); err != nil {
		a.logger.Warn().Err(err).Msg("close store")
	}
}
