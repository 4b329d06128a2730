package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"log/slog"

	"github.com/skyguard/skyguard/internal/api"
	"github.com/skyguard/skyguard/internal/auth"
	"github.com/skyguard/skyguard/internal/config"
	"github.com/skyguard/skyguard/internal/database"
	"github.com/skyguard/skyguard/internal/engine"
	"github.com/skyguard/skyguard/internal/identity"
	"github.com/skyguard/skyguard/internal/logging"
	"github.com/skyguard/skyguard/internal/metrics"
	"github.com/skyguard/skyguard/internal/notify"
	"github.com/skyguard/skyguard/internal/scheduler"
	"github.com/skyguard/skyguard/internal/server"
	"github.com/skyguard/skyguard/internal/store"
)

// trustCacheTTL bounds how stale a cached trust rating may be when a report
// snapshots it.
const trustCacheTTL = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("failed to init logger", "error", err)
		os.Exit(1)
	}

	logger.Info("starting skyguard")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		targets   store.TargetRepository
		reporters store.ReporterRepository
		shelters  store.ShelterRepository
		health    api.HealthCheck
	)

	if cfg.Database.URL != "" {
		dbCfg := database.DefaultConfig()
		dbCfg.URL = cfg.Database.URL

		logger.Info("connecting to database")
		db, err := database.Connect(ctx, dbCfg)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		logger.Info("database connected")

		if err := database.RunMigrations(db, "./migrations", logger); err != nil {
			logger.Error("failed to run migrations", "error", err)
			os.Exit(1)
		}

		targets = database.NewPostgresTargetRepository(db)
		reporters = database.NewPostgresReporterRepository(db)
		shelters = database.NewPostgresShelterRepository(db)
		health = func(ctx context.Context) error {
			return database.HealthCheck(ctx, db)
		}
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory storage")
		targets = store.NewMemoryTargetRepository()
		reporters = store.NewMemoryReporterRepository()
		shelters = store.NewMemoryShelterRepository()
	}

	collector, err := metrics.NewHTTPCollector()
	if err != nil {
		logger.Error("failed to init metrics", "error", err)
		os.Exit(1)
	}
	engineMetrics, err := metrics.NewEngineCollector(collector.Registry())
	if err != nil {
		logger.Error("failed to init engine metrics", "error", err)
		os.Exit(1)
	}

	authConfig := auth.LoadConfigFromEnv()
	logger.Info("auth configured", "jwt_secret_set", authConfig.JWTSecret != "change-this-secret")

	notifier := notify.NewTelegramNotifier(os.Getenv("TELEGRAM_BOT_TOKEN"), reporters, logger)
	resolver := identity.NewResolver(reporters, trustCacheTTL, nil)

	eng := engine.New(targets, reporters, resolver, cfg.Engine, nil, engineMetrics, notifier, logger)
	eng.Start(ctx)

	sweeper := scheduler.NewStalenessSweeper(eng, cfg.Engine.SweepInterval, nil, logger)
	go sweeper.Start(ctx)

	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())
	api.SetupRoutes(mux, eng, reporters, shelters, authConfig, health, logger)

	srv := server.New(cfg.Server, logger, collector.InstrumentHandler(mux))

	go func() {
		logger.Info("starting server", "port", cfg.Server.Port)
		if err := srv.Start(); err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	logger.Info("skyguard started successfully")
	logger.Info("API available", "url", fmt.Sprintf("http://localhost:%s", cfg.Server.Port))

	waitForSignal(logger)

	logger.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	sweeper.Stop()
	cancel()
	eng.Stop()
	logger.Info("shutdown complete")
}

func waitForSignal(logger *slog.Logger) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	sig := <-c
	logger.Info("received signal", "signal", sig.String())
	signal.Stop(c)
	close(c)
}
