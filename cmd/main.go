package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"routepulse/internal/bootstrap"
	"routepulse/internal/config"
	"routepulse/internal/maps"
	"routepulse/internal/middleware"
	"routepulse/internal/repository"
	"routepulse/internal/router"
	"routepulse/internal/scheduler"
)

func main() {
	// --- Logger ---
	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// --- Config ---
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	// --- Database ---
	db, err := config.NewDatabase(&cfg.Database, cfg.Server.Env)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	if err := bootstrap.Migrate(db); err != nil {
		logger.Fatal("Failed to migrate database schema", zap.Error(err))
	}

	// --- Maps client ---
	mapsClient := maps.NewClient(cfg, logger)

	// --- Preview throttle (Redis with in-memory fallback) ---
	previewThrottle, throttleErr := middleware.NewPreviewThrottle(
		cfg.Redis.Addr,
		cfg.Redis.Pass,
		cfg.Redis.DB,
		cfg.Scheduler.PreviewWindow,
	)
	if throttleErr != nil {
		logger.Warn("Redis unavailable for preview throttle, using in-memory fallback", zap.Error(throttleErr))
	}

	// --- Scheduler ---
	jobRepo := repository.NewJobRepository(db)
	snapshotRepo := repository.NewSnapshotRepository(db)
	sched := scheduler.New(jobRepo, snapshotRepo, mapsClient, cfg.Scheduler.MinInterval, logger)
	sched.Run()

	// Re-arm timers for jobs still marked running from before the restart.
	if err := sched.RestoreRunningJobs(); err != nil {
		logger.Error("Failed to restore running jobs", zap.Error(err))
	}

	// --- Echo ---
	e := echo.New()
	e.HideBanner = true
	router.Setup(e, db, sched, mapsClient, logger, cfg.API.Key, previewThrottle)

	// --- Start Server ---
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	go func() {
		logger.Info("Starting routepulse server", zap.String("addr", addr))
		if err := e.Start(addr); err != nil {
			logger.Info("Server stopped", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down...")

	// Stop the scheduler and wait for in-flight cycles to drain.
	ctx := sched.Shutdown()
	<-ctx.Done()

	// Stop HTTP server
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
