package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/amaumene/mediasnap/internal/api"
	"github.com/amaumene/mediasnap/internal/config"
	"github.com/amaumene/mediasnap/internal/controllers"
	"github.com/amaumene/mediasnap/internal/models"
	"github.com/amaumene/mediasnap/internal/scheduler"
	"github.com/amaumene/mediasnap/internal/services/ffmpeg"
	"github.com/amaumene/mediasnap/internal/services/jellyfin"
	"github.com/amaumene/mediasnap/internal/services/plex"
	"github.com/amaumene/mediasnap/internal/services/proxy"
	"github.com/amaumene/mediasnap/internal/services/sessions"
	"github.com/amaumene/mediasnap/internal/telemetry"
	"github.com/amaumene/mediasnap/internal/utils"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// 2. Setup logger and tracing
	logger := utils.NewLogger(cfg.LogLevel)
	logger.Info("Starting MediaSnap")
	logger.WithField("config_dir", filepath.Dir(cfg.DatabaseFile)).Info("Configuration loaded")

	shutdownTracing, err := telemetry.Setup(cfg.TraceEnabled)
	if err != nil {
		return fmt.Errorf("failed to setup tracing: %w", err)
	}
	defer shutdownTracing(context.Background())

	// 3. Prepare capture directory and database
	if err := os.MkdirAll(cfg.CaptureDir, 0755); err != nil {
		return fmt.Errorf("failed to create capture directory: %w", err)
	}

	db, err := models.NewDatabase(cfg.DatabaseFile)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()
	logger.Info("Database initialized")

	// 4. Initialize source clients for the enabled upstreams
	var fetchers []sessions.Fetcher
	if cfg.Plex.Enabled() {
		fetchers = append(fetchers, plex.NewClient(cfg.Plex, logger))
		logger.Info("Plex client initialized")
	}
	if cfg.Jellyfin.Enabled() {
		fetchers = append(fetchers, jellyfin.NewClient(cfg.Jellyfin, logger))
		logger.Info("Jellyfin client initialized")
	}

	aggregator := sessions.NewAggregator(fetchers, logger)

	// 5. Initialize capture pipeline
	jobTimeout := time.Duration(cfg.ClipTimeoutMinutes) * time.Minute
	runner := ffmpeg.NewRunner(jobTimeout, logger)
	captureCtrl := controllers.NewCaptureController(db, aggregator, runner, cfg, logger)
	logger.Info("Capture controller initialized")

	proxyFetcher := proxy.NewFetcher(cfg.Plex, cfg.Jellyfin, logger)

	// 6. Initialize scheduler
	sched := scheduler.NewScheduler(aggregator, captureCtrl, cfg.SessionPollSeconds, jobTimeout, logger)
	if err := sched.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer sched.Stop()

	// 7. Initialize HTTP server
	server := api.NewServer(cfg, aggregator, captureCtrl, proxyFetcher, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serverErrChan := make(chan error, 1)
	go func() {
		if err := server.Start(ctx); err != nil {
			serverErrChan <- err
		}
	}()

	// 8. Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("MediaSnap is running")

	select {
	case err := <-serverErrChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		logger.WithField("signal", sig).Info("Received shutdown signal")
		cancel()
		if err := server.Shutdown(context.Background()); err != nil {
			logger.WithError(err).Error("Error during server shutdown")
		}
	}

	logger.Info("MediaSnap stopped")
	return nil
}
