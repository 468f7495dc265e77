package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/mescon/Cachearr/internal/api"
	"github.com/mescon/Cachearr/internal/config"
	"github.com/mescon/Cachearr/internal/db"
	"github.com/mescon/Cachearr/internal/debrid"
	"github.com/mescon/Cachearr/internal/eventbus"
	"github.com/mescon/Cachearr/internal/indexer"
	"github.com/mescon/Cachearr/internal/logger"
	"github.com/mescon/Cachearr/internal/metrics"
	"github.com/mescon/Cachearr/internal/notifier"
	"github.com/mescon/Cachearr/internal/services"
)

func main() {
	os.Exit(run())
}

// run wires the services together and blocks until shutdown. Deferred
// cleanup always runs before the exit code reaches main.
func run() int {
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.BoolVar(showVersion, "v", false, "Print version and exit (shorthand)")

	// Flags override the matching environment variables
	flagLogLevel := flag.String("log-level", "", "Log level: debug, info, warn, error (env: CACHEARR_LOG_LEVEL, default: info)")
	flagDataDir := flag.String("data-dir", "", "Data directory path (env: CACHEARR_DATA_DIR)")
	flagDatabasePath := flag.String("database-path", "", "Database file path (env: CACHEARR_DATABASE_PATH)")
	flagReportPath := flag.String("report-path", "", "CSV report path (env: CACHEARR_REPORT_PATH)")
	flagPort := flag.String("port", "", "Status API port, 0 disables it (env: CACHEARR_PORT, default: 3095)")
	flagSchedule := flag.String("schedule", "", "Cron expression for runs, overrides the interval (env: CACHEARR_SCHEDULE)")
	flagRunInterval := flag.Duration("run-interval", 0, "Time between runs (env: CACHEARR_RUN_INTERVAL, default: 24h)")
	flagCheckInterval := flag.Duration("check-interval", 0, "Granularity of the run schedule (env: CACHEARR_CHECK_INTERVAL, default: 60s)")
	flagWaitTime := flag.Duration("wait", -1, "Pause after each processed entry (env: WAIT_TIME_SECONDS, default: 12s)")
	flagRunOnce := flag.Bool("once", false, "Run the pipeline once and exit (env: CACHEARR_RUN_ONCE)")

	flag.Parse()

	if *showVersion {
		fmt.Printf("Cachearr %s\n", config.Version)
		return 0
	}

	cfg := config.Load()
	cfg.ApplyFlags(config.FlagOverrides{
		LogLevel:      flagLogLevel,
		DataDir:       flagDataDir,
		DatabasePath:  flagDatabasePath,
		ReportPath:    flagReportPath,
		Port:          flagPort,
		Schedule:      flagSchedule,
		RunInterval:   flagRunInterval,
		CheckInterval: flagCheckInterval,
		WaitTime:      flagWaitTime,
		RunOnce:       flagRunOnce,
	})

	if err := logger.Init(cfg.LogDir); err != nil {
		logger.Errorf("Failed to initialize file logging: %v", err)
	}
	defer logger.Close()
	logger.SetLevel(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		logger.Errorf("Invalid configuration: %v", err)
		return 1
	}

	logger.Infof("========================================")
	logger.Infof("Starting Cachearr %s...", config.Version)
	logger.Infof("========================================")
	logger.Infof("Configuration:")
	logger.Infof("  Jackett: %s", cfg.JackettBaseURL)
	logger.Infof("  Real-Debrid: %s", cfg.RealDebridURL)
	logger.Infof("  Categories: %v", cfg.Categories)
	logger.Infof("  Tracker Domain: %s", cfg.TrackerDomain)
	logger.Infof("  Wait Between Entries: %s", cfg.WaitTime)
	logger.Infof("  Max Adds Per Minute: %d (informational)", cfg.MaxAddsPerMinute)
	logger.Infof("  Report: %s", cfg.ReportPath)
	logger.Infof("  Database: %s", cfg.DatabasePath)
	if dir := logger.GetLogDir(); dir != "" {
		logger.Infof("  Log File: %s", filepath.Join(dir, logger.LogFileName))
	}
	if cfg.Schedule != "" {
		logger.Infof("  Schedule: %s", cfg.Schedule)
	} else {
		logger.Infof("  Run Interval: %s (check every %s)", cfg.RunInterval, cfg.CheckInterval)
	}
	if cfg.RetentionDays > 0 {
		logger.Infof("  History Retention: %d days", cfg.RetentionDays)
	} else {
		logger.Infof("  History Retention: disabled (no automatic pruning)")
	}

	logger.Infof("Initializing database: %s", cfg.DatabasePath)
	repo, err := db.NewRepository(cfg.DatabasePath)
	if err != nil {
		logger.Errorf("Failed to initialize database: %v", err)
		return 1
	}
	defer func() {
		if err := repo.GracefulClose(); err != nil {
			logger.Errorf("Error closing database: %v", err)
		}
	}()

	eb := eventbus.NewEventBus(repo.DB)
	defer eb.Shutdown()

	metricsService := metrics.NewMetricsService(eb)
	metricsService.Start()

	notifierService, err := notifier.NewNotifier(cfg.NotifyURLs, eb)
	if err != nil {
		// Non-fatal: runs still happen without notifications
		logger.Errorf("Notifications disabled: %v", err)
	} else if notifierService.Enabled() {
		notifierService.Start()
		logger.Infof("✓ Notifications enabled (%d targets)", len(cfg.NotifyURLs))
	}

	pipeline := services.NewPipeline(services.PipelineDeps{
		Config:   cfg,
		Indexer:  indexer.NewClient(cfg.JackettBaseURL, cfg.JackettAPIKey, cfg.JackettAdminPassword, cfg.HTTPTimeout),
		Debrid:   debrid.NewClient(cfg.RealDebridURL, cfg.RealDebridAPIKey, cfg.DownloadedStatus, &http.Client{Timeout: cfg.HTTPTimeout}),
		Recorder: repo,
		EventBus: eb,
	})

	if cfg.RunOnce {
		return runOnce(pipeline)
	}

	scheduler, err := services.NewSchedulerService(pipeline, cfg)
	if err != nil {
		logger.Errorf("Failed to create scheduler: %v", err)
		return 1
	}
	retentionDays := cfg.RetentionDays
	if err := scheduler.AddFunc("0 3 * * *", "maintenance", func() {
		if err := repo.RunMaintenance(retentionDays); err != nil {
			logger.Errorf("Scheduled maintenance failed: %v", err)
		}
	}); err != nil {
		logger.Errorf("Failed to schedule database maintenance: %v", err)
	}

	var apiServer *api.RESTServer
	if cfg.APIEnabled() {
		apiServer = api.NewRESTServer(api.ServerDeps{
			Config:    cfg,
			Store:     repo,
			EventBus:  eb,
			Pipeline:  pipeline,
			Scheduler: scheduler,
			Metrics:   metricsService,
		})
		go func() {
			if err := apiServer.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Errorf("Failed to start API server: %v", err)
				os.Exit(1)
			}
		}()
		logger.Infof("✓ Status API listening on port %s", cfg.Port)
	} else {
		logger.Infof("Status API disabled")
	}

	scheduler.Start()
	logger.Infof("✓ Cachearr %s started", config.Version)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Infof("Received signal %v, initiating graceful shutdown...", sig)
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if apiServer != nil {
		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			logger.Errorf("API server shutdown error: %v", err)
		}
	}
	scheduler.Stop()
	logger.Infof("✓ Cachearr shutdown complete")
	return 0
}

// runOnce executes a single pass and returns the process exit code.
func runOnce(pipeline *services.Pipeline) int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := pipeline.Run(ctx); err != nil {
		logger.Errorf("Run failed: %v", err)
		return 1
	}
	return 0
}
