package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/hugh/nerlude/internal/database"
	"github.com/hugh/nerlude/internal/email"
	"github.com/hugh/nerlude/internal/notify"
	"github.com/hugh/nerlude/internal/renewal"
	"github.com/hugh/nerlude/internal/tasks"
	"github.com/hugh/nerlude/pkg/config"
	"github.com/hugh/nerlude/pkg/queue"
	"github.com/hugh/nerlude/pkg/util"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := util.NewLogger(cfg.Server.Env, cfg.Server.LogLevel)
	slog.SetDefault(logger)

	logger.Info("starting Nerlude worker")

	if err := util.ValidateCronExpr(cfg.Renewal.Cron); err != nil {
		logger.Error("invalid RENEWAL_SCAN_CRON", "cron", cfg.Renewal.Cron, "error", err)
		os.Exit(1)
	}

	// Connect to database
	db, err := database.Connect(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	scanner := renewal.NewScanner(db, notify.NewWriter(db, logger), logger, renewal.Options{
		HorizonDays: cfg.Renewal.HorizonDays,
		Location:    cfg.Renewal.Location(),
	})

	mailer := email.NewService(cfg.SMTP)
	if !mailer.IsConfigured() {
		logger.Warn("SMTP not configured, invite emails will be skipped")
	}

	// Create task handler
	handler := tasks.NewHandler(scanner, mailer, logger)

	// Register handlers
	mux := asynq.NewServeMux()
	handler.RegisterHandlers(mux)

	srv := queue.NewServer(&cfg.Redis, 10)
	if err := srv.Start(mux); err != nil {
		logger.Error("failed to start worker", "error", err)
		os.Exit(1)
	}

	// Daily renewal scan
	scheduler := queue.NewScheduler(&cfg.Redis, cfg.Renewal.Location())
	entryID, err := scheduler.Register(cfg.Renewal.Cron, tasks.NewCheckRenewalsTask())
	if err != nil {
		logger.Error("failed to register renewal scan", "error", err)
		os.Exit(1)
	}
	if err := scheduler.Start(); err != nil {
		logger.Error("failed to start scheduler", "error", err)
		os.Exit(1)
	}

	nextRun, _ := util.NextCronTime(cfg.Renewal.Cron, time.Now().In(cfg.Renewal.Location()))
	logger.Info("worker started, waiting for tasks...",
		"renewal_cron", cfg.Renewal.Cron,
		"renewal_entry", entryID,
		"next_renewal_scan", nextRun,
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down worker...")
	scheduler.Shutdown()
	srv.Shutdown()

	sqlDB, _ := db.DB()
	sqlDB.Close()

	logger.Info("worker stopped")
}
