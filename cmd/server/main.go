package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/hugh/nerlude/internal/api"
	"github.com/hugh/nerlude/internal/api/middleware"
	"github.com/hugh/nerlude/internal/auth"
	"github.com/hugh/nerlude/internal/credentials"
	"github.com/hugh/nerlude/internal/database"
	"github.com/hugh/nerlude/internal/invites"
	"github.com/hugh/nerlude/internal/notify"
	"github.com/hugh/nerlude/internal/renewal"
	"github.com/hugh/nerlude/internal/storage"
	"github.com/hugh/nerlude/pkg/config"
	"github.com/hugh/nerlude/pkg/crypto"
	"github.com/hugh/nerlude/pkg/queue"
	"github.com/hugh/nerlude/pkg/util"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
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

	logger.Info("starting Nerlude server",
		"env", cfg.Server.Env,
		"addr", cfg.Server.Addr(),
	)

	// Connect to database
	db, err := database.Connect(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	if cfg.Server.IsDevelopment() {
		if err := database.AutoMigrate(db); err != nil {
			logger.Error("failed to migrate database", "error", err)
			os.Exit(1)
		}
	}

	// Connect to Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
	})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		logger.Warn("failed to connect to Redis, rate limits are process-local", "error", err)
		redisClient.Close()
		redisClient = nil
	}

	// Asynq client for invite emails
	var asynqClient *asynq.Client
	var enqueuer invites.Enqueuer
	if redisClient != nil {
		asynqClient = queue.NewClient(&cfg.Redis)
		enqueuer = asynqClient
	}

	keyring, err := loadKeyring(&cfg.Encryption, cfg.Server.IsDevelopment(), logger)
	if err != nil {
		logger.Error("failed to load encryption keys", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	store, err := storage.New(ctx, &cfg.Storage, logger)
	if err != nil {
		logger.Error("failed to initialize object storage", "error", err)
		os.Exit(1)
	}

	// Initialize services
	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Expiry())
	var sessions auth.SessionStore
	if redisClient != nil {
		sessions = auth.NewRedisSessionStore(redisClient)
	}
	authService := auth.NewService(db, jwtService, sessions, keyring.Primary())
	if !authService.RevokesSessions() {
		logger.Warn("Redis unavailable, logout will not revoke session tokens before they expire")
	}

	notifier := notify.NewWriter(db, logger)
	inviteService := invites.NewService(db, jwtService, enqueuer, notifier, logger, invites.Options{
		Expiry:  cfg.Invite.Expiry(),
		BaseURL: cfg.Invite.BaseURL,
	})
	scanner := renewal.NewScanner(db, notifier, logger, renewal.Options{
		HorizonDays: cfg.Renewal.HorizonDays,
		Location:    cfg.Renewal.Location(),
	})

	var limiter middleware.Limiter
	var memLimiter *middleware.MemoryLimiter
	if cfg.RateLimit.Requests > 0 {
		if redisClient != nil {
			limiter = middleware.NewRedisLimiter(redisClient, cfg.RateLimit.Requests, cfg.RateLimit.WindowSeconds)
		} else {
			memLimiter = middleware.NewMemoryLimiter(cfg.RateLimit.Requests, cfg.RateLimit.WindowSeconds)
			limiter = memLimiter
		}
	}

	if cfg.Server.CronSecret == "" {
		logger.Warn("CRON_SECRET not set, scheduled renewal checks must go through the worker")
	}

	// Create router
	router := api.NewRouter(api.RouterConfig{
		DB:             db,
		Redis:          redisClient,
		Logger:         logger,
		AuthService:    authService,
		Cipher:         credentials.NewCipher(keyring),
		Store:          store,
		Invites:        inviteService,
		Scanner:        scanner,
		Limiter:        limiter,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		CronSecret:     cfg.Server.CronSecret,
		PrimaryKeyID:   keyring.Primary(),
		SecureCookies:  !cfg.Server.IsDevelopment(),
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("server listening", "addr", cfg.Server.Addr())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	if memLimiter != nil {
		memLimiter.Stop()
	}
	if asynqClient != nil {
		asynqClient.Close()
	}
	if redisClient != nil {
		redisClient.Close()
	}

	sqlDB, _ := db.DB()
	sqlDB.Close()

	logger.Info("server stopped")
}

// loadKeyring parses the configured workspace keys. Development falls back to
// a throwaway key so the server can start without configuration.
func loadKeyring(cfg *config.EncryptionConfig, dev bool, logger *slog.Logger) (*crypto.Keyring, error) {
	keyring, err := crypto.ParseKeyring(cfg.Keys, cfg.PrimaryKeyID)
	if err != nil {
		return nil, err
	}
	if keyring.Len() > 0 || !dev {
		if keyring.Len() == 0 {
			logger.Warn("ENCRYPTION_KEYS not set, new workspaces cannot store credentials")
		}
		return keyring, nil
	}

	enc, err := crypto.NewEncryptor("")
	if err != nil {
		return nil, err
	}
	if err := keyring.Add("dev", enc); err != nil {
		return nil, err
	}
	if err := keyring.SetPrimary("dev"); err != nil {
		return nil, err
	}
	logger.Warn("ENCRYPTION_KEYS not set, using generated key - credentials will be unreadable after restart")
	return keyring, nil
}
