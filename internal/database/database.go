package database

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hugh/nerlude/internal/database/models"
	"github.com/hugh/nerlude/pkg/config"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func Connect(cfg *config.DatabaseConfig, log *slog.Logger) (*gorm.DB, error) {
	gormLogger := logger.Default.LogMode(logger.Warn)
	if cfg.SSLMode == "disable" {
		gormLogger = logger.Default.LogMode(logger.Info)
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger:         gormLogger,
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting underlying db: %w", err)
	}

	// Connection pool settings
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)

	log.Info("connected to database", "host", cfg.Host, "database", cfg.Name)

	return db, nil
}

func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(models.All()...)
}

// IsDuplicateKey reports whether err is a unique constraint violation.
// Postgres errors are translated by gorm; the sqlite driver used in tests
// is matched on its message.
func IsDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// CreateWorkspace inserts ws and makes its creator the owner. Callers wanting
// atomicity pass a transaction.
func CreateWorkspace(tx *gorm.DB, ws *models.Workspace) error {
	if ws.Slug == "" {
		ws.Slug = models.Slugify(ws.Name)
	}
	if err := tx.Create(ws).Error; err != nil {
		return fmt.Errorf("creating workspace: %w", err)
	}
	member := models.WorkspaceMember{
		WorkspaceID: ws.ID,
		UserID:      ws.CreatedBy,
		Role:        models.RoleOwner,
	}
	if err := tx.Create(&member).Error; err != nil {
		return fmt.Errorf("creating owner membership: %w", err)
	}
	return nil
}
