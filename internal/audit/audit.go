// Package audit appends audit rows for resource mutations. Writes are best
// effort: failures are logged and never reach the caller.
package audit

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hugh/nerlude/internal/database/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Common actions. Handlers may use any "<entity>.<verb>" string.
const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

type Entry struct {
	WorkspaceID uuid.UUID
	UserID      uuid.UUID
	Action      string
	EntityType  string
	EntityID    uuid.UUID
	Metadata    map[string]any
}

type Writer struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewWriter(db *gorm.DB, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{db: db, logger: logger}
}

// Record appends e. It never returns an error.
func (w *Writer) Record(ctx context.Context, e Entry) {
	row := models.AuditLog{
		WorkspaceID: e.WorkspaceID,
		UserID:      e.UserID,
		Action:      e.Action,
		EntityType:  e.EntityType,
		EntityID:    e.EntityID,
	}
	if len(e.Metadata) > 0 {
		row.Metadata = datatypes.JSONMap(e.Metadata)
	}

	if err := w.db.WithContext(ctx).Create(&row).Error; err != nil {
		w.logger.Error("audit write failed",
			"error", err,
			"action", e.Action,
			"entity_type", e.EntityType,
			"entity_id", e.EntityID,
		)
	}
}
