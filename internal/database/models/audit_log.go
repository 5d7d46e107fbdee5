package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AuditLog is append-only; rows are never updated or soft-deleted.
type AuditLog struct {
	ID          uuid.UUID         `gorm:"type:uuid;primary_key" json:"id"`
	WorkspaceID uuid.UUID         `gorm:"type:uuid;index;not null" json:"workspace_id"`
	UserID      uuid.UUID         `gorm:"type:uuid;index" json:"user_id"`
	Action      string            `gorm:"not null;index" json:"action"`
	EntityType  string            `gorm:"not null" json:"entity_type"`
	EntityID    uuid.UUID         `gorm:"type:uuid;index" json:"entity_id"`
	Metadata    datatypes.JSONMap `json:"metadata,omitempty"`
	CreatedAt   time.Time         `gorm:"index" json:"created_at"`
}

func (AuditLog) TableName() string {
	return "audit_logs"
}

func (a *AuditLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
