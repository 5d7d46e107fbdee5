package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	NotificationRenewalUrgent   = "renewal_urgent"
	NotificationRenewalReminder = "renewal_reminder"
	NotificationInvite          = "invite"
)

type Notification struct {
	Base
	UserID      uuid.UUID         `gorm:"type:uuid;not null;uniqueIndex:idx_notifications_user_dedupe,priority:1;index" json:"user_id"`
	WorkspaceID *uuid.UUID        `gorm:"type:uuid;index" json:"workspace_id,omitempty"`
	Type        string            `gorm:"not null;index" json:"type"`
	Title       string            `gorm:"not null" json:"title"`
	Message     string            `gorm:"type:text" json:"message"`
	Data        datatypes.JSONMap `json:"data"`

	// Nil for notifications that may repeat. Unique per user otherwise.
	DedupeKey *string    `gorm:"uniqueIndex:idx_notifications_user_dedupe,priority:2" json:"-"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
}

func (Notification) TableName() string {
	return "notifications"
}
