package models

import (
	"time"

	"github.com/google/uuid"
)

type InviteType string

const (
	InviteWorkspace InviteType = "workspace"
	InviteProject   InviteType = "project"
)

type Invite struct {
	Base
	Email       string     `gorm:"index;not null" json:"email"`
	Type        InviteType `gorm:"not null" json:"type"`
	TargetID    uuid.UUID  `gorm:"type:uuid;index;not null" json:"target_id"`
	WorkspaceID uuid.UUID  `gorm:"type:uuid;index;not null" json:"workspace_id"`
	Role        Role       `gorm:"not null" json:"role"`
	InvitedBy   uuid.UUID  `gorm:"type:uuid" json:"invited_by"`
	ExpiresAt   time.Time  `gorm:"not null" json:"expires_at"`
	AcceptedAt  *time.Time `json:"accepted_at,omitempty"`
	AcceptedBy  *uuid.UUID `gorm:"type:uuid" json:"accepted_by,omitempty"`
}

func (Invite) TableName() string {
	return "invites"
}
