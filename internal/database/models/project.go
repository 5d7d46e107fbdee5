package models

import (
	"time"

	"github.com/google/uuid"
)

type ProjectStatus string

const (
	ProjectStatusActive   ProjectStatus = "active"
	ProjectStatusArchived ProjectStatus = "archived"
)

type Project struct {
	Base
	WorkspaceID uuid.UUID     `gorm:"type:uuid;index;not null" json:"workspace_id"`
	Name        string        `gorm:"not null" json:"name"`
	Description string        `json:"description,omitempty"`
	Status      ProjectStatus `gorm:"not null;index;default:'active'" json:"status"`
	ArchivedAt  *time.Time    `json:"archived_at,omitempty"`
	CreatedBy   uuid.UUID     `gorm:"type:uuid" json:"created_by"`

	// Relationships
	Workspace *Workspace `gorm:"foreignKey:WorkspaceID" json:"-"`
	Services  []Service  `gorm:"foreignKey:ProjectID" json:"-"`
}

func (Project) TableName() string {
	return "projects"
}

type ProjectMember struct {
	ProjectID uuid.UUID `gorm:"type:uuid;primaryKey" json:"project_id"`
	UserID    uuid.UUID `gorm:"type:uuid;primaryKey;index" json:"user_id"`
	Role      Role      `gorm:"not null;default:'member'" json:"role"`
	CreatedAt time.Time `json:"created_at"`

	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

func (ProjectMember) TableName() string {
	return "project_members"
}
