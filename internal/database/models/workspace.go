package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Workspace struct {
	Base
	Name string `gorm:"not null" json:"name"`
	Slug string `gorm:"uniqueIndex;not null" json:"slug"`
	Plan string `gorm:"default:'free'" json:"plan"` // free, pro, team

	// Id of the keyring entry used for this workspace's credentials. Nil
	// means credentials cannot be written until a key is assigned.
	EncryptionKeyID *string   `json:"-"`
	CreatedBy       uuid.UUID `gorm:"type:uuid" json:"created_by"`

	// Relationships
	Members  []WorkspaceMember `gorm:"foreignKey:WorkspaceID" json:"-"`
	Projects []Project         `gorm:"foreignKey:WorkspaceID" json:"-"`
}

func (Workspace) TableName() string {
	return "workspaces"
}

type WorkspaceMember struct {
	WorkspaceID uuid.UUID `gorm:"type:uuid;primaryKey" json:"workspace_id"`
	UserID      uuid.UUID `gorm:"type:uuid;primaryKey;index" json:"user_id"`
	Role        Role      `gorm:"not null;default:'member'" json:"role"`
	CreatedAt   time.Time `json:"created_at"`

	User      *User      `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Workspace *Workspace `gorm:"foreignKey:WorkspaceID" json:"-"`
}

func (WorkspaceMember) TableName() string {
	return "workspace_members"
}

// Slugify turns a display name into a url slug with a random suffix.
func Slugify(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	slug := strings.TrimSuffix(b.String(), "-")
	if slug == "" {
		slug = "workspace"
	}
	return slug + "-" + uuid.NewString()[:8]
}
