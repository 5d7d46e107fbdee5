package models

import "github.com/google/uuid"

type AssetFolder struct {
	Base
	ProjectID uuid.UUID `gorm:"type:uuid;index;not null" json:"project_id"`
	Name      string    `gorm:"not null" json:"name"`
	CreatedBy uuid.UUID `gorm:"type:uuid" json:"created_by"`

	Assets []Asset `gorm:"foreignKey:FolderID" json:"-"`
}

func (AssetFolder) TableName() string {
	return "asset_folders"
}

// Asset is an uploaded file. The bytes live in the object store under StorageKey.
type Asset struct {
	Base
	ProjectID  uuid.UUID  `gorm:"type:uuid;index;not null" json:"project_id"`
	FolderID   *uuid.UUID `gorm:"type:uuid;index" json:"folder_id,omitempty"`
	Name       string     `gorm:"not null" json:"name"`
	FileName   string     `gorm:"not null" json:"file_name"`
	MimeType   string     `gorm:"not null" json:"mime_type"`
	SizeBytes  int64      `gorm:"not null" json:"size_bytes"`
	StorageKey string     `gorm:"uniqueIndex;not null" json:"-"`
	UploadedBy uuid.UUID  `gorm:"type:uuid" json:"uploaded_by"`
}

func (Asset) TableName() string {
	return "assets"
}
