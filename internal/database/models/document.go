package models

import "github.com/google/uuid"

type Document struct {
	Base
	ProjectID uuid.UUID `gorm:"type:uuid;index;not null" json:"project_id"`
	Title     string    `gorm:"not null" json:"title"`
	DocType   string    `gorm:"not null;default:'note'" json:"doc_type"` // note, link, contract, other
	URL       string    `json:"url,omitempty"`
	Content   string    `gorm:"type:text" json:"content,omitempty"`
	CreatedBy uuid.UUID `gorm:"type:uuid" json:"created_by"`
}

func (Document) TableName() string {
	return "documents"
}

type Stack struct {
	Base
	ProjectID uuid.UUID `gorm:"type:uuid;index;not null" json:"project_id"`
	Name      string    `gorm:"not null" json:"name"`
	Category  string    `gorm:"not null;default:'other'" json:"category"`
	Version   string    `json:"version,omitempty"`
	URL       string    `json:"url,omitempty"`
	Notes     string    `gorm:"type:text" json:"notes,omitempty"`
}

func (Stack) TableName() string {
	return "project_stacks"
}
