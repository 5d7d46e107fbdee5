package models

type User struct {
	Base
	Email        string `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string `gorm:"not null" json:"-"`
	Name         string `json:"name"`
	IsActive     bool   `gorm:"default:true" json:"is_active"`

	// Relationships
	Memberships []WorkspaceMember `gorm:"foreignKey:UserID" json:"-"`
}

func (User) TableName() string {
	return "users"
}
