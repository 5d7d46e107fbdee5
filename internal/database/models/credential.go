package models

import "github.com/google/uuid"

type CredentialEnvironment string

const (
	EnvProduction  CredentialEnvironment = "production"
	EnvStaging     CredentialEnvironment = "staging"
	EnvDevelopment CredentialEnvironment = "development"
)

// Stored formats of Credential.CredentialsEncrypted. The column defaults to
// the legacy format so rows that predate it keep reading as plaintext.
const (
	CredentialFormatLegacyJSON = 0 // plaintext JSON written before encryption existed
	CredentialFormatAge        = 1 // base64 age ciphertext of the JSON map
)

type Credential struct {
	Base
	ProjectID        uuid.UUID             `gorm:"type:uuid;index;not null" json:"project_id"`
	ProjectServiceID uuid.UUID             `gorm:"type:uuid;index;not null" json:"project_service_id"`
	Environment      CredentialEnvironment `gorm:"not null;default:'production'" json:"environment"`
	CredentialType   string                `gorm:"not null;default:'api_key'" json:"credential_type"`
	KeyName          string                `gorm:"not null" json:"key_name"`

	CredentialsEncrypted string    `gorm:"type:text;not null" json:"-"`
	FormatVersion        int       `gorm:"not null;default:0" json:"format_version"`
	CreatedBy            uuid.UUID `gorm:"type:uuid" json:"created_by"`

	Service *Service `gorm:"foreignKey:ProjectServiceID" json:"-"`
}

func (Credential) TableName() string {
	return "credentials"
}
