package dto

import (
	"strings"
	"time"

	"github.com/hugh/nerlude/internal/api/validation"
	"github.com/hugh/nerlude/internal/database/models"
)

var (
	environments = []string{
		string(models.EnvProduction),
		string(models.EnvStaging),
		string(models.EnvDevelopment),
	}
	credentialTypes = []string{"api_key", "token", "password", "oauth", "other"}
)

type CreateCredentialRequest struct {
	ServiceID      string         `json:"project_service_id"`
	Environment    string         `json:"environment,omitempty"`
	CredentialType string         `json:"credential_type,omitempty"`
	KeyName        string         `json:"key_name"`
	Credentials    map[string]any `json:"credentials"`
}

func (r CreateCredentialRequest) Validate() map[string]string {
	errors := make(map[string]string)
	if r.ServiceID == "" {
		errors["project_service_id"] = "Service ID is required"
	} else if !validation.IsValidUUID(r.ServiceID) {
		errors["project_service_id"] = "Invalid service ID format"
	}
	if strings.TrimSpace(r.KeyName) == "" {
		errors["key_name"] = "Key name is required"
	}
	if r.Environment != "" && !validation.OneOf(r.Environment, environments...) {
		errors["environment"] = "Environment must be one of production, staging, development"
	}
	credType := r.CredentialType
	if credType == "" {
		credType = "api_key"
	}
	if !validation.OneOf(credType, credentialTypes...) {
		errors["credential_type"] = "Invalid credential type"
	}
	for k, v := range validation.ValidateCredentialFields(credType, r.Credentials) {
		errors[k] = v
	}
	return errors
}

type UpdateCredentialRequest struct {
	Environment    *string        `json:"environment,omitempty"`
	CredentialType *string        `json:"credential_type,omitempty"`
	KeyName        *string        `json:"key_name,omitempty"`
	Credentials    map[string]any `json:"credentials,omitempty"`
}

func (r UpdateCredentialRequest) Validate() map[string]string {
	errors := make(map[string]string)
	if r.KeyName != nil && strings.TrimSpace(*r.KeyName) == "" {
		errors["key_name"] = "Key name cannot be empty"
	}
	if r.Environment != nil && !validation.OneOf(*r.Environment, environments...) {
		errors["environment"] = "Environment must be one of production, staging, development"
	}
	if r.CredentialType != nil && !validation.OneOf(*r.CredentialType, credentialTypes...) {
		errors["credential_type"] = "Invalid credential type"
	}
	if r.Credentials != nil && len(r.Credentials) == 0 {
		errors["credentials"] = "At least one credential field is required"
	}
	return errors
}

// CredentialResponse carries the decrypted fields. Credentials is null and
// DecryptionError true when the stored value cannot be read.
type CredentialResponse struct {
	ID               string         `json:"id"`
	ProjectID        string         `json:"project_id"`
	ProjectServiceID string         `json:"project_service_id"`
	Environment      string         `json:"environment"`
	CredentialType   string         `json:"credential_type"`
	KeyName          string         `json:"key_name"`
	Credentials      map[string]any `json:"credentials"`
	DecryptionError  bool           `json:"decryption_error"`
	CreatedBy        string         `json:"created_by"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

func NewCredentialResponse(c *models.Credential, fields map[string]any, failed bool) CredentialResponse {
	return CredentialResponse{
		ID:               c.ID.String(),
		ProjectID:        c.ProjectID.String(),
		ProjectServiceID: c.ProjectServiceID.String(),
		Environment:      string(c.Environment),
		CredentialType:   c.CredentialType,
		KeyName:          c.KeyName,
		Credentials:      fields,
		DecryptionError:  failed,
		CreatedBy:        c.CreatedBy.String(),
		CreatedAt:        c.CreatedAt,
		UpdatedAt:        c.UpdatedAt,
	}
}

type CredentialMutationResponse struct {
	Message    string             `json:"message"`
	Credential CredentialResponse `json:"credential"`
}
