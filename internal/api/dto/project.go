package dto

import (
	"strings"

	"github.com/google/uuid"
	"github.com/hugh/nerlude/internal/api/validation"
	"github.com/hugh/nerlude/internal/database/models"
)

type CreateProjectRequest struct {
	WorkspaceID string `json:"workspace_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

func (r CreateProjectRequest) Validate() map[string]string {
	errors := make(map[string]string)
	if r.WorkspaceID == "" {
		errors["workspace_id"] = "Workspace ID is required"
	} else if _, err := uuid.Parse(r.WorkspaceID); err != nil {
		errors["workspace_id"] = "Invalid workspace ID format"
	}
	if strings.TrimSpace(r.Name) == "" {
		errors["name"] = "Name is required"
	} else if len(r.Name) > 100 {
		errors["name"] = "Name must be at most 100 characters"
	}
	if len(r.Description) > 2000 {
		errors["description"] = "Description must be at most 2000 characters"
	}
	return errors
}

type UpdateProjectRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Status      *string `json:"status,omitempty"`
}

func (r UpdateProjectRequest) Validate() map[string]string {
	errors := make(map[string]string)
	if r.Name != nil {
		if strings.TrimSpace(*r.Name) == "" {
			errors["name"] = "Name cannot be empty"
		} else if len(*r.Name) > 100 {
			errors["name"] = "Name must be at most 100 characters"
		}
	}
	if r.Description != nil && len(*r.Description) > 2000 {
		errors["description"] = "Description must be at most 2000 characters"
	}
	if r.Status != nil && !validation.OneOf(*r.Status,
		string(models.ProjectStatusActive), string(models.ProjectStatusArchived)) {
		errors["status"] = "Status must be active or archived"
	}
	return errors
}

type ProjectResponse struct {
	Message string          `json:"message,omitempty"`
	Project *models.Project `json:"project"`
	Role    string          `json:"role,omitempty"`
}
