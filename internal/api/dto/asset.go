package dto

import (
	"strings"

	"github.com/hugh/nerlude/internal/database/models"
)

type CreateFolderRequest struct {
	Name string `json:"name"`
}

func (r CreateFolderRequest) Validate() map[string]string {
	errors := make(map[string]string)
	if strings.TrimSpace(r.Name) == "" {
		errors["name"] = "Name is required"
	} else if len(r.Name) > 100 {
		errors["name"] = "Name must be at most 100 characters"
	}
	return errors
}

type FolderResponse struct {
	Message string              `json:"message,omitempty"`
	Folder  *models.AssetFolder `json:"folder"`
}

type AssetResponse struct {
	Message string        `json:"message,omitempty"`
	Asset   *models.Asset `json:"asset"`
}

type FolderDeleteResponse struct {
	Message       string `json:"message"`
	AssetsDeleted int    `json:"assets_deleted"`
}
