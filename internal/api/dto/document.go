package dto

import (
	"strings"

	"github.com/hugh/nerlude/internal/api/validation"
	"github.com/hugh/nerlude/internal/database/models"
)

var (
	docTypes        = []string{"note", "link", "contract", "other"}
	stackCategories = []string{"frontend", "backend", "database", "infra", "tooling", "other"}
)

type DocumentRequest struct {
	Title   *string `json:"title,omitempty"`
	DocType *string `json:"doc_type,omitempty"`
	URL     *string `json:"url,omitempty"`
	Content *string `json:"content,omitempty"`
}

// Validate checks the request. Create requires a title; updates only check
// fields that are present.
func (r DocumentRequest) Validate(create bool) map[string]string {
	errors := make(map[string]string)
	if create && r.Title == nil || r.Title != nil && strings.TrimSpace(*r.Title) == "" {
		errors["title"] = "Title is required"
	}
	if r.DocType != nil && !validation.OneOf(*r.DocType, docTypes...) {
		errors["doc_type"] = "Document type must be one of note, link, contract, other"
	}
	if r.URL != nil && *r.URL != "" && !validation.IsValidURL(*r.URL) {
		errors["url"] = "URL must start with http:// or https://"
	}
	if r.Content != nil && len(*r.Content) > 100_000 {
		errors["content"] = "Content must be at most 100000 characters"
	}
	return errors
}

type DocumentResponse struct {
	Message  string           `json:"message,omitempty"`
	Document *models.Document `json:"document"`
}

type StackRequest struct {
	Name     *string `json:"name,omitempty"`
	Category *string `json:"category,omitempty"`
	Version  *string `json:"version,omitempty"`
	URL      *string `json:"url,omitempty"`
	Notes    *string `json:"notes,omitempty"`
}

func (r StackRequest) Validate(create bool) map[string]string {
	errors := make(map[string]string)
	if create && r.Name == nil || r.Name != nil && strings.TrimSpace(*r.Name) == "" {
		errors["name"] = "Name is required"
	}
	if r.Category != nil && !validation.OneOf(*r.Category, stackCategories...) {
		errors["category"] = "Category must be one of frontend, backend, database, infra, tooling, other"
	}
	if r.URL != nil && *r.URL != "" && !validation.IsValidURL(*r.URL) {
		errors["url"] = "URL must start with http:// or https://"
	}
	return errors
}

type StackResponse struct {
	Message string        `json:"message,omitempty"`
	Stack   *models.Stack `json:"stack"`
}
