package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/hugh/nerlude/internal/access"
	"github.com/hugh/nerlude/internal/api/dto"
	"github.com/hugh/nerlude/internal/api/middleware"
	"github.com/hugh/nerlude/internal/audit"
	"github.com/hugh/nerlude/internal/database/models"
	"gorm.io/gorm"
)

// StackHandler manages the technology stack entries of a project.
type StackHandler struct {
	db     *gorm.DB
	access *access.Checker
	audit  *audit.Writer
	logger *slog.Logger
}

func NewStackHandler(db *gorm.DB, checker *access.Checker, auditor *audit.Writer, logger *slog.Logger) *StackHandler {
	return &StackHandler{db: db, access: checker, audit: auditor, logger: loggerOrDefault(logger)}
}

func (h *StackHandler) List(w http.ResponseWriter, r *http.Request) {
	pa, ok := authorizeProject(w, r, h.access, h.logger, access.ActionRead)
	if !ok {
		return
	}

	var stacks []models.Stack
	if err := h.db.WithContext(r.Context()).
		Where("project_id = ?", pa.Project.ID).
		Order("category ASC, name ASC").
		Find(&stacks).Error; err != nil {
		writeInternalError(w, h.logger, err, "Failed to list stack")
		return
	}
	writeJSON(w, http.StatusOK, stacks)
}

func (h *StackHandler) Create(w http.ResponseWriter, r *http.Request) {
	pa, ok := authorizeProject(w, r, h.access, h.logger, access.ActionWrite)
	if !ok {
		return
	}

	var req dto.StackRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if validationFailed(w, req.Validate(true)) {
		return
	}

	stack := models.Stack{
		ProjectID: pa.Project.ID,
		Name:      strings.TrimSpace(*req.Name),
		Category:  "other",
	}
	if req.Category != nil {
		stack.Category = *req.Category
	}
	if req.Version != nil {
		stack.Version = *req.Version
	}
	if req.URL != nil {
		stack.URL = *req.URL
	}
	if req.Notes != nil {
		stack.Notes = *req.Notes
	}

	if err := h.db.WithContext(r.Context()).Create(&stack).Error; err != nil {
		writeDBError(w, h.logger, err, "Failed to create stack entry")
		return
	}

	h.audit.Record(r.Context(), audit.Entry{
		WorkspaceID: pa.Project.WorkspaceID,
		UserID:      middleware.GetUserID(r.Context()),
		Action:      audit.ActionCreate,
		EntityType:  "stack",
		EntityID:    stack.ID,
		Metadata:    map[string]any{"name": stack.Name, "category": stack.Category},
	})

	writeJSON(w, http.StatusCreated, dto.StackResponse{Message: "Stack entry created", Stack: &stack})
}

func (h *StackHandler) Get(w http.ResponseWriter, r *http.Request) {
	pa, ok := authorizeProject(w, r, h.access, h.logger, access.ActionRead)
	if !ok {
		return
	}
	stack, ok := h.load(w, r, pa.Project.ID)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, dto.StackResponse{Stack: stack})
}

func (h *StackHandler) Update(w http.ResponseWriter, r *http.Request) {
	pa, ok := authorizeProject(w, r, h.access, h.logger, access.ActionWrite)
	if !ok {
		return
	}
	stack, ok := h.load(w, r, pa.Project.ID)
	if !ok {
		return
	}

	var req dto.StackRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if validationFailed(w, req.Validate(false)) {
		return
	}

	updates := make(map[string]any)
	if req.Name != nil {
		updates["name"] = strings.TrimSpace(*req.Name)
	}
	for column, v := range map[string]*string{
		"category": req.Category,
		"version":  req.Version,
		"url":      req.URL,
		"notes":    req.Notes,
	} {
		if v != nil {
			updates[column] = *v
		}
	}

	if len(updates) > 0 {
		if err := h.db.WithContext(r.Context()).Model(stack).Updates(updates).Error; err != nil {
			writeDBError(w, h.logger, err, "Failed to update stack entry")
			return
		}
		if err := h.db.WithContext(r.Context()).First(stack, "id = ?", stack.ID).Error; err != nil {
			writeInternalError(w, h.logger, err, "Failed to reload stack entry")
			return
		}
		h.audit.Record(r.Context(), audit.Entry{
			WorkspaceID: pa.Project.WorkspaceID,
			UserID:      middleware.GetUserID(r.Context()),
			Action:      audit.ActionUpdate,
			EntityType:  "stack",
			EntityID:    stack.ID,
			Metadata:    changedFields(updates),
		})
	}

	writeJSON(w, http.StatusOK, dto.StackResponse{Message: "Stack entry updated", Stack: stack})
}

func (h *StackHandler) Delete(w http.ResponseWriter, r *http.Request) {
	pa, ok := authorizeProject(w, r, h.access, h.logger, access.ActionDelete)
	if !ok {
		return
	}
	stack, ok := h.load(w, r, pa.Project.ID)
	if !ok {
		return
	}

	if err := h.db.WithContext(r.Context()).Delete(stack).Error; err != nil {
		writeInternalError(w, h.logger, err, "Failed to delete stack entry")
		return
	}

	h.audit.Record(r.Context(), audit.Entry{
		WorkspaceID: pa.Project.WorkspaceID,
		UserID:      middleware.GetUserID(r.Context()),
		Action:      audit.ActionDelete,
		EntityType:  "stack",
		EntityID:    stack.ID,
		Metadata:    map[string]any{"name": stack.Name},
	})

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Stack entry deleted"})
}

func (h *StackHandler) load(w http.ResponseWriter, r *http.Request, projectID uuid.UUID) (*models.Stack, bool) {
	stackID, ok := urlID(w, r, "stackId", "stack")
	if !ok {
		return nil, false
	}
	var stack models.Stack
	if err := h.db.WithContext(r.Context()).
		Where("id = ? AND project_id = ?", stackID, projectID).
		First(&stack).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeError(w, http.StatusNotFound, "Stack entry not found")
			return nil, false
		}
		writeInternalError(w, h.logger, err, "Failed to load stack entry")
		return nil, false
	}
	return &stack, true
}
