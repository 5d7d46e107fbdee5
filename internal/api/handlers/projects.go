package handlers

import (
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/nerlude/internal/access"
	"github.com/hugh/nerlude/internal/api/dto"
	"github.com/hugh/nerlude/internal/api/middleware"
	"github.com/hugh/nerlude/internal/api/validation"
	"github.com/hugh/nerlude/internal/audit"
	"github.com/hugh/nerlude/internal/database/models"
	"gorm.io/gorm"
)

type ProjectHandler struct {
	db     *gorm.DB
	access *access.Checker
	audit  *audit.Writer
	logger *slog.Logger
}

func NewProjectHandler(db *gorm.DB, checker *access.Checker, auditor *audit.Writer, logger *slog.Logger) *ProjectHandler {
	return &ProjectHandler{db: db, access: checker, audit: auditor, logger: loggerOrDefault(logger)}
}

// List handles GET /api/projects
func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	pagination := paginationFrom(r)

	status := r.URL.Query().Get("status")
	if status != "" && !validation.OneOf(status, string(models.ProjectStatusActive), string(models.ProjectStatusArchived)) {
		validationFailed(w, map[string]string{"status": "Status must be active or archived"})
		return
	}

	ids, err := h.access.VisibleProjectIDs(r.Context(), userID)
	if err != nil {
		writeInternalError(w, h.logger, err, "Failed to list projects")
		return
	}
	if len(ids) == 0 {
		writeJSON(w, http.StatusOK, dto.NewPaginatedResponse([]models.Project{}, 0, pagination))
		return
	}

	query := h.db.WithContext(r.Context()).Model(&models.Project{}).Where("id IN ?", ids)
	if wsID := r.URL.Query().Get("workspace_id"); wsID != "" {
		id, err := uuid.Parse(wsID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid workspace ID")
			return
		}
		query = query.Where("workspace_id = ?", id)
	}
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		writeInternalError(w, h.logger, err, "Failed to count projects")
		return
	}

	var projects []models.Project
	if err := query.
		Order("created_at DESC").
		Offset(pagination.Offset()).
		Limit(pagination.PerPage).
		Find(&projects).Error; err != nil {
		writeInternalError(w, h.logger, err, "Failed to list projects")
		return
	}

	writeJSON(w, http.StatusOK, dto.NewPaginatedResponse(projects, total, pagination))
}

// Create handles POST /api/projects
func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req dto.CreateProjectRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if validationFailed(w, req.Validate()) {
		return
	}

	wsID := uuid.MustParse(req.WorkspaceID)
	if _, err := h.access.Workspace(r.Context(), userID, wsID, access.ActionWrite); err != nil {
		writeAccessError(w, h.logger, err, "Workspace")
		return
	}

	project := models.Project{
		WorkspaceID: wsID,
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Status:      models.ProjectStatusActive,
		CreatedBy:   userID,
	}
	if err := h.db.WithContext(r.Context()).Create(&project).Error; err != nil {
		writeDBError(w, h.logger, err, "Failed to create project")
		return
	}

	h.audit.Record(r.Context(), audit.Entry{
		WorkspaceID: wsID,
		UserID:      userID,
		Action:      audit.ActionCreate,
		EntityType:  "project",
		EntityID:    project.ID,
		Metadata:    map[string]any{"name": project.Name},
	})

	writeJSON(w, http.StatusCreated, dto.ProjectResponse{Message: "Project created", Project: &project})
}

// Get handles GET /api/projects/{id}
func (h *ProjectHandler) Get(w http.ResponseWriter, r *http.Request) {
	pa, ok := authorizeProject(w, r, h.access, h.logger, access.ActionRead)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, dto.ProjectResponse{Project: &pa.Project, Role: string(pa.Role)})
}

// Update handles PATCH /api/projects/{id}. Archiving stamps archived_at and
// reactivating clears it.
func (h *ProjectHandler) Update(w http.ResponseWriter, r *http.Request) {
	pa, ok := authorizeProject(w, r, h.access, h.logger, access.ActionWrite)
	if !ok {
		return
	}

	var req dto.UpdateProjectRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if validationFailed(w, req.Validate()) {
		return
	}

	project := pa.Project
	updates := make(map[string]any)
	if req.Name != nil {
		updates["name"] = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Status != nil && models.ProjectStatus(*req.Status) != project.Status {
		updates["status"] = *req.Status
		if models.ProjectStatus(*req.Status) == models.ProjectStatusArchived {
			updates["archived_at"] = time.Now().UTC()
		} else {
			updates["archived_at"] = nil
		}
	}

	if len(updates) > 0 {
		if err := h.db.WithContext(r.Context()).Model(&project).Updates(updates).Error; err != nil {
			writeDBError(w, h.logger, err, "Failed to update project")
			return
		}
		var reloaded models.Project
		if err := h.db.WithContext(r.Context()).First(&reloaded, "id = ?", project.ID).Error; err != nil {
			writeInternalError(w, h.logger, err, "Failed to reload project")
			return
		}
		project = reloaded
		h.audit.Record(r.Context(), audit.Entry{
			WorkspaceID: project.WorkspaceID,
			UserID:      middleware.GetUserID(r.Context()),
			Action:      audit.ActionUpdate,
			EntityType:  "project",
			EntityID:    project.ID,
			Metadata:    changedFields(updates),
		})
	}

	writeJSON(w, http.StatusOK, dto.ProjectResponse{Message: "Project updated", Project: &project})
}

// Delete handles DELETE /api/projects/{id}
func (h *ProjectHandler) Delete(w http.ResponseWriter, r *http.Request) {
	pa, ok := authorizeProject(w, r, h.access, h.logger, access.ActionDelete)
	if !ok {
		return
	}

	if err := h.db.WithContext(r.Context()).Delete(&pa.Project).Error; err != nil {
		writeInternalError(w, h.logger, err, "Failed to delete project")
		return
	}

	h.audit.Record(r.Context(), audit.Entry{
		WorkspaceID: pa.Project.WorkspaceID,
		UserID:      middleware.GetUserID(r.Context()),
		Action:      audit.ActionDelete,
		EntityType:  "project",
		EntityID:    pa.Project.ID,
		Metadata:    map[string]any{"name": pa.Project.Name},
	})

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Project deleted"})
}

// authorizeProject resolves the {id} project for the caller, writing the
// error response when access is denied.
func authorizeProject(w http.ResponseWriter, r *http.Request, checker *access.Checker, logger *slog.Logger, action access.Action) (*access.ProjectAccess, bool) {
	projectID, ok := urlID(w, r, "id", "project")
	if !ok {
		return nil, false
	}
	pa, err := checker.Project(r.Context(), middleware.GetUserID(r.Context()), projectID, action)
	if err != nil {
		writeAccessError(w, logger, err, "Project")
		return nil, false
	}
	return pa, true
}

// changedFields lists the keys of an update map for the audit trail.
func changedFields(updates map[string]any) map[string]any {
	fields := make([]string, 0, len(updates))
	for k := range updates {
		fields = append(fields, k)
	}
	sort.Strings(fields)
	return map[string]any{"fields": fields}
}
