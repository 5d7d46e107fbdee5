package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/hugh/nerlude/internal/access"
	"github.com/hugh/nerlude/internal/api/dto"
	"github.com/hugh/nerlude/internal/api/middleware"
	"github.com/hugh/nerlude/internal/api/validation"
	"github.com/hugh/nerlude/internal/audit"
	"github.com/hugh/nerlude/internal/database/models"
	"gorm.io/gorm"
)

type DocumentHandler struct {
	db     *gorm.DB
	access *access.Checker
	audit  *audit.Writer
	logger *slog.Logger
}

func NewDocumentHandler(db *gorm.DB, checker *access.Checker, auditor *audit.Writer, logger *slog.Logger) *DocumentHandler {
	return &DocumentHandler{db: db, access: checker, audit: auditor, logger: loggerOrDefault(logger)}
}

// List handles GET /api/projects/{id}/documents
func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	pa, ok := authorizeProject(w, r, h.access, h.logger, access.ActionRead)
	if !ok {
		return
	}

	query := h.db.WithContext(r.Context()).Where("project_id = ?", pa.Project.ID)
	if docType := r.URL.Query().Get("doc_type"); docType != "" {
		query = query.Where("doc_type = ?", docType)
	}

	var docs []models.Document
	if err := query.Order("created_at DESC").Find(&docs).Error; err != nil {
		writeInternalError(w, h.logger, err, "Failed to list documents")
		return
	}
	writeJSON(w, http.StatusOK, docs)
}

// Create handles POST /api/projects/{id}/documents
func (h *DocumentHandler) Create(w http.ResponseWriter, r *http.Request) {
	pa, ok := authorizeProject(w, r, h.access, h.logger, access.ActionWrite)
	if !ok {
		return
	}

	var req dto.DocumentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if validationFailed(w, req.Validate(true)) {
		return
	}

	doc := models.Document{
		ProjectID: pa.Project.ID,
		Title:     validation.SanitizeString(*req.Title),
		DocType:   "note",
		CreatedBy: middleware.GetUserID(r.Context()),
	}
	if req.DocType != nil {
		doc.DocType = *req.DocType
	}
	if req.URL != nil {
		doc.URL = *req.URL
	}
	if req.Content != nil {
		doc.Content = validation.SanitizeString(*req.Content)
	}

	if err := h.db.WithContext(r.Context()).Create(&doc).Error; err != nil {
		writeDBError(w, h.logger, err, "Failed to create document")
		return
	}

	h.audit.Record(r.Context(), audit.Entry{
		WorkspaceID: pa.Project.WorkspaceID,
		UserID:      doc.CreatedBy,
		Action:      audit.ActionCreate,
		EntityType:  "document",
		EntityID:    doc.ID,
		Metadata:    map[string]any{"title": doc.Title},
	})

	writeJSON(w, http.StatusCreated, dto.DocumentResponse{Message: "Document created", Document: &doc})
}

// Get handles GET /api/projects/{id}/documents/{documentId}
func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	pa, ok := authorizeProject(w, r, h.access, h.logger, access.ActionRead)
	if !ok {
		return
	}
	doc, ok := h.load(w, r, pa.Project.ID)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, dto.DocumentResponse{Document: doc})
}

// Update handles PATCH /api/projects/{id}/documents/{documentId}
func (h *DocumentHandler) Update(w http.ResponseWriter, r *http.Request) {
	pa, ok := authorizeProject(w, r, h.access, h.logger, access.ActionWrite)
	if !ok {
		return
	}
	doc, ok := h.load(w, r, pa.Project.ID)
	if !ok {
		return
	}

	var req dto.DocumentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if validationFailed(w, req.Validate(false)) {
		return
	}

	updates := make(map[string]any)
	if req.Title != nil {
		updates["title"] = validation.SanitizeString(*req.Title)
	}
	if req.DocType != nil {
		updates["doc_type"] = *req.DocType
	}
	if req.URL != nil {
		updates["url"] = *req.URL
	}
	if req.Content != nil {
		updates["content"] = validation.SanitizeString(*req.Content)
	}

	if len(updates) > 0 {
		if err := h.db.WithContext(r.Context()).Model(doc).Updates(updates).Error; err != nil {
			writeDBError(w, h.logger, err, "Failed to update document")
			return
		}
		if err := h.db.WithContext(r.Context()).First(doc, "id = ?", doc.ID).Error; err != nil {
			writeInternalError(w, h.logger, err, "Failed to reload document")
			return
		}
		h.audit.Record(r.Context(), audit.Entry{
			WorkspaceID: pa.Project.WorkspaceID,
			UserID:      middleware.GetUserID(r.Context()),
			Action:      audit.ActionUpdate,
			EntityType:  "document",
			EntityID:    doc.ID,
			Metadata:    changedFields(updates),
		})
	}

	writeJSON(w, http.StatusOK, dto.DocumentResponse{Message: "Document updated", Document: doc})
}

// Delete handles DELETE /api/projects/{id}/documents/{documentId}
func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	pa, ok := authorizeProject(w, r, h.access, h.logger, access.ActionDelete)
	if !ok {
		return
	}
	doc, ok := h.load(w, r, pa.Project.ID)
	if !ok {
		return
	}

	if err := h.db.WithContext(r.Context()).Delete(doc).Error; err != nil {
		writeInternalError(w, h.logger, err, "Failed to delete document")
		return
	}

	h.audit.Record(r.Context(), audit.Entry{
		WorkspaceID: pa.Project.WorkspaceID,
		UserID:      middleware.GetUserID(r.Context()),
		Action:      audit.ActionDelete,
		EntityType:  "document",
		EntityID:    doc.ID,
		Metadata:    map[string]any{"title": doc.Title},
	})

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Document deleted"})
}

func (h *DocumentHandler) load(w http.ResponseWriter, r *http.Request, projectID uuid.UUID) (*models.Document, bool) {
	docID, ok := urlID(w, r, "documentId", "document")
	if !ok {
		return nil, false
	}
	var doc models.Document
	if err := h.db.WithContext(r.Context()).
		Where("id = ? AND project_id = ?", docID, projectID).
		First(&doc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeError(w, http.StatusNotFound, "Document not found")
			return nil, false
		}
		writeInternalError(w, h.logger, err, "Failed to load document")
		return nil, false
	}
	return &doc, true
}
