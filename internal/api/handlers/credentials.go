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
	"github.com/hugh/nerlude/internal/credentials"
	"github.com/hugh/nerlude/internal/database/models"
	"gorm.io/gorm"
)

type CredentialHandler struct {
	db     *gorm.DB
	access *access.Checker
	audit  *audit.Writer
	cipher *credentials.Cipher
	logger *slog.Logger
}

func NewCredentialHandler(db *gorm.DB, checker *access.Checker, auditor *audit.Writer, cipher *credentials.Cipher, logger *slog.Logger) *CredentialHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CredentialHandler{db: db, access: checker, audit: auditor, cipher: cipher, logger: logger}
}

// List handles GET /api/projects/{id}/credentials. Rows that cannot be
// decrypted are still listed, flagged with decryption_error.
func (h *CredentialHandler) List(w http.ResponseWriter, r *http.Request) {
	pa, ok := authorizeProject(w, r, h.access, h.logger, access.ActionSecrets)
	if !ok {
		return
	}

	query := h.db.WithContext(r.Context()).Where("project_id = ?", pa.Project.ID)
	if serviceID := r.URL.Query().Get("service_id"); serviceID != "" {
		id, err := uuid.Parse(serviceID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid service ID")
			return
		}
		query = query.Where("project_service_id = ?", id)
	}

	var creds []models.Credential
	if err := query.Order("created_at ASC").Find(&creds).Error; err != nil {
		writeInternalError(w, h.logger, err, "Failed to list credentials")
		return
	}

	ws, ok := h.workspace(w, r, pa.Project.WorkspaceID)
	if !ok {
		return
	}

	out := make([]dto.CredentialResponse, len(creds))
	for i := range creds {
		out[i] = h.reveal(ws, &creds[i])
	}
	writeJSON(w, http.StatusOK, out)
}

// Create handles POST /api/projects/{id}/credentials
func (h *CredentialHandler) Create(w http.ResponseWriter, r *http.Request) {
	pa, ok := authorizeProject(w, r, h.access, h.logger, access.ActionSecrets)
	if !ok {
		return
	}

	var req dto.CreateCredentialRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if validationFailed(w, req.Validate()) {
		return
	}

	serviceID := uuid.MustParse(req.ServiceID)
	var count int64
	if err := h.db.WithContext(r.Context()).Model(&models.Service{}).
		Where("id = ? AND project_id = ?", serviceID, pa.Project.ID).
		Count(&count).Error; err != nil {
		writeInternalError(w, h.logger, err, "Failed to load service")
		return
	}
	if count == 0 {
		validationFailed(w, map[string]string{"project_service_id": "Service does not belong to this project"})
		return
	}

	ws, ok := h.workspace(w, r, pa.Project.WorkspaceID)
	if !ok {
		return
	}

	sealed, version, err := h.cipher.Seal(ws, credentials.Fields(req.Credentials))
	if err != nil {
		h.writeSealError(w, err, ws.ID)
		return
	}

	cred := models.Credential{
		ProjectID:            pa.Project.ID,
		ProjectServiceID:     serviceID,
		Environment:          models.EnvProduction,
		CredentialType:       "api_key",
		KeyName:              strings.TrimSpace(req.KeyName),
		CredentialsEncrypted: sealed,
		FormatVersion:        version,
		CreatedBy:            middleware.GetUserID(r.Context()),
	}
	if req.Environment != "" {
		cred.Environment = models.CredentialEnvironment(req.Environment)
	}
	if req.CredentialType != "" {
		cred.CredentialType = req.CredentialType
	}

	if err := h.db.WithContext(r.Context()).Create(&cred).Error; err != nil {
		writeDBError(w, h.logger, err, "Failed to create credential")
		return
	}

	h.audit.Record(r.Context(), audit.Entry{
		WorkspaceID: ws.ID,
		UserID:      cred.CreatedBy,
		Action:      audit.ActionCreate,
		EntityType:  "credential",
		EntityID:    cred.ID,
		Metadata: map[string]any{
			"key_name":    cred.KeyName,
			"environment": string(cred.Environment),
			"service_id":  serviceID.String(),
		},
	})

	writeJSON(w, http.StatusCreated, dto.CredentialMutationResponse{
		Message:    "Credential created",
		Credential: dto.NewCredentialResponse(&cred, req.Credentials, false),
	})
}

// Get handles GET /api/projects/{id}/credentials/{credentialId}
func (h *CredentialHandler) Get(w http.ResponseWriter, r *http.Request) {
	pa, ok := authorizeProject(w, r, h.access, h.logger, access.ActionSecrets)
	if !ok {
		return
	}
	cred, ok := h.load(w, r, pa.Project.ID)
	if !ok {
		return
	}
	ws, ok := h.workspace(w, r, pa.Project.WorkspaceID)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.reveal(ws, cred))
}

// Update handles PATCH /api/projects/{id}/credentials/{credentialId}. New
// credential fields replace the stored map and are always written in the
// current format.
func (h *CredentialHandler) Update(w http.ResponseWriter, r *http.Request) {
	pa, ok := authorizeProject(w, r, h.access, h.logger, access.ActionSecrets)
	if !ok {
		return
	}
	cred, ok := h.load(w, r, pa.Project.ID)
	if !ok {
		return
	}

	var req dto.UpdateCredentialRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if validationFailed(w, req.Validate()) {
		return
	}

	ws, ok := h.workspace(w, r, pa.Project.WorkspaceID)
	if !ok {
		return
	}

	updates := make(map[string]any)
	if req.KeyName != nil {
		updates["key_name"] = strings.TrimSpace(*req.KeyName)
	}
	if req.Environment != nil {
		updates["environment"] = *req.Environment
	}
	if req.CredentialType != nil {
		updates["credential_type"] = *req.CredentialType
	}
	if req.Credentials != nil {
		sealed, version, err := h.cipher.Seal(ws, credentials.Fields(req.Credentials))
		if err != nil {
			h.writeSealError(w, err, ws.ID)
			return
		}
		updates["credentials_encrypted"] = sealed
		updates["format_version"] = version
	}

	if len(updates) > 0 {
		if err := h.db.WithContext(r.Context()).Model(cred).Updates(updates).Error; err != nil {
			writeDBError(w, h.logger, err, "Failed to update credential")
			return
		}
		if err := h.db.WithContext(r.Context()).First(cred, "id = ?", cred.ID).Error; err != nil {
			writeInternalError(w, h.logger, err, "Failed to reload credential")
			return
		}

		fields := changedFields(updates)
		h.audit.Record(r.Context(), audit.Entry{
			WorkspaceID: ws.ID,
			UserID:      middleware.GetUserID(r.Context()),
			Action:      audit.ActionUpdate,
			EntityType:  "credential",
			EntityID:    cred.ID,
			Metadata:    fields,
		})
	}

	writeJSON(w, http.StatusOK, dto.CredentialMutationResponse{
		Message:    "Credential updated",
		Credential: h.reveal(ws, cred),
	})
}

// Delete handles DELETE /api/projects/{id}/credentials/{credentialId}
func (h *CredentialHandler) Delete(w http.ResponseWriter, r *http.Request) {
	pa, ok := authorizeProject(w, r, h.access, h.logger, access.ActionDelete)
	if !ok {
		return
	}
	cred, ok := h.load(w, r, pa.Project.ID)
	if !ok {
		return
	}

	if err := h.db.WithContext(r.Context()).Delete(cred).Error; err != nil {
		writeInternalError(w, h.logger, err, "Failed to delete credential")
		return
	}

	h.audit.Record(r.Context(), audit.Entry{
		WorkspaceID: pa.Project.WorkspaceID,
		UserID:      middleware.GetUserID(r.Context()),
		Action:      audit.ActionDelete,
		EntityType:  "credential",
		EntityID:    cred.ID,
		Metadata:    map[string]any{"key_name": cred.KeyName},
	})

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Credential deleted"})
}

func (h *CredentialHandler) reveal(ws *models.Workspace, cred *models.Credential) dto.CredentialResponse {
	fields, failed := h.cipher.Reveal(ws, cred)
	if failed {
		h.logger.Warn("credential could not be decrypted",
			"credential_id", cred.ID,
			"format_version", cred.FormatVersion,
		)
	}
	return dto.NewCredentialResponse(cred, fields, failed)
}

func (h *CredentialHandler) writeSealError(w http.ResponseWriter, err error, wsID uuid.UUID) {
	if errors.Is(err, credentials.ErrNoKey) {
		h.logger.Error("workspace has no usable encryption key", "workspace_id", wsID, "error", err)
		writeError(w, http.StatusInternalServerError, "Encryption is not configured for this workspace")
		return
	}
	h.logger.Error("failed to seal credential", "workspace_id", wsID, "error", err)
	writeError(w, http.StatusInternalServerError, "Failed to encrypt credentials")
}

func (h *CredentialHandler) workspace(w http.ResponseWriter, r *http.Request, wsID uuid.UUID) (*models.Workspace, bool) {
	var ws models.Workspace
	if err := h.db.WithContext(r.Context()).First(&ws, "id = ?", wsID).Error; err != nil {
		writeInternalError(w, h.logger, err, "Failed to load workspace")
		return nil, false
	}
	return &ws, true
}

func (h *CredentialHandler) load(w http.ResponseWriter, r *http.Request, projectID uuid.UUID) (*models.Credential, bool) {
	credID, ok := urlID(w, r, "credentialId", "credential")
	if !ok {
		return nil, false
	}
	var cred models.Credential
	if err := h.db.WithContext(r.Context()).
		Where("id = ? AND project_id = ?", credID, projectID).
		First(&cred).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeError(w, http.StatusNotFound, "Credential not found")
			return nil, false
		}
		writeInternalError(w, h.logger, err, "Failed to load credential")
		return nil, false
	}
	return &cred, true
}
