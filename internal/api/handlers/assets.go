package handlers

import (
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/nerlude/internal/access"
	"github.com/hugh/nerlude/internal/api/dto"
	"github.com/hugh/nerlude/internal/api/middleware"
	"github.com/hugh/nerlude/internal/api/validation"
	"github.com/hugh/nerlude/internal/audit"
	"github.com/hugh/nerlude/internal/database/models"
	"github.com/hugh/nerlude/internal/storage"
	"gorm.io/gorm"
)

// multipartOverhead leaves room for form fields and part headers on top of
// the file itself.
const multipartOverhead = 1 << 20

const maxAssetNameLen = 255

type AssetHandler struct {
	db     *gorm.DB
	access *access.Checker
	audit  *audit.Writer
	store  storage.ObjectStore
	logger *slog.Logger
	now    func() time.Time
}

func NewAssetHandler(db *gorm.DB, checker *access.Checker, auditor *audit.Writer, store storage.ObjectStore, logger *slog.Logger) *AssetHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AssetHandler{
		db:     db,
		access: checker,
		audit:  auditor,
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// List handles GET /api/projects/{id}/assets. folder_id=root lists assets
// outside any folder.
func (h *AssetHandler) List(w http.ResponseWriter, r *http.Request) {
	pa, ok := authorizeProject(w, r, h.access, h.logger, access.ActionRead)
	if !ok {
		return
	}

	query := h.db.WithContext(r.Context()).Where("project_id = ?", pa.Project.ID)
	switch folder := r.URL.Query().Get("folder_id"); folder {
	case "":
	case "root":
		query = query.Where("folder_id IS NULL")
	default:
		id, err := uuid.Parse(folder)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid folder ID")
			return
		}
		query = query.Where("folder_id = ?", id)
	}

	var assets []models.Asset
	if err := query.Order("created_at DESC").Find(&assets).Error; err != nil {
		writeInternalError(w, h.logger, err, "Failed to list assets")
		return
	}
	writeJSON(w, http.StatusOK, assets)
}

// Upload handles POST /api/projects/{id}/assets (multipart/form-data with a
// "file" part and optional "folder_id" and "name" fields).
func (h *AssetHandler) Upload(w http.ResponseWriter, r *http.Request) {
	pa, ok := authorizeProject(w, r, h.access, h.logger, access.ActionWrite)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, storage.MaxUploadBytes+multipartOverhead)
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "File exceeds the 10MB limit")
			return
		}
		writeError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		validationFailed(w, map[string]string{"file": "File is required"})
		return
	}
	defer file.Close()

	if header.Size > storage.MaxUploadBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "File exceeds the 10MB limit")
		return
	}
	if header.Size == 0 {
		validationFailed(w, map[string]string{"file": "File is empty"})
		return
	}

	contentType := storage.NormalizeMIME(header.Header.Get("Content-Type"))
	if contentType == "" || contentType == "application/octet-stream" {
		contentType, err = sniffContentType(file)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Failed to read file")
			return
		}
	}
	if !storage.AllowedMIME(contentType) {
		writeError(w, http.StatusUnsupportedMediaType, "File type not allowed")
		return
	}

	var folderID *uuid.UUID
	if raw := r.FormValue("folder_id"); raw != "" && raw != "root" {
		id, err := uuid.Parse(raw)
		if err != nil {
			validationFailed(w, map[string]string{"folder_id": "Invalid folder ID format"})
			return
		}
		var count int64
		if err := h.db.WithContext(r.Context()).Model(&models.AssetFolder{}).
			Where("id = ? AND project_id = ?", id, pa.Project.ID).
			Count(&count).Error; err != nil {
			writeInternalError(w, h.logger, err, "Failed to load folder")
			return
		}
		if count == 0 {
			writeError(w, http.StatusNotFound, "Folder not found")
			return
		}
		folderID = &id
	}

	name := validation.TruncateString(validation.SanitizeString(r.FormValue("name")), maxAssetNameLen)
	if name == "" {
		name = header.Filename
	}

	key := storage.BuildKey(pa.Project.ID, folderID, header.Filename, h.now())
	if err := h.store.Put(r.Context(), key, file, header.Size, contentType); err != nil {
		h.logger.Error("asset upload failed", "error", err, "key", key)
		writeError(w, http.StatusBadGateway, "Failed to store file")
		return
	}

	asset := models.Asset{
		ProjectID:  pa.Project.ID,
		FolderID:   folderID,
		Name:       name,
		FileName:   header.Filename,
		MimeType:   contentType,
		SizeBytes:  header.Size,
		StorageKey: key,
		UploadedBy: middleware.GetUserID(r.Context()),
	}
	if err := h.db.WithContext(r.Context()).Create(&asset).Error; err != nil {
		// Without a row nothing would ever reference the object.
		if delErr := h.store.Delete(r.Context(), key); delErr != nil {
			h.logger.Error("failed to remove orphaned object", "error", delErr, "key", key)
		}
		writeDBError(w, h.logger, err, "Failed to save asset")
		return
	}

	h.audit.Record(r.Context(), audit.Entry{
		WorkspaceID: pa.Project.WorkspaceID,
		UserID:      asset.UploadedBy,
		Action:      audit.ActionCreate,
		EntityType:  "asset",
		EntityID:    asset.ID,
		Metadata: map[string]any{
			"name":       asset.Name,
			"mime_type":  asset.MimeType,
			"size_bytes": asset.SizeBytes,
		},
	})

	writeJSON(w, http.StatusCreated, dto.AssetResponse{Message: "Asset uploaded", Asset: &asset})
}

// Download handles GET /api/projects/{id}/assets/{assetId}/download
func (h *AssetHandler) Download(w http.ResponseWriter, r *http.Request) {
	pa, ok := authorizeProject(w, r, h.access, h.logger, access.ActionRead)
	if !ok {
		return
	}
	asset, ok := h.load(w, r, pa.Project.ID)
	if !ok {
		return
	}

	body, err := h.store.Get(r.Context(), asset.StorageKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "File not found in storage")
			return
		}
		h.logger.Error("asset download failed", "error", err, "key", asset.StorageKey)
		writeError(w, http.StatusBadGateway, "Failed to read file")
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", asset.MimeType)
	w.Header().Set("Content-Length", strconv.FormatInt(asset.SizeBytes, 10))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": asset.FileName}))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		h.logger.Warn("asset download interrupted", "error", err, "asset_id", asset.ID)
	}
}

// Delete handles DELETE /api/projects/{id}/assets/{assetId}
func (h *AssetHandler) Delete(w http.ResponseWriter, r *http.Request) {
	pa, ok := authorizeProject(w, r, h.access, h.logger, access.ActionDelete)
	if !ok {
		return
	}
	asset, ok := h.load(w, r, pa.Project.ID)
	if !ok {
		return
	}

	if err := h.db.WithContext(r.Context()).Unscoped().Delete(asset).Error; err != nil {
		writeInternalError(w, h.logger, err, "Failed to delete asset")
		return
	}
	h.removeObjects(r, []string{asset.StorageKey})

	h.audit.Record(r.Context(), audit.Entry{
		WorkspaceID: pa.Project.WorkspaceID,
		UserID:      middleware.GetUserID(r.Context()),
		Action:      audit.ActionDelete,
		EntityType:  "asset",
		EntityID:    asset.ID,
		Metadata:    map[string]any{"name": asset.Name},
	})

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Asset deleted"})
}

// ListFolders handles GET /api/projects/{id}/folders
func (h *AssetHandler) ListFolders(w http.ResponseWriter, r *http.Request) {
	pa, ok := authorizeProject(w, r, h.access, h.logger, access.ActionRead)
	if !ok {
		return
	}

	var folders []models.AssetFolder
	if err := h.db.WithContext(r.Context()).
		Where("project_id = ?", pa.Project.ID).
		Order("name ASC").
		Find(&folders).Error; err != nil {
		writeInternalError(w, h.logger, err, "Failed to list folders")
		return
	}
	writeJSON(w, http.StatusOK, folders)
}

// CreateFolder handles POST /api/projects/{id}/folders
func (h *AssetHandler) CreateFolder(w http.ResponseWriter, r *http.Request) {
	pa, ok := authorizeProject(w, r, h.access, h.logger, access.ActionWrite)
	if !ok {
		return
	}

	var req dto.CreateFolderRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if validationFailed(w, req.Validate()) {
		return
	}

	folder := models.AssetFolder{
		ProjectID: pa.Project.ID,
		Name:      strings.TrimSpace(req.Name),
		CreatedBy: middleware.GetUserID(r.Context()),
	}
	if err := h.db.WithContext(r.Context()).Create(&folder).Error; err != nil {
		writeDBError(w, h.logger, err, "Failed to create folder")
		return
	}

	h.audit.Record(r.Context(), audit.Entry{
		WorkspaceID: pa.Project.WorkspaceID,
		UserID:      folder.CreatedBy,
		Action:      audit.ActionCreate,
		EntityType:  "folder",
		EntityID:    folder.ID,
		Metadata:    map[string]any{"name": folder.Name},
	})

	writeJSON(w, http.StatusCreated, dto.FolderResponse{Message: "Folder created", Folder: &folder})
}

// DeleteFolder handles DELETE /api/projects/{id}/folders/{folderId}. Every
// asset in the folder is deleted with it.
func (h *AssetHandler) DeleteFolder(w http.ResponseWriter, r *http.Request) {
	pa, ok := authorizeProject(w, r, h.access, h.logger, access.ActionDelete)
	if !ok {
		return
	}
	folderID, ok := urlID(w, r, "folderId", "folder")
	if !ok {
		return
	}

	var folder models.AssetFolder
	if err := h.db.WithContext(r.Context()).
		Where("id = ? AND project_id = ?", folderID, pa.Project.ID).
		First(&folder).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeError(w, http.StatusNotFound, "Folder not found")
			return
		}
		writeInternalError(w, h.logger, err, "Failed to load folder")
		return
	}

	var assets []models.Asset
	if err := h.db.WithContext(r.Context()).Where("folder_id = ?", folder.ID).Find(&assets).Error; err != nil {
		writeInternalError(w, h.logger, err, "Failed to load folder assets")
		return
	}

	if err := h.db.WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("folder_id = ?", folder.ID).Delete(&models.Asset{}).Error; err != nil {
			return err
		}
		return tx.Delete(&folder).Error
	}); err != nil {
		writeInternalError(w, h.logger, err, "Failed to delete folder")
		return
	}

	keys := make([]string, len(assets))
	for i, a := range assets {
		keys[i] = a.StorageKey
	}
	h.removeObjects(r, keys)

	h.audit.Record(r.Context(), audit.Entry{
		WorkspaceID: pa.Project.WorkspaceID,
		UserID:      middleware.GetUserID(r.Context()),
		Action:      audit.ActionDelete,
		EntityType:  "folder",
		EntityID:    folder.ID,
		Metadata:    map[string]any{"name": folder.Name, "assets_deleted": len(assets)},
	})

	writeJSON(w, http.StatusOK, dto.FolderDeleteResponse{Message: "Folder deleted", AssetsDeleted: len(assets)})
}

// removeObjects deletes stored bytes after their rows are gone. Failures
// leave orphans behind and are only logged.
func (h *AssetHandler) removeObjects(r *http.Request, keys []string) {
	for _, key := range keys {
		if err := h.store.Delete(r.Context(), key); err != nil {
			h.logger.Warn("failed to delete stored object", "error", err, "key", key)
		}
	}
}

func (h *AssetHandler) load(w http.ResponseWriter, r *http.Request, projectID uuid.UUID) (*models.Asset, bool) {
	assetID, ok := urlID(w, r, "assetId", "asset")
	if !ok {
		return nil, false
	}
	var asset models.Asset
	if err := h.db.WithContext(r.Context()).
		Where("id = ? AND project_id = ?", assetID, projectID).
		First(&asset).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeError(w, http.StatusNotFound, "Asset not found")
			return nil, false
		}
		writeInternalError(w, h.logger, err, "Failed to load asset")
		return nil, false
	}
	return &asset, true
}

// sniffContentType guesses the type from the first 512 bytes and rewinds.
func sniffContentType(f io.ReadSeeker) (string, error) {
	buf := make([]byte, 512)
	n, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	return storage.NormalizeMIME(http.DetectContentType(buf[:n])), nil
}
