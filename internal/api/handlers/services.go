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
	"github.com/hugh/nerlude/internal/api/validation"
	"github.com/hugh/nerlude/internal/audit"
	"github.com/hugh/nerlude/internal/database/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ServiceHandler struct {
	db     *gorm.DB
	access *access.Checker
	audit  *audit.Writer
	logger *slog.Logger
}

func NewServiceHandler(db *gorm.DB, checker *access.Checker, auditor *audit.Writer, logger *slog.Logger) *ServiceHandler {
	return &ServiceHandler{db: db, access: checker, audit: auditor, logger: loggerOrDefault(logger)}
}

// List handles GET /api/projects/{id}/services
func (h *ServiceHandler) List(w http.ResponseWriter, r *http.Request) {
	pa, ok := authorizeProject(w, r, h.access, h.logger, access.ActionRead)
	if !ok {
		return
	}

	query := h.db.WithContext(r.Context()).Where("project_id = ?", pa.Project.ID)
	if status := r.URL.Query().Get("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var services []models.Service
	if err := query.Order("name ASC").Find(&services).Error; err != nil {
		writeInternalError(w, h.logger, err, "Failed to list services")
		return
	}
	writeJSON(w, http.StatusOK, services)
}

// Create handles POST /api/projects/{id}/services
func (h *ServiceHandler) Create(w http.ResponseWriter, r *http.Request) {
	pa, ok := authorizeProject(w, r, h.access, h.logger, access.ActionWrite)
	if !ok {
		return
	}

	var req dto.CreateServiceRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if validationFailed(w, req.Validate()) {
		return
	}

	svc := models.Service{
		ProjectID:     pa.Project.ID,
		Name:          strings.TrimSpace(req.Name),
		Category:      req.Category,
		URL:           req.URL,
		PlanName:      req.PlanName,
		CostAmount:    decimal.Zero,
		CostFrequency: models.CostMonthly,
		CostCurrency:  "USD",
		Status:        models.ServiceStatusActive,
		Notes:         req.Notes,
	}
	if req.CostAmount != nil {
		svc.CostAmount = *req.CostAmount
	}
	if req.CostFrequency != "" {
		svc.CostFrequency = models.CostFrequency(req.CostFrequency)
	}
	if req.CostCurrency != "" {
		svc.CostCurrency = req.CostCurrency
	}
	if req.Status != "" {
		svc.Status = models.ServiceStatus(req.Status)
	}
	if req.RenewalDate != "" {
		d, _ := validation.ParseDate(req.RenewalDate)
		svc.RenewalDate = &d
	}

	if err := h.db.WithContext(r.Context()).Create(&svc).Error; err != nil {
		writeDBError(w, h.logger, err, "Failed to create service")
		return
	}

	h.audit.Record(r.Context(), audit.Entry{
		WorkspaceID: pa.Project.WorkspaceID,
		UserID:      middleware.GetUserID(r.Context()),
		Action:      audit.ActionCreate,
		EntityType:  "service",
		EntityID:    svc.ID,
		Metadata:    map[string]any{"name": svc.Name, "project_id": pa.Project.ID.String()},
	})

	writeJSON(w, http.StatusCreated, dto.ServiceResponse{Message: "Service created", Service: &svc})
}

// Get handles GET /api/projects/{id}/services/{serviceId}
func (h *ServiceHandler) Get(w http.ResponseWriter, r *http.Request) {
	pa, ok := authorizeProject(w, r, h.access, h.logger, access.ActionRead)
	if !ok {
		return
	}
	svc, ok := h.load(w, r, pa.Project.ID)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, dto.ServiceResponse{Service: svc})
}

// Update handles PATCH /api/projects/{id}/services/{serviceId}
func (h *ServiceHandler) Update(w http.ResponseWriter, r *http.Request) {
	pa, ok := authorizeProject(w, r, h.access, h.logger, access.ActionWrite)
	if !ok {
		return
	}
	svc, ok := h.load(w, r, pa.Project.ID)
	if !ok {
		return
	}

	var req dto.UpdateServiceRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if validationFailed(w, req.Validate()) {
		return
	}

	updates := make(map[string]any)
	setString := func(column string, v *string) {
		if v != nil {
			updates[column] = strings.TrimSpace(*v)
		}
	}
	setString("name", req.Name)
	setString("category", req.Category)
	setString("url", req.URL)
	setString("plan_name", req.PlanName)
	setString("cost_frequency", req.CostFrequency)
	setString("cost_currency", req.CostCurrency)
	setString("status", req.Status)
	if req.Notes != nil {
		updates["notes"] = *req.Notes
	}
	if req.CostAmount != nil {
		updates["cost_amount"] = *req.CostAmount
	}
	if req.RenewalDate != nil {
		if *req.RenewalDate == "" {
			updates["renewal_date"] = nil
		} else {
			d, _ := validation.ParseDate(*req.RenewalDate)
			updates["renewal_date"] = d
		}
	}

	if len(updates) > 0 {
		if err := h.db.WithContext(r.Context()).Model(svc).Updates(updates).Error; err != nil {
			writeDBError(w, h.logger, err, "Failed to update service")
			return
		}
		var reloaded models.Service
		if err := h.db.WithContext(r.Context()).First(&reloaded, "id = ?", svc.ID).Error; err != nil {
			writeInternalError(w, h.logger, err, "Failed to reload service")
			return
		}
		svc = &reloaded
		h.audit.Record(r.Context(), audit.Entry{
			WorkspaceID: pa.Project.WorkspaceID,
			UserID:      middleware.GetUserID(r.Context()),
			Action:      audit.ActionUpdate,
			EntityType:  "service",
			EntityID:    svc.ID,
			Metadata:    changedFields(updates),
		})
	}

	writeJSON(w, http.StatusOK, dto.ServiceResponse{Message: "Service updated", Service: svc})
}

// Delete handles DELETE /api/projects/{id}/services/{serviceId}. The
// service's credentials are removed with it.
func (h *ServiceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	pa, ok := authorizeProject(w, r, h.access, h.logger, access.ActionDelete)
	if !ok {
		return
	}
	svc, ok := h.load(w, r, pa.Project.ID)
	if !ok {
		return
	}

	if err := h.db.WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("project_service_id = ?", svc.ID).Delete(&models.Credential{}).Error; err != nil {
			return err
		}
		return tx.Delete(svc).Error
	}); err != nil {
		writeInternalError(w, h.logger, err, "Failed to delete service")
		return
	}

	h.audit.Record(r.Context(), audit.Entry{
		WorkspaceID: pa.Project.WorkspaceID,
		UserID:      middleware.GetUserID(r.Context()),
		Action:      audit.ActionDelete,
		EntityType:  "service",
		EntityID:    svc.ID,
		Metadata:    map[string]any{"name": svc.Name},
	})

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Service deleted"})
}

func (h *ServiceHandler) load(w http.ResponseWriter, r *http.Request, projectID uuid.UUID) (*models.Service, bool) {
	serviceID, ok := urlID(w, r, "serviceId", "service")
	if !ok {
		return nil, false
	}
	var svc models.Service
	if err := h.db.WithContext(r.Context()).
		Where("id = ? AND project_id = ?", serviceID, projectID).
		First(&svc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeError(w, http.StatusNotFound, "Service not found")
			return nil, false
		}
		writeInternalError(w, h.logger, err, "Failed to load service")
		return nil, false
	}
	return &svc, true
}
