package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/nerlude/internal/access"
	"github.com/hugh/nerlude/internal/api/dto"
	"github.com/hugh/nerlude/internal/api/middleware"
	"github.com/hugh/nerlude/internal/audit"
	"github.com/hugh/nerlude/internal/database"
	"github.com/hugh/nerlude/internal/database/models"
	"github.com/hugh/nerlude/internal/invites"
	"github.com/hugh/nerlude/internal/renewal"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Clock supplies the current calendar date for date-relative views.
type Clock interface {
	Today() time.Time
}

type WorkspaceHandler struct {
	db           *gorm.DB
	access       *access.Checker
	audit        *audit.Writer
	invites      *invites.Service
	clock        Clock
	primaryKeyID string
	logger       *slog.Logger
}

func NewWorkspaceHandler(db *gorm.DB, checker *access.Checker, auditor *audit.Writer, inviteService *invites.Service, clock Clock, primaryKeyID string, logger *slog.Logger) *WorkspaceHandler {
	return &WorkspaceHandler{
		db:           db,
		access:       checker,
		audit:        auditor,
		invites:      inviteService,
		clock:        clock,
		primaryKeyID: primaryKeyID,
		logger:       loggerOrDefault(logger),
	}
}

// List handles GET /api/workspaces
func (h *WorkspaceHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var memberships []models.WorkspaceMember
	if err := h.db.WithContext(r.Context()).
		Preload("Workspace").
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&memberships).Error; err != nil {
		writeInternalError(w, h.logger, err, "Failed to list workspaces")
		return
	}

	out := make([]dto.WorkspaceDTO, 0, len(memberships))
	for _, m := range memberships {
		if m.Workspace != nil {
			out = append(out, dto.NewWorkspaceDTO(m.Workspace, m.Role))
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// Create handles POST /api/workspaces. The caller becomes the owner.
func (h *WorkspaceHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req dto.CreateWorkspaceRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if validationFailed(w, req.Validate()) {
		return
	}

	ws := models.Workspace{
		Name:      strings.TrimSpace(req.Name),
		Plan:      "free",
		CreatedBy: userID,
	}
	if h.primaryKeyID != "" {
		keyID := h.primaryKeyID
		ws.EncryptionKeyID = &keyID
	}

	if err := h.db.WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
		return database.CreateWorkspace(tx, &ws)
	}); err != nil {
		writeDBError(w, h.logger, err, "Failed to create workspace")
		return
	}

	h.audit.Record(r.Context(), audit.Entry{
		WorkspaceID: ws.ID,
		UserID:      userID,
		Action:      audit.ActionCreate,
		EntityType:  "workspace",
		EntityID:    ws.ID,
		Metadata:    map[string]any{"name": ws.Name},
	})

	writeJSON(w, http.StatusCreated, dto.WorkspaceResponse{
		Message:   "Workspace created",
		Workspace: dto.NewWorkspaceDTO(&ws, models.RoleOwner),
	})
}

// Get handles GET /api/workspaces/{id}
func (h *WorkspaceHandler) Get(w http.ResponseWriter, r *http.Request) {
	wa, ok := h.authorize(w, r, access.ActionRead)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, dto.NewWorkspaceDTO(&wa.Workspace, wa.Role))
}

// Update handles PATCH /api/workspaces/{id}
func (h *WorkspaceHandler) Update(w http.ResponseWriter, r *http.Request) {
	wa, ok := h.authorize(w, r, access.ActionManage)
	if !ok {
		return
	}

	var req dto.UpdateWorkspaceRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if validationFailed(w, req.Validate()) {
		return
	}

	updates := make(map[string]any)
	if req.Name != nil {
		updates["name"] = strings.TrimSpace(*req.Name)
	}
	if req.Plan != nil {
		updates["plan"] = *req.Plan
	}

	ws := wa.Workspace
	if len(updates) > 0 {
		if err := h.db.WithContext(r.Context()).Model(&ws).Updates(updates).Error; err != nil {
			writeDBError(w, h.logger, err, "Failed to update workspace")
			return
		}
		h.audit.Record(r.Context(), audit.Entry{
			WorkspaceID: ws.ID,
			UserID:      middleware.GetUserID(r.Context()),
			Action:      audit.ActionUpdate,
			EntityType:  "workspace",
			EntityID:    ws.ID,
			Metadata:    updates,
		})
	}

	writeJSON(w, http.StatusOK, dto.WorkspaceResponse{
		Message:   "Workspace updated",
		Workspace: dto.NewWorkspaceDTO(&ws, wa.Role),
	})
}

// Delete handles DELETE /api/workspaces/{id}. Only the owner may delete, and
// the workspace's projects go with it.
func (h *WorkspaceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	wa, ok := h.authorize(w, r, access.ActionOwner)
	if !ok {
		return
	}
	ws := wa.Workspace

	if err := h.db.WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("workspace_id = ?", ws.ID).Delete(&models.Project{}).Error; err != nil {
			return err
		}
		return tx.Delete(&ws).Error
	}); err != nil {
		writeInternalError(w, h.logger, err, "Failed to delete workspace")
		return
	}

	h.audit.Record(r.Context(), audit.Entry{
		WorkspaceID: ws.ID,
		UserID:      middleware.GetUserID(r.Context()),
		Action:      audit.ActionDelete,
		EntityType:  "workspace",
		EntityID:    ws.ID,
		Metadata:    map[string]any{"name": ws.Name},
	})

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Workspace deleted"})
}

// Summary handles GET /api/workspaces/{id}/summary
func (h *WorkspaceHandler) Summary(w http.ResponseWriter, r *http.Request) {
	wa, ok := h.authorize(w, r, access.ActionRead)
	if !ok {
		return
	}
	db := h.db.WithContext(r.Context())

	var projects []models.Project
	if err := db.Where("workspace_id = ?", wa.Workspace.ID).Find(&projects).Error; err != nil {
		writeInternalError(w, h.logger, err, "Failed to load projects")
		return
	}

	summary := dto.WorkspaceSummary{
		ProjectCount:     int64(len(projects)),
		MonthlyCost:      make(map[string]string),
		UpcomingRenewals: []dto.UpcomingRenewal{},
	}

	projectNames := make(map[uuid.UUID]string)
	var activeIDs []uuid.UUID
	for _, p := range projects {
		if p.Status == models.ProjectStatusActive {
			projectNames[p.ID] = p.Name
			activeIDs = append(activeIDs, p.ID)
		}
	}

	var services []models.Service
	if len(activeIDs) > 0 {
		if err := db.Where("project_id IN ? AND status = ?", activeIDs, models.ServiceStatusActive).
			Find(&services).Error; err != nil {
			writeInternalError(w, h.logger, err, "Failed to load services")
			return
		}
	}
	summary.ActiveServiceCount = int64(len(services))

	today := h.clock.Today()
	totals := make(map[string]decimal.Decimal)
	for i := range services {
		svc := &services[i]
		if amount, ok := monthlyCost(svc); ok {
			totals[svc.CostCurrency] = totals[svc.CostCurrency].Add(amount)
		}

		if svc.RenewalDate == nil {
			continue
		}
		days := renewal.DaysUntil(*svc.RenewalDate, today)
		if days < 0 || days > renewal.DefaultHorizonDays {
			continue
		}
		summary.UpcomingRenewals = append(summary.UpcomingRenewals, dto.UpcomingRenewal{
			ServiceID:        svc.ID.String(),
			ServiceName:      svc.Name,
			ProjectID:        svc.ProjectID.String(),
			ProjectName:      projectNames[svc.ProjectID],
			RenewalDate:      svc.RenewalDate.Format("2006-01-02"),
			DaysUntilRenewal: days,
			CostAmount:       svc.CostAmount.StringFixed(2),
			CostCurrency:     svc.CostCurrency,
		})
	}
	for currency, total := range totals {
		summary.MonthlyCost[currency] = total.StringFixed(2)
	}
	sort.Slice(summary.UpcomingRenewals, func(i, j int) bool {
		a, b := summary.UpcomingRenewals[i], summary.UpcomingRenewals[j]
		if a.DaysUntilRenewal != b.DaysUntilRenewal {
			return a.DaysUntilRenewal < b.DaysUntilRenewal
		}
		return a.ServiceName < b.ServiceName
	})

	writeJSON(w, http.StatusOK, summary)
}

var (
	three  = decimal.NewFromInt(3)
	twelve = decimal.NewFromInt(12)
)

// monthlyCost normalises a service's cost to one month. One-time costs have
// no monthly equivalent.
func monthlyCost(svc *models.Service) (decimal.Decimal, bool) {
	switch svc.CostFrequency {
	case models.CostMonthly:
		return svc.CostAmount, true
	case models.CostQuarterly:
		return svc.CostAmount.Div(three), true
	case models.CostYearly:
		return svc.CostAmount.Div(twelve), true
	default:
		return decimal.Zero, false
	}
}

// ListMembers handles GET /api/workspaces/{id}/members
func (h *WorkspaceHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	wa, ok := h.authorize(w, r, access.ActionRead)
	if !ok {
		return
	}

	var members []models.WorkspaceMember
	if err := h.db.WithContext(r.Context()).
		Preload("User").
		Where("workspace_id = ?", wa.Workspace.ID).
		Order("created_at ASC").
		Find(&members).Error; err != nil {
		writeInternalError(w, h.logger, err, "Failed to list members")
		return
	}

	out := make([]dto.MemberDTO, 0, len(members))
	for _, m := range members {
		out = append(out, memberDTO(m.User, m.Role, m.CreatedAt))
	}
	writeJSON(w, http.StatusOK, out)
}

// UpdateMember handles PATCH /api/workspaces/{id}/members/{userId}
func (h *WorkspaceHandler) UpdateMember(w http.ResponseWriter, r *http.Request) {
	wa, ok := h.authorize(w, r, access.ActionManage)
	if !ok {
		return
	}
	targetID, ok := urlID(w, r, "userId", "user")
	if !ok {
		return
	}

	var req dto.UpdateMemberRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if validationFailed(w, req.Validate()) {
		return
	}

	member, ok := h.loadMember(w, r, wa.Workspace.ID, targetID)
	if !ok {
		return
	}
	if member.Role == models.RoleOwner {
		writeError(w, http.StatusBadRequest, "Owner role cannot be changed")
		return
	}

	previous := member.Role
	if err := h.db.WithContext(r.Context()).
		Model(&models.WorkspaceMember{}).
		Where("workspace_id = ? AND user_id = ?", wa.Workspace.ID, targetID).
		Update("role", req.Role).Error; err != nil {
		writeInternalError(w, h.logger, err, "Failed to update member")
		return
	}
	member.Role = models.Role(req.Role)

	h.audit.Record(r.Context(), audit.Entry{
		WorkspaceID: wa.Workspace.ID,
		UserID:      middleware.GetUserID(r.Context()),
		Action:      audit.ActionUpdate,
		EntityType:  "workspace_member",
		EntityID:    targetID,
		Metadata:    map[string]any{"from": string(previous), "to": req.Role},
	})

	writeJSON(w, http.StatusOK, memberDTO(member.User, member.Role, member.CreatedAt))
}

// RemoveMember handles DELETE /api/workspaces/{id}/members/{userId}. Any
// member may remove themselves; removing others needs owner or admin.
func (h *WorkspaceHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	targetID, ok := urlID(w, r, "userId", "user")
	if !ok {
		return
	}

	action := access.ActionManage
	if targetID == middleware.GetUserID(r.Context()) {
		action = access.ActionRead
	}
	wa, ok := h.authorize(w, r, action)
	if !ok {
		return
	}

	member, ok := h.loadMember(w, r, wa.Workspace.ID, targetID)
	if !ok {
		return
	}
	if member.Role == models.RoleOwner {
		writeError(w, http.StatusBadRequest, "The workspace owner cannot be removed")
		return
	}

	if err := h.db.WithContext(r.Context()).
		Where("workspace_id = ? AND user_id = ?", wa.Workspace.ID, targetID).
		Delete(&models.WorkspaceMember{}).Error; err != nil {
		writeInternalError(w, h.logger, err, "Failed to remove member")
		return
	}

	h.audit.Record(r.Context(), audit.Entry{
		WorkspaceID: wa.Workspace.ID,
		UserID:      middleware.GetUserID(r.Context()),
		Action:      audit.ActionDelete,
		EntityType:  "workspace_member",
		EntityID:    targetID,
		Metadata:    map[string]any{"role": string(member.Role)},
	})

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Member removed"})
}

// Invite handles POST /api/workspaces/{id}/invites
func (h *WorkspaceHandler) Invite(w http.ResponseWriter, r *http.Request) {
	wa, ok := h.authorize(w, r, access.ActionManage)
	if !ok {
		return
	}

	var req dto.InviteRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if validationFailed(w, req.Validate()) {
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	var count int64
	if err := h.db.WithContext(r.Context()).
		Model(&models.WorkspaceMember{}).
		Joins("JOIN users ON users.id = workspace_members.user_id").
		Where("workspace_members.workspace_id = ? AND users.email = ?", wa.Workspace.ID, email).
		Count(&count).Error; err != nil {
		writeInternalError(w, h.logger, err, "Failed to check membership")
		return
	}
	if count > 0 {
		writeError(w, http.StatusConflict, "User is already a member")
		return
	}

	created, err := h.invites.Create(r.Context(), invites.CreateInput{
		Type:        models.InviteWorkspace,
		TargetID:    wa.Workspace.ID,
		WorkspaceID: wa.Workspace.ID,
		Email:       email,
		Role:        models.Role(req.Role),
		InvitedBy:   middleware.GetUserID(r.Context()),
	})
	if err != nil {
		writeInviteCreateError(w, h.logger, err)
		return
	}

	h.audit.Record(r.Context(), audit.Entry{
		WorkspaceID: wa.Workspace.ID,
		UserID:      middleware.GetUserID(r.Context()),
		Action:      audit.ActionCreate,
		EntityType:  "invite",
		EntityID:    created.Invite.ID,
		Metadata:    map[string]any{"email": email, "role": req.Role, "type": string(models.InviteWorkspace)},
	})

	inv := dto.NewInviteDTO(created.Invite, created.AcceptURL)
	writeJSON(w, http.StatusCreated, dto.InviteResponse{Message: "Invite sent", Invite: &inv})
}

// AuditLogs handles GET /api/workspaces/{id}/audit-logs
func (h *WorkspaceHandler) AuditLogs(w http.ResponseWriter, r *http.Request) {
	wa, ok := h.authorize(w, r, access.ActionManage)
	if !ok {
		return
	}
	pagination := paginationFrom(r)

	query := h.db.WithContext(r.Context()).Model(&models.AuditLog{}).Where("workspace_id = ?", wa.Workspace.ID)
	if entityType := r.URL.Query().Get("entity_type"); entityType != "" {
		query = query.Where("entity_type = ?", entityType)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		writeInternalError(w, h.logger, err, "Failed to count audit logs")
		return
	}

	var logs []models.AuditLog
	if err := query.
		Order("created_at DESC").
		Offset(pagination.Offset()).
		Limit(pagination.PerPage).
		Find(&logs).Error; err != nil {
		writeInternalError(w, h.logger, err, "Failed to list audit logs")
		return
	}

	out := make([]dto.AuditLogDTO, len(logs))
	for i := range logs {
		out[i] = dto.NewAuditLogDTO(&logs[i])
	}
	writeJSON(w, http.StatusOK, dto.NewPaginatedResponse(out, total, pagination))
}

func (h *WorkspaceHandler) authorize(w http.ResponseWriter, r *http.Request, action access.Action) (*access.WorkspaceAccess, bool) {
	wsID, ok := urlID(w, r, "id", "workspace")
	if !ok {
		return nil, false
	}
	wa, err := h.access.Workspace(r.Context(), middleware.GetUserID(r.Context()), wsID, action)
	if err != nil {
		writeAccessError(w, h.logger, err, "Workspace")
		return nil, false
	}
	return wa, true
}

func (h *WorkspaceHandler) loadMember(w http.ResponseWriter, r *http.Request, wsID, userID uuid.UUID) (*models.WorkspaceMember, bool) {
	var member models.WorkspaceMember
	if err := h.db.WithContext(r.Context()).
		Preload("User").
		Where("workspace_id = ? AND user_id = ?", wsID, userID).
		First(&member).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeError(w, http.StatusNotFound, "Member not found")
			return nil, false
		}
		writeInternalError(w, h.logger, err, "Failed to load member")
		return nil, false
	}
	return &member, true
}

func memberDTO(u *models.User, role models.Role, joined time.Time) dto.MemberDTO {
	m := dto.MemberDTO{Role: string(role), CreatedAt: joined}
	if u != nil {
		m.UserID = u.ID.String()
		m.Email = u.Email
		m.Name = u.Name
	}
	return m
}

func writeInviteCreateError(w http.ResponseWriter, logger *slog.Logger, err error) {
	if errors.Is(err, invites.ErrInvalidRole) {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{
			Error:   "Validation failed",
			Details: map[string]string{"role": "Role must be one of admin, member, viewer"},
		})
		return
	}
	writeInternalError(w, logger, err, "Failed to create invite")
}
