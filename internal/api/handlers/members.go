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
	"github.com/hugh/nerlude/internal/database"
	"github.com/hugh/nerlude/internal/database/models"
	"github.com/hugh/nerlude/internal/invites"
	"gorm.io/gorm"
)

// ProjectMemberHandler manages direct project memberships. Workspace members
// reach every project of their workspace and are not listed here.
type ProjectMemberHandler struct {
	db      *gorm.DB
	access  *access.Checker
	audit   *audit.Writer
	invites *invites.Service
	logger  *slog.Logger
}

func NewProjectMemberHandler(db *gorm.DB, checker *access.Checker, auditor *audit.Writer, inviteService *invites.Service, logger *slog.Logger) *ProjectMemberHandler {
	return &ProjectMemberHandler{db: db, access: checker, audit: auditor, invites: inviteService, logger: loggerOrDefault(logger)}
}

// List handles GET /api/projects/{id}/members
func (h *ProjectMemberHandler) List(w http.ResponseWriter, r *http.Request) {
	pa, ok := authorizeProject(w, r, h.access, h.logger, access.ActionRead)
	if !ok {
		return
	}

	var members []models.ProjectMember
	if err := h.db.WithContext(r.Context()).
		Preload("User").
		Where("project_id = ?", pa.Project.ID).
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

// Add handles POST /api/projects/{id}/members. A known user is added
// directly; an unknown email gets an invite instead.
func (h *ProjectMemberHandler) Add(w http.ResponseWriter, r *http.Request) {
	pa, ok := authorizeProject(w, r, h.access, h.logger, access.ActionManage)
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

	var user models.User
	err := h.db.WithContext(r.Context()).Where("email = ?", email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		h.invite(w, r, pa, email, req.Role)
		return
	}
	if err != nil {
		writeInternalError(w, h.logger, err, "Failed to look up user")
		return
	}

	member := models.ProjectMember{
		ProjectID: pa.Project.ID,
		UserID:    user.ID,
		Role:      models.Role(req.Role),
	}
	if err := h.db.WithContext(r.Context()).Create(&member).Error; err != nil {
		if database.IsDuplicateKey(err) {
			writeError(w, http.StatusConflict, "User is already a project member")
			return
		}
		writeInternalError(w, h.logger, err, "Failed to add member")
		return
	}

	h.audit.Record(r.Context(), audit.Entry{
		WorkspaceID: pa.Project.WorkspaceID,
		UserID:      middleware.GetUserID(r.Context()),
		Action:      audit.ActionCreate,
		EntityType:  "project_member",
		EntityID:    user.ID,
		Metadata:    map[string]any{"project_id": pa.Project.ID.String(), "role": req.Role},
	})

	m := memberDTO(&user, member.Role, member.CreatedAt)
	writeJSON(w, http.StatusCreated, dto.InviteResponse{Message: "Member added", Member: &m})
}

// Invite handles POST /api/projects/{id}/invites
func (h *ProjectMemberHandler) Invite(w http.ResponseWriter, r *http.Request) {
	pa, ok := authorizeProject(w, r, h.access, h.logger, access.ActionManage)
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
	h.invite(w, r, pa, strings.ToLower(strings.TrimSpace(req.Email)), req.Role)
}

func (h *ProjectMemberHandler) invite(w http.ResponseWriter, r *http.Request, pa *access.ProjectAccess, email, role string) {
	created, err := h.invites.Create(r.Context(), invites.CreateInput{
		Type:        models.InviteProject,
		TargetID:    pa.Project.ID,
		WorkspaceID: pa.Project.WorkspaceID,
		Email:       email,
		Role:        models.Role(role),
		InvitedBy:   middleware.GetUserID(r.Context()),
	})
	if err != nil {
		writeInviteCreateError(w, h.logger, err)
		return
	}

	h.audit.Record(r.Context(), audit.Entry{
		WorkspaceID: pa.Project.WorkspaceID,
		UserID:      middleware.GetUserID(r.Context()),
		Action:      audit.ActionCreate,
		EntityType:  "invite",
		EntityID:    created.Invite.ID,
		Metadata:    map[string]any{"email": email, "role": role, "type": string(models.InviteProject)},
	})

	inv := dto.NewInviteDTO(created.Invite, created.AcceptURL)
	writeJSON(w, http.StatusCreated, dto.InviteResponse{Message: "Invite sent", Invite: &inv})
}

// Update handles PATCH /api/projects/{id}/members/{userId}
func (h *ProjectMemberHandler) Update(w http.ResponseWriter, r *http.Request) {
	pa, ok := authorizeProject(w, r, h.access, h.logger, access.ActionManage)
	if !ok {
		return
	}
	userID, ok := urlID(w, r, "userId", "user")
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

	member, ok := h.load(w, r, pa.Project.ID, userID)
	if !ok {
		return
	}

	previous := member.Role
	if err := h.db.WithContext(r.Context()).
		Model(&models.ProjectMember{}).
		Where("project_id = ? AND user_id = ?", pa.Project.ID, userID).
		Update("role", req.Role).Error; err != nil {
		writeInternalError(w, h.logger, err, "Failed to update member")
		return
	}
	member.Role = models.Role(req.Role)

	h.audit.Record(r.Context(), audit.Entry{
		WorkspaceID: pa.Project.WorkspaceID,
		UserID:      middleware.GetUserID(r.Context()),
		Action:      audit.ActionUpdate,
		EntityType:  "project_member",
		EntityID:    userID,
		Metadata:    map[string]any{"project_id": pa.Project.ID.String(), "from": string(previous), "to": req.Role},
	})

	writeJSON(w, http.StatusOK, memberDTO(member.User, member.Role, member.CreatedAt))
}

// Remove handles DELETE /api/projects/{id}/members/{userId}. Members may
// always remove themselves.
func (h *ProjectMemberHandler) Remove(w http.ResponseWriter, r *http.Request) {
	userID, ok := urlID(w, r, "userId", "user")
	if !ok {
		return
	}
	action := access.ActionManage
	if userID == middleware.GetUserID(r.Context()) {
		action = access.ActionRead
	}
	pa, ok := authorizeProject(w, r, h.access, h.logger, action)
	if !ok {
		return
	}

	member, ok := h.load(w, r, pa.Project.ID, userID)
	if !ok {
		return
	}

	if err := h.db.WithContext(r.Context()).
		Where("project_id = ? AND user_id = ?", pa.Project.ID, userID).
		Delete(&models.ProjectMember{}).Error; err != nil {
		writeInternalError(w, h.logger, err, "Failed to remove member")
		return
	}

	h.audit.Record(r.Context(), audit.Entry{
		WorkspaceID: pa.Project.WorkspaceID,
		UserID:      middleware.GetUserID(r.Context()),
		Action:      audit.ActionDelete,
		EntityType:  "project_member",
		EntityID:    userID,
		Metadata:    map[string]any{"project_id": pa.Project.ID.String(), "role": string(member.Role)},
	})

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Member removed"})
}

func (h *ProjectMemberHandler) load(w http.ResponseWriter, r *http.Request, projectID, userID uuid.UUID) (*models.ProjectMember, bool) {
	var member models.ProjectMember
	if err := h.db.WithContext(r.Context()).
		Preload("User").
		Where("project_id = ? AND user_id = ?", projectID, userID).
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
