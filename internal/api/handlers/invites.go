package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hugh/nerlude/internal/api/dto"
	"github.com/hugh/nerlude/internal/api/middleware"
	"github.com/hugh/nerlude/internal/audit"
	"github.com/hugh/nerlude/internal/database/models"
	"github.com/hugh/nerlude/internal/invites"
)

type InviteHandler struct {
	invites *invites.Service
	audit   *audit.Writer
	logger  *slog.Logger
}

func NewInviteHandler(inviteService *invites.Service, auditor *audit.Writer, logger *slog.Logger) *InviteHandler {
	return &InviteHandler{invites: inviteService, audit: auditor, logger: loggerOrDefault(logger)}
}

// Preview handles GET /api/invites/{token}. It is public: the link itself
// is the credential. Expired and used invites look the same as unknown ones.
func (h *InviteHandler) Preview(w http.ResponseWriter, r *http.Request) {
	p, err := h.invites.Preview(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		switch {
		case errors.Is(err, invites.ErrNotFound), errors.Is(err, invites.ErrExpired), errors.Is(err, invites.ErrConsumed):
			writeError(w, http.StatusNotFound, "Invite not found or no longer valid")
		default:
			writeInternalError(w, h.logger, err, "Failed to load invite")
		}
		return
	}

	writeJSON(w, http.StatusOK, dto.InvitePreviewResponse{
		Email:       p.Invite.Email,
		Type:        string(p.Invite.Type),
		TargetID:    p.Invite.TargetID.String(),
		TargetName:  p.TargetName,
		InviterName: p.InviterName,
		Role:        string(p.Invite.Role),
		ExpiresAt:   p.Invite.ExpiresAt,
	})
}

// Accept handles POST /api/invites/accept
func (h *InviteHandler) Accept(w http.ResponseWriter, r *http.Request) {
	var req dto.AcceptInviteRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if validationFailed(w, req.Validate()) {
		return
	}

	userID := middleware.GetUserID(r.Context())
	invite, err := h.invites.Accept(r.Context(), userID, middleware.GetUserEmail(r.Context()), req.Token)
	if err != nil {
		switch {
		case errors.Is(err, invites.ErrEmailMismatch):
			writeError(w, http.StatusForbidden, "This invite was sent to a different email address")
		case errors.Is(err, invites.ErrExpired):
			writeError(w, http.StatusBadRequest, "Invite has expired")
		case errors.Is(err, invites.ErrConsumed), errors.Is(err, invites.ErrNotFound):
			writeError(w, http.StatusNotFound, "Invite not found or already used")
		default:
			writeInternalError(w, h.logger, err, "Failed to accept invite")
		}
		return
	}

	entity := "workspace_member"
	if invite.Type == models.InviteProject {
		entity = "project_member"
	}
	h.audit.Record(r.Context(), audit.Entry{
		WorkspaceID: invite.WorkspaceID,
		UserID:      userID,
		Action:      "accept_invite",
		EntityType:  entity,
		EntityID:    userID,
		Metadata: map[string]any{
			"invite_id": invite.ID.String(),
			"target_id": invite.TargetID.String(),
			"role":      string(invite.Role),
		},
	})

	writeJSON(w, http.StatusOK, dto.AcceptInviteResponse{
		Message:  "Invite accepted",
		Type:     string(invite.Type),
		TargetID: invite.TargetID.String(),
		Role:     string(invite.Role),
	})
}
