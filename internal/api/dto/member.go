package dto

import (
	"strings"
	"time"

	"github.com/hugh/nerlude/internal/api/validation"
	"github.com/hugh/nerlude/internal/database/models"
)

type MemberDTO struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// validateGrantableRole checks a role that may be handed out through the
// API. Ownership never changes hands this way.
func validateGrantableRole(errors map[string]string, role string) {
	switch {
	case role == "":
		errors["role"] = "Role is required"
	case role == string(models.RoleOwner):
		errors["role"] = "Owner role cannot be granted"
	case !models.Role(role).Valid():
		errors["role"] = "Role must be one of admin, member, viewer"
	}
}

type UpdateMemberRequest struct {
	Role string `json:"role"`
}

func (r UpdateMemberRequest) Validate() map[string]string {
	errors := make(map[string]string)
	validateGrantableRole(errors, r.Role)
	return errors
}

// InviteRequest creates an invite, or for project members adds an existing
// user directly.
type InviteRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

func (r InviteRequest) Validate() map[string]string {
	errors := make(map[string]string)
	if r.Email == "" {
		errors["email"] = "Email is required"
	} else if !validation.IsValidEmail(strings.TrimSpace(r.Email)) {
		errors["email"] = "Invalid email format"
	}
	validateGrantableRole(errors, r.Role)
	return errors
}

type InviteDTO struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Type      string    `json:"type"`
	TargetID  string    `json:"target_id"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"expires_at"`
	AcceptURL string    `json:"accept_url,omitempty"`
}

func NewInviteDTO(inv *models.Invite, acceptURL string) InviteDTO {
	return InviteDTO{
		ID:        inv.ID.String(),
		Email:     inv.Email,
		Type:      string(inv.Type),
		TargetID:  inv.TargetID.String(),
		Role:      string(inv.Role),
		ExpiresAt: inv.ExpiresAt,
		AcceptURL: acceptURL,
	}
}

type InviteResponse struct {
	Message string     `json:"message"`
	Invite  *InviteDTO `json:"invite,omitempty"`
	Member  *MemberDTO `json:"member,omitempty"`
}

type InvitePreviewResponse struct {
	Email       string    `json:"email"`
	Type        string    `json:"type"`
	TargetID    string    `json:"target_id"`
	TargetName  string    `json:"target_name"`
	InviterName string    `json:"inviter_name"`
	Role        string    `json:"role"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type AcceptInviteRequest struct {
	Token string `json:"token"`
}

func (r AcceptInviteRequest) Validate() map[string]string {
	errors := make(map[string]string)
	if strings.TrimSpace(r.Token) == "" {
		errors["token"] = "Token is required"
	}
	return errors
}

type AcceptInviteResponse struct {
	Message  string `json:"message"`
	Type     string `json:"type"`
	TargetID string `json:"target_id"`
	Role     string `json:"role"`
}
