package dto

import (
	"strings"
	"time"

	"github.com/hugh/nerlude/internal/api/validation"
	"github.com/hugh/nerlude/internal/database/models"
)

type RegisterRequest struct {
	Email         string `json:"email"`
	Password      string `json:"password"`
	Name          string `json:"name"`
	WorkspaceName string `json:"workspace_name,omitempty"`
}

func (r RegisterRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.Email == "" {
		errors["email"] = "Email is required"
	} else if !validation.IsValidEmail(strings.TrimSpace(r.Email)) {
		errors["email"] = "Invalid email format"
	}
	if r.Password == "" {
		errors["password"] = "Password is required"
	} else if ok, msg := validation.IsValidPassword(r.Password); !ok {
		errors["password"] = msg
	}
	if strings.TrimSpace(r.Name) == "" {
		errors["name"] = "Name is required"
	}

	return errors
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r LoginRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.Email == "" {
		errors["email"] = "Email is required"
	}
	if r.Password == "" {
		errors["password"] = "Password is required"
	}

	return errors
}

type AuthResponse struct {
	Token     string        `json:"token"`
	ExpiresAt time.Time     `json:"expires_at"`
	User      UserDTO       `json:"user"`
	Workspace *WorkspaceDTO `json:"workspace,omitempty"`
}

type UserDTO struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

func NewUserDTO(u *models.User) UserDTO {
	return UserDTO{
		ID:    u.ID.String(),
		Email: u.Email,
		Name:  u.Name,
	}
}

type MeResponse struct {
	User       UserDTO        `json:"user"`
	Workspaces []WorkspaceDTO `json:"workspaces"`
}
