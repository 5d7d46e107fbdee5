package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/hugh/nerlude/internal/api/dto"
	"github.com/hugh/nerlude/internal/api/middleware"
	"github.com/hugh/nerlude/internal/auth"
	"github.com/hugh/nerlude/internal/database/models"
	"gorm.io/gorm"
)

type AuthHandler struct {
	authService  auth.Authenticator
	db           *gorm.DB
	secureCookie bool
	logger       *slog.Logger
}

// NewAuthHandler serves the session endpoints. secureCookie marks the
// session cookie Secure, which production deployments behind HTTPS want.
func NewAuthHandler(authService auth.Authenticator, db *gorm.DB, secureCookie bool, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{authService: authService, db: db, secureCookie: secureCookie, logger: loggerOrDefault(logger)}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req dto.RegisterRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if validationFailed(w, req.Validate()) {
		return
	}

	resp, err := h.authService.Register(r.Context(), auth.RegisterInput{
		Email:         req.Email,
		Password:      req.Password,
		Name:          req.Name,
		WorkspaceName: req.WorkspaceName,
	})
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrUserExists):
			writeError(w, http.StatusConflict, "User already exists")
		default:
			writeInternalError(w, h.logger, err, "Registration failed")
		}
		return
	}

	h.setSessionCookie(w, resp.Token, resp.ExpiresAt)

	out := dto.AuthResponse{
		Token:     resp.Token,
		ExpiresAt: resp.ExpiresAt,
		User:      dto.NewUserDTO(resp.User),
	}
	if resp.Workspace != nil {
		ws := dto.NewWorkspaceDTO(resp.Workspace, models.RoleOwner)
		out.Workspace = &ws
	}
	writeJSON(w, http.StatusCreated, out)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if validationFailed(w, req.Validate()) {
		return
	}

	resp, err := h.authService.Login(r.Context(), auth.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			writeError(w, http.StatusUnauthorized, "Invalid credentials")
		case errors.Is(err, auth.ErrInactiveUser):
			writeError(w, http.StatusForbidden, "Account is inactive")
		default:
			writeInternalError(w, h.logger, err, "Login failed")
		}
		return
	}

	h.setSessionCookie(w, resp.Token, resp.ExpiresAt)

	writeJSON(w, http.StatusOK, dto.AuthResponse{
		Token:     resp.Token,
		ExpiresAt: resp.ExpiresAt,
		User:      dto.NewUserDTO(resp.User),
	})
}

// Logout revokes the presented session, if any, and clears the cookie.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if claims := middleware.GetClaims(r.Context()); claims != nil {
		if err := h.authService.Logout(r.Context(), claims); err != nil {
			writeInternalError(w, h.logger, err, "Logout failed")
			return
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secureCookie,
		MaxAge:   -1,
	})

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Logged out"})
}

// Me handles GET /api/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	user, err := h.authService.GetUserByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		writeInternalError(w, h.logger, err, "Failed to load user")
		return
	}

	var memberships []models.WorkspaceMember
	if err := h.db.WithContext(r.Context()).
		Preload("Workspace").
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&memberships).Error; err != nil {
		writeInternalError(w, h.logger, err, "Failed to load workspaces")
		return
	}

	workspaces := make([]dto.WorkspaceDTO, 0, len(memberships))
	for _, m := range memberships {
		if m.Workspace == nil {
			continue
		}
		workspaces = append(workspaces, dto.NewWorkspaceDTO(m.Workspace, m.Role))
	}

	writeJSON(w, http.StatusOK, dto.MeResponse{
		User:       dto.NewUserDTO(user),
		Workspaces: workspaces,
	})
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, token string, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
		Expires:  expiresAt,
	})
}
