package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/nerlude/internal/database"
	"github.com/hugh/nerlude/internal/database/models"
	"gorm.io/gorm"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInactiveUser       = errors.New("user is inactive")
	ErrSessionRevoked     = errors.New("session has been revoked")
)

type Service struct {
	db           *gorm.DB
	jwt          *JWTService
	sessions     SessionStore
	primaryKeyID string
	logger       *slog.Logger
}

// NewService wires registration and login. sessions may be nil, in which
// case logout only clears the client cookie. primaryKeyID is assigned to the
// first workspace of every new user.
func NewService(db *gorm.DB, jwt *JWTService, sessions SessionStore, primaryKeyID string) *Service {
	return &Service{
		db:           db,
		jwt:          jwt,
		sessions:     sessions,
		primaryKeyID: primaryKeyID,
		logger:       slog.Default(),
	}
}

type RegisterInput struct {
	Email         string
	Password      string
	Name          string
	WorkspaceName string // Optional: defaults to "<name>'s Workspace"
}

type LoginInput struct {
	Email    string
	Password string
}

type AuthResponse struct {
	Token     string            `json:"token"`
	ExpiresAt time.Time         `json:"expires_at"`
	User      *models.User      `json:"user"`
	Workspace *models.Workspace `json:"workspace,omitempty"`
}

func (s *Service) Register(ctx context.Context, input RegisterInput) (*AuthResponse, error) {
	email := normalizeEmail(input.Email)

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("checking existing user: %w", err)
	}
	if count > 0 {
		return nil, ErrUserExists
	}

	hash, err := HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	wsName := strings.TrimSpace(input.WorkspaceName)
	if wsName == "" {
		wsName = input.Name + "'s Workspace"
	}

	var user models.User
	var ws models.Workspace
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user = models.User{
			Email:        email,
			PasswordHash: hash,
			Name:         input.Name,
			IsActive:     true,
		}
		if err := tx.Create(&user).Error; err != nil {
			if database.IsDuplicateKey(err) {
				return ErrUserExists
			}
			return fmt.Errorf("creating user: %w", err)
		}

		ws = models.Workspace{
			Name:      wsName,
			Plan:      "free",
			CreatedBy: user.ID,
		}
		if s.primaryKeyID != "" {
			keyID := s.primaryKeyID
			ws.EncryptionKeyID = &keyID
		}
		return database.CreateWorkspace(tx, &ws)
	})
	if err != nil {
		return nil, err
	}

	return s.issue(&user, &ws)
}

func (s *Service) Login(ctx context.Context, input LoginInput) (*AuthResponse, error) {
	var user models.User
	if err := s.db.WithContext(ctx).
		Where("email = ?", normalizeEmail(input.Email)).
		First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("loading user: %w", err)
	}

	if !user.IsActive {
		return nil, ErrInactiveUser
	}

	if !CheckPassword(input.Password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	return s.issue(&user, nil)
}

// Logout revokes the session carried by claims until the token would have
// expired anyway.
func (s *Service) Logout(ctx context.Context, claims *Claims) error {
	if s.sessions == nil || claims == nil || claims.ID == "" {
		return nil
	}
	until := time.Now().Add(s.jwt.Expiry())
	if claims.ExpiresAt != nil {
		until = claims.ExpiresAt.Time
	}
	return s.sessions.Revoke(ctx, claims.ID, until)
}

// RevokesSessions reports whether Logout can invalidate a token before it
// expires. Without a session store logout only clears the client cookie.
func (s *Service) RevokesSessions() bool {
	return s.sessions != nil
}

// Authenticate validates a session token and checks it has not been revoked.
func (s *Service) Authenticate(ctx context.Context, token string) (*Claims, error) {
	claims, err := s.jwt.ValidateToken(token)
	if err != nil {
		return nil, err
	}
	if s.sessions != nil && claims.ID != "" {
		revoked, err := s.sessions.IsRevoked(ctx, claims.ID)
		if err != nil {
			// Redis being down should not lock everyone out.
			s.logger.Warn("session revocation check failed", "error", err)
			return claims, nil
		}
		if revoked {
			return nil, ErrSessionRevoked
		}
	}
	return claims, nil
}

func (s *Service) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("loading user: %w", err)
	}
	return &user, nil
}

func (s *Service) issue(user *models.User, ws *models.Workspace) (*AuthResponse, error) {
	token, err := s.jwt.GenerateToken(user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("generating token: %w", err)
	}
	return &AuthResponse{
		Token:     token,
		ExpiresAt: time.Now().Add(s.jwt.Expiry()),
		User:      user,
		Workspace: ws,
	}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
