package auth

import (
	"context"

	"github.com/google/uuid"
	"github.com/hugh/nerlude/internal/database/models"
)

// Authenticator defines the interface for user authentication operations.
type Authenticator interface {
	Register(ctx context.Context, input RegisterInput) (*AuthResponse, error)
	Login(ctx context.Context, input LoginInput) (*AuthResponse, error)
	Logout(ctx context.Context, claims *Claims) error
	Authenticate(ctx context.Context, token string) (*Claims, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// TokenService defines the interface for JWT token operations.
type TokenService interface {
	GenerateToken(userID uuid.UUID, email string) (string, error)
	ValidateToken(tokenString string) (*Claims, error)
}

// SessionValidator is what the auth middleware needs to admit a request.
type SessionValidator interface {
	Authenticate(ctx context.Context, token string) (*Claims, error)
}

// Compile-time interface satisfaction checks
var (
	_ Authenticator    = (*Service)(nil)
	_ TokenService     = (*JWTService)(nil)
	_ SessionStore     = (*RedisSessionStore)(nil)
	_ SessionValidator = (*Service)(nil)
	_ SessionValidator = (*JWTService)(nil)
)

// Authenticate lets a bare JWTService act as a validator when no
// revocation store is configured.
func (s *JWTService) Authenticate(_ context.Context, token string) (*Claims, error) {
	return s.ValidateToken(token)
}
