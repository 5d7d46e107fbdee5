// Package invites creates signed workspace and project invitations and
// turns accepted ones into memberships.
package invites

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/hugh/nerlude/internal/auth"
	"github.com/hugh/nerlude/internal/database/models"
	"github.com/hugh/nerlude/internal/tasks"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrNotFound      = errors.New("invite not found")
	ErrExpired       = errors.New("invite has expired")
	ErrConsumed      = errors.New("invite has already been used")
	ErrEmailMismatch = errors.New("invite was sent to a different email")
	ErrInvalidRole   = errors.New("invalid invite role")
)

const DefaultExpiry = 24 * time.Hour

// TokenSigner signs and verifies invite link tokens.
type TokenSigner interface {
	GenerateInviteToken(inviteID uuid.UUID, expiresAt time.Time) (string, error)
	ValidateInviteToken(token string) (uuid.UUID, error)
}

// Enqueuer is satisfied by *asynq.Client.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Notifier records an in-app notification, best effort.
type Notifier interface {
	Send(ctx context.Context, n *models.Notification)
}

type Options struct {
	Expiry  time.Duration
	BaseURL string
	Now     func() time.Time
}

type Service struct {
	db       *gorm.DB
	tokens   TokenSigner
	queue    Enqueuer
	notifier Notifier
	logger   *slog.Logger
	expiry   time.Duration
	baseURL  string
	now      func() time.Time
}

func NewService(db *gorm.DB, tokens TokenSigner, queue Enqueuer, notifier Notifier, logger *slog.Logger, opts Options) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Expiry <= 0 {
		opts.Expiry = DefaultExpiry
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		db:       db,
		tokens:   tokens,
		queue:    queue,
		notifier: notifier,
		logger:   logger,
		expiry:   opts.Expiry,
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		now:      opts.Now,
	}
}

type CreateInput struct {
	Type        models.InviteType
	TargetID    uuid.UUID
	WorkspaceID uuid.UUID
	Email       string
	Role        models.Role
	InvitedBy   uuid.UUID
}

// Created is a stored invite together with its link token.
type Created struct {
	Invite    *models.Invite
	Token     string
	AcceptURL string
}

// Create stores an invite, signs its token and queues the email. Queue and
// notification failures are logged; the invite is still returned.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Created, error) {
	if !in.Role.Valid() || in.Role == models.RoleOwner {
		return nil, ErrInvalidRole
	}

	invite := &models.Invite{
		Email:       strings.ToLower(strings.TrimSpace(in.Email)),
		Type:        in.Type,
		TargetID:    in.TargetID,
		WorkspaceID: in.WorkspaceID,
		Role:        in.Role,
		InvitedBy:   in.InvitedBy,
		ExpiresAt:   s.now().Add(s.expiry).UTC(),
	}
	if err := s.db.WithContext(ctx).Create(invite).Error; err != nil {
		return nil, fmt.Errorf("creating invite: %w", err)
	}

	token, err := s.tokens.GenerateInviteToken(invite.ID, invite.ExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("signing invite token: %w", err)
	}

	created := &Created{
		Invite:    invite,
		Token:     token,
		AcceptURL: s.baseURL + "/invites/" + token,
	}

	targetName, inviterName := s.names(ctx, invite)
	s.enqueueEmail(ctx, created, targetName, inviterName)
	s.notifyExistingUser(ctx, invite, targetName, inviterName)

	return created, nil
}

func (s *Service) enqueueEmail(ctx context.Context, c *Created, targetName, inviterName string) {
	if s.queue == nil {
		return
	}
	task, err := tasks.NewInviteEmailTask(tasks.InviteEmailPayload{
		InviteID:    c.Invite.ID,
		Email:       c.Invite.Email,
		InviterName: inviterName,
		TargetType:  string(c.Invite.Type),
		TargetName:  targetName,
		Role:        string(c.Invite.Role),
		AcceptURL:   c.AcceptURL,
		ExpiresAt:   c.Invite.ExpiresAt,
	})
	if err == nil {
		_, err = s.queue.EnqueueContext(ctx, task)
	}
	if err != nil {
		s.logger.Warn("failed to enqueue invite email", "error", err, "invite_id", c.Invite.ID)
	}
}

func (s *Service) notifyExistingUser(ctx context.Context, invite *models.Invite, targetName, inviterName string) {
	if s.notifier == nil {
		return
	}
	var user models.User
	if err := s.db.WithContext(ctx).Select("id").Where("email = ?", invite.Email).First(&user).Error; err != nil {
		return
	}
	ws := invite.WorkspaceID
	s.notifier.Send(ctx, &models.Notification{
		UserID:      user.ID,
		WorkspaceID: &ws,
		Type:        models.NotificationInvite,
		Title:       "You're invited to " + targetName,
		Message:     fmt.Sprintf("%s invited you to join %s as %s.", inviterName, targetName, invite.Role),
		Data: datatypes.JSONMap{
			"invite_id": invite.ID.String(),
			"type":      string(invite.Type),
			"target_id": invite.TargetID.String(),
		},
	})
}

// names resolves display names for the invite target and inviter. Missing
// rows fall back to generic labels.
func (s *Service) names(ctx context.Context, invite *models.Invite) (target, inviter string) {
	target = "a " + string(invite.Type)
	inviter = "A teammate"

	db := s.db.WithContext(ctx)
	switch invite.Type {
	case models.InviteWorkspace:
		var ws models.Workspace
		if db.Select("name").First(&ws, "id = ?", invite.TargetID).Error == nil {
			target = ws.Name
		}
	case models.InviteProject:
		var p models.Project
		if db.Select("name").First(&p, "id = ?", invite.TargetID).Error == nil {
			target = p.Name
		}
	}

	var u models.User
	if db.Select("name", "email").First(&u, "id = ?", invite.InvitedBy).Error == nil {
		inviter = u.Name
		if inviter == "" {
			inviter = u.Email
		}
	}
	return target, inviter
}

// Preview is the public view of a pending invite.
type Preview struct {
	Invite      *models.Invite
	TargetName  string
	InviterName string
}

// Preview resolves token to its pending invite.
func (s *Service) Preview(ctx context.Context, token string) (*Preview, error) {
	invite, err := s.resolve(ctx, token)
	if err != nil {
		return nil, err
	}
	target, inviter := s.names(ctx, invite)
	return &Preview{Invite: invite, TargetName: target, InviterName: inviter}, nil
}

func (s *Service) resolve(ctx context.Context, token string) (*models.Invite, error) {
	id, err := s.tokens.ValidateInviteToken(token)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredToken) {
			return nil, ErrExpired
		}
		return nil, ErrNotFound
	}

	var invite models.Invite
	if err := s.db.WithContext(ctx).First(&invite, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("loading invite: %w", err)
	}

	if invite.AcceptedAt != nil {
		return nil, ErrConsumed
	}
	if !s.now().Before(invite.ExpiresAt) {
		return nil, ErrExpired
	}
	return &invite, nil
}

// Accept adds the caller as a member of the invite target and consumes the
// invite. Accepting while already a member keeps the existing role.
func (s *Service) Accept(ctx context.Context, userID uuid.UUID, email, token string) (*models.Invite, error) {
	invite, err := s.resolve(ctx, token)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(strings.TrimSpace(email), invite.Email) {
		return nil, ErrEmailMismatch
	}

	now := s.now().UTC()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := insertMembership(tx, invite, userID); err != nil {
			return err
		}

		res := tx.Model(&models.Invite{}).
			Where("id = ? AND accepted_at IS NULL", invite.ID).
			Updates(map[string]any{"accepted_at": now, "accepted_by": userID})
		if res.Error != nil {
			return fmt.Errorf("consuming invite: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrConsumed
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	invite.AcceptedAt = &now
	invite.AcceptedBy = &userID
	return invite, nil
}

func insertMembership(tx *gorm.DB, invite *models.Invite, userID uuid.UUID) error {
	var row any
	switch invite.Type {
	case models.InviteWorkspace:
		row = &models.WorkspaceMember{WorkspaceID: invite.TargetID, UserID: userID, Role: invite.Role}
	case models.InviteProject:
		row = &models.ProjectMember{ProjectID: invite.TargetID, UserID: userID, Role: invite.Role}
	default:
		return fmt.Errorf("unknown invite type %q", invite.Type)
	}

	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(row).Error; err != nil {
		return fmt.Errorf("adding membership: %w", err)
	}
	return nil
}
