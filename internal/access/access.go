// Package access resolves a caller's role on a workspace or project and
// checks it against the allow-list for an action.
//
// A caller with no membership gets ErrNotFound, the same as a missing
// entity, so ids cannot be enumerated. A member whose role is not allowed gets
// ErrForbidden.
package access

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/hugh/nerlude/internal/database/models"
	"gorm.io/gorm"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrForbidden = errors.New("forbidden")
)

type Action string

const (
	ActionRead    Action = "read"
	ActionWrite   Action = "write" // create and update
	ActionDelete  Action = "delete"
	ActionSecrets Action = "secrets" // read or write decrypted credentials
	ActionManage  Action = "manage"  // members, invites, workspace settings
	ActionOwner   Action = "owner"   // workspace deletion
)

func Can(role models.Role, action Action) bool {
	switch role {
	case models.RoleOwner:
		return true
	case models.RoleAdmin:
		return action != ActionOwner
	case models.RoleMember:
		return action == ActionRead || action == ActionWrite || action == ActionSecrets
	case models.RoleViewer:
		return action == ActionRead
	default:
		return false
	}
}

type Checker struct {
	db *gorm.DB
}

func NewChecker(db *gorm.DB) *Checker {
	return &Checker{db: db}
}

type ProjectAccess struct {
	Project models.Project
	Role    models.Role
}

type WorkspaceAccess struct {
	Workspace models.Workspace
	Role      models.Role
}

// Project loads the project and authorizes action. Workspace membership
// takes precedence over a direct project membership.
func (c *Checker) Project(ctx context.Context, userID, projectID uuid.UUID, action Action) (*ProjectAccess, error) {
	var project models.Project
	if err := c.db.WithContext(ctx).First(&project, "id = ?", projectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("loading project: %w", err)
	}

	role, err := c.projectRole(ctx, userID, &project)
	if err != nil {
		return nil, err
	}
	if !Can(role, action) {
		return nil, ErrForbidden
	}

	return &ProjectAccess{Project: project, Role: role}, nil
}

func (c *Checker) projectRole(ctx context.Context, userID uuid.UUID, project *models.Project) (models.Role, error) {
	role, err := c.workspaceRole(ctx, userID, project.WorkspaceID)
	if err == nil {
		return role, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return "", err
	}

	var pm models.ProjectMember
	if err := c.db.WithContext(ctx).
		Where("project_id = ? AND user_id = ?", project.ID, userID).
		First(&pm).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("loading project membership: %w", err)
	}
	return pm.Role, nil
}

// Workspace loads the workspace and authorizes action against the caller's
// workspace membership.
func (c *Checker) Workspace(ctx context.Context, userID, workspaceID uuid.UUID, action Action) (*WorkspaceAccess, error) {
	var ws models.Workspace
	if err := c.db.WithContext(ctx).First(&ws, "id = ?", workspaceID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("loading workspace: %w", err)
	}

	role, err := c.workspaceRole(ctx, userID, workspaceID)
	if err != nil {
		return nil, err
	}
	if !Can(role, action) {
		return nil, ErrForbidden
	}

	return &WorkspaceAccess{Workspace: ws, Role: role}, nil
}

func (c *Checker) workspaceRole(ctx context.Context, userID, workspaceID uuid.UUID) (models.Role, error) {
	var m models.WorkspaceMember
	if err := c.db.WithContext(ctx).
		Where("workspace_id = ? AND user_id = ?", workspaceID, userID).
		First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("loading workspace membership: %w", err)
	}
	return m.Role, nil
}

// WorkspaceIDs lists the workspaces userID belongs to.
func (c *Checker) WorkspaceIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := c.db.WithContext(ctx).
		Model(&models.WorkspaceMember{}).
		Where("user_id = ?", userID).
		Pluck("workspace_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("listing workspaces: %w", err)
	}
	return ids, nil
}

// VisibleProjectIDs lists projects userID can read: every project of their
// workspaces plus direct project memberships.
func (c *Checker) VisibleProjectIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	wsIDs, err := c.WorkspaceIDs(ctx, userID)
	if err != nil {
		return nil, err
	}

	var ids []uuid.UUID
	q := c.db.WithContext(ctx).Model(&models.Project{})
	sub := c.db.Model(&models.ProjectMember{}).Select("project_id").Where("user_id = ?", userID)
	if len(wsIDs) > 0 {
		q = q.Where("workspace_id IN ? OR id IN (?)", wsIDs, sub)
	} else {
		q = q.Where("id IN (?)", sub)
	}
	if err := q.Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	return ids, nil
}
