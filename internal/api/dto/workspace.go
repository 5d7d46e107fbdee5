package dto

import (
	"strings"
	"time"

	"github.com/hugh/nerlude/internal/api/validation"
	"github.com/hugh/nerlude/internal/database/models"
)

type WorkspaceDTO struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	Plan      string    `json:"plan"`
	Role      string    `json:"role,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func NewWorkspaceDTO(ws *models.Workspace, role models.Role) WorkspaceDTO {
	return WorkspaceDTO{
		ID:        ws.ID.String(),
		Name:      ws.Name,
		Slug:      ws.Slug,
		Plan:      ws.Plan,
		Role:      string(role),
		CreatedAt: ws.CreatedAt,
	}
}

type CreateWorkspaceRequest struct {
	Name string `json:"name"`
}

func (r CreateWorkspaceRequest) Validate() map[string]string {
	errors := make(map[string]string)
	if strings.TrimSpace(r.Name) == "" {
		errors["name"] = "Name is required"
	} else if len(r.Name) > 100 {
		errors["name"] = "Name must be at most 100 characters"
	}
	return errors
}

type UpdateWorkspaceRequest struct {
	Name *string `json:"name,omitempty"`
	Plan *string `json:"plan,omitempty"`
}

func (r UpdateWorkspaceRequest) Validate() map[string]string {
	errors := make(map[string]string)
	if r.Name != nil {
		if strings.TrimSpace(*r.Name) == "" {
			errors["name"] = "Name cannot be empty"
		} else if len(*r.Name) > 100 {
			errors["name"] = "Name must be at most 100 characters"
		}
	}
	if r.Plan != nil && !validation.OneOf(*r.Plan, "free", "pro", "team") {
		errors["plan"] = "Plan must be one of free, pro, team"
	}
	return errors
}

type WorkspaceResponse struct {
	Message   string       `json:"message,omitempty"`
	Workspace WorkspaceDTO `json:"workspace"`
}

// UpcomingRenewal is one line of the workspace summary.
type UpcomingRenewal struct {
	ServiceID        string `json:"service_id"`
	ServiceName      string `json:"service_name"`
	ProjectID        string `json:"project_id"`
	ProjectName      string `json:"project_name"`
	RenewalDate      string `json:"renewal_date"`
	DaysUntilRenewal int    `json:"days_until_renewal"`
	CostAmount       string `json:"cost_amount"`
	CostCurrency     string `json:"cost_currency"`
}

type WorkspaceSummary struct {
	ProjectCount       int64             `json:"project_count"`
	ActiveServiceCount int64             `json:"active_service_count"`
	MonthlyCost        map[string]string `json:"monthly_cost"` // currency -> amount
	UpcomingRenewals   []UpcomingRenewal `json:"upcoming_renewals"`
}

type AuditLogDTO struct {
	ID         string         `json:"id"`
	UserID     string         `json:"user_id"`
	Action     string         `json:"action"`
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

func NewAuditLogDTO(l *models.AuditLog) AuditLogDTO {
	return AuditLogDTO{
		ID:         l.ID.String(),
		UserID:     l.UserID.String(),
		Action:     l.Action,
		EntityType: l.EntityType,
		EntityID:   l.EntityID.String(),
		Metadata:   l.Metadata,
		CreatedAt:  l.CreatedAt,
	}
}
