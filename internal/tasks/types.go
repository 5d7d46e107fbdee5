package tasks

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Task type names
const (
	TypeCheckRenewals = "notifications:check_renewals"
	TypeInviteEmail   = "email:invite"
)

// CheckRenewalsPayload is empty; the task scans every workspace.
type CheckRenewalsPayload struct{}

func NewCheckRenewalsTask() *asynq.Task {
	return asynq.NewTask(TypeCheckRenewals, nil, asynq.Queue("default"), asynq.MaxRetry(3))
}

// InviteEmailPayload carries everything needed to render the invite mail so
// the worker does not reload the invite.
type InviteEmailPayload struct {
	InviteID    uuid.UUID `json:"invite_id"`
	Email       string    `json:"email"`
	InviterName string    `json:"inviter_name"`
	TargetType  string    `json:"target_type"` // workspace or project
	TargetName  string    `json:"target_name"`
	Role        string    `json:"role"`
	AcceptURL   string    `json:"accept_url"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func NewInviteEmailTask(payload InviteEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeInviteEmail, data, asynq.Queue("critical"), asynq.MaxRetry(5)), nil
}
