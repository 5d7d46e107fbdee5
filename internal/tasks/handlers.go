package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/hugh/nerlude/internal/email"
	"github.com/hugh/nerlude/internal/renewal"
)

// RenewalScanner runs the global renewal scan.
type RenewalScanner interface {
	ScanAll(ctx context.Context) (renewal.Result, error)
}

// InviteMailer delivers invite emails.
type InviteMailer interface {
	IsConfigured() bool
	SendInviteEmail(to string, data email.InviteData) error
}

type Handler struct {
	scanner RenewalScanner
	mailer  InviteMailer
	logger  *slog.Logger
}

func NewHandler(scanner RenewalScanner, mailer InviteMailer, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		scanner: scanner,
		mailer:  mailer,
		logger:  logger,
	}
}

func (h *Handler) RegisterHandlers(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeCheckRenewals, h.HandleCheckRenewals)
	mux.HandleFunc(TypeInviteEmail, h.HandleInviteEmail)
}

func (h *Handler) HandleCheckRenewals(ctx context.Context, t *asynq.Task) error {
	h.logger.Info("starting renewal scan")

	res, err := h.scanner.ScanAll(ctx)
	if err != nil {
		h.logger.Error("renewal scan failed", "error", err)
		return err
	}

	h.logger.Info("renewal scan completed",
		"checked", res.Checked,
		"created", res.Created,
		"skipped", res.Skipped,
	)
	return nil
}

func (h *Handler) HandleInviteEmail(ctx context.Context, t *asynq.Task) error {
	var payload InviteEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		// Retrying cannot fix a malformed payload.
		return fmt.Errorf("unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}

	if h.mailer == nil || !h.mailer.IsConfigured() {
		h.logger.Info("smtp not configured, skipping invite email",
			"invite_id", payload.InviteID,
			"email", payload.Email,
		)
		return nil
	}

	err := h.mailer.SendInviteEmail(payload.Email, email.InviteData{
		InviterName: payload.InviterName,
		TargetName:  payload.TargetName,
		TargetType:  payload.TargetType,
		Role:        payload.Role,
		AcceptURL:   payload.AcceptURL,
		ExpiresAt:   payload.ExpiresAt,
	})
	if err != nil {
		if errors.Is(err, email.ErrNotConfigured) {
			return nil
		}
		h.logger.Error("invite email failed", "error", err, "invite_id", payload.InviteID)
		return err
	}

	h.logger.Info("invite email sent", "invite_id", payload.InviteID, "email", payload.Email)
	return nil
}
