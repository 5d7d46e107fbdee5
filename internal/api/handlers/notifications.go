package handlers

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/nerlude/internal/api/dto"
	"github.com/hugh/nerlude/internal/api/middleware"
	"github.com/hugh/nerlude/internal/database/models"
	"github.com/hugh/nerlude/internal/renewal"
	"gorm.io/gorm"
)

// CronSecretHeader authenticates scheduler calls to the renewal check.
const CronSecretHeader = "X-Cron-Secret"

// RenewalScanner runs renewal checks on demand.
type RenewalScanner interface {
	ScanForUser(ctx context.Context, userID uuid.UUID) (renewal.Result, error)
	ScanAll(ctx context.Context) (renewal.Result, error)
}

type NotificationHandler struct {
	db         *gorm.DB
	scanner    RenewalScanner
	cronSecret string
	logger     *slog.Logger
}

// NewNotificationHandler serves the caller's notifications. An empty
// cronSecret disables the scheduler path of CheckRenewals.
func NewNotificationHandler(db *gorm.DB, scanner RenewalScanner, cronSecret string, logger *slog.Logger) *NotificationHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &NotificationHandler{db: db, scanner: scanner, cronSecret: cronSecret, logger: logger}
}

// List handles GET /api/notifications
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	pagination := paginationFrom(r)
	db := h.db.WithContext(r.Context())

	query := db.Model(&models.Notification{}).Where("user_id = ?", userID)
	if r.URL.Query().Get("unread") == "true" {
		query = query.Where("read_at IS NULL")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		writeInternalError(w, h.logger, err, "Failed to count notifications")
		return
	}

	var notifications []models.Notification
	if err := query.
		Order("created_at DESC").
		Offset(pagination.Offset()).
		Limit(pagination.PerPage).
		Find(&notifications).Error; err != nil {
		writeInternalError(w, h.logger, err, "Failed to list notifications")
		return
	}

	var unread int64
	if err := db.Model(&models.Notification{}).
		Where("user_id = ? AND read_at IS NULL", userID).
		Count(&unread).Error; err != nil {
		writeInternalError(w, h.logger, err, "Failed to count notifications")
		return
	}

	writeJSON(w, http.StatusOK, dto.NotificationListResponse{
		PaginatedResponse: dto.NewPaginatedResponse(notifications, total, pagination),
		UnreadCount:       unread,
	})
}

// MarkRead handles PATCH /api/notifications/{id}/read
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "id", "notification")
	if !ok {
		return
	}
	userID := middleware.GetUserID(r.Context())

	var n models.Notification
	if err := h.db.WithContext(r.Context()).
		Where("id = ? AND user_id = ?", id, userID).
		First(&n).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeError(w, http.StatusNotFound, "Notification not found")
			return
		}
		writeInternalError(w, h.logger, err, "Failed to load notification")
		return
	}

	if n.ReadAt == nil {
		now := time.Now().UTC()
		if err := h.db.WithContext(r.Context()).Model(&n).Update("read_at", now).Error; err != nil {
			writeInternalError(w, h.logger, err, "Failed to update notification")
			return
		}
		n.ReadAt = &now
	}

	writeJSON(w, http.StatusOK, dto.NotificationResponse{Message: "Notification marked as read", Notification: &n})
}

// MarkAllRead handles POST /api/notifications/read-all
func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	res := h.db.WithContext(r.Context()).
		Model(&models.Notification{}).
		Where("user_id = ? AND read_at IS NULL", middleware.GetUserID(r.Context())).
		Update("read_at", time.Now().UTC())
	if res.Error != nil {
		writeInternalError(w, h.logger, res.Error, "Failed to update notifications")
		return
	}
	writeJSON(w, http.StatusOK, dto.MarkAllReadResponse{Message: "Notifications marked as read", Updated: res.RowsAffected})
}

// CheckRenewals handles POST /api/notifications/check-renewals. A matching
// cron secret runs the global scan; a session scans the caller's workspaces
// and notifies only the caller.
func (h *NotificationHandler) CheckRenewals(w http.ResponseWriter, r *http.Request) {
	var (
		result renewal.Result
		err    error
		scope  string
	)

	switch {
	case h.validCronSecret(r.Header.Get(CronSecretHeader)):
		scope = "all"
		result, err = h.scanner.ScanAll(r.Context())
	case middleware.GetUserID(r.Context()) != uuid.Nil:
		scope = "user"
		result, err = h.scanner.ScanForUser(r.Context(), middleware.GetUserID(r.Context()))
	default:
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	if err != nil {
		h.logger.Error("renewal check failed", "error", err, "scope", scope)
		writeError(w, http.StatusInternalServerError, "Renewal check failed")
		return
	}

	h.logger.Info("renewal check completed",
		"scope", scope,
		"checked", result.Checked,
		"created", result.Created,
		"skipped", result.Skipped,
	)
	writeJSON(w, http.StatusOK, result)
}

func (h *NotificationHandler) validCronSecret(got string) bool {
	if h.cronSecret == "" || got == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(h.cronSecret)) == 1
}
