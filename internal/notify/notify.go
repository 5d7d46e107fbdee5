// Package notify inserts user notifications. Inserts carrying a dedupe key
// are idempotent per user through a unique index.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hugh/nerlude/internal/database/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Writer struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewWriter(db *gorm.DB, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{db: db, logger: logger}
}

// Insert stores n and reports whether a row was written. A row that already
// exists for (user_id, dedupe_key) is left alone and reported as false.
func (w *Writer) Insert(ctx context.Context, n *models.Notification) (bool, error) {
	res := w.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "dedupe_key"}},
			DoNothing: true,
		}).
		Create(n)
	if res.Error != nil {
		return false, fmt.Errorf("inserting notification: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// Send is Insert for callers that do not care about the outcome.
func (w *Writer) Send(ctx context.Context, n *models.Notification) {
	if _, err := w.Insert(ctx, n); err != nil {
		w.logger.Warn("notification write failed", "error", err, "user_id", n.UserID, "type", n.Type)
	}
}
