package renewal

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/nerlude/internal/database/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// NotificationInserter writes a notification, reporting false when an
// identical one already exists.
type NotificationInserter interface {
	Insert(ctx context.Context, n *models.Notification) (bool, error)
}

// Result summarises one scan.
type Result struct {
	Checked int `json:"checked"`
	Created int `json:"created"`
	Skipped int `json:"skipped"`
}

// Options tunes a Scanner. Zero values fall back to the defaults.
type Options struct {
	HorizonDays int
	Location    *time.Location
	Now         func() time.Time
}

// Scanner turns upcoming service renewals into per-user notifications.
type Scanner struct {
	db       *gorm.DB
	notifier NotificationInserter
	logger   *slog.Logger
	horizon  int
	loc      *time.Location
	now      func() time.Time
}

// NewScanner returns a Scanner writing through notifier.
func NewScanner(db *gorm.DB, notifier NotificationInserter, logger *slog.Logger, opts Options) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.HorizonDays <= 0 {
		opts.HorizonDays = DefaultHorizonDays
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Scanner{
		db:       db,
		notifier: notifier,
		logger:   logger,
		horizon:  opts.HorizonDays,
		loc:      opts.Location,
		now:      opts.Now,
	}
}

// Today is the scanner's current calendar date.
func (s *Scanner) Today() time.Time {
	return CivilDate(s.now().In(s.loc))
}

// ScanForUser checks every workspace userID belongs to and notifies only
// that user.
func (s *Scanner) ScanForUser(ctx context.Context, userID uuid.UUID) (Result, error) {
	var wsIDs []uuid.UUID
	if err := s.db.WithContext(ctx).
		Model(&models.WorkspaceMember{}).
		Where("user_id = ?", userID).
		Pluck("workspace_id", &wsIDs).Error; err != nil {
		return Result{}, fmt.Errorf("listing workspaces: %w", err)
	}
	if len(wsIDs) == 0 {
		return Result{}, nil
	}

	return s.scan(ctx, wsIDs, func(context.Context, uuid.UUID) ([]uuid.UUID, error) {
		return []uuid.UUID{userID}, nil
	})
}

// ScanAll checks every workspace and notifies each of its members.
func (s *Scanner) ScanAll(ctx context.Context) (Result, error) {
	members := make(map[uuid.UUID][]uuid.UUID)
	return s.scan(ctx, nil, func(ctx context.Context, wsID uuid.UUID) ([]uuid.UUID, error) {
		if ids, ok := members[wsID]; ok {
			return ids, nil
		}
		var ids []uuid.UUID
		if err := s.db.WithContext(ctx).
			Model(&models.WorkspaceMember{}).
			Where("workspace_id = ?", wsID).
			Pluck("user_id", &ids).Error; err != nil {
			return nil, fmt.Errorf("listing members: %w", err)
		}
		members[wsID] = ids
		return ids, nil
	})
}

type recipientFunc func(ctx context.Context, workspaceID uuid.UUID) ([]uuid.UUID, error)

// scan evaluates active services of active projects in workspaceIDs (all
// workspaces when nil).
func (s *Scanner) scan(ctx context.Context, workspaceIDs []uuid.UUID, recipients recipientFunc) (Result, error) {
	var res Result
	today := s.Today()

	var projects []models.Project
	q := s.db.WithContext(ctx).Select("id", "workspace_id").Where("status = ?", models.ProjectStatusActive)
	if workspaceIDs != nil {
		q = q.Where("workspace_id IN ?", workspaceIDs)
	}
	if err := q.Find(&projects).Error; err != nil {
		return res, fmt.Errorf("listing projects: %w", err)
	}
	if len(projects) == 0 {
		return res, nil
	}

	workspaceOf := make(map[uuid.UUID]uuid.UUID, len(projects))
	projectIDs := make([]uuid.UUID, 0, len(projects))
	for _, p := range projects {
		workspaceOf[p.ID] = p.WorkspaceID
		projectIDs = append(projectIDs, p.ID)
	}

	var services []models.Service
	if err := s.db.WithContext(ctx).
		Where("project_id IN ?", projectIDs).
		Where("status = ?", models.ServiceStatusActive).
		Where("renewal_date IS NOT NULL AND renewal_date >= ? AND renewal_date <= ?",
			today, today.AddDate(0, 0, s.horizon)).
		Find(&services).Error; err != nil {
		return res, fmt.Errorf("listing services: %w", err)
	}

	for i := range services {
		svc := &services[i]
		res.Checked++

		d, ok := Evaluate(svc, today, s.horizon)
		if !ok {
			continue
		}

		wsID := workspaceOf[svc.ProjectID]
		users, err := recipients(ctx, wsID)
		if err != nil {
			return res, err
		}

		for _, userID := range users {
			created, err := s.notifier.Insert(ctx, notificationFor(d, userID, wsID, svc))
			if err != nil {
				s.logger.Warn("renewal notification failed", "error", err, "service_id", svc.ID, "user_id", userID)
				res.Skipped++
				continue
			}
			if created {
				res.Created++
			} else {
				res.Skipped++
			}
		}
	}

	s.logger.Info("renewal scan finished",
		"today", today.Format("2006-01-02"),
		"checked", res.Checked,
		"created", res.Created,
		"skipped", res.Skipped,
	)
	return res, nil
}

func notificationFor(d Decision, userID, workspaceID uuid.UUID, svc *models.Service) *models.Notification {
	key := d.DedupeKey()
	ws := workspaceID
	return &models.Notification{
		UserID:      userID,
		WorkspaceID: &ws,
		Type:        d.Type,
		Title:       d.Title,
		Message:     d.Message,
		DedupeKey:   &key,
		Data: datatypes.JSONMap{
			"service_id":         d.ServiceID.String(),
			"service_name":       d.ServiceName,
			"project_id":         d.ProjectID.String(),
			"days_until_renewal": d.Days,
			"renewal_date":       d.RenewalDate.Format("2006-01-02"),
			"cost_amount":        svc.CostAmount.StringFixed(2),
			"cost_currency":      svc.CostCurrency,
		},
	}
}
