// Package renewal decides which tracked services are due for a renewal
// notification and writes those notifications.
package renewal

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/nerlude/internal/database/models"
)

const (
	// DefaultHorizonDays is how far ahead renewals are announced.
	DefaultHorizonDays = 30
	// UrgentDays is the inclusive cutoff for an urgent notification.
	UrgentDays = 7
)

// Decision is the notification a service warrants on a given day.
type Decision struct {
	ServiceID   uuid.UUID
	ProjectID   uuid.UUID
	ServiceName string
	RenewalDate time.Time
	Days        int
	Type        string
	Title       string
	Message     string
}

// DedupeKey identifies the decision per recipient. A service is announced
// at most once for each distinct days-until-renewal value.
func (d Decision) DedupeKey() string {
	return fmt.Sprintf("renewal:%s:%d", d.ServiceID, d.Days)
}

// CivilDate returns UTC midnight of t's calendar date in t's own location.
func CivilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysUntil counts calendar days from today to renewal. Both are reduced to
// their calendar dates first, so the time of day never matters.
func DaysUntil(renewal, today time.Time) int {
	diff := CivilDate(renewal).Sub(CivilDate(today))
	return int(math.Ceil(diff.Hours() / 24))
}

// Evaluate is the single rule shared by every scan. It reports false when
// svc needs no notification today: inactive, no renewal date, already past,
// or beyond horizon days.
func Evaluate(svc *models.Service, today time.Time, horizon int) (Decision, bool) {
	if svc == nil || svc.RenewalDate == nil || svc.Status != models.ServiceStatusActive {
		return Decision{}, false
	}
	if horizon <= 0 {
		horizon = DefaultHorizonDays
	}

	days := DaysUntil(*svc.RenewalDate, today)
	if days < 0 || days > horizon {
		return Decision{}, false
	}

	d := Decision{
		ServiceID:   svc.ID,
		ProjectID:   svc.ProjectID,
		ServiceName: svc.Name,
		RenewalDate: CivilDate(*svc.RenewalDate),
		Days:        days,
		Type:        models.NotificationRenewalReminder,
	}
	if days <= UrgentDays {
		d.Type = models.NotificationRenewalUrgent
	}
	d.Title, d.Message = render(svc, days)
	return d, true
}

func render(svc *models.Service, days int) (title, message string) {
	cost := ""
	if svc.CostAmount.IsPositive() {
		cost = fmt.Sprintf(" for %s %s", svc.CostAmount.StringFixed(2), svc.CostCurrency)
	}
	date := CivilDate(*svc.RenewalDate).Format("Jan 2, 2006")

	switch {
	case days == 0:
		return svc.Name + " renews today",
			fmt.Sprintf("%s renews today%s. Cancel or update it now if you no longer need it.", svc.Name, cost)
	case days == 1:
		return svc.Name + " renews tomorrow",
			fmt.Sprintf("%s renews tomorrow%s.", svc.Name, cost)
	case days <= UrgentDays:
		return fmt.Sprintf("%s renews in %d days", svc.Name, days),
			fmt.Sprintf("%s renews in %d days on %s%s.", svc.Name, days, date, cost)
	default:
		return "Upcoming renewal: " + svc.Name,
			fmt.Sprintf("%s is due for renewal on %s (%d days)%s.", svc.Name, date, days, cost)
	}
}
