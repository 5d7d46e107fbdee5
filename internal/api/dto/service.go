package dto

import (
	"strings"

	"github.com/hugh/nerlude/internal/api/validation"
	"github.com/hugh/nerlude/internal/database/models"
	"github.com/shopspring/decimal"
)

var (
	costFrequencies = []string{
		string(models.CostMonthly),
		string(models.CostQuarterly),
		string(models.CostYearly),
		string(models.CostOneTime),
	}
	serviceStatuses = []string{
		string(models.ServiceStatusActive),
		string(models.ServiceStatusPaused),
		string(models.ServiceStatusCancelled),
	}
)

type CreateServiceRequest struct {
	Name          string           `json:"name"`
	Category      string           `json:"category,omitempty"`
	URL           string           `json:"url,omitempty"`
	PlanName      string           `json:"plan_name,omitempty"`
	CostAmount    *decimal.Decimal `json:"cost_amount,omitempty"`
	CostFrequency string           `json:"cost_frequency,omitempty"`
	CostCurrency  string           `json:"cost_currency,omitempty"`
	RenewalDate   string           `json:"renewal_date,omitempty"`
	Status        string           `json:"status,omitempty"`
	Notes         string           `json:"notes,omitempty"`
}

func (r CreateServiceRequest) Validate() map[string]string {
	errors := make(map[string]string)
	if strings.TrimSpace(r.Name) == "" {
		errors["name"] = "Name is required"
	}
	validateServiceFields(errors, r.URL, r.CostAmount, r.CostFrequency, r.CostCurrency, r.RenewalDate, r.Status)
	return errors
}

// UpdateServiceRequest is a partial update. An empty renewal_date clears it.
type UpdateServiceRequest struct {
	Name          *string          `json:"name,omitempty"`
	Category      *string          `json:"category,omitempty"`
	URL           *string          `json:"url,omitempty"`
	PlanName      *string          `json:"plan_name,omitempty"`
	CostAmount    *decimal.Decimal `json:"cost_amount,omitempty"`
	CostFrequency *string          `json:"cost_frequency,omitempty"`
	CostCurrency  *string          `json:"cost_currency,omitempty"`
	RenewalDate   *string          `json:"renewal_date,omitempty"`
	Status        *string          `json:"status,omitempty"`
	Notes         *string          `json:"notes,omitempty"`
}

func (r UpdateServiceRequest) Validate() map[string]string {
	errors := make(map[string]string)
	if r.Name != nil && strings.TrimSpace(*r.Name) == "" {
		errors["name"] = "Name cannot be empty"
	}
	validateServiceFields(errors,
		deref(r.URL), r.CostAmount, deref(r.CostFrequency), deref(r.CostCurrency),
		deref(r.RenewalDate), deref(r.Status))

	// Enum columns cannot be cleared, only renewal_date can.
	if blank(r.CostFrequency) {
		errors["cost_frequency"] = msgFrequency
	}
	if blank(r.CostCurrency) {
		errors["cost_currency"] = msgCurrency
	}
	if blank(r.Status) {
		errors["status"] = msgServiceStatus
	}
	return errors
}

const (
	msgFrequency     = "Frequency must be one of monthly, quarterly, yearly, one_time"
	msgCurrency      = "Currency must be a three letter ISO 4217 code"
	msgServiceStatus = "Status must be one of active, paused, cancelled"
)

func validateServiceFields(errors map[string]string, url string, amount *decimal.Decimal, frequency, currency, renewal, status string) {
	if url != "" && !validation.IsValidURL(url) {
		errors["url"] = "URL must start with http:// or https://"
	}
	if amount != nil && !validation.IsValidAmount(*amount) {
		errors["cost_amount"] = "Cost must be a non-negative amount with at most two decimals"
	}
	if frequency != "" && !validation.OneOf(frequency, costFrequencies...) {
		errors["cost_frequency"] = msgFrequency
	}
	if currency != "" && !validation.IsValidCurrency(currency) {
		errors["cost_currency"] = msgCurrency
	}
	if renewal != "" {
		if _, ok := validation.ParseDate(renewal); !ok {
			errors["renewal_date"] = "Renewal date must be YYYY-MM-DD"
		}
	}
	if status != "" && !validation.OneOf(status, serviceStatuses...) {
		errors["status"] = msgServiceStatus
	}
}

// blank reports whether a present field carries no value.
func blank(s *string) bool {
	return s != nil && strings.TrimSpace(*s) == ""
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

type ServiceResponse struct {
	Message string          `json:"message,omitempty"`
	Service *models.Service `json:"service"`
}
