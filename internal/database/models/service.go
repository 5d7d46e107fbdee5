package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CostFrequency string

const (
	CostMonthly   CostFrequency = "monthly"
	CostQuarterly CostFrequency = "quarterly"
	CostYearly    CostFrequency = "yearly"
	CostOneTime   CostFrequency = "one_time"
)

type ServiceStatus string

const (
	ServiceStatusActive    ServiceStatus = "active"
	ServiceStatusPaused    ServiceStatus = "paused"
	ServiceStatusCancelled ServiceStatus = "cancelled"
)

// Service is a tracked external subscription belonging to a project.
type Service struct {
	Base
	ProjectID     uuid.UUID       `gorm:"type:uuid;index;not null" json:"project_id"`
	Name          string          `gorm:"not null" json:"name"`
	Category      string          `json:"category,omitempty"`
	URL           string          `json:"url,omitempty"`
	PlanName      string          `json:"plan_name,omitempty"`
	CostAmount    decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"cost_amount"`
	CostFrequency CostFrequency   `gorm:"not null;default:'monthly'" json:"cost_frequency"`
	CostCurrency  string          `gorm:"size:3;not null;default:'USD'" json:"cost_currency"`

	// Stored as UTC midnight of the calendar date.
	RenewalDate *time.Time    `gorm:"type:date;index" json:"renewal_date,omitempty"`
	Status      ServiceStatus `gorm:"not null;index;default:'active'" json:"status"`
	Notes       string        `gorm:"type:text" json:"notes,omitempty"`

	Project     *Project     `gorm:"foreignKey:ProjectID" json:"-"`
	Credentials []Credential `gorm:"foreignKey:ProjectServiceID" json:"-"`
}

func (Service) TableName() string {
	return "project_services"
}
