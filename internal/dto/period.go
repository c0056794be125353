package dto

import "time"

// CreatePeriodRequest defines a global deadline window.
type CreatePeriodRequest struct {
	Category      string     `json:"category" validate:"required,max=64"`
	Title         string     `json:"title" validate:"required,max=255"`
	Description   string     `json:"description"`
	EffectiveDate time.Time  `json:"effective_date" validate:"required"`
	StartsAt      *time.Time `json:"starts_at"`
	Enabled       bool       `json:"enabled"`
	Extensible    bool       `json:"extensible"`
}

// TogglePeriodRequest is the admin manual override payload.
type TogglePeriodRequest struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

// PeriodQuery mirrors supported listing filters.
type PeriodQuery struct {
	Category string
	Enabled  *bool
	Page     int
	PageSize int
}
