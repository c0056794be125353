package dto

import "time"

// CreateCalendarEventRequest adds an entry to the academic calendar.
type CreateCalendarEventRequest struct {
	Title       string    `json:"title" validate:"required,max=255"`
	Description string    `json:"description"`
	EventType   string    `json:"event_type" validate:"omitempty,oneof=general deadline holiday"`
	EventDate   time.Time `json:"event_date" validate:"required"`
	IsGlobal    *bool     `json:"is_global"`
}

// ReconcileReport summarises one calendar reconciliation pass.
type ReconcileReport struct {
	PeriodsCreated int      `json:"periods_created"`
	EventsCreated  int      `json:"events_created"`
	Failures       int      `json:"failures"`
	Errors         []string `json:"errors,omitempty"`
}
