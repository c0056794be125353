package models

import "time"

// Calendar event types.
const (
	EventTypeGeneral  = "general"
	EventTypeDeadline = "deadline"
	EventTypeHoliday  = "holiday"
)

// CalendarEvent is an entry of the global academic calendar. It is written
// independently from deadline periods and mirrored to them by value.
type CalendarEvent struct {
	ID          int64     `db:"id" json:"id"`
	Title       string    `db:"title" json:"title"`
	Description string    `db:"description" json:"description"`
	EventType   string    `db:"event_type" json:"event_type"`
	EventDate   time.Time `db:"event_date" json:"event_date"`
	IsGlobal    bool      `db:"is_global" json:"is_global"`
	Active      bool      `db:"active" json:"active"`
	Source      string    `db:"source" json:"source"`
	CreatedBy   string    `db:"created_by" json:"created_by"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// CalendarFilter narrows down events.
type CalendarFilter struct {
	From       *time.Time
	To         *time.Time
	GlobalOnly bool
	ActiveOnly bool
	Page       int
	PageSize   int
}
