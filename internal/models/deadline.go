package models

import "time"

// Deadline categories used across periods and project deadlines.
const (
	CategorySubmission  = "submission"
	CategoryDeliverable = "deliverable"
	CategoryDefense     = "defense"
	CategoryCalendar    = "calendar"
)

// Record sources distinguish human-created rows from reconciler mirrors.
const (
	SourceManual       = "manual"
	SourceCalendarSync = "calendar_sync"
	SourcePeriodSync   = "period_sync"
)

// DeadlinePeriod is a global, admin-togglable window not tied to a project.
type DeadlinePeriod struct {
	ID               int64      `db:"id" json:"id"`
	Category         string     `db:"category" json:"category"`
	Title            string     `db:"title" json:"title"`
	Description      string     `db:"description" json:"description"`
	EffectiveDate    time.Time  `db:"effective_date" json:"effective_date"`
	StartsAt         *time.Time `db:"starts_at" json:"starts_at,omitempty"`
	Enabled          bool       `db:"enabled" json:"enabled"`
	Extensible       bool       `db:"extensible" json:"extensible"`
	Source           string     `db:"source" json:"source"`
	ManualOverrideAt *time.Time `db:"manual_override_at" json:"manual_override_at,omitempty"`
	CreatedBy        string     `db:"created_by" json:"created_by"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
}

// CurrentPeriodPointer names the period considered current for a category.
type CurrentPeriodPointer struct {
	Category      string    `db:"category" json:"category"`
	PeriodID      int64     `db:"period_id" json:"period_id"`
	EffectiveDate time.Time `db:"effective_date" json:"effective_date"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// ProjectDeadline is a milestone bound to exactly one project. DueDate is the
// original date; extensions never rewrite it.
type ProjectDeadline struct {
	ID          int64      `db:"id" json:"id"`
	ProjectID   int64      `db:"project_id" json:"project_id"`
	Category    string     `db:"category" json:"category"`
	Title       string     `db:"title" json:"title"`
	Description string     `db:"description" json:"description"`
	DueDate     time.Time  `db:"due_date" json:"due_date"`
	Extensible  bool       `db:"extensible" json:"extensible"`
	Completed   bool       `db:"completed" json:"completed"`
	CompletedAt *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	CompletedBy *string    `db:"completed_by" json:"completed_by,omitempty"`
	CreatedBy   string     `db:"created_by" json:"created_by"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// PeriodFilter narrows period listings.
type PeriodFilter struct {
	Category string
	Enabled  *bool
	Limit    int
	Offset   int
}
