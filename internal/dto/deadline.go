package dto

import "time"

// CreateProjectDeadlineRequest defines a milestone for a project.
type CreateProjectDeadlineRequest struct {
	Category    string    `json:"category" validate:"required,max=64"`
	Title       string    `json:"title" validate:"required,max=255"`
	Description string    `json:"description"`
	DueDate     time.Time `json:"due_date" validate:"required"`
	Extensible  *bool     `json:"extensible"`
}
