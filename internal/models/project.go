package models

import "time"

// Project is the owning entity of project deadlines. The engine only reads it.
type Project struct {
	ID        int64     `db:"id" json:"id"`
	Title     string    `db:"title" json:"title"`
	StudentID string    `db:"student_id" json:"student_id"`
	AdvisorID *string   `db:"advisor_id" json:"advisor_id,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// CanView reports whether actor may read the project's deadline state.
func (p *Project) CanView(actor Actor) bool {
	if p == nil {
		return false
	}
	if actor.IsStaff() {
		return true
	}
	if p.StudentID == actor.ID {
		return true
	}
	return p.AdvisorID != nil && *p.AdvisorID == actor.ID
}

// IsOwner reports whether actor is the project's student.
func (p *Project) IsOwner(actor Actor) bool {
	return p != nil && actor.Role == RoleStudent && p.StudentID == actor.ID
}
