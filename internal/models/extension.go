package models

import "time"

// ExtensionStatus captures the extension request state machine.
type ExtensionStatus string

const (
	ExtensionStatusPending  ExtensionStatus = "pending"
	ExtensionStatusInReview ExtensionStatus = "in_review"
	ExtensionStatusApproved ExtensionStatus = "approved"
	ExtensionStatusRejected ExtensionStatus = "rejected"
)

// IsOpen reports whether the status still awaits a decision.
func (s ExtensionStatus) IsOpen() bool {
	return s == ExtensionStatusPending || s == ExtensionStatusInReview
}

// IsTerminal reports whether the status is final.
func (s ExtensionStatus) IsTerminal() bool {
	return s == ExtensionStatusApproved || s == ExtensionStatusRejected
}

// OpenExtensionStatuses lists the statuses that block a new request.
var OpenExtensionStatuses = []ExtensionStatus{ExtensionStatusPending, ExtensionStatusInReview}

// ExtensionRequest asks to move a project deadline's effective date forward.
type ExtensionRequest struct {
	ID               int64           `db:"id" json:"id"`
	DeadlineID       int64           `db:"deadline_id" json:"deadline_id"`
	ProjectID        int64           `db:"project_id" json:"project_id"`
	RequestedBy      string          `db:"requested_by" json:"requested_by"`
	OriginalDate     time.Time       `db:"original_date" json:"original_date"`
	RequestedDate    time.Time       `db:"requested_date" json:"requested_date"`
	Justification    string          `db:"justification" json:"justification"`
	Status           ExtensionStatus `db:"status" json:"status"`
	ReviewedBy       *string         `db:"reviewed_by" json:"reviewed_by,omitempty"`
	ResolvedAt       *time.Time      `db:"resolved_at" json:"resolved_at,omitempty"`
	ReviewerComments *string         `db:"reviewer_comments" json:"reviewer_comments,omitempty"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time       `db:"updated_at" json:"updated_at"`
}

// HistoryAction enumerates extension history entries.
type HistoryAction string

const (
	HistoryActionCreated  HistoryAction = "created"
	HistoryActionInReview HistoryAction = "in_review"
	HistoryActionApproved HistoryAction = "approved"
	HistoryActionRejected HistoryAction = "rejected"
)

// HistoryEntry is an append-only record of one extension transition.
type HistoryEntry struct {
	ID         int64            `db:"id" json:"id"`
	RequestID  int64            `db:"request_id" json:"request_id"`
	Action     HistoryAction    `db:"action" json:"action"`
	FromStatus *ExtensionStatus `db:"from_status" json:"from_status,omitempty"`
	ToStatus   ExtensionStatus  `db:"to_status" json:"to_status"`
	ActorID    string           `db:"actor_id" json:"actor_id"`
	Note       string           `db:"note" json:"note"`
	CreatedAt  time.Time        `db:"created_at" json:"created_at"`
}

// ExtensionFilter constrains listing queries.
type ExtensionFilter struct {
	DeadlineID  int64
	ProjectID   int64
	RequestedBy string
	Status      []ExtensionStatus
	Limit       int
	Offset      int
}
