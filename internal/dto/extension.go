package dto

import (
	"time"

	"github.com/noah-isme/deadline-engine/internal/models"
)

// Review decisions accepted by ReviewExtensionRequest.
const (
	DecisionApprove = "approve"
	DecisionReject  = "reject"
)

// CreateExtensionRequest is submitted by a project's student to move a deadline.
type CreateExtensionRequest struct {
	RequestedDate time.Time `json:"requested_date" validate:"required"`
	Justification string    `json:"justification" validate:"required"`
}

// ReviewExtensionRequest captures the reviewer decision.
type ReviewExtensionRequest struct {
	Decision string `json:"decision" validate:"required,oneof=approve reject"`
	Comments string `json:"comments"`
}

// MarkInReviewRequest carries an optional reviewer note.
type MarkInReviewRequest struct {
	Note string `json:"note"`
}

// ExtensionQuery mirrors supported listing filters.
type ExtensionQuery struct {
	DeadlineID int64
	ProjectID  int64
	Status     []models.ExtensionStatus
	Page       int
	PageSize   int
}
