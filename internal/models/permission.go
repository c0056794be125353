package models

import "time"

// PermissionReason explains a permission decision.
type PermissionReason string

const (
	ReasonWithinWindow        PermissionReason = "WITHIN_WINDOW"
	ReasonAlreadyCompleted    PermissionReason = "ALREADY_COMPLETED"
	ReasonExtensionPending    PermissionReason = "EXTENSION_PENDING"
	ReasonCanRequestExtension PermissionReason = "CAN_REQUEST_EXTENSION"
	ReasonWindowClosed        PermissionReason = "WINDOW_CLOSED"
	ReasonPeriodDisabled      PermissionReason = "PERIOD_DISABLED"
)

// PermissionResult answers "can this actor act now, and why".
type PermissionResult struct {
	Allowed           bool             `json:"allowed"`
	Reason            PermissionReason `json:"reason"`
	EffectiveDeadline time.Time        `json:"effective_deadline"`
	OriginalDeadline  time.Time        `json:"original_deadline"`
	DaysRemaining     int              `json:"days_remaining"`
	ExtensionID       *int64           `json:"extension_id,omitempty"`
	OpenExtensionID   *int64           `json:"open_extension_id,omitempty"`
}

// DeadlineStatus is one dashboard row for a project deadline.
type DeadlineStatus struct {
	Deadline   ProjectDeadline   `json:"deadline"`
	Permission PermissionResult  `json:"permission"`
	Extension  *ExtensionRequest `json:"latest_extension,omitempty"`
}
