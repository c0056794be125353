package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// EventType names a notification emitted by the engine.
type EventType string

const (
	EventPeriodEnabled      EventType = "PERIOD_ENABLED"
	EventPeriodDisabled     EventType = "PERIOD_DISABLED"
	EventExtensionRequested EventType = "EXTENSION_REQUESTED"
	EventExtensionInReview  EventType = "EXTENSION_IN_REVIEW"
	EventExtensionApproved  EventType = "EXTENSION_APPROVED"
	EventExtensionRejected  EventType = "EXTENSION_REJECTED"
	EventDeadlineCompleted  EventType = "DEADLINE_COMPLETED"
)

// DeadlineEvent is a fire-and-forget notification handed to external delivery.
type DeadlineEvent struct {
	ID         string                 `json:"id"`
	Type       EventType              `json:"type"`
	ActorID    string                 `json:"actor_id,omitempty"`
	Payload    map[string]interface{} `json:"payload"`
	OccurredAt time.Time              `json:"occurred_at"`
}

// OutboxRecord is the persisted form of a DeadlineEvent.
type OutboxRecord struct {
	ID        int64          `db:"id" json:"id"`
	EventID   string         `db:"event_id" json:"event_id"`
	EventType EventType      `db:"event_type" json:"event_type"`
	Payload   types.JSONText `db:"payload" json:"payload"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
}
