package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/deadline-engine/internal/models"
)

// NotificationRepository writes deadline events to the delivery outbox.
type NotificationRepository struct {
	db *sqlx.DB
}

// NewNotificationRepository constructs the repository.
func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Insert stores an outbox record. Replayed event ids are ignored.
func (r *NotificationRepository) Insert(ctx context.Context, record *models.OutboxRecord) error {
	const query = `INSERT INTO deadline_events (event_id, event_type, payload)
	VALUES (:event_id, :event_type, :payload)
	ON CONFLICT (event_id) DO NOTHING`
	if _, err := r.db.NamedExecContext(ctx, query, record); err != nil {
		return fmt.Errorf("insert deadline event: %w", err)
	}
	return nil
}

// ListRecent returns the newest outbox records.
func (r *NotificationRepository) ListRecent(ctx context.Context, limit int) ([]models.OutboxRecord, error) {
	limit, _ = normalizeLimit(limit, 0)
	const query = `SELECT id, event_id, event_type, payload, created_at FROM deadline_events ORDER BY id DESC LIMIT $1`
	var records []models.OutboxRecord
	if err := r.db.SelectContext(ctx, &records, query, limit); err != nil {
		return nil, fmt.Errorf("list deadline events: %w", err)
	}
	return records, nil
}
