package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/deadline-engine/internal/models"
)

const calendarColumns = `id, title, description, event_type, event_date, is_global, active, source, created_by,
       created_at, updated_at`

// CalendarRepository persists academic calendar events.
type CalendarRepository struct {
	db *sqlx.DB
}

// NewCalendarRepository constructs a calendar repository.
func NewCalendarRepository(db *sqlx.DB) *CalendarRepository {
	return &CalendarRepository{db: db}
}

// Create inserts an event and fills its generated columns.
func (r *CalendarRepository) Create(ctx context.Context, event *models.CalendarEvent) error {
	if event == nil {
		return fmt.Errorf("calendar event payload is nil")
	}
	if event.EventType == "" {
		event.EventType = models.EventTypeGeneral
	}
	if event.Source == "" {
		event.Source = models.SourceManual
	}
	if event.CreatedBy == "" {
		event.CreatedBy = "system"
	}
	const query = `INSERT INTO calendar_events
	(title, description, event_type, event_date, is_global, active, source, created_by)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	RETURNING id, created_at, updated_at`
	row := r.db.QueryRowxContext(ctx, query,
		event.Title, event.Description, event.EventType, event.EventDate,
		event.IsGlobal, event.Active, event.Source, event.CreatedBy,
	)
	if err := row.Scan(&event.ID, &event.CreatedAt, &event.UpdatedAt); err != nil {
		return fmt.Errorf("insert calendar event: %w", err)
	}
	return nil
}

// List returns calendar events matching filters ordered by date.
func (r *CalendarRepository) List(ctx context.Context, filter models.CalendarFilter) ([]models.CalendarEvent, int, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.From != nil {
		args = append(args, *filter.From)
		where = append(where, fmt.Sprintf("event_date >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		where = append(where, fmt.Sprintf("event_date <= $%d", len(args)))
	}
	if filter.GlobalOnly {
		where = append(where, "is_global = TRUE")
	}
	if filter.ActiveOnly {
		where = append(where, "active = TRUE")
	}
	whereClause := strings.Join(where, " AND ")

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM calendar_events WHERE "+whereClause, args...); err != nil {
		return nil, 0, fmt.Errorf("count calendar events: %w", err)
	}

	query := fmt.Sprintf("SELECT %s FROM calendar_events WHERE %s ORDER BY event_date, id LIMIT %d OFFSET %d",
		calendarColumns, whereClause, size, (page-1)*size)
	var events []models.CalendarEvent
	if err := r.db.SelectContext(ctx, &events, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list calendar events: %w", err)
	}
	return events, total, nil
}

// ListAll returns every event including inactive ones.
func (r *CalendarRepository) ListAll(ctx context.Context) ([]models.CalendarEvent, error) {
	query := `SELECT ` + calendarColumns + ` FROM calendar_events ORDER BY id`
	var events []models.CalendarEvent
	if err := r.db.SelectContext(ctx, &events, query); err != nil {
		return nil, fmt.Errorf("list all calendar events: %w", err)
	}
	return events, nil
}
