package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/deadline-engine/internal/models"
)

var calendarRowColumns = []string{"id", "title", "description", "event_type", "event_date", "is_global", "active",
	"source", "created_by", "created_at", "updated_at"}

func TestCalendarRepositoryCreateDefaults(t *testing.T) {
	db, mock, cleanup := newSQLMock(t)
	defer cleanup()

	repo := NewCalendarRepository(db)
	now := time.Now().UTC()
	event := &models.CalendarEvent{Title: "Final defense", EventDate: now, IsGlobal: true, Active: true}
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO calendar_events")).
		WithArgs("Final defense", "", "general", now, true, true, "manual", "system").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(1, now, now))

	require.NoError(t, repo.Create(context.Background(), event))
	assert.Equal(t, int64(1), event.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCalendarRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newSQLMock(t)
	defer cleanup()

	repo := NewCalendarRepository(db)
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	now := time.Now().UTC()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM calendar_events WHERE 1=1 AND event_date >= $1 AND is_global = TRUE AND active = TRUE")).
		WithArgs(from).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY event_date, id LIMIT 10 OFFSET 10")).
		WithArgs(from).
		WillReturnRows(sqlmock.NewRows(calendarRowColumns).
			AddRow(3, "Exam week", "", "general", now, true, true, "manual", "admin", now, now))

	events, total, err := repo.List(context.Background(), models.CalendarFilter{
		From:       &from,
		GlobalOnly: true,
		ActiveOnly: true,
		Page:       2,
		PageSize:   10,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, events, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationRepositoryInsert(t *testing.T) {
	db, mock, cleanup := newSQLMock(t)
	defer cleanup()

	repo := NewNotificationRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO deadline_events")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.Insert(context.Background(), &models.OutboxRecord{
		EventID:   "6f1c1a9e-3f36-4a57-9d43-7e0e5a0f4b11",
		EventType: models.EventPeriodEnabled,
		Payload:   []byte(`{"period_id":1}`),
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
