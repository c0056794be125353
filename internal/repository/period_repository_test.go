package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/deadline-engine/internal/models"
)

func newSQLMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

var periodRowColumns = []string{"id", "category", "title", "description", "effective_date", "starts_at", "enabled",
	"extensible", "source", "manual_override_at", "created_by", "created_at", "updated_at"}

func TestPeriodRepositoryCreateAndAdvanceCurrent(t *testing.T) {
	db, mock, cleanup := newSQLMock(t)
	defer cleanup()

	repo := NewPeriodRepository(db)
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	period := &models.DeadlinePeriod{
		Category:      models.CategorySubmission,
		Title:         "Proposal submission",
		EffectiveDate: time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
	}

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO deadline_periods")).
		WithArgs("submission", "Proposal submission", "", period.EffectiveDate, nil, false, false, models.SourceManual, "system").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(7, now, now))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO current_periods")).
		WithArgs("submission", int64(7), period.EffectiveDate).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Create(context.Background(), nil, period))
	assert.Equal(t, int64(7), period.ID)
	assert.Equal(t, models.SourceManual, period.Source)
	require.NoError(t, repo.AdvanceCurrent(context.Background(), nil, period))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPeriodRepositoryAdvanceCurrentGuardsOlderDates(t *testing.T) {
	db, mock, cleanup := newSQLMock(t)
	defer cleanup()

	repo := NewPeriodRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("WHERE current_periods.effective_date <= EXCLUDED.effective_date")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	period := &models.DeadlinePeriod{ID: 3, Category: "submission", EffectiveDate: time.Now()}
	require.NoError(t, repo.AdvanceCurrent(context.Background(), nil, period))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPeriodRepositoryGetCurrent(t *testing.T) {
	db, mock, cleanup := newSQLMock(t)
	defer cleanup()

	repo := NewPeriodRepository(db)
	now := time.Now().UTC()
	rows := sqlmock.NewRows(periodRowColumns).
		AddRow(4, "submission", "Final", "", now, nil, true, false, "manual", nil, "admin-1", now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM current_periods c JOIN deadline_periods p")).
		WithArgs("submission").
		WillReturnRows(rows)

	period, err := repo.GetCurrent(context.Background(), "submission")
	require.NoError(t, err)
	assert.Equal(t, int64(4), period.ID)
	assert.True(t, period.Enabled)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPeriodRepositorySetEnabledReportsNoop(t *testing.T) {
	db, mock, cleanup := newSQLMock(t)
	defer cleanup()

	repo := NewPeriodRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE deadline_periods SET enabled = $1, updated_at = NOW() WHERE id = $2 AND enabled = $3")).
		WithArgs(true, int64(1), false).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE deadline_periods SET enabled")).
		WithArgs(true, int64(1), false).
		WillReturnResult(sqlmock.NewResult(0, 0))

	changed, err := repo.SetEnabled(context.Background(), 1, false, true)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = repo.SetEnabled(context.Background(), 1, false, true)
	require.NoError(t, err)
	assert.False(t, changed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPeriodRepositoryApplyOverrideMissing(t *testing.T) {
	db, mock, cleanup := newSQLMock(t)
	defer cleanup()

	repo := NewPeriodRepository(db)
	at := time.Now().UTC()
	mock.ExpectExec(regexp.QuoteMeta("manual_override_at = $2")).
		WithArgs(false, at, int64(99)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.ApplyOverride(context.Background(), nil, 99, false, at)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPeriodRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newSQLMock(t)
	defer cleanup()

	repo := NewPeriodRepository(db)
	enabled := true
	now := time.Now().UTC()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM deadline_periods WHERE category = $1 AND enabled = $2")).
		WithArgs("defense", true).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY effective_date DESC, id DESC LIMIT 50 OFFSET 0")).
		WithArgs("defense", true).
		WillReturnRows(sqlmock.NewRows(periodRowColumns).
			AddRow(2, "defense", "Defense", "", now, nil, true, false, "manual", nil, "admin", now, now))

	periods, total, err := repo.List(context.Background(), models.PeriodFilter{Category: "defense", Enabled: &enabled})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, periods, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}
