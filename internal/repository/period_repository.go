package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/deadline-engine/internal/models"
)

const periodColumns = `id, category, title, description, effective_date, starts_at, enabled, extensible,
       source, manual_override_at, created_by, created_at, updated_at`

// PeriodRepository persists global deadline periods and the per-category
// current-period pointer.
type PeriodRepository struct {
	db *sqlx.DB
}

// NewPeriodRepository constructs the repository.
func NewPeriodRepository(db *sqlx.DB) *PeriodRepository {
	return &PeriodRepository{db: db}
}

func (r *PeriodRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create inserts a period and fills its generated columns.
func (r *PeriodRepository) Create(ctx context.Context, exec sqlx.ExtContext, period *models.DeadlinePeriod) error {
	if period == nil {
		return fmt.Errorf("period payload is nil")
	}
	if period.Source == "" {
		period.Source = models.SourceManual
	}
	if period.CreatedBy == "" {
		period.CreatedBy = "system"
	}
	const query = `INSERT INTO deadline_periods
	(category, title, description, effective_date, starts_at, enabled, extensible, source, created_by)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	RETURNING id, created_at, updated_at`
	row := r.exec(exec).QueryRowxContext(ctx, query,
		period.Category, period.Title, period.Description, period.EffectiveDate, period.StartsAt,
		period.Enabled, period.Extensible, period.Source, period.CreatedBy,
	)
	if err := row.Scan(&period.ID, &period.CreatedAt, &period.UpdatedAt); err != nil {
		return fmt.Errorf("insert deadline period: %w", err)
	}
	return nil
}

// AdvanceCurrent points the category at period unless the pointer already
// references a period with a later effective date. Ties move the pointer to
// the newer period.
func (r *PeriodRepository) AdvanceCurrent(ctx context.Context, exec sqlx.ExtContext, period *models.DeadlinePeriod) error {
	const query = `INSERT INTO current_periods (category, period_id, effective_date, updated_at)
	VALUES ($1, $2, $3, NOW())
	ON CONFLICT (category) DO UPDATE
	SET period_id = EXCLUDED.period_id, effective_date = EXCLUDED.effective_date, updated_at = NOW()
	WHERE current_periods.effective_date <= EXCLUDED.effective_date`
	if _, err := r.exec(exec).ExecContext(ctx, query, period.Category, period.ID, period.EffectiveDate); err != nil {
		return fmt.Errorf("advance current period: %w", err)
	}
	return nil
}

// GetCurrent returns the period referenced by the category pointer.
func (r *PeriodRepository) GetCurrent(ctx context.Context, category string) (*models.DeadlinePeriod, error) {
	const query = `SELECT p.id, p.category, p.title, p.description, p.effective_date, p.starts_at, p.enabled,
       p.extensible, p.source, p.manual_override_at, p.created_by, p.created_at, p.updated_at
	FROM current_periods c JOIN deadline_periods p ON p.id = c.period_id
	WHERE c.category = $1`
	var period models.DeadlinePeriod
	if err := r.db.GetContext(ctx, &period, query, category); err != nil {
		return nil, err
	}
	return &period, nil
}

// GetByID fetches a period by identifier.
func (r *PeriodRepository) GetByID(ctx context.Context, id int64) (*models.DeadlinePeriod, error) {
	query := `SELECT ` + periodColumns + ` FROM deadline_periods WHERE id = $1`
	var period models.DeadlinePeriod
	if err := r.db.GetContext(ctx, &period, query, id); err != nil {
		return nil, err
	}
	return &period, nil
}

// GetForUpdate fetches a period and locks its row for the enclosing transaction.
func (r *PeriodRepository) GetForUpdate(ctx context.Context, exec sqlx.ExtContext, id int64) (*models.DeadlinePeriod, error) {
	query := `SELECT ` + periodColumns + ` FROM deadline_periods WHERE id = $1 FOR UPDATE`
	var period models.DeadlinePeriod
	if err := sqlx.GetContext(ctx, r.exec(exec), &period, query, id); err != nil {
		return nil, err
	}
	return &period, nil
}

// List returns periods matching the filter, latest effective date first.
func (r *PeriodRepository) List(ctx context.Context, filter models.PeriodFilter) ([]models.DeadlinePeriod, int, error) {
	conditions := make([]string, 0, 2)
	args := make([]interface{}, 0, 2)
	if filter.Category != "" {
		args = append(args, filter.Category)
		conditions = append(conditions, fmt.Sprintf("category = $%d", len(args)))
	}
	if filter.Enabled != nil {
		args = append(args, *filter.Enabled)
		conditions = append(conditions, fmt.Sprintf("enabled = $%d", len(args)))
	}
	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM deadline_periods"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count deadline periods: %w", err)
	}

	limit, offset := normalizeLimit(filter.Limit, filter.Offset)
	query := fmt.Sprintf("SELECT %s FROM deadline_periods%s ORDER BY effective_date DESC, id DESC LIMIT %d OFFSET %d",
		periodColumns, where, limit, offset)
	var periods []models.DeadlinePeriod
	if err := r.db.SelectContext(ctx, &periods, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list deadline periods: %w", err)
	}
	return periods, total, nil
}

// ListAll returns every period. Used by the scheduler and the reconciler.
func (r *PeriodRepository) ListAll(ctx context.Context) ([]models.DeadlinePeriod, error) {
	query := `SELECT ` + periodColumns + ` FROM deadline_periods ORDER BY id`
	var periods []models.DeadlinePeriod
	if err := r.db.SelectContext(ctx, &periods, query); err != nil {
		return nil, fmt.Errorf("list all deadline periods: %w", err)
	}
	return periods, nil
}

// SetEnabled flips enabled only when the row still holds the expected value.
// It reports whether the row changed; a concurrent writer makes it a no-op.
func (r *PeriodRepository) SetEnabled(ctx context.Context, id int64, expected, enabled bool) (bool, error) {
	const query = `UPDATE deadline_periods SET enabled = $1, updated_at = NOW() WHERE id = $2 AND enabled = $3`
	result, err := r.db.ExecContext(ctx, query, enabled, id, expected)
	if err != nil {
		return false, fmt.Errorf("set period enabled: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("check period update rows: %w", err)
	}
	return rows > 0, nil
}

// ApplyOverride records an administrator toggle.
func (r *PeriodRepository) ApplyOverride(ctx context.Context, exec sqlx.ExtContext, id int64, enabled bool, at time.Time) error {
	const query = `UPDATE deadline_periods SET enabled = $1, manual_override_at = $2, updated_at = $2 WHERE id = $3`
	result, err := r.exec(exec).ExecContext(ctx, query, enabled, at, id)
	if err != nil {
		return fmt.Errorf("apply period override: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check period override rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func normalizeLimit(limit, offset int) (int, int) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
