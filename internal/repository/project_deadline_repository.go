package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/deadline-engine/internal/models"
)

const deadlineColumns = `id, project_id, category, title, description, due_date, extensible, completed,
       completed_at, completed_by, created_by, created_at, updated_at`

// ProjectDeadlineRepository persists per-project deadlines.
type ProjectDeadlineRepository struct {
	db *sqlx.DB
}

// NewProjectDeadlineRepository constructs the repository.
func NewProjectDeadlineRepository(db *sqlx.DB) *ProjectDeadlineRepository {
	return &ProjectDeadlineRepository{db: db}
}

func (r *ProjectDeadlineRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create inserts a deadline and fills its generated columns.
func (r *ProjectDeadlineRepository) Create(ctx context.Context, deadline *models.ProjectDeadline) error {
	if deadline == nil {
		return fmt.Errorf("deadline payload is nil")
	}
	const query = `INSERT INTO project_deadlines
	(project_id, category, title, description, due_date, extensible, created_by)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	RETURNING id, created_at, updated_at`
	row := r.db.QueryRowxContext(ctx, query,
		deadline.ProjectID, deadline.Category, deadline.Title, deadline.Description,
		deadline.DueDate, deadline.Extensible, deadline.CreatedBy,
	)
	if err := row.Scan(&deadline.ID, &deadline.CreatedAt, &deadline.UpdatedAt); err != nil {
		return fmt.Errorf("insert project deadline: %w", err)
	}
	return nil
}

// GetByID fetches a deadline by identifier.
func (r *ProjectDeadlineRepository) GetByID(ctx context.Context, id int64) (*models.ProjectDeadline, error) {
	query := `SELECT ` + deadlineColumns + ` FROM project_deadlines WHERE id = $1`
	var deadline models.ProjectDeadline
	if err := r.db.GetContext(ctx, &deadline, query, id); err != nil {
		return nil, err
	}
	return &deadline, nil
}

// GetForUpdate fetches a deadline and locks it for the enclosing transaction.
// Every extension create and completion for the deadline serialises here.
func (r *ProjectDeadlineRepository) GetForUpdate(ctx context.Context, exec sqlx.ExtContext, id int64) (*models.ProjectDeadline, error) {
	query := `SELECT ` + deadlineColumns + ` FROM project_deadlines WHERE id = $1 FOR UPDATE`
	var deadline models.ProjectDeadline
	if err := sqlx.GetContext(ctx, r.exec(exec), &deadline, query, id); err != nil {
		return nil, err
	}
	return &deadline, nil
}

// ListByProject returns a project's deadlines ordered by due date.
func (r *ProjectDeadlineRepository) ListByProject(ctx context.Context, projectID int64) ([]models.ProjectDeadline, error) {
	query := `SELECT ` + deadlineColumns + ` FROM project_deadlines WHERE project_id = $1 ORDER BY due_date, id`
	var deadlines []models.ProjectDeadline
	if err := r.db.SelectContext(ctx, &deadlines, query, projectID); err != nil {
		return nil, fmt.Errorf("list project deadlines: %w", err)
	}
	return deadlines, nil
}

// MarkCompleted sets the terminal completed flag. It returns sql.ErrNoRows when
// the deadline is already completed.
func (r *ProjectDeadlineRepository) MarkCompleted(ctx context.Context, exec sqlx.ExtContext, id int64, actorID string, at time.Time) error {
	const query = `UPDATE project_deadlines
	SET completed = TRUE, completed_at = $1, completed_by = $2, updated_at = $1
	WHERE id = $3 AND completed = FALSE`
	result, err := r.exec(exec).ExecContext(ctx, query, at, actorID, id)
	if err != nil {
		return fmt.Errorf("complete project deadline: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check deadline update rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
