package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/deadline-engine/internal/models"
)

// ProjectRepository reads project ownership data.
type ProjectRepository struct {
	db *sqlx.DB
}

// NewProjectRepository constructs the repository.
func NewProjectRepository(db *sqlx.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

// GetByID fetches a project, inside exec when provided.
func (r *ProjectRepository) GetByID(ctx context.Context, exec sqlx.ExtContext, id int64) (*models.Project, error) {
	var target sqlx.QueryerContext = r.db
	if exec != nil {
		target = exec
	}
	const query = `SELECT id, title, student_id, advisor_id, created_at FROM projects WHERE id = $1`
	var project models.Project
	if err := sqlx.GetContext(ctx, target, &project, query, id); err != nil {
		return nil, err
	}
	return &project, nil
}
