package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/deadline-engine/internal/models"
)

const (
	extensionColumns = `id, deadline_id, project_id, requested_by, original_date, requested_date, justification,
       status, reviewed_by, resolved_at, reviewer_comments, created_at, updated_at`

	openRequestIndex = "extension_requests_one_open_per_deadline"
	uniqueViolation  = "23505"
)

// ErrOpenRequestExists is returned when the partial unique index rejects a
// second open request for the same deadline.
var ErrOpenRequestExists = errors.New("open extension request already exists")

// ExtensionRepository persists extension requests and their history.
type ExtensionRepository struct {
	db *sqlx.DB
}

// NewExtensionRepository constructs the repository.
func NewExtensionRepository(db *sqlx.DB) *ExtensionRepository {
	return &ExtensionRepository{db: db}
}

func (r *ExtensionRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create inserts a request. Violations of the one-open-request index are
// reported as ErrOpenRequestExists.
func (r *ExtensionRepository) Create(ctx context.Context, exec sqlx.ExtContext, req *models.ExtensionRequest) error {
	if req == nil {
		return fmt.Errorf("extension payload is nil")
	}
	if req.Status == "" {
		req.Status = models.ExtensionStatusPending
	}
	const query = `INSERT INTO extension_requests
	(deadline_id, project_id, requested_by, original_date, requested_date, justification, status)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	RETURNING id, created_at, updated_at`
	row := r.exec(exec).QueryRowxContext(ctx, query,
		req.DeadlineID, req.ProjectID, req.RequestedBy, req.OriginalDate, req.RequestedDate,
		req.Justification, req.Status,
	)
	if err := row.Scan(&req.ID, &req.CreatedAt, &req.UpdatedAt); err != nil {
		if isOpenRequestViolation(err) {
			return ErrOpenRequestExists
		}
		return fmt.Errorf("insert extension request: %w", err)
	}
	return nil
}

func isOpenRequestViolation(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return string(pqErr.Code) == uniqueViolation && pqErr.Constraint == openRequestIndex
}

// GetByID fetches a request by identifier.
func (r *ExtensionRepository) GetByID(ctx context.Context, id int64) (*models.ExtensionRequest, error) {
	query := `SELECT ` + extensionColumns + ` FROM extension_requests WHERE id = $1`
	var req models.ExtensionRequest
	if err := r.db.GetContext(ctx, &req, query, id); err != nil {
		return nil, err
	}
	return &req, nil
}

// GetForUpdate fetches a request and locks it for the enclosing transaction.
func (r *ExtensionRepository) GetForUpdate(ctx context.Context, exec sqlx.ExtContext, id int64) (*models.ExtensionRequest, error) {
	query := `SELECT ` + extensionColumns + ` FROM extension_requests WHERE id = $1 FOR UPDATE`
	var req models.ExtensionRequest
	if err := sqlx.GetContext(ctx, r.exec(exec), &req, query, id); err != nil {
		return nil, err
	}
	return &req, nil
}

// ListByDeadline returns every request recorded against a deadline, oldest first.
func (r *ExtensionRepository) ListByDeadline(ctx context.Context, exec sqlx.ExtContext, deadlineID int64) ([]models.ExtensionRequest, error) {
	query := `SELECT ` + extensionColumns + ` FROM extension_requests WHERE deadline_id = $1 ORDER BY created_at, id`
	var requests []models.ExtensionRequest
	if err := sqlx.SelectContext(ctx, r.exec(exec), &requests, query, deadlineID); err != nil {
		return nil, fmt.Errorf("list deadline extensions: %w", err)
	}
	return requests, nil
}

// ListByDeadlines returns requests for several deadlines in one round trip.
func (r *ExtensionRepository) ListByDeadlines(ctx context.Context, deadlineIDs []int64) ([]models.ExtensionRequest, error) {
	if len(deadlineIDs) == 0 {
		return nil, nil
	}
	query := `SELECT ` + extensionColumns + ` FROM extension_requests WHERE deadline_id = ANY($1) ORDER BY created_at, id`
	var requests []models.ExtensionRequest
	if err := r.db.SelectContext(ctx, &requests, query, pq.Array(deadlineIDs)); err != nil {
		return nil, fmt.Errorf("list extensions by deadlines: %w", err)
	}
	return requests, nil
}

// List returns requests matching the filter, newest first.
func (r *ExtensionRepository) List(ctx context.Context, filter models.ExtensionFilter) ([]models.ExtensionRequest, int, error) {
	conditions := make([]string, 0, 4)
	args := make([]interface{}, 0, 4)
	if filter.DeadlineID > 0 {
		args = append(args, filter.DeadlineID)
		conditions = append(conditions, fmt.Sprintf("deadline_id = $%d", len(args)))
	}
	if filter.ProjectID > 0 {
		args = append(args, filter.ProjectID)
		conditions = append(conditions, fmt.Sprintf("project_id = $%d", len(args)))
	}
	if filter.RequestedBy != "" {
		args = append(args, filter.RequestedBy)
		conditions = append(conditions, fmt.Sprintf("requested_by = $%d", len(args)))
	}
	if len(filter.Status) > 0 {
		statuses := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			statuses[i] = string(status)
		}
		args = append(args, pq.Array(statuses))
		conditions = append(conditions, fmt.Sprintf("status = ANY($%d)", len(args)))
	}
	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM extension_requests"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count extension requests: %w", err)
	}

	limit, offset := normalizeLimit(filter.Limit, filter.Offset)
	query := fmt.Sprintf("SELECT %s FROM extension_requests%s ORDER BY created_at DESC, id DESC LIMIT %d OFFSET %d",
		extensionColumns, where, limit, offset)
	var requests []models.ExtensionRequest
	if err := r.db.SelectContext(ctx, &requests, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list extension requests: %w", err)
	}
	return requests, total, nil
}

// TransitionParams groups the columns written by a status transition.
type TransitionParams struct {
	ID       int64
	From     []models.ExtensionStatus
	To       models.ExtensionStatus
	Reviewer string
	Comments *string
	At       time.Time
}

// Transition moves a request to params.To only while its status is one of
// params.From. It returns sql.ErrNoRows when the guard fails.
func (r *ExtensionRepository) Transition(ctx context.Context, exec sqlx.ExtContext, params TransitionParams) error {
	from := make([]string, len(params.From))
	for i, status := range params.From {
		from[i] = string(status)
	}
	var resolvedAt *time.Time
	if params.To.IsTerminal() {
		resolvedAt = &params.At
	}
	const query = `UPDATE extension_requests
	SET status = $1, reviewed_by = $2, reviewer_comments = COALESCE($3, reviewer_comments),
	    resolved_at = COALESCE($4, resolved_at), updated_at = $5
	WHERE id = $6 AND status = ANY($7)`
	result, err := r.exec(exec).ExecContext(ctx, query,
		params.To, params.Reviewer, params.Comments, resolvedAt, params.At, params.ID, pq.Array(from),
	)
	if err != nil {
		return fmt.Errorf("transition extension request: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check extension update rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// AppendHistory records one transition. History rows are never updated.
func (r *ExtensionRepository) AppendHistory(ctx context.Context, exec sqlx.ExtContext, entry *models.HistoryEntry) error {
	if entry == nil {
		return fmt.Errorf("history payload is nil")
	}
	const query = `INSERT INTO extension_history (request_id, action, from_status, to_status, actor_id, note)
	VALUES ($1, $2, $3, $4, $5, $6)
	RETURNING id, created_at`
	row := r.exec(exec).QueryRowxContext(ctx, query,
		entry.RequestID, entry.Action, entry.FromStatus, entry.ToStatus, entry.ActorID, entry.Note,
	)
	if err := row.Scan(&entry.ID, &entry.CreatedAt); err != nil {
		return fmt.Errorf("insert extension history: %w", err)
	}
	return nil
}

// ListHistory returns a request's history in chronological order.
func (r *ExtensionRepository) ListHistory(ctx context.Context, requestID int64) ([]models.HistoryEntry, error) {
	const query = `SELECT id, request_id, action, from_status, to_status, actor_id, note, created_at
	FROM extension_history WHERE request_id = $1 ORDER BY created_at, id`
	var entries []models.HistoryEntry
	if err := r.db.SelectContext(ctx, &entries, query, requestID); err != nil {
		return nil, fmt.Errorf("list extension history: %w", err)
	}
	return entries, nil
}
