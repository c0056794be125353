package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/deadline-engine/internal/dto"
	"github.com/noah-isme/deadline-engine/internal/models"
	"github.com/noah-isme/deadline-engine/internal/repository"
	"github.com/noah-isme/deadline-engine/pkg/clock"
	appErrors "github.com/noah-isme/deadline-engine/pkg/errors"
)

type extensionStore interface {
	Create(ctx context.Context, exec sqlx.ExtContext, req *models.ExtensionRequest) error
	GetByID(ctx context.Context, id int64) (*models.ExtensionRequest, error)
	GetForUpdate(ctx context.Context, exec sqlx.ExtContext, id int64) (*models.ExtensionRequest, error)
	ListByDeadline(ctx context.Context, exec sqlx.ExtContext, deadlineID int64) ([]models.ExtensionRequest, error)
	List(ctx context.Context, filter models.ExtensionFilter) ([]models.ExtensionRequest, int, error)
	Transition(ctx context.Context, exec sqlx.ExtContext, params repository.TransitionParams) error
	AppendHistory(ctx context.Context, exec sqlx.ExtContext, entry *models.HistoryEntry) error
	ListHistory(ctx context.Context, requestID int64) ([]models.HistoryEntry, error)
}

type lockingDeadlineStore interface {
	GetForUpdate(ctx context.Context, exec sqlx.ExtContext, id int64) (*models.ProjectDeadline, error)
}

type projectReader interface {
	GetByID(ctx context.Context, exec sqlx.ExtContext, id int64) (*models.Project, error)
}

type statusInvalidator interface {
	InvalidateProject(ctx context.Context, projectID int64)
}

// ExtensionPolicy holds workflow limits.
type ExtensionPolicy struct {
	MinJustification    int
	MinRejectionComment int
}

// ExtensionService runs the extension request workflow:
// pending -> in_review -> approved | rejected, with pending -> approved |
// rejected allowed directly. Terminal requests never change again.
type ExtensionService struct {
	extensions extensionStore
	deadlines  lockingDeadlineStore
	projects   projectReader
	tx         txRunner
	cache      statusInvalidator
	notifier   Notifier
	metrics    *MetricsService
	clock      clock.Clock
	policy     ExtensionPolicy
	validator  *validator.Validate
	logger     *zap.Logger
}

// ExtensionServiceOption configures the service.
type ExtensionServiceOption func(*ExtensionService)

// WithExtensionNotifier sets the event sink.
func WithExtensionNotifier(notifier Notifier) ExtensionServiceOption {
	return func(s *ExtensionService) {
		s.notifier = notifier
	}
}

// WithExtensionStatusCache sets the cache invalidated after each transition.
func WithExtensionStatusCache(cache statusInvalidator) ExtensionServiceOption {
	return func(s *ExtensionService) {
		s.cache = cache
	}
}

// WithExtensionMetrics sets the metrics recorder.
func WithExtensionMetrics(metrics *MetricsService) ExtensionServiceOption {
	return func(s *ExtensionService) {
		s.metrics = metrics
	}
}

// WithExtensionPolicy overrides workflow limits.
func WithExtensionPolicy(policy ExtensionPolicy) ExtensionServiceOption {
	return func(s *ExtensionService) {
		if policy.MinJustification > 0 {
			s.policy.MinJustification = policy.MinJustification
		}
		if policy.MinRejectionComment > 0 {
			s.policy.MinRejectionComment = policy.MinRejectionComment
		}
	}
}

// NewExtensionService constructs the service with defaults.
func NewExtensionService(extensions extensionStore, deadlines lockingDeadlineStore, projects projectReader, tx txRunner, clk clock.Clock, logger *zap.Logger, opts ...ExtensionServiceOption) *ExtensionService {
	if clk == nil {
		clk = clock.Real()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &ExtensionService{
		extensions: extensions,
		deadlines:  deadlines,
		projects:   projects,
		tx:         tx,
		clock:      clk,
		policy:     ExtensionPolicy{MinJustification: 10, MinRejectionComment: 10},
		validator:  validator.New(),
		logger:     logger,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// Create files a new pending request for deadlineID on behalf of the
// project's student. The deadline row lock serialises concurrent creates and
// the partial unique index backs it up.
func (s *ExtensionService) Create(ctx context.Context, deadlineID int64, actor models.Actor, req dto.CreateExtensionRequest) (*models.ExtensionRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		if strings.TrimSpace(req.Justification) == "" {
			return nil, appErrors.ErrMissingJustification
		}
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	justification := strings.TrimSpace(req.Justification)
	if utf8.RuneCountInString(justification) < s.policy.MinJustification {
		return nil, appErrors.Clone(appErrors.ErrMissingJustification, "justification is too short")
	}

	var created *models.ExtensionRequest
	err := s.tx.WithinTx(ctx, func(exec sqlx.ExtContext) error {
		deadline, err := s.deadlines.GetForUpdate(ctx, exec, deadlineID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.ErrNotFound
			}
			return err
		}
		project, err := s.projects.GetByID(ctx, exec, deadline.ProjectID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.ErrNotFound
			}
			return err
		}
		if !project.IsOwner(actor) {
			return appErrors.ErrNotOwner
		}
		if deadline.Completed {
			return appErrors.ErrAlreadyCompleted
		}
		if !deadline.Extensible {
			return appErrors.ErrNotExtensible
		}
		existing, err := s.extensions.ListByDeadline(ctx, exec, deadlineID)
		if err != nil {
			return err
		}
		state := ExtensionStateFrom(existing)
		if state.Open != nil {
			return appErrors.ErrDuplicateOpenRequest
		}
		original := EffectiveDeadline(deadline.DueDate, state)
		if !req.RequestedDate.After(original) {
			return appErrors.ErrInvalidDateOrder
		}

		request := &models.ExtensionRequest{
			DeadlineID:    deadline.ID,
			ProjectID:     deadline.ProjectID,
			RequestedBy:   actor.ID,
			OriginalDate:  original,
			RequestedDate: req.RequestedDate,
			Justification: justification,
			Status:        models.ExtensionStatusPending,
		}
		if err := s.extensions.Create(ctx, exec, request); err != nil {
			if errors.Is(err, repository.ErrOpenRequestExists) {
				return appErrors.ErrDuplicateOpenRequest
			}
			return err
		}
		if err := s.extensions.AppendHistory(ctx, exec, &models.HistoryEntry{
			RequestID: request.ID,
			Action:    models.HistoryActionCreated,
			ToStatus:  models.ExtensionStatusPending,
			ActorID:   actor.ID,
			Note:      justification,
		}); err != nil {
			return err
		}
		created = request
		return nil
	})
	if err != nil {
		return nil, domainOrInternal(err, "failed to create extension request")
	}
	s.afterTransition(ctx, created, models.EventExtensionRequested, actor.ID)
	return created, nil
}

// MarkInReview moves a pending request to in_review.
func (s *ExtensionService) MarkInReview(ctx context.Context, id int64, reviewer models.Actor, note string) (*models.ExtensionRequest, error) {
	return s.transition(ctx, id, reviewer, transitionSpec{
		from:   []models.ExtensionStatus{models.ExtensionStatusPending},
		to:     models.ExtensionStatusInReview,
		action: models.HistoryActionInReview,
		event:  models.EventExtensionInReview,
		note:   strings.TrimSpace(note),
	})
}

// Approve grants the requested date. The deadline row is not modified; the
// resolver derives the new effective date from the approved request.
func (s *ExtensionService) Approve(ctx context.Context, id int64, reviewer models.Actor, comments string) (*models.ExtensionRequest, error) {
	return s.transition(ctx, id, reviewer, transitionSpec{
		from:     models.OpenExtensionStatuses,
		to:       models.ExtensionStatusApproved,
		action:   models.HistoryActionApproved,
		event:    models.EventExtensionApproved,
		note:     strings.TrimSpace(comments),
		comments: optionalString(comments),
	})
}

// Reject denies the request. Comments are mandatory.
func (s *ExtensionService) Reject(ctx context.Context, id int64, reviewer models.Actor, comments string) (*models.ExtensionRequest, error) {
	trimmed := strings.TrimSpace(comments)
	if trimmed == "" {
		return nil, appErrors.Clone(appErrors.ErrMissingJustification, "rejection comments are required")
	}
	if utf8.RuneCountInString(trimmed) < s.policy.MinRejectionComment {
		return nil, appErrors.Clone(appErrors.ErrMissingJustification, "rejection comments are too short")
	}
	return s.transition(ctx, id, reviewer, transitionSpec{
		from:     models.OpenExtensionStatuses,
		to:       models.ExtensionStatusRejected,
		action:   models.HistoryActionRejected,
		event:    models.EventExtensionRejected,
		note:     trimmed,
		comments: &trimmed,
	})
}

// Review dispatches an approve or reject decision.
func (s *ExtensionService) Review(ctx context.Context, id int64, reviewer models.Actor, req dto.ReviewExtensionRequest) (*models.ExtensionRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "decision must be approve or reject")
	}
	if req.Decision == dto.DecisionApprove {
		return s.Approve(ctx, id, reviewer, req.Comments)
	}
	return s.Reject(ctx, id, reviewer, req.Comments)
}

type transitionSpec struct {
	from     []models.ExtensionStatus
	to       models.ExtensionStatus
	action   models.HistoryAction
	event    models.EventType
	note     string
	comments *string
}

func (s *ExtensionService) transition(ctx context.Context, id int64, reviewer models.Actor, spec transitionSpec) (*models.ExtensionRequest, error) {
	if !reviewer.IsAdmin() {
		return nil, appErrors.ErrForbidden
	}
	var updated *models.ExtensionRequest
	err := s.tx.WithinTx(ctx, func(exec sqlx.ExtContext) error {
		current, err := s.extensions.GetForUpdate(ctx, exec, id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.ErrNotFound
			}
			return err
		}
		if !statusIn(current.Status, spec.from) {
			return appErrors.ErrAlreadyResolved
		}
		now := s.clock.Now().UTC()
		if err := s.extensions.Transition(ctx, exec, repository.TransitionParams{
			ID:       id,
			From:     spec.from,
			To:       spec.to,
			Reviewer: reviewer.ID,
			Comments: spec.comments,
			At:       now,
		}); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.ErrAlreadyResolved
			}
			return err
		}
		previous := current.Status
		if err := s.extensions.AppendHistory(ctx, exec, &models.HistoryEntry{
			RequestID:  id,
			Action:     spec.action,
			FromStatus: &previous,
			ToStatus:   spec.to,
			ActorID:    reviewer.ID,
			Note:       spec.note,
		}); err != nil {
			return err
		}
		current.Status = spec.to
		current.ReviewedBy = &reviewer.ID
		current.UpdatedAt = now
		if spec.comments != nil {
			current.ReviewerComments = spec.comments
		}
		if spec.to.IsTerminal() {
			current.ResolvedAt = &now
		}
		updated = current
		return nil
	})
	if err != nil {
		return nil, domainOrInternal(err, "failed to update extension request")
	}
	s.afterTransition(ctx, updated, spec.event, reviewer.ID)
	return updated, nil
}

func (s *ExtensionService) afterTransition(ctx context.Context, req *models.ExtensionRequest, eventType models.EventType, actorID string) {
	s.metrics.RecordExtensionTransition(req.Status)
	if s.cache != nil {
		s.cache.InvalidateProject(ctx, req.ProjectID)
	}
	if s.notifier != nil {
		s.notifier.Emit(ctx, models.DeadlineEvent{
			Type:    eventType,
			ActorID: actorID,
			Payload: map[string]interface{}{
				"extension_id":   req.ID,
				"deadline_id":    req.DeadlineID,
				"project_id":     req.ProjectID,
				"requested_by":   req.RequestedBy,
				"status":         req.Status,
				"original_date":  req.OriginalDate,
				"requested_date": req.RequestedDate,
			},
		})
	}
	s.logger.Info("extension request transitioned",
		zap.Int64("extension_id", req.ID),
		zap.Int64("deadline_id", req.DeadlineID),
		zap.String("status", string(req.Status)),
		zap.String("actor_id", actorID),
	)
}

// Get returns a request. Students only see their own requests.
func (s *ExtensionService) Get(ctx context.Context, id int64, actor models.Actor) (*models.ExtensionRequest, error) {
	req, err := s.extensions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Internal(err, "failed to load extension request")
	}
	if actor.Role == models.RoleStudent && req.RequestedBy != actor.ID {
		return nil, appErrors.ErrForbidden
	}
	return req, nil
}

// List returns requests visible to actor.
func (s *ExtensionService) List(ctx context.Context, query dto.ExtensionQuery, actor models.Actor) ([]models.ExtensionRequest, *models.Pagination, error) {
	page, size := normalizePage(query.Page, query.PageSize)
	filter := models.ExtensionFilter{
		DeadlineID: query.DeadlineID,
		ProjectID:  query.ProjectID,
		Status:     query.Status,
		Limit:      size,
		Offset:     (page - 1) * size,
	}
	if actor.Role == models.RoleStudent {
		filter.RequestedBy = actor.ID
	}
	requests, total, err := s.extensions.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list extension requests")
	}
	return requests, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// History returns the chronological history of a request.
func (s *ExtensionService) History(ctx context.Context, id int64, actor models.Actor) ([]models.HistoryEntry, error) {
	if _, err := s.Get(ctx, id, actor); err != nil {
		return nil, err
	}
	entries, err := s.extensions.ListHistory(ctx, id)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load extension history")
	}
	return entries, nil
}

func statusIn(status models.ExtensionStatus, allowed []models.ExtensionStatus) bool {
	for _, candidate := range allowed {
		if status == candidate {
			return true
		}
	}
	return false
}

func optionalString(value string) *string {
	v := strings.TrimSpace(value)
	if v == "" {
		return nil
	}
	return &v
}
