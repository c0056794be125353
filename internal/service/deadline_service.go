package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/deadline-engine/internal/dto"
	"github.com/noah-isme/deadline-engine/internal/models"
	"github.com/noah-isme/deadline-engine/pkg/clock"
	appErrors "github.com/noah-isme/deadline-engine/pkg/errors"
)

type deadlineStore interface {
	Create(ctx context.Context, deadline *models.ProjectDeadline) error
	GetByID(ctx context.Context, id int64) (*models.ProjectDeadline, error)
	GetForUpdate(ctx context.Context, exec sqlx.ExtContext, id int64) (*models.ProjectDeadline, error)
	ListByProject(ctx context.Context, projectID int64) ([]models.ProjectDeadline, error)
	MarkCompleted(ctx context.Context, exec sqlx.ExtContext, id int64, actorID string, at time.Time) error
}

type deadlineExtensionReader interface {
	ListByDeadline(ctx context.Context, exec sqlx.ExtContext, deadlineID int64) ([]models.ExtensionRequest, error)
	ListByDeadlines(ctx context.Context, deadlineIDs []int64) ([]models.ExtensionRequest, error)
}

type feedPeriodReader interface {
	ListAll(ctx context.Context) ([]models.DeadlinePeriod, error)
}

type statusCache interface {
	Get(ctx context.Context, projectID int64) ([]models.DeadlineStatus, bool)
	Put(ctx context.Context, projectID int64, statuses []models.DeadlineStatus)
	InvalidateProject(ctx context.Context, projectID int64)
}

// DeadlineService answers permission questions about project deadlines and
// owns their lifecycle outside the extension workflow.
type DeadlineService struct {
	deadlines  deadlineStore
	extensions deadlineExtensionReader
	projects   projectReader
	periods    feedPeriodReader
	tx         txRunner
	cache      statusCache
	notifier   Notifier
	clock      clock.Clock
	location   *time.Location
	validator  *validator.Validate
	logger     *zap.Logger
}

// DeadlineServiceOption configures the service.
type DeadlineServiceOption func(*DeadlineService)

// WithDeadlineStatusCache enables dashboard status caching.
func WithDeadlineStatusCache(cache statusCache) DeadlineServiceOption {
	return func(s *DeadlineService) {
		s.cache = cache
	}
}

// WithDeadlineNotifier sets the event sink.
func WithDeadlineNotifier(notifier Notifier) DeadlineServiceOption {
	return func(s *DeadlineService) {
		s.notifier = notifier
	}
}

// WithDeadlinePeriods adds global periods to exported feeds.
func WithDeadlinePeriods(periods feedPeriodReader) DeadlineServiceOption {
	return func(s *DeadlineService) {
		s.periods = periods
	}
}

// WithDeadlineLocation sets the zone used to render calendar days.
func WithDeadlineLocation(loc *time.Location) DeadlineServiceOption {
	return func(s *DeadlineService) {
		if loc != nil {
			s.location = loc
		}
	}
}

// NewDeadlineService constructs the service.
func NewDeadlineService(deadlines deadlineStore, extensions deadlineExtensionReader, projects projectReader, tx txRunner, clk clock.Clock, logger *zap.Logger, opts ...DeadlineServiceOption) *DeadlineService {
	if clk == nil {
		clk = clock.Real()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &DeadlineService{
		deadlines:  deadlines,
		extensions: extensions,
		projects:   projects,
		tx:         tx,
		clock:      clk,
		location:   time.UTC,
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

// CheckPermission resolves whether the deadline's project may act now.
func (s *DeadlineService) CheckPermission(ctx context.Context, deadlineID int64, actor models.Actor) (*models.PermissionResult, error) {
	deadline, err := s.deadlines.GetByID(ctx, deadlineID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Internal(err, "failed to load deadline")
	}
	if _, err := s.viewableProject(ctx, deadline.ProjectID, actor); err != nil {
		return nil, err
	}
	requests, err := s.extensions.ListByDeadline(ctx, nil, deadlineID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load extension requests")
	}
	result := ResolvePermission(SubjectFromDeadline(deadline), s.clock.Now(), ExtensionStateFrom(requests))
	return &result, nil
}

// GetDeadlineStatus returns one status row per project deadline.
func (s *DeadlineService) GetDeadlineStatus(ctx context.Context, projectID int64, actor models.Actor) ([]models.DeadlineStatus, error) {
	if _, err := s.viewableProject(ctx, projectID, actor); err != nil {
		return nil, err
	}
	if s.cache != nil {
		if cached, ok := s.cache.Get(ctx, projectID); ok {
			return cached, nil
		}
	}

	deadlines, err := s.deadlines.ListByProject(ctx, projectID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list project deadlines")
	}
	byDeadline, err := s.requestsByDeadline(ctx, deadlines)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load extension requests")
	}

	now := s.clock.Now()
	statuses := make([]models.DeadlineStatus, 0, len(deadlines))
	for i := range deadlines {
		requests := byDeadline[deadlines[i].ID]
		status := models.DeadlineStatus{
			Deadline:   deadlines[i],
			Permission: ResolvePermission(SubjectFromDeadline(&deadlines[i]), now, ExtensionStateFrom(requests)),
		}
		if len(requests) > 0 {
			latest := requests[len(requests)-1]
			status.Extension = &latest
		}
		statuses = append(statuses, status)
	}
	if s.cache != nil {
		s.cache.Put(ctx, projectID, statuses)
	}
	return statuses, nil
}

// CompleteDeadline marks the deadline done. The permission decision and the
// write share one transaction over the locked deadline row.
func (s *DeadlineService) CompleteDeadline(ctx context.Context, deadlineID int64, actor models.Actor) (*models.ProjectDeadline, error) {
	var completed *models.ProjectDeadline
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
			return err
		}
		if !project.IsOwner(actor) {
			return appErrors.ErrNotOwner
		}
		requests, err := s.extensions.ListByDeadline(ctx, exec, deadlineID)
		if err != nil {
			return err
		}
		now := s.clock.Now().UTC()
		result := ResolvePermission(SubjectFromDeadline(deadline), now, ExtensionStateFrom(requests))
		if !result.Allowed {
			if result.Reason == models.ReasonAlreadyCompleted {
				return appErrors.ErrAlreadyCompleted
			}
			return appErrors.Clone(appErrors.ErrDeadlineClosed, fmt.Sprintf("deadline window is closed: %s", result.Reason))
		}
		if err := s.deadlines.MarkCompleted(ctx, exec, deadlineID, actor.ID, now); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.ErrAlreadyCompleted
			}
			return err
		}
		deadline.Completed = true
		deadline.CompletedAt = &now
		deadline.CompletedBy = &actor.ID
		completed = deadline
		return nil
	})
	if err != nil {
		return nil, domainOrInternal(err, "failed to complete deadline")
	}

	if s.cache != nil {
		s.cache.InvalidateProject(ctx, completed.ProjectID)
	}
	if s.notifier != nil {
		s.notifier.Emit(ctx, models.DeadlineEvent{
			Type:    models.EventDeadlineCompleted,
			ActorID: actor.ID,
			Payload: map[string]interface{}{
				"deadline_id": completed.ID,
				"project_id":  completed.ProjectID,
				"category":    completed.Category,
			},
		})
	}
	s.logger.Info("deadline completed", zap.Int64("deadline_id", deadlineID), zap.String("actor_id", actor.ID))
	return completed, nil
}

// CreateProjectDeadline adds a milestone to a project. Staff only.
func (s *DeadlineService) CreateProjectDeadline(ctx context.Context, projectID int64, req dto.CreateProjectDeadlineRequest, actor models.Actor) (*models.ProjectDeadline, error) {
	if !actor.IsStaff() {
		return nil, appErrors.ErrForbidden
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	if _, err := s.projects.GetByID(ctx, nil, projectID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Internal(err, "failed to load project")
	}
	extensible := true
	if req.Extensible != nil {
		extensible = *req.Extensible
	}
	deadline := &models.ProjectDeadline{
		ProjectID:   projectID,
		Category:    strings.ToLower(strings.TrimSpace(req.Category)),
		Title:       strings.TrimSpace(req.Title),
		Description: strings.TrimSpace(req.Description),
		DueDate:     req.DueDate,
		Extensible:  extensible,
		CreatedBy:   actor.ID,
	}
	if err := s.deadlines.Create(ctx, deadline); err != nil {
		return nil, appErrors.Internal(err, "failed to create project deadline")
	}
	if s.cache != nil {
		s.cache.InvalidateProject(ctx, projectID)
	}
	return deadline, nil
}

// ExportICS renders the project's deadlines at their effective dates, plus
// enabled global periods, as an iCalendar feed.
func (s *DeadlineService) ExportICS(ctx context.Context, projectID int64, actor models.Actor) ([]byte, error) {
	project, err := s.viewableProject(ctx, projectID, actor)
	if err != nil {
		return nil, err
	}
	deadlines, err := s.deadlines.ListByProject(ctx, projectID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list project deadlines")
	}
	byDeadline, err := s.requestsByDeadline(ctx, deadlines)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load extension requests")
	}

	entries := make([]FeedEntry, 0, len(deadlines))
	for _, deadline := range deadlines {
		effective := EffectiveDeadline(deadline.DueDate, ExtensionStateFrom(byDeadline[deadline.ID]))
		entries = append(entries, deadlineFeedEntry(deadline, effective, s.location))
	}
	if s.periods != nil {
		periods, err := s.periods.ListAll(ctx)
		if err != nil {
			return nil, appErrors.Internal(err, "failed to list deadline periods")
		}
		for _, period := range periods {
			if period.Enabled {
				entries = append(entries, periodFeedEntry(period, s.location))
			}
		}
	}
	return BuildDeadlineFeed(project.Title, entries, s.clock.Now()), nil
}

func (s *DeadlineService) viewableProject(ctx context.Context, projectID int64, actor models.Actor) (*models.Project, error) {
	project, err := s.projects.GetByID(ctx, nil, projectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Internal(err, "failed to load project")
	}
	if !project.CanView(actor) {
		return nil, appErrors.ErrForbidden
	}
	return project, nil
}

func (s *DeadlineService) requestsByDeadline(ctx context.Context, deadlines []models.ProjectDeadline) (map[int64][]models.ExtensionRequest, error) {
	ids := make([]int64, len(deadlines))
	for i, deadline := range deadlines {
		ids[i] = deadline.ID
	}
	requests, err := s.extensions.ListByDeadlines(ctx, ids)
	if err != nil {
		return nil, err
	}
	grouped := make(map[int64][]models.ExtensionRequest, len(deadlines))
	for _, req := range requests {
		grouped[req.DeadlineID] = append(grouped[req.DeadlineID], req)
	}
	return grouped, nil
}
