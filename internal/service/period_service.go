package service

import (
	"context"
	"database/sql"
	"errors"
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

type txRunner interface {
	WithinTx(ctx context.Context, fn func(exec sqlx.ExtContext) error) error
}

type periodStore interface {
	Create(ctx context.Context, exec sqlx.ExtContext, period *models.DeadlinePeriod) error
	AdvanceCurrent(ctx context.Context, exec sqlx.ExtContext, period *models.DeadlinePeriod) error
	GetCurrent(ctx context.Context, category string) (*models.DeadlinePeriod, error)
	GetByID(ctx context.Context, id int64) (*models.DeadlinePeriod, error)
	GetForUpdate(ctx context.Context, exec sqlx.ExtContext, id int64) (*models.DeadlinePeriod, error)
	List(ctx context.Context, filter models.PeriodFilter) ([]models.DeadlinePeriod, int, error)
	ApplyOverride(ctx context.Context, exec sqlx.ExtContext, id int64, enabled bool, at time.Time) error
}

// PeriodService manages global deadline periods.
type PeriodService struct {
	periods   periodStore
	tx        txRunner
	notifier  Notifier
	metrics   *MetricsService
	clock     clock.Clock
	validator *validator.Validate
	logger    *zap.Logger
}

// NewPeriodService constructs the service.
func NewPeriodService(periods periodStore, tx txRunner, notifier Notifier, metrics *MetricsService, clk clock.Clock, validate *validator.Validate, logger *zap.Logger) *PeriodService {
	if clk == nil {
		clk = clock.Real()
	}
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PeriodService{
		periods:   periods,
		tx:        tx,
		notifier:  notifier,
		metrics:   metrics,
		clock:     clk,
		validator: validate,
		logger:    logger,
	}
}

// CreatePeriod stores a new period and moves the category pointer when the
// period is the latest one.
func (s *PeriodService) CreatePeriod(ctx context.Context, req dto.CreatePeriodRequest, actor models.Actor) (*models.DeadlinePeriod, error) {
	if !actor.IsAdmin() {
		return nil, appErrors.ErrForbidden
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	if req.StartsAt != nil && req.StartsAt.After(req.EffectiveDate) {
		return nil, appErrors.Clone(appErrors.ErrInvalidDateOrder, "starts_at must not be after effective_date")
	}
	period := &models.DeadlinePeriod{
		Category:      strings.ToLower(strings.TrimSpace(req.Category)),
		Title:         strings.TrimSpace(req.Title),
		Description:   strings.TrimSpace(req.Description),
		EffectiveDate: req.EffectiveDate,
		StartsAt:      req.StartsAt,
		Enabled:       req.Enabled,
		Extensible:    req.Extensible,
		Source:        models.SourceManual,
		CreatedBy:     actor.ID,
	}
	if err := s.Insert(ctx, period); err != nil {
		return nil, appErrors.Internal(err, "failed to create deadline period")
	}
	s.logger.Info("deadline period created",
		zap.Int64("period_id", period.ID),
		zap.String("category", period.Category),
		zap.String("actor_id", actor.ID),
	)
	return period, nil
}

// Insert writes period and advances the current-period pointer in one
// transaction. Every creation path, including calendar mirrors, goes through
// here.
func (s *PeriodService) Insert(ctx context.Context, period *models.DeadlinePeriod) error {
	return s.tx.WithinTx(ctx, func(exec sqlx.ExtContext) error {
		if err := s.periods.Create(ctx, exec, period); err != nil {
			return err
		}
		return s.periods.AdvanceCurrent(ctx, exec, period)
	})
}

// ListPeriods returns periods matching query.
func (s *PeriodService) ListPeriods(ctx context.Context, query dto.PeriodQuery) ([]models.DeadlinePeriod, *models.Pagination, error) {
	page, size := normalizePage(query.Page, query.PageSize)
	periods, total, err := s.periods.List(ctx, models.PeriodFilter{
		Category: strings.ToLower(strings.TrimSpace(query.Category)),
		Enabled:  query.Enabled,
		Limit:    size,
		Offset:   (page - 1) * size,
	})
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list deadline periods")
	}
	return periods, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// CurrentPeriod returns the period the category pointer references.
func (s *PeriodService) CurrentPeriod(ctx context.Context, category string) (*models.DeadlinePeriod, error) {
	period, err := s.periods.GetCurrent(ctx, strings.ToLower(strings.TrimSpace(category)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no current period for category")
		}
		return nil, appErrors.Internal(err, "failed to load current period")
	}
	return period, nil
}

// CheckPeriodPermission resolves permission against the category's current period.
func (s *PeriodService) CheckPeriodPermission(ctx context.Context, category string) (*models.PermissionResult, error) {
	period, err := s.CurrentPeriod(ctx, category)
	if err != nil {
		return nil, err
	}
	result := ResolvePermission(SubjectFromPeriod(period), s.clock.Now(), ExtensionState{})
	return &result, nil
}

// TogglePeriod is the admin kill switch. The override timestamp stops the
// scheduler from undoing the decision until the next boundary.
func (s *PeriodService) TogglePeriod(ctx context.Context, periodID int64, enabled bool, actor models.Actor) (*models.DeadlinePeriod, error) {
	if !actor.IsAdmin() {
		return nil, appErrors.ErrForbidden
	}
	var (
		period  *models.DeadlinePeriod
		changed bool
	)
	now := s.clock.Now().UTC()
	err := s.tx.WithinTx(ctx, func(exec sqlx.ExtContext) error {
		current, err := s.periods.GetForUpdate(ctx, exec, periodID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.ErrNotFound
			}
			return err
		}
		if err := s.periods.ApplyOverride(ctx, exec, periodID, enabled, now); err != nil {
			return err
		}
		changed = current.Enabled != enabled
		current.Enabled = enabled
		current.ManualOverrideAt = &now
		current.UpdatedAt = now
		period = current
		return nil
	})
	if err != nil {
		return nil, domainOrInternal(err, "failed to toggle deadline period")
	}

	outcome := "noop"
	if changed {
		outcome = "applied"
		eventType := models.EventPeriodDisabled
		if enabled {
			eventType = models.EventPeriodEnabled
		}
		if s.notifier != nil {
			s.notifier.Emit(ctx, models.DeadlineEvent{
				Type:    eventType,
				ActorID: actor.ID,
				Payload: map[string]interface{}{
					"period_id": period.ID,
					"category":  period.Category,
					"title":     period.Title,
					"enabled":   enabled,
					"manual":    true,
				},
			})
		}
	}
	s.metrics.RecordPeriodToggle("manual", enabled, outcome)
	s.logger.Info("deadline period toggled",
		zap.Int64("period_id", periodID),
		zap.Bool("enabled", enabled),
		zap.Bool("changed", changed),
		zap.String("actor_id", actor.ID),
	)
	return period, nil
}

func domainOrInternal(err error, message string) error {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return appErrors.Internal(err, message)
}

func normalizePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 200 {
		size = 20
	}
	return page, size
}
