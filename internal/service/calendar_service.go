package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/deadline-engine/internal/dto"
	"github.com/noah-isme/deadline-engine/internal/models"
	appErrors "github.com/noah-isme/deadline-engine/pkg/errors"
)

type calendarStore interface {
	Create(ctx context.Context, event *models.CalendarEvent) error
	List(ctx context.Context, filter models.CalendarFilter) ([]models.CalendarEvent, int, error)
}

type reconcileRunner interface {
	Reconcile(ctx context.Context) (dto.ReconcileReport, error)
}

// CalendarService manages the academic calendar.
type CalendarService struct {
	events     calendarStore
	reconciler reconcileRunner
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewCalendarService constructs the service.
func NewCalendarService(events calendarStore, reconciler reconcileRunner, validate *validator.Validate, logger *zap.Logger) *CalendarService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CalendarService{events: events, reconciler: reconciler, validator: validate, logger: logger}
}

// CreateEvent adds a calendar event. Admin only.
func (s *CalendarService) CreateEvent(ctx context.Context, req dto.CreateCalendarEventRequest, actor models.Actor) (*models.CalendarEvent, error) {
	if !actor.IsAdmin() {
		return nil, appErrors.ErrForbidden
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	isGlobal := true
	if req.IsGlobal != nil {
		isGlobal = *req.IsGlobal
	}
	event := &models.CalendarEvent{
		Title:       strings.TrimSpace(req.Title),
		Description: strings.TrimSpace(req.Description),
		EventType:   req.EventType,
		EventDate:   req.EventDate,
		IsGlobal:    isGlobal,
		Active:      true,
		Source:      models.SourceManual,
		CreatedBy:   actor.ID,
	}
	if err := s.events.Create(ctx, event); err != nil {
		return nil, appErrors.Internal(err, "failed to create calendar event")
	}
	return event, nil
}

// ListEvents returns events matching filter.
func (s *CalendarService) ListEvents(ctx context.Context, filter models.CalendarFilter) ([]models.CalendarEvent, *models.Pagination, error) {
	page, size := normalizePage(filter.Page, filter.PageSize)
	filter.Page, filter.PageSize = page, size
	events, total, err := s.events.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list calendar events")
	}
	return events, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// ReconcileNow runs a reconciliation pass on demand. Admin only.
func (s *CalendarService) ReconcileNow(ctx context.Context, actor models.Actor) (*dto.ReconcileReport, error) {
	if !actor.IsAdmin() {
		return nil, appErrors.ErrForbidden
	}
	if s.reconciler == nil {
		return nil, appErrors.ErrServiceOffline
	}
	report, err := s.reconciler.Reconcile(ctx)
	if err != nil {
		return nil, appErrors.Internal(err, "calendar reconciliation failed")
	}
	s.logger.Info("manual calendar reconciliation", zap.String("actor_id", actor.ID))
	return &report, nil
}
