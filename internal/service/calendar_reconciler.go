package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/deadline-engine/internal/dto"
	"github.com/noah-isme/deadline-engine/internal/models"
)

type calendarEventStore interface {
	ListAll(ctx context.Context) ([]models.CalendarEvent, error)
	Create(ctx context.Context, event *models.CalendarEvent) error
}

type reconcilerPeriodReader interface {
	ListAll(ctx context.Context) ([]models.DeadlinePeriod, error)
}

type periodInserter interface {
	Insert(ctx context.Context, period *models.DeadlinePeriod) error
}

// CalendarReconciler mirrors global calendar events into deadline periods and
// periods back into calendar events. It only ever inserts.
type CalendarReconciler struct {
	events   calendarEventStore
	periods  reconcilerPeriodReader
	inserter periodInserter
	location *time.Location
	metrics  *MetricsService
	logger   *zap.Logger
	mu       sync.Mutex
}

// NewCalendarReconciler constructs the reconciler. Matching days are taken in loc.
func NewCalendarReconciler(events calendarEventStore, periods reconcilerPeriodReader, inserter periodInserter, loc *time.Location, metrics *MetricsService, logger *zap.Logger) *CalendarReconciler {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CalendarReconciler{
		events:   events,
		periods:  periods,
		inserter: inserter,
		location: loc,
		metrics:  metrics,
		logger:   logger,
	}
}

// Run adapts Reconcile to the ticker signature. A failed pass is retried on
// the next tick.
func (r *CalendarReconciler) Run(ctx context.Context) {
	if _, err := r.Reconcile(ctx); err != nil {
		r.logger.Error("calendar reconciliation aborted", zap.Error(err))
	}
}

// Reconcile performs one pass in both directions. A load failure aborts the
// pass; a failed insert is logged and counted.
func (r *CalendarReconciler) Reconcile(ctx context.Context) (dto.ReconcileReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := time.Now()
	defer func() {
		r.metrics.ObserveTask("calendar_reconcile", time.Since(start))
	}()

	var report dto.ReconcileReport
	events, err := r.events.ListAll(ctx)
	if err != nil {
		return report, fmt.Errorf("load calendar events: %w", err)
	}
	periods, err := r.periods.ListAll(ctx)
	if err != nil {
		return report, fmt.Errorf("load deadline periods: %w", err)
	}

	periodKeys := make(map[matchKey]struct{}, len(periods))
	for _, period := range periods {
		periodKeys[matchKeyOf(period.Title, period.EffectiveDate, r.location)] = struct{}{}
	}
	eventKeys := make(map[matchKey]struct{}, len(events))
	for _, event := range events {
		eventKeys[matchKeyOf(event.Title, event.EventDate, r.location)] = struct{}{}
	}

	for _, event := range events {
		if !event.IsGlobal || !event.Active {
			continue
		}
		key := matchKeyOf(event.Title, event.EventDate, r.location)
		if _, ok := periodKeys[key]; ok {
			continue
		}
		mirror := &models.DeadlinePeriod{
			Category:      models.CategoryCalendar,
			Title:         event.Title,
			Description:   event.Description,
			EffectiveDate: CalendarDay(event.EventDate, r.location),
			Enabled:       false,
			Extensible:    false,
			Source:        models.SourceCalendarSync,
			CreatedBy:     "system",
		}
		if err := r.inserter.Insert(ctx, mirror); err != nil {
			r.fail(&report, "period", event.Title, err)
			continue
		}
		// Later events with the same key must not produce a second mirror.
		periodKeys[key] = struct{}{}
		// The new period must not be mirrored back.
		eventKeys[key] = struct{}{}
		report.PeriodsCreated++
		r.metrics.RecordMirror("period", true)
	}

	for _, period := range periods {
		key := matchKeyOf(period.Title, period.EffectiveDate, r.location)
		if _, ok := eventKeys[key]; ok {
			continue
		}
		mirror := &models.CalendarEvent{
			Title:       period.Title,
			Description: period.Description,
			EventType:   models.EventTypeDeadline,
			EventDate:   CalendarDay(period.EffectiveDate, r.location),
			IsGlobal:    true,
			Active:      true,
			Source:      models.SourcePeriodSync,
			CreatedBy:   "system",
		}
		if err := r.events.Create(ctx, mirror); err != nil {
			r.fail(&report, "event", period.Title, err)
			continue
		}
		eventKeys[key] = struct{}{}
		report.EventsCreated++
		r.metrics.RecordMirror("event", true)
	}

	if report.PeriodsCreated+report.EventsCreated+report.Failures > 0 {
		r.logger.Info("calendar reconciled",
			zap.Int("periods_created", report.PeriodsCreated),
			zap.Int("events_created", report.EventsCreated),
			zap.Int("failures", report.Failures),
		)
	}
	return report, nil
}

func (r *CalendarReconciler) fail(report *dto.ReconcileReport, store, title string, err error) {
	report.Failures++
	report.Errors = append(report.Errors, fmt.Sprintf("%s %q: %v", store, title, err))
	r.metrics.RecordMirror(store, false)
	r.logger.Warn("calendar mirror failed", zap.String("store", store), zap.String("title", title), zap.Error(err))
}
