package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/deadline-engine/internal/models"
	"github.com/noah-isme/deadline-engine/pkg/clock"
)

// ToggleDecision is the scheduler's verdict for one period.
type ToggleDecision int

const (
	ToggleNone ToggleDecision = iota
	ToggleEnable
	ToggleDisable
)

// DecidePeriodToggle computes what the scheduler should do with period at
// now. It depends only on its arguments, which makes ticks idempotent.
//
// A period opens at StartsAt and closes at WindowCloses(EffectiveDate), the
// same instant at which the resolver starts refusing actions. An admin toggle
// recorded at or after a boundary wins over that boundary.
func DecidePeriodToggle(period models.DeadlinePeriod, now time.Time) ToggleDecision {
	closes := WindowCloses(period.EffectiveDate)
	switch {
	case !now.Before(closes):
		if period.Enabled && !overriddenSince(period, closes) {
			return ToggleDisable
		}
	case period.StartsAt != nil && !now.Before(*period.StartsAt):
		if !period.Enabled && !overriddenSince(period, *period.StartsAt) {
			return ToggleEnable
		}
	}
	return ToggleNone
}

func overriddenSince(period models.DeadlinePeriod, boundary time.Time) bool {
	return period.ManualOverrideAt != nil && !period.ManualOverrideAt.Before(boundary)
}

// TickReport summarises one scheduler pass.
type TickReport struct {
	Evaluated int `json:"evaluated"`
	Enabled   int `json:"enabled"`
	Disabled  int `json:"disabled"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// Changed reports whether the pass wrote anything.
func (r TickReport) Changed() int {
	return r.Enabled + r.Disabled
}

type schedulerPeriodStore interface {
	ListAll(ctx context.Context) ([]models.DeadlinePeriod, error)
	SetEnabled(ctx context.Context, id int64, expected, enabled bool) (bool, error)
}

// PeriodSchedulerConfig tunes the pass.
type PeriodSchedulerConfig struct {
	Concurrency   int
	PeriodTimeout time.Duration
}

// PeriodScheduler flips DeadlinePeriod.enabled as wall-clock time crosses the
// configured boundaries. It never creates or deletes periods.
type PeriodScheduler struct {
	periods     schedulerPeriodStore
	notifier    Notifier
	metrics     *MetricsService
	clock       clock.Clock
	logger      *zap.Logger
	concurrency int
	timeout     time.Duration
}

// NewPeriodScheduler constructs the scheduler.
func NewPeriodScheduler(periods schedulerPeriodStore, notifier Notifier, metrics *MetricsService, clk clock.Clock, cfg PeriodSchedulerConfig, logger *zap.Logger) *PeriodScheduler {
	if clk == nil {
		clk = clock.Real()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.PeriodTimeout <= 0 {
		cfg.PeriodTimeout = 10 * time.Second
	}
	return &PeriodScheduler{
		periods:     periods,
		notifier:    notifier,
		metrics:     metrics,
		clock:       clk,
		logger:      logger,
		concurrency: cfg.Concurrency,
		timeout:     cfg.PeriodTimeout,
	}
}

// Run is the jobs.TickFunc adapter.
func (s *PeriodScheduler) Run(ctx context.Context) {
	s.Tick(ctx)
}

// Tick evaluates every period once. A failure on one period is logged and
// does not stop the others.
func (s *PeriodScheduler) Tick(ctx context.Context) TickReport {
	start := time.Now()
	defer func() { s.metrics.ObserveTask("period_scheduler", time.Since(start)) }()

	var report TickReport
	periods, err := s.periods.ListAll(ctx)
	if err != nil {
		s.logger.Error("period scheduler failed to load periods", zap.Error(err))
		report.Failed++
		return report
	}
	now := s.clock.Now()
	report.Evaluated = len(periods)

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, s.concurrency)
	)
	for _, period := range periods {
		decision := DecidePeriodToggle(period, now)
		if decision == ToggleNone {
			continue
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(period models.DeadlinePeriod, enable bool) {
			defer wg.Done()
			defer func() { <-sem }()
			outcome := s.apply(ctx, period, enable)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case outcome == "failed":
				report.Failed++
			case outcome == "noop":
				report.Skipped++
			case enable:
				report.Enabled++
			default:
				report.Disabled++
			}
		}(period, decision == ToggleEnable)
	}
	wg.Wait()

	if report.Changed() > 0 || report.Failed > 0 {
		s.logger.Info("period scheduler pass finished",
			zap.Int("evaluated", report.Evaluated),
			zap.Int("enabled", report.Enabled),
			zap.Int("disabled", report.Disabled),
			zap.Int("skipped", report.Skipped),
			zap.Int("failed", report.Failed),
		)
	}
	return report
}

func (s *PeriodScheduler) apply(ctx context.Context, period models.DeadlinePeriod, enable bool) (outcome string) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("period toggle panicked", zap.Int64("period_id", period.ID), zap.Any("panic", r))
			outcome = "failed"
		}
		s.metrics.RecordPeriodToggle("scheduler", enable, outcome)
	}()

	unitCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	changed, err := s.periods.SetEnabled(unitCtx, period.ID, period.Enabled, enable)
	if err != nil {
		s.logger.Warn("period toggle failed", zap.Int64("period_id", period.ID), zap.Bool("enable", enable), zap.Error(err))
		return "failed"
	}
	if !changed {
		return "noop"
	}

	eventType := models.EventPeriodDisabled
	if enable {
		eventType = models.EventPeriodEnabled
	}
	if s.notifier != nil {
		s.notifier.Emit(ctx, models.DeadlineEvent{
			Type:    eventType,
			ActorID: "system",
			Payload: map[string]interface{}{
				"period_id":      period.ID,
				"category":       period.Category,
				"title":          period.Title,
				"effective_date": period.EffectiveDate,
				"enabled":        enable,
			},
		})
	}
	return "applied"
}
