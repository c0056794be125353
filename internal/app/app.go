// Package app wires repositories, services, background workers and HTTP
// handlers for both the API server and the operator CLI.
package app

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/deadline-engine/internal/handler"
	"github.com/noah-isme/deadline-engine/internal/repository"
	"github.com/noah-isme/deadline-engine/internal/service"
	"github.com/noah-isme/deadline-engine/pkg/clock"
	"github.com/noah-isme/deadline-engine/pkg/config"
	"github.com/noah-isme/deadline-engine/pkg/database"
	"github.com/noah-isme/deadline-engine/pkg/jobs"
	"github.com/noah-isme/deadline-engine/pkg/logger"
)

// App holds the engine's long-lived components.
type App struct {
	cfg    *config.Config
	logger *zap.Logger
	db     *sqlx.DB
	cache  *repository.CacheRepository

	Metrics       *service.MetricsService
	Notifications *service.NotificationService
	Periods       *service.PeriodService
	Deadlines     *service.DeadlineService
	Extensions    *service.ExtensionService
	Calendar      *service.CalendarService
	Scheduler     *service.PeriodScheduler
	Reconciler    *service.CalendarReconciler

	queue            *jobs.Queue
	schedulerTicker  *jobs.Ticker
	reconcilerTicker *jobs.Ticker
}

// Option adjusts how New wires the graph.
type Option func(*options)

type options struct {
	inlineNotifications bool
}

// WithInlineNotifications writes events to the outbox synchronously instead
// of through the background queue. One-shot CLI runs use it so nothing is
// lost when the process exits.
func WithInlineNotifications() Option {
	return func(o *options) {
		o.inlineNotifications = true
	}
}

// inlineQueue hands jobs straight to the handler.
type inlineQueue struct {
	handler jobs.Handler
}

func (q inlineQueue) TryEnqueue(job jobs.Job) error {
	return q.handler(context.Background(), job)
}

// New builds the component graph. redisClient may be nil.
func New(cfg *config.Config, log *zap.Logger, db *sqlx.DB, redisClient *redis.Client, opts ...Option) *App {
	if log == nil {
		log = zap.NewNop()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	clk := clock.Real()
	loc := cfg.Location()
	validate := validator.New()
	tx := database.NewTxRunner(db)

	periodRepo := repository.NewPeriodRepository(db)
	projectRepo := repository.NewProjectRepository(db)
	deadlineRepo := repository.NewProjectDeadlineRepository(db)
	extensionRepo := repository.NewExtensionRepository(db)
	calendarRepo := repository.NewCalendarRepository(db)
	outboxRepo := repository.NewNotificationRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logger.Component(log, "cache"))

	a := &App{cfg: cfg, logger: log, db: db, cache: cacheRepo}
	a.Metrics = service.NewMetricsService()

	a.Notifications = service.NewNotificationService(outboxRepo, clk, a.Metrics, logger.Component(log, "notifications"))
	a.queue = jobs.NewQueue("deadline-events", a.Notifications.Handle, jobs.QueueConfig{
		Workers:    cfg.Notifications.Workers,
		BufferSize: cfg.Notifications.BufferSize,
		MaxRetries: cfg.Notifications.MaxRetries,
		Logger:     logger.Component(log, "queue"),
	})
	if o.inlineNotifications {
		a.Notifications.AttachQueue(inlineQueue{handler: a.Notifications.Handle})
	} else {
		a.Notifications.AttachQueue(a.queue)
	}

	statusCache := service.NewStatusCache(cacheRepo, a.Metrics, cfg.StatusCache.TTL, logger.Component(log, "status-cache"), cfg.StatusCache.Enabled && redisClient != nil)

	a.Periods = service.NewPeriodService(periodRepo, tx, a.Notifications, a.Metrics, clk, validate, logger.Component(log, "periods"))
	a.Deadlines = service.NewDeadlineService(deadlineRepo, extensionRepo, projectRepo, tx, clk, logger.Component(log, "deadlines"),
		service.WithDeadlineStatusCache(statusCache),
		service.WithDeadlineNotifier(a.Notifications),
		service.WithDeadlinePeriods(periodRepo),
		service.WithDeadlineLocation(loc),
	)
	a.Extensions = service.NewExtensionService(extensionRepo, deadlineRepo, projectRepo, tx, clk, logger.Component(log, "extensions"),
		service.WithExtensionNotifier(a.Notifications),
		service.WithExtensionStatusCache(statusCache),
		service.WithExtensionMetrics(a.Metrics),
		service.WithExtensionPolicy(service.ExtensionPolicy{
			MinJustification:    cfg.Extensions.MinJustification,
			MinRejectionComment: cfg.Extensions.MinRejectionComment,
		}),
	)
	a.Scheduler = service.NewPeriodScheduler(periodRepo, a.Notifications, a.Metrics, clk, service.PeriodSchedulerConfig{
		Concurrency:   cfg.Scheduler.Concurrency,
		PeriodTimeout: cfg.Scheduler.PeriodTimeout,
	}, logger.Component(log, "scheduler"))
	a.Reconciler = service.NewCalendarReconciler(calendarRepo, periodRepo, a.Periods, loc, a.Metrics, logger.Component(log, "reconciler"))
	a.Calendar = service.NewCalendarService(calendarRepo, a.Reconciler, validate, logger.Component(log, "calendar"))

	a.schedulerTicker = jobs.NewTicker("period-scheduler", a.Scheduler.Run, jobs.TickerConfig{
		Interval:   cfg.Scheduler.Interval,
		RunOnStart: true,
		Clock:      clk,
		Logger:     log,
	})
	a.reconcilerTicker = jobs.NewTicker("calendar-reconciler", a.Reconciler.Run, jobs.TickerConfig{
		Interval:   cfg.Reconciler.Interval,
		RunOnStart: true,
		Clock:      clk,
		Logger:     log,
	})
	return a
}

// StartWorkers starts the notification queue and the enabled periodic tasks.
func (a *App) StartWorkers(ctx context.Context) {
	a.queue.Start(ctx)
	if a.cfg.Scheduler.Enabled {
		a.schedulerTicker.Start(ctx)
	}
	if a.cfg.Reconciler.Enabled {
		a.reconcilerTicker.Start(ctx)
	}
}

// StopWorkers halts periodic tasks between passes, then drains the queue workers.
func (a *App) StopWorkers() {
	a.schedulerTicker.Stop()
	a.reconcilerTicker.Stop()
	a.queue.Stop()
}

// Handlers builds the HTTP handlers over the app's services.
func (a *App) Handlers() handler.Handlers {
	checks := map[string]handler.ReadinessCheck{
		"postgres": a.db.PingContext,
	}
	if a.cfg.StatusCache.Enabled {
		checks["redis"] = a.cache.Ping
	}
	return handler.Handlers{
		Deadlines:  handler.NewDeadlineHandler(a.Deadlines),
		Extensions: handler.NewExtensionHandler(a.Extensions),
		Periods:    handler.NewPeriodHandler(a.Periods),
		Calendar:   handler.NewCalendarHandler(a.Calendar),
		Metrics:    handler.NewMetricsHandler(a.Metrics, checks),
	}
}
