package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/deadline-engine/internal/models"
	"github.com/noah-isme/deadline-engine/pkg/clock"
	"github.com/noah-isme/deadline-engine/pkg/jobs"
)

// JobTypeDeadlineEvent tags queue jobs carrying a models.DeadlineEvent.
const JobTypeDeadlineEvent = "deadline_event"

// Notifier is the fire-and-forget sink for engine events. Emit never blocks
// on delivery and never reports failure to the caller.
type Notifier interface {
	Emit(ctx context.Context, event models.DeadlineEvent)
}

type eventQueue interface {
	TryEnqueue(job jobs.Job) error
}

type outboxWriter interface {
	Insert(ctx context.Context, record *models.OutboxRecord) error
}

// NotificationService hands events to a background queue whose workers write
// them to the outbox.
type NotificationService struct {
	queue   eventQueue
	outbox  outboxWriter
	clock   clock.Clock
	metrics *MetricsService
	logger  *zap.Logger
}

// NewNotificationService constructs the service. AttachQueue must be called
// before events are emitted; until then events are dropped and logged.
func NewNotificationService(outbox outboxWriter, clk clock.Clock, metrics *MetricsService, logger *zap.Logger) *NotificationService {
	if clk == nil {
		clk = clock.Real()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{outbox: outbox, clock: clk, metrics: metrics, logger: logger}
}

// AttachQueue sets the queue used by Emit.
func (s *NotificationService) AttachQueue(queue eventQueue) {
	s.queue = queue
}

// Emit enqueues event without waiting for room in the queue.
func (s *NotificationService) Emit(_ context.Context, event models.DeadlineEvent) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.clock.Now().UTC()
	}
	if s.queue == nil {
		s.logger.Warn("notification queue not attached, dropping event", zap.String("event_type", string(event.Type)))
		s.metrics.RecordEvent(event.Type, "dropped")
		return
	}
	if err := s.queue.TryEnqueue(jobs.Job{ID: event.ID, Type: JobTypeDeadlineEvent, Payload: event}); err != nil {
		s.logger.Warn("dropping deadline event", zap.String("event_id", event.ID), zap.String("event_type", string(event.Type)), zap.Error(err))
		s.metrics.RecordEvent(event.Type, "dropped")
		return
	}
	s.metrics.RecordEvent(event.Type, "queued")
}

// Handle is the queue handler persisting one event to the outbox.
func (s *NotificationService) Handle(ctx context.Context, job jobs.Job) error {
	event, ok := job.Payload.(models.DeadlineEvent)
	if !ok {
		s.logger.Error("unexpected notification payload", zap.String("job_id", job.ID), zap.String("job_type", job.Type))
		return nil
	}
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	record := &models.OutboxRecord{EventID: event.ID, EventType: event.Type, Payload: payload}
	if err := s.outbox.Insert(ctx, record); err != nil {
		s.metrics.RecordEvent(event.Type, "failed")
		return err
	}
	s.metrics.RecordEvent(event.Type, "stored")
	s.logger.Info("deadline event stored",
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)),
		zap.String("actor_id", event.ActorID),
	)
	return nil
}
