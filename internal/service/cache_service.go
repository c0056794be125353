package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/deadline-engine/internal/models"
	appErrors "github.com/noah-isme/deadline-engine/pkg/errors"
)

// CacheRepository abstracts persistence for cached payloads.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// StatusCache caches per-project deadline statuses for dashboards. Entries
// are short-lived because days_remaining drifts with the clock; transitions
// invalidate the project's entry explicitly.
type StatusCache struct {
	repo    CacheRepository
	metrics *MetricsService
	ttl     time.Duration
	logger  *zap.Logger
	enabled bool
}

// NewStatusCache constructs the cache.
func NewStatusCache(repo CacheRepository, metrics *MetricsService, ttl time.Duration, logger *zap.Logger, enabled bool) *StatusCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatusCache{repo: repo, metrics: metrics, ttl: ttl, logger: logger, enabled: enabled}
}

// Enabled indicates whether caching is active.
func (s *StatusCache) Enabled() bool {
	return s != nil && s.enabled && s.repo != nil
}

func statusCacheKey(projectID int64) string {
	return fmt.Sprintf("deadline:status:project:%d", projectID)
}

// Get returns the cached statuses and whether the lookup hit.
func (s *StatusCache) Get(ctx context.Context, projectID int64) ([]models.DeadlineStatus, bool) {
	if !s.Enabled() {
		return nil, false
	}
	start := time.Now()
	var statuses []models.DeadlineStatus
	err := s.repo.Get(ctx, statusCacheKey(projectID), &statuses)
	s.metrics.RecordCacheOperation(err == nil, time.Since(start))
	if err != nil {
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("status cache get failed", zap.Int64("project_id", projectID), zap.Error(err))
		}
		return nil, false
	}
	return statuses, true
}

// Put stores statuses for projectID.
func (s *StatusCache) Put(ctx context.Context, projectID int64, statuses []models.DeadlineStatus) {
	if !s.Enabled() {
		return
	}
	if err := s.repo.Set(ctx, statusCacheKey(projectID), statuses, s.ttl); err != nil {
		s.logger.Warn("status cache set failed", zap.Int64("project_id", projectID), zap.Error(err))
	}
}

// InvalidateProject drops the cached statuses of projectID.
func (s *StatusCache) InvalidateProject(ctx context.Context, projectID int64) {
	if !s.Enabled() {
		return
	}
	if err := s.repo.Delete(ctx, statusCacheKey(projectID)); err != nil {
		s.logger.Warn("status cache invalidate failed", zap.Int64("project_id", projectID), zap.Error(err))
	}
}
