package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/deadline-engine/pkg/config"
)

// NewRedis returns a configured Redis client.
func NewRedis(cfg config.RedisConfig) (*redis.Client, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return client, nil
}

// NewOptionalRedis connects when enabled and degrades to a nil client when
// Redis is unreachable. Deadline statuses are always recomputable from the
// store, so the cache is never required for correctness.
func NewOptionalRedis(enabled bool, cfg config.RedisConfig, logger *zap.Logger) *redis.Client {
	if !enabled {
		return nil
	}
	client, err := NewRedis(cfg)
	if err != nil {
		if logger != nil {
			logger.Warn("redis unavailable, status cache disabled", zap.Error(err))
		}
		return nil
	}
	return client
}
