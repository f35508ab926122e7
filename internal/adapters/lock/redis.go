// Package lock keeps two runs of the same batch job from overlapping, across
// processes through Redis or within one process in memory.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/kevin07696/royalty-service/internal/domain"
	"github.com/kevin07696/royalty-service/internal/domain/ports"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisConfig configures the Redis connection used for job locks
type RedisConfig struct {
	Address  string
	Password string
	DB       int
	PoolSize int
}

// Connect opens a Redis client and verifies it with a ping
func Connect(ctx context.Context, cfg RedisConfig, logger *zap.Logger) (*redis.Client, error) {
	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 10
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: poolSize,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis at %s: %w", cfg.Address, err)
	}
	logger.Info("Redis connected for job locks", zap.String("address", cfg.Address), zap.Int("db", cfg.DB))
	return client, nil
}

// RedisLocker implements ports.JobLocker with bsm/redislock
type RedisLocker struct {
	client *redislock.Client
	logger *zap.Logger
}

// NewRedisLocker creates a locker on an open Redis client
func NewRedisLocker(client redislock.RedisClient, logger *zap.Logger) *RedisLocker {
	return &RedisLocker{
		client: redislock.New(client),
		logger: logger.Named("job_lock"),
	}
}

// Obtain takes key for ttl without waiting. A key held elsewhere yields
// domain.ErrJobLocked.
func (l *RedisLocker) Obtain(ctx context.Context, key string, ttl time.Duration) (ports.JobLock, error) {
	lock, err := l.client.Obtain(ctx, key, ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, domain.ErrJobLocked.WithDetail("lock", key)
	}
	if err != nil {
		return nil, fmt.Errorf("obtain lock %s: %w", key, err)
	}
	l.logger.Debug("job lock obtained", zap.String("lock", key), zap.Duration("ttl", ttl))
	return &redisLock{lock: lock, key: key, logger: l.logger}, nil
}

type redisLock struct {
	lock   *redislock.Lock
	logger *zap.Logger
	key    string
}

// Release frees the key. A lock that already expired is logged, not returned:
// the job finished, only the overlap guard lapsed.
func (l *redisLock) Release(ctx context.Context) error {
	err := l.lock.Release(ctx)
	if errors.Is(err, redislock.ErrLockNotHeld) {
		l.logger.Warn("job lock expired before release", zap.String("lock", l.key))
		return nil
	}
	if err != nil {
		return fmt.Errorf("release lock %s: %w", l.key, err)
	}
	return nil
}
