// Package lock provides the distributed guard taken around transaction
// approval, rejection and void.
package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bsm/redislock"

	apperrors "github.com/myseetara-source/erp-seetara-sub004/pkg/errors"
)

// Config tunes lock acquisition.
type Config struct {
	// TTL bounds how long a crashed holder can keep the key.
	TTL time.Duration
	// RetryInterval and RetryCount control how long Acquire waits for a busy key.
	RetryInterval time.Duration
	RetryCount    int
}

// DefaultConfig returns the lock settings used when none are configured.
func DefaultConfig() Config {
	return Config{
		TTL:           30 * time.Second,
		RetryInterval: 50 * time.Millisecond,
		RetryCount:    3,
	}
}

// RedisLocker implements service.Locker with bsm/redislock.
type RedisLocker struct {
	client *redislock.Client
	cfg    Config
	logger *slog.Logger
}

// NewRedisLocker creates a locker over a Redis client.
func NewRedisLocker(client redislock.RedisClient, cfg Config, logger *slog.Logger) *RedisLocker {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultConfig().TTL
	}
	return &RedisLocker{
		client: redislock.New(client),
		cfg:    cfg,
		logger: logger,
	}
}

// Acquire obtains key or fails with ErrConcurrentModification when another
// holder keeps it past the retry window.
func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(context.Context), error) {
	strategy := redislock.NoRetry()
	if l.cfg.RetryCount > 0 && l.cfg.RetryInterval > 0 {
		strategy = redislock.LimitRetry(redislock.LinearBackoff(l.cfg.RetryInterval), l.cfg.RetryCount)
	}

	lk, err := l.client.Obtain(ctx, key, l.cfg.TTL, &redislock.Options{RetryStrategy: strategy})
	if err != nil {
		if errors.Is(err, redislock.ErrNotObtained) {
			return nil, apperrors.ConcurrentModification(fmt.Errorf("lock %s is held elsewhere", key))
		}
		return nil, fmt.Errorf("obtain lock %s: %w", key, err)
	}

	release := func(ctx context.Context) {
		if err := lk.Release(ctx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			l.logger.WarnContext(ctx, "failed to release lock",
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
		}
	}
	return release, nil
}
