package lock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/myseetara-source/erp-seetara-sub004/pkg/errors"
	"github.com/myseetara-source/erp-seetara-sub004/pkg/logger"
)

func setupTestLocker(t *testing.T, cfg Config) (*RedisLocker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisLocker(client, cfg, logger.NewDiscard()), mr
}

func TestRedisLocker_AcquireRelease(t *testing.T) {
	l, mr := setupTestLocker(t, DefaultConfig())
	ctx := context.Background()

	release, err := l.Acquire(ctx, "inventory_tx:tx-1")
	require.NoError(t, err)
	assert.True(t, mr.Exists("inventory_tx:tx-1"))

	release(ctx)
	assert.False(t, mr.Exists("inventory_tx:tx-1"))

	release, err = l.Acquire(ctx, "inventory_tx:tx-1")
	require.NoError(t, err)
	release(ctx)
}

func TestRedisLocker_HeldElsewhere(t *testing.T) {
	l, _ := setupTestLocker(t, Config{TTL: time.Minute, RetryInterval: time.Millisecond, RetryCount: 2})
	ctx := context.Background()

	release, err := l.Acquire(ctx, "inventory_tx:tx-1")
	require.NoError(t, err)
	defer release(ctx)

	_, err = l.Acquire(ctx, "inventory_tx:tx-1")
	assert.ErrorIs(t, err, apperrors.ErrConcurrentModification)
	assert.True(t, apperrors.IsRetryable(err))

	other, err := l.Acquire(ctx, "inventory_tx:tx-2")
	require.NoError(t, err, "keys are independent")
	other(ctx)
}

func TestRedisLocker_ExpiredHolder(t *testing.T) {
	l, mr := setupTestLocker(t, Config{TTL: time.Second})
	ctx := context.Background()

	stale, err := l.Acquire(ctx, "inventory_tx:tx-1")
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)

	release, err := l.Acquire(ctx, "inventory_tx:tx-1")
	require.NoError(t, err)

	stale(ctx)
	assert.True(t, mr.Exists("inventory_tx:tx-1"), "stale release leaves the new holder in place")
	release(ctx)
}

func TestRedisLocker_BackendDown(t *testing.T) {
	l, mr := setupTestLocker(t, DefaultConfig())
	mr.Close()

	_, err := l.Acquire(context.Background(), "inventory_tx:tx-1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, apperrors.ErrConcurrentModification)
}
