// Package cache provides the Redis read-through cache for stock levels and
// vendor balances.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/myseetara-source/erp-seetara-sub004/internal/domain"
)

const (
	stockLevelPrefix    = "inventory:stock_level:"
	vendorBalancePrefix = "inventory:vendor_balance:"
)

// RedisCache implements service.ReadCache on Redis. Backend failures are
// logged and reported as misses.
type RedisCache struct {
	client redis.Cmdable
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisCache creates a new Redis-backed read cache.
func NewRedisCache(client redis.Cmdable, ttl time.Duration, logger *slog.Logger) *RedisCache {
	return &RedisCache{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

// GetStockLevel returns the cached level of a unit.
func (c *RedisCache) GetStockLevel(ctx context.Context, unitID string) (*domain.StockLevel, bool) {
	var level domain.StockLevel
	if !c.get(ctx, stockLevelPrefix+unitID, &level) {
		return nil, false
	}
	return &level, true
}

// SetStockLevel caches level for the configured TTL.
func (c *RedisCache) SetStockLevel(ctx context.Context, level *domain.StockLevel) {
	c.set(ctx, stockLevelPrefix+level.UnitID, level)
}

// GetVendorBalance returns the cached balance of a vendor.
func (c *RedisCache) GetVendorBalance(ctx context.Context, vendorID string) (*domain.VendorBalance, bool) {
	var balance domain.VendorBalance
	if !c.get(ctx, vendorBalancePrefix+vendorID, &balance) {
		return nil, false
	}
	return &balance, true
}

// SetVendorBalance caches balance for the configured TTL.
func (c *RedisCache) SetVendorBalance(ctx context.Context, balance *domain.VendorBalance) {
	c.set(ctx, vendorBalancePrefix+balance.VendorID, balance)
}

// InvalidateUnits drops the cached levels of the given units.
func (c *RedisCache) InvalidateUnits(ctx context.Context, unitIDs ...string) {
	if len(unitIDs) == 0 {
		return
	}
	keys := make([]string, len(unitIDs))
	for i, id := range unitIDs {
		keys[i] = stockLevelPrefix + id
	}
	c.del(ctx, keys...)
}

// InvalidateVendor drops the cached balance of a vendor.
func (c *RedisCache) InvalidateVendor(ctx context.Context, vendorID string) {
	c.del(ctx, vendorBalancePrefix+vendorID)
}

// Ping checks Redis connectivity.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) get(ctx context.Context, key string, target any) bool {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.WarnContext(ctx, "redis cache get failed",
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
		}
		return false
	}

	if err := json.Unmarshal(data, target); err != nil {
		c.logger.WarnContext(ctx, "discarding unreadable cache entry",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		c.del(ctx, key)
		return false
	}
	return true
}

func (c *RedisCache) set(ctx context.Context, key string, value any) {
	data, err := json.Marshal(value)
	if err != nil {
		c.logger.WarnContext(ctx, "marshal cache entry", slog.String("key", key), slog.String("error", err.Error()))
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "redis cache set failed",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}
}

func (c *RedisCache) del(ctx context.Context, keys ...string) {
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.logger.WarnContext(ctx, "redis cache invalidation failed",
			slog.Any("keys", keys),
			slog.String("error", err.Error()),
		)
	}
}
