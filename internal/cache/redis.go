package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/fightr/fightr-core/internal/config"
	"github.com/redis/go-redis/v9"
)

type RedisCache struct {
	Client *redis.Client
}

// NewRedisCache initializes Redis client from config.
// Only Addr is mandatory, Password/DB are optional.
func NewRedisCache(cfg *config.Config) *RedisCache {
	opts := &redis.Options{
		Addr: cfg.Redis.Addr,
	}
	if cfg.Redis.Password != "" {
		opts.Password = cfg.Redis.Password
	}
	if cfg.Redis.DB != 0 {
		opts.DB = cfg.Redis.DB
	}
	return &RedisCache{Client: redis.NewClient(opts)}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.Client.Ping(ctx).Err()
}

func (c *RedisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return c.Client.Set(ctx, key, value, ttl).Err()
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, error) {
	return c.Client.Get(ctx, key).Result()
}

func (c *RedisCache) Del(ctx context.Context, key string) error {
	return c.Client.Del(ctx, key).Err()
}

func (c *RedisCache) Incr(ctx context.Context, key string) (int64, error) {
	return c.Client.Incr(ctx, key).Result()
}

// KeyForLikeCount generates the Redis key for a user's received-like count.
func (c *RedisCache) KeyForLikeCount(userID string) string {
	return fmt.Sprintf("likes:count:%s", userID)
}

// KeyForUnreadCount generates the Redis key for unread messages user has
// pending from other.
func (c *RedisCache) KeyForUnreadCount(userID, otherID string) string {
	return fmt.Sprintf("unread:count:%s:%s", userID, otherID)
}

// GetCount reads a counter key, treating a miss as zero and refreshing the
// TTL on access.
func (c *RedisCache) GetCount(ctx context.Context, key string) (int64, bool, error) {
	val, err := c.Client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil // cache miss
	} else if err != nil {
		return 0, false, err
	}
	_ = c.Client.Expire(ctx, key, time.Hour).Err()
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false, nil // unparsable value counts as a miss
	}
	return n, true, nil
}

// SetCount writes a counter with the standard 1h TTL.
func (c *RedisCache) SetCount(ctx context.Context, key string, count int64) error {
	return c.Client.Set(ctx, key, count, time.Hour).Err()
}

// BumpCount increments a counter and refreshes its TTL. Failures are the
// caller's to ignore, the DB remains the source of truth.
func (c *RedisCache) BumpCount(ctx context.Context, key string) error {
	if _, err := c.Client.Incr(ctx, key).Result(); err != nil {
		return err
	}
	return c.Client.Expire(ctx, key, time.Hour).Err()
}
