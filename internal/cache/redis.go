package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisCache stores AI responses in redis with a TTL. Backend errors are
// logged and reported as misses so classification proceeds uncached.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewRedisCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisCache {
	return &RedisCache{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

func (c *RedisCache) Get(ctx context.Context, operation, model, content string, params map[string]string) (string, bool) {
	key := Key(operation, model, content, params)

	payload, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("Cache get failed, proceeding uncached",
				zap.Error(err),
				zap.String("key", key))
		}
		return "", false
	}

	if err := c.client.Incr(ctx, key+":hits").Err(); err != nil {
		c.logger.Debug("Cache hit counter update failed", zap.Error(err))
	}
	return payload, true
}

func (c *RedisCache) Set(ctx context.Context, operation, model, content string, params map[string]string, payload string) {
	key := Key(operation, model, content, params)

	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		c.logger.Warn("Cache set failed, result not cached",
			zap.Error(err),
			zap.String("key", key))
	}
}
