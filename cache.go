package users

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/redis/go-redis/v9"
)

// redisCommands is the slice of the go-redis client the collaborators use.
// *redis.Client satisfies it; tests substitute a stub.
type redisCommands interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	LPush(ctx context.Context, key string, values ...any) *redis.IntCmd
}

// RedisCache adapts a redis client to the Cache collaborator. The client is
// constructed at process startup and injected; there is no lazy global.
type RedisCache struct {
	client redisCommands
}

var _ Cache = (*RedisCache)(nil)

// NewRedisCache wraps an injected redis client.
func NewRedisCache(client redisCommands) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, error) {
	val, err := c.client.Get(ctx, key).Result()
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryOperation, "cache get failed")
	}
	return val, nil
}

func (c *RedisCache) Set(ctx context.Context, key, value string) error {
	if err := c.client.Set(ctx, key, value, 0).Err(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "cache set failed")
	}
	return nil
}
