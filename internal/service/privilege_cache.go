package service

import (
	"context"
	"strconv"
	"time"

	"github.com/tgo/mindvault/internal/model"
	"github.com/tgo/mindvault/internal/pkg/redis"
)

// RedisPrivilegeCache backs PrivilegeCache with Redis. Entries carry a TTL as
// a safety net; correctness relies on explicit invalidation on grant
// mutation. Cache errors degrade to misses.
type RedisPrivilegeCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisPrivilegeCache(client *redis.Client, ttl time.Duration) *RedisPrivilegeCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RedisPrivilegeCache{client: client, ttl: ttl}
}

func (c *RedisPrivilegeCache) Get(ctx context.Context, key string) (model.Privilege, bool) {
	val, err := c.client.Get(ctx, key)
	if err != nil {
		return model.PrivilegeNone, false
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return model.PrivilegeNone, false
	}
	return model.Privilege(n), true
}

func (c *RedisPrivilegeCache) Set(ctx context.Context, key string, privilege model.Privilege) {
	_ = c.client.Set(ctx, key, strconv.Itoa(int(privilege)), c.ttl)
}

func (c *RedisPrivilegeCache) Invalidate(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}
	_ = c.client.Del(ctx, keys...)
}
