package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisKeyPrefix is the key prefix for rate-limit counters.
const RedisKeyPrefix = "ratelimit:"

// Redis is a fixed-window limiter backed by Redis counters with TTLs,
// for deployments with more than one replica. If Redis is unreachable
// the request is admitted (fail open): losing rate limiting briefly is
// better than taking the public API down with it.
type Redis struct {
	client *redis.Client
	rules  map[Class]Rule
}

func NewRedis(client *redis.Client, rules map[Class]Rule) *Redis {
	return &Redis{client: client, rules: rules}
}

func (r *Redis) rule(class Class) Rule {
	if rl, ok := r.rules[class]; ok {
		return rl
	}
	return defaultRule
}

// Admit implements Limiter. The counter key's TTL is the window; the
// first increment in a window sets it.
func (r *Redis) Admit(ctx context.Context, key string, class Class, _ time.Time) error {
	rule := r.rule(class)
	counterKey := RedisKeyPrefix + string(class) + ":" + key

	count, err := r.client.Incr(ctx, counterKey).Result()
	if err != nil {
		return nil
	}
	if count == 1 {
		r.client.Expire(ctx, counterKey, rule.Window)
	}

	if count > int64(rule.Limit) {
		retryAfter := rule.Window
		if ttl, err := r.client.TTL(ctx, counterKey).Result(); err == nil && ttl > 0 {
			retryAfter = ttl
		}
		return denied(retryAfter)
	}

	return nil
}
