package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// consumeScript increments the window counter and starts the window on the
// first hit. Running it as one script keeps the increment and the expiry
// atomic across replicas.
var consumeScript = redis.NewScript(`
local count = redis.call('INCRBY', KEYS[1], ARGV[1])
local ttl = redis.call('PTTL', KEYS[1])
if ttl < 0 then
  redis.call('PEXPIRE', KEYS[1], ARGV[2])
  ttl = tonumber(ARGV[2])
end
return {count, ttl}
`)

// RedisLimiter is a fixed-window limiter shared by every instance using the
// same Redis.
type RedisLimiter struct {
	redis  redis.Cmdable
	prefix string
	now    func() time.Time
}

// NewRedisLimiter creates a Redis-backed limiter.
func NewRedisLimiter(client redis.Cmdable, prefix string) *RedisLimiter {
	if prefix == "" {
		prefix = "ratelimit"
	}
	return &RedisLimiter{redis: client, prefix: prefix, now: time.Now}
}

func (l *RedisLimiter) redisKey(key string) string {
	return fmt.Sprintf("%s:%s", l.prefix, key)
}

// Consume implements Limiter.
func (l *RedisLimiter) Consume(ctx context.Context, key string, cost int, limit Limit) (Result, error) {
	if err := limit.Validate(); err != nil {
		return Result{}, err
	}

	raw, err := consumeScript.Run(ctx, l.redis,
		[]string{l.redisKey(key)},
		normalizeCost(cost), limit.Window.Milliseconds(),
	).Result()
	if err != nil {
		return Result{}, fmt.Errorf("redis rate limit: %w", err)
	}

	vals, ok := raw.([]interface{})
	if !ok || len(vals) != 2 {
		return Result{}, fmt.Errorf("redis rate limit: unexpected reply %T", raw)
	}
	count, ok1 := vals[0].(int64)
	ttlMs, ok2 := vals[1].(int64)
	if !ok1 || !ok2 {
		return Result{}, fmt.Errorf("redis rate limit: unexpected reply %v", vals)
	}

	resetAt := l.now().Add(time.Duration(ttlMs) * time.Millisecond)
	return newResult(int(count), limit, resetAt), nil
}

// Reset clears the counter for key.
func (l *RedisLimiter) Reset(ctx context.Context, key string) error {
	return l.redis.Del(ctx, l.redisKey(key)).Err()
}
