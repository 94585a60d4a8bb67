package ratelimit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Sorted-set sliding window. Scores are request times in milliseconds.
// Returns {allowed, count, oldest}.
var slidingWindowScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
redis.call("ZREMRANGEBYSCORE", KEYS[1], "-inf", now - window)
local count = redis.call("ZCARD", KEYS[1])
if count >= limit then
  local oldest = redis.call("ZRANGE", KEYS[1], 0, 0, "WITHSCORES")
  return {0, count, tonumber(oldest[2])}
end
redis.call("ZADD", KEYS[1], now, ARGV[4])
redis.call("PEXPIRE", KEYS[1], window)
local first = redis.call("ZRANGE", KEYS[1], 0, 0, "WITHSCORES")
return {1, count + 1, tonumber(first[2])}
`)

// RedisLimiter shares one sliding window across gateway instances. When Redis
// is unreachable it degrades to the in-process Fallback.
type RedisLimiter struct {
	Client   *redis.Client
	Limit    int
	Window   time.Duration
	Prefix   string
	Fallback Limiter

	now func() time.Time
}

// NewRedis creates a Redis-backed limiter with an in-memory fallback.
func NewRedis(client *redis.Client, limit, maxCallers int, window time.Duration) *RedisLimiter {
	if limit <= 0 {
		limit = 1
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &RedisLimiter{
		Client:   client,
		Limit:    limit,
		Window:   window,
		Prefix:   "jenos:rl:",
		Fallback: NewSlidingWindow(limit, maxCallers, window),
		now:      time.Now,
	}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) Decision {
	if l.Client == nil {
		return l.fallback(ctx, key)
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	now := l.now().UnixMilli()
	res, err := slidingWindowScript.Run(ctx, l.Client, []string{l.Prefix + key},
		now, l.Window.Milliseconds(), l.Limit, uuid.New().String()).Result()
	if err != nil {
		return l.fallback(ctx, key)
	}
	vals, ok := res.([]interface{})
	if !ok || len(vals) < 3 {
		return l.fallback(ctx, key)
	}

	allowed, _ := vals[0].(int64)
	count, _ := vals[1].(int64)
	oldest, _ := vals[2].(int64)

	remaining := l.Limit - int(count)
	if remaining < 0 || allowed == 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   allowed == 1,
		Count:     int(count),
		Limit:     l.Limit,
		Remaining: remaining,
		ResetAt:   time.UnixMilli(oldest).Add(l.Window),
	}
}

func (l *RedisLimiter) fallback(ctx context.Context, key string) Decision {
	if l.Fallback != nil {
		return l.Fallback.Allow(ctx, key)
	}
	return Decision{Allowed: true, Limit: l.Limit, Remaining: l.Limit, ResetAt: l.now().Add(l.Window)}
}
