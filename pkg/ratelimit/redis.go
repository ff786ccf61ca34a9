package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "gw:rl:"

// fixedWindow bumps the caller's counter and reports its remaining
// lifetime in a single round trip.
var fixedWindow = redis.NewScript(`
local hits = redis.call("INCR", KEYS[1])
if hits == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return {hits, redis.call("PTTL", KEYS[1])}
`)

// RedisLimiter shares one window across gateway replicas. Any redis
// failure degrades to the per-process fallback instead of rejecting
// traffic.
type RedisLimiter struct {
	Client   *redis.Client
	Window   time.Duration
	Prefix   string
	Fallback *InMemoryLimiter
}

func NewRedis(client *redis.Client, window time.Duration) *RedisLimiter {
	if window <= 0 {
		window = time.Minute
	}
	return &RedisLimiter{
		Client:   client,
		Window:   window,
		Prefix:   redisKeyPrefix,
		Fallback: NewInMemory(window),
	}
}

func (l *RedisLimiter) Allow(key string, limit int) Decision {
	if l.Client == nil {
		return l.degrade(key, limit)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	res, err := fixedWindow.Run(ctx, l.Client, []string{l.Prefix + key}, l.Window.Milliseconds()).Int64Slice()
	if err != nil || len(res) < 2 {
		return l.degrade(key, limit)
	}
	hits := int(res[0])
	ttl := time.Duration(res[1]) * time.Millisecond
	if ttl < 0 {
		ttl = l.Window
	}
	return verdict(hits, limit, time.Now().UTC().Add(ttl))
}

func (l *RedisLimiter) degrade(key string, limit int) Decision {
	if l.Fallback != nil {
		return l.Fallback.Allow(key, limit)
	}
	return verdict(0, limit, time.Now().UTC().Add(l.Window))
}
