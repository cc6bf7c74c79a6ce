package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// checkScript mirrors MemoryLimiter: a full window rejects without counting,
// otherwise the attempt is counted and the first one starts the window.
var checkScript = redis.NewScript(`
local current = redis.call('GET', KEYS[1])
if current and tonumber(current) >= tonumber(ARGV[1]) then
	return {0, redis.call('PTTL', KEYS[1])}
end
local count = redis.call('INCR', KEYS[1])
if count == 1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return {1, redis.call('PTTL', KEYS[1])}
`)

// RedisLimiter shares windows between processes through Redis.
type RedisLimiter struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisLimiter returns a limiter storing windows under "rl:" keys.
func NewRedisLimiter(rdb *redis.Client) *RedisLimiter {
	return &RedisLimiter{rdb: rdb, prefix: "rl:"}
}

// Check records an attempt in Redis.
func (l *RedisLimiter) Check(ctx context.Context, identifier string, p Policy) (Decision, error) {
	if l.rdb == nil {
		return Decision{}, errors.New("redis client is nil")
	}
	res, err := checkScript.Run(ctx, l.rdb,
		[]string{l.prefix + key(identifier, p)},
		p.MaxRequests, p.Window.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit script: %w", err)
	}
	if len(res) != 2 {
		return Decision{}, fmt.Errorf("rate limit script: unexpected reply %v", res)
	}
	if res[0] == 1 {
		return Decision{Allowed: true}, nil
	}
	ttl := time.Duration(res[1]) * time.Millisecond
	if ttl <= 0 {
		ttl = p.Window
	}
	return Decision{Allowed: false, RetryAfter: ttl}, nil
}

// Close is a no-op; the Redis client is owned by the caller.
func (l *RedisLimiter) Close() error { return nil }
