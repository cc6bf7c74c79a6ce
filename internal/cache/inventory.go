package cache

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const (
	StatsKey         = "dreambook:stats"
	PatternsKey      = "dreambook:patterns"
	SessionBlacklist = "dreambook:session:revoked:%s"
)

// RevokedSessionKey marks a revoked session token id.
func RevokedSessionKey(jti string) string {
	return fmt.Sprintf(SessionBlacklist, jti)
}

// Invalidate deletes keys, ignoring a nil client.
func Invalidate(ctx context.Context, rdb *redis.Client, keys ...string) {
	if rdb == nil || len(keys) == 0 {
		return
	}
	rdb.Del(ctx, keys...)
}

// InvalidateAggregates drops the cached stats and patterns views.
func InvalidateAggregates(ctx context.Context, rdb *redis.Client) {
	Invalidate(ctx, rdb, StatsKey, PatternsKey)
}
