// Package ratelimit implements fixed-window request limits keyed by identifier and action.
package ratelimit

import (
	"context"
	"math"
	"time"
)

// Policy is the limit applied to one action.
type Policy struct {
	Action      string
	MaxRequests int
	Window      time.Duration
}

// Decision is the outcome of a Check.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
}

// RetryAfterSeconds is the whole number of seconds a rejected caller should wait.
func (d Decision) RetryAfterSeconds() int {
	if d.Allowed {
		return 0
	}
	return retrySeconds(d.RetryAfter)
}

// Limiter checks and records one attempt of an action by an identifier.
type Limiter interface {
	Check(ctx context.Context, identifier string, p Policy) (Decision, error)
	Close() error
}

func key(identifier string, p Policy) string {
	return identifier + ":" + p.Action
}

func retrySeconds(d time.Duration) int {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}
