package middleware

import (
	"log/slog"
	"strconv"

	"dreambook/internal/models"
	"dreambook/internal/observability"
	"dreambook/internal/ratelimit"

	"github.com/gofiber/fiber/v2"
)

// FailPolicy defines the behavior when the rate limit store is unavailable.
type FailPolicy int

const (
	// FailOpen allows the request to proceed if the store errors.
	FailOpen FailPolicy = iota
	// FailClosed blocks the request (503 Service Unavailable) if the store errors.
	FailClosed
)

const rateLimitMessage = "Rate limit exceeded. Please slow down."

// KeyFunc returns the identifier a request is limited by. ok=false skips limiting.
type KeyFunc func(c *fiber.Ctx) (identifier string, ok bool)

// ByIP limits by client address.
func ByIP(c *fiber.Ctx) (string, bool) {
	return "ip:" + ClientIP(c), true
}

// ByActor limits by the authenticated bot or human stored in c.Locals("actor").
func ByActor(c *fiber.Ctx) (string, bool) {
	actor, ok := c.Locals("actor").(models.Actor)
	if !ok || !actor.Valid() {
		return "", false
	}
	return actor.Key(), true
}

// Allow runs one limiter check. When the request is rejected it writes the 429
// response and returns false; the handler must then return the returned error.
func Allow(c *fiber.Ctx, l ratelimit.Limiter, p ratelimit.Policy, identifier string, policy FailPolicy) (bool, error) {
	if l == nil {
		return true, nil
	}
	decision, err := l.Check(c.UserContext(), identifier, p)
	if err != nil {
		Logger.WarnContext(c.UserContext(), "rate limit check failed",
			slog.String("action", p.Action), slog.String("error", err.Error()))
		if policy == FailClosed {
			return false, c.Status(fiber.StatusServiceUnavailable).JSON(models.ErrorResponse{
				Error: "rate limit unavailable",
				Code:  models.CodeInternal,
			})
		}
		return true, nil
	}
	if decision.Allowed {
		return true, nil
	}

	observability.RateLimitRejections.WithLabelValues(p.Action).Inc()
	retry := decision.RetryAfterSeconds()
	c.Set(fiber.HeaderRetryAfter, strconv.Itoa(retry))
	return false, c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
		"error":      rateLimitMessage,
		"code":       models.CodeRateLimited,
		"retryAfter": retry,
	})
}

// RateLimit returns a Fiber middleware enforcing p with the FailOpen policy.
func RateLimit(l ratelimit.Limiter, p ratelimit.Policy, keyFn KeyFunc) fiber.Handler {
	return RateLimitWithPolicy(l, p, keyFn, FailOpen)
}

// RateLimitWithPolicy returns a Fiber middleware enforcing p with a specific failure policy.
func RateLimitWithPolicy(l ratelimit.Limiter, p ratelimit.Policy, keyFn KeyFunc, policy FailPolicy) fiber.Handler {
	return func(c *fiber.Ctx) error {
		identifier, ok := keyFn(c)
		if !ok {
			return c.Next()
		}
		allowed, err := Allow(c, l, p, identifier, policy)
		if !allowed {
			return err
		}
		return c.Next()
	}
}
