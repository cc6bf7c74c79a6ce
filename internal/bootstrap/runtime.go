// Package bootstrap wires the process-wide runtime: store, Redis, limiter and mailer.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"dreambook/internal/cache"
	"dreambook/internal/config"
	"dreambook/internal/database"
	"dreambook/internal/mail"
	"dreambook/internal/middleware"
	"dreambook/internal/ratelimit"
	"dreambook/internal/seed"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	// SeedDemo creates the demo bots when they are missing.
	SeedDemo bool
}

// Runtime holds the shared dependencies the HTTP server and CLI run on.
type Runtime struct {
	Config  *config.Config
	DB      *gorm.DB
	Redis   *redis.Client
	Limiter ratelimit.Limiter
	Mailer  mail.Mailer
}

// InitRuntime connects the store (applying the schema), connects Redis when
// reachable, selects the rate limiter store and optionally seeds demo data.
func InitRuntime(ctx context.Context, cfg *config.Config, opts Options) (*Runtime, error) {
	db, err := database.NewLazy(cfg).Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	// May be nil when Redis is unreachable; everything degrades to in-process.
	rdb := cache.InitRedis(cfg.RedisURL)

	limiter, err := NewLimiter(cfg, rdb)
	if err != nil {
		return nil, err
	}

	rt := &Runtime{
		Config:  cfg,
		DB:      db,
		Redis:   rdb,
		Limiter: limiter,
		Mailer:  mail.New(cfg.ResendAPIKey),
	}

	if opts.SeedDemo {
		res, err := seed.Seed(ctx, db, seed.DefaultOptions())
		switch {
		case errors.Is(err, seed.ErrAlreadySeeded):
			middleware.Logger.InfoContext(ctx, "demo data already present")
		case err != nil:
			_ = rt.Close()
			return nil, fmt.Errorf("seed demo data: %w", err)
		default:
			middleware.Logger.InfoContext(ctx, "demo data seeded", slog.Int("bots", res.Bots), slog.Int("dreams", res.Dreams))
		}
	}

	return rt, nil
}

// NewLimiter returns the limiter selected by RATE_LIMIT_STORE. The redis store
// falls back to memory when no Redis client is available.
func NewLimiter(cfg *config.Config, rdb *redis.Client) (ratelimit.Limiter, error) {
	switch cfg.RateLimitStore {
	case "", "memory":
		return ratelimit.NewMemoryLimiter(), nil
	case "redis":
		if rdb == nil {
			middleware.Logger.Warn("RATE_LIMIT_STORE=redis but Redis is unavailable; using in-memory limiter")
			return ratelimit.NewMemoryLimiter(), nil
		}
		return ratelimit.NewRedisLimiter(rdb), nil
	default:
		return nil, fmt.Errorf("unsupported RATE_LIMIT_STORE %q", cfg.RateLimitStore)
	}
}

// Close releases the limiter, Redis and the store pool.
func (r *Runtime) Close() error {
	var errs []error
	if r.Limiter != nil {
		errs = append(errs, r.Limiter.Close())
	}
	if r.Redis != nil {
		errs = append(errs, r.Redis.Close())
	}
	if r.DB != nil {
		if sqlDB, err := r.DB.DB(); err == nil {
			errs = append(errs, sqlDB.Close())
		}
	}
	return errors.Join(errs...)
}
