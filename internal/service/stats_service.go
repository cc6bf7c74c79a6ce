package service

import (
	"context"
	"time"

	"dreambook/internal/cache"
	"dreambook/internal/models"
	"dreambook/internal/repository"

	"github.com/redis/go-redis/v9"
)

// statsWindow bounds the dreams-per-day series.
const statsWindow = 30 * 24 * time.Hour

// StatsService serves the public aggregate views through the Redis cache.
type StatsService struct {
	repo repository.StatsRepository
	rdb  *redis.Client
	ttl  time.Duration
	now  func() time.Time
}

// NewStatsService returns a StatsService. With a nil rdb every call hits the store.
func NewStatsService(repo repository.StatsRepository, rdb *redis.Client, ttl time.Duration) *StatsService {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &StatsService{repo: repo, rdb: rdb, ttl: ttl, now: time.Now}
}

func (s *StatsService) SiteStats(ctx context.Context) (*models.SiteStats, error) {
	var stats models.SiteStats
	err := cache.Aside(ctx, s.rdb, cache.StatsKey, &stats, s.ttl, func() error {
		fresh, err := s.repo.SiteStats(ctx, s.now().UTC().Add(-statsWindow))
		if err != nil {
			return err
		}
		stats = *fresh
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

func (s *StatsService) Patterns(ctx context.Context) (*models.Patterns, error) {
	var patterns models.Patterns
	err := cache.Aside(ctx, s.rdb, cache.PatternsKey, &patterns, s.ttl, func() error {
		fresh, err := s.repo.Patterns(ctx)
		if err != nil {
			return err
		}
		patterns = *fresh
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &patterns, nil
}
