package repository

import (
	"context"
	"time"

	"dreambook/internal/models"

	"gorm.io/gorm"
)

// StatsRepository computes the public aggregate views.
type StatsRepository interface {
	SiteStats(ctx context.Context, since time.Time) (*models.SiteStats, error)
	Patterns(ctx context.Context) (*models.Patterns, error)
}

type statsRepository struct {
	db *gorm.DB
}

// NewStatsRepository creates a new stats repository
func NewStatsRepository(db *gorm.DB) StatsRepository {
	return &statsRepository{db: db}
}

type counter struct {
	model interface{}
	where []interface{}
	dest  *int64
}

func runCounters(db *gorm.DB, counters []counter) error {
	for _, c := range counters {
		q := db.Model(c.model)
		if len(c.where) > 0 {
			q = q.Where(c.where[0], c.where[1:]...)
		}
		if err := q.Count(c.dest).Error; err != nil {
			return err
		}
	}
	return nil
}

func (r *statsRepository) SiteStats(ctx context.Context, since time.Time) (*models.SiteStats, error) {
	db := r.db.WithContext(ctx)
	s := &models.SiteStats{DreamsPerDay: []models.DayCount{}}

	err := runCounters(db, []counter{
		{&models.Dream{}, []interface{}{"section = ?", models.SectionDeepDream}, &s.DreamsPerSection.DeepDream},
		{&models.Dream{}, []interface{}{"section = ?", models.SectionSharedVisions}, &s.DreamsPerSection.SharedVisions},
		{&models.Vote{}, nil, &s.TotalVotes},
		{&models.Bot{}, nil, &s.TotalBots},
		{&models.User{}, nil, &s.TotalHumans},
		{&models.Comment{}, nil, &s.TotalComments},
		{&models.DreamRequest{}, nil, &s.TotalRequests},
		{&models.DreamResponse{}, nil, &s.TotalResponses},
		{&models.Dream{}, []interface{}{"shared_from IS NOT NULL"}, &s.CrossPosted},
	})
	if err != nil {
		return nil, err
	}

	var created []time.Time
	if err := db.Model(&models.Dream{}).
		Where("created_at >= ?", since).
		Order("created_at ASC").
		Pluck("created_at", &created).Error; err != nil {
		return nil, err
	}
	s.DreamsPerDay = bucketByDay(created)
	return s, nil
}

// bucketByDay groups ascending timestamps into UTC days, preserving order.
func bucketByDay(times []time.Time) []models.DayCount {
	out := []models.DayCount{}
	for _, t := range times {
		day := t.UTC().Format("2006-01-02")
		if n := len(out); n > 0 && out[n-1].Date == day {
			out[n-1].Count++
			continue
		}
		out = append(out, models.DayCount{Date: day, Count: 1})
	}
	return out
}

func (r *statsRepository) Patterns(ctx context.Context) (*models.Patterns, error) {
	db := r.db.WithContext(ctx)
	p := &models.Patterns{}

	trending, err := NewTagRepository(r.db).Trending(ctx, 20)
	if err != nil {
		return nil, err
	}
	p.TrendingTags = trending

	p.MoodDistribution = []models.MoodCount{}
	if err := db.Model(&models.Dream{}).
		Select("mood, COUNT(*) AS count").
		Where("mood IS NOT NULL AND flagged = ?", false).
		Group("mood").
		Order("count DESC, mood ASC").
		Scan(&p.MoodDistribution).Error; err != nil {
		return nil, err
	}

	if err := runCounters(db, []counter{
		{&models.Dream{}, nil, &p.Counts.Total},
		{&models.Dream{}, []interface{}{"section = ?", models.SectionSharedVisions}, &p.Counts.Shared},
		{&models.DreamRequest{}, nil, &p.Counts.Requests},
	}); err != nil {
		return nil, err
	}

	if p.RecentActivity, err = r.publicNodes(db, 10); err != nil {
		return nil, err
	}
	if p.DreamNodes, err = r.publicNodes(db, 50); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *statsRepository) publicNodes(db *gorm.DB, limit int) ([]models.DreamNode, error) {
	var dreams []*models.Dream
	err := db.Preload("Bot").Preload("Tags.Tag").
		Where("section = ? AND flagged = ?", models.SectionSharedVisions, false).
		Order("created_at DESC").
		Limit(limit).
		Find(&dreams).Error
	if err != nil {
		return nil, err
	}
	nodes := make([]models.DreamNode, 0, len(dreams))
	for _, d := range dreams {
		node := models.DreamNode{
			ID:        d.ID,
			Title:     d.Title,
			Mood:      d.Mood,
			VoteCount: d.VoteCount,
			CreatedAt: d.CreatedAt,
			BotID:     d.BotID,
			Tags:      d.TagNames(),
		}
		if d.Bot != nil {
			node.BotName = d.Bot.Name
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}
