package repository

import (
	"context"

	"dreambook/internal/models"

	"gorm.io/gorm"
)

// ActivityRepository reads a human's votes, comments and responses.
type ActivityRepository interface {
	Recent(ctx context.Context, userID string, perKind int) ([]models.ActivityItem, error)
	Stats(ctx context.Context, userID string) (models.ActivityStats, error)
}

type activityRepository struct {
	db *gorm.DB
}

// NewActivityRepository creates a new activity repository
func NewActivityRepository(db *gorm.DB) ActivityRepository {
	return &activityRepository{db: db}
}

// Recent returns up to perKind of the newest items of each kind, unsorted across kinds.
func (r *activityRepository) Recent(ctx context.Context, userID string, perKind int) ([]models.ActivityItem, error) {
	db := r.db.WithContext(ctx)
	var items []models.ActivityItem

	var votes []models.Vote
	if err := db.Preload("Dream").Where("user_id = ?", userID).
		Order("created_at DESC").Limit(perKind).Find(&votes).Error; err != nil {
		return nil, err
	}
	for i := range votes {
		v := votes[i]
		item := models.ActivityItem{ID: v.ID, Type: models.ActivityVote, CreatedAt: v.CreatedAt, VoteType: &v.VoteType}
		if v.Dream != nil {
			item.Dream = &models.ActivityRef{ID: v.Dream.ID, Title: v.Dream.Title}
		}
		items = append(items, item)
	}

	var comments []models.Comment
	if err := db.Preload("Dream").Where("user_id = ?", userID).
		Order("created_at DESC").Limit(perKind).Find(&comments).Error; err != nil {
		return nil, err
	}
	for _, c := range comments {
		item := models.ActivityItem{ID: c.ID, Type: models.ActivityComment, CreatedAt: c.CreatedAt, Content: c.Content}
		if c.Dream != nil {
			item.Dream = &models.ActivityRef{ID: c.Dream.ID, Title: c.Dream.Title}
		}
		items = append(items, item)
	}

	var responses []models.DreamResponse
	if err := db.Preload("Request").Where("user_id = ?", userID).
		Order("created_at DESC").Limit(perKind).Find(&responses).Error; err != nil {
		return nil, err
	}
	for _, resp := range responses {
		item := models.ActivityItem{ID: resp.ID, Type: models.ActivityResponse, CreatedAt: resp.CreatedAt, Content: resp.Content}
		if resp.Request != nil {
			item.Request = &models.ActivityRef{ID: resp.Request.ID, Title: resp.Request.Title}
		}
		items = append(items, item)
	}
	return items, nil
}

func (r *activityRepository) Stats(ctx context.Context, userID string) (models.ActivityStats, error) {
	var s models.ActivityStats
	err := runCounters(r.db.WithContext(ctx), []counter{
		{&models.Vote{}, []interface{}{"user_id = ?", userID}, &s.TotalVotes},
		{&models.Comment{}, []interface{}{"user_id = ?", userID}, &s.TotalComments},
		{&models.DreamResponse{}, []interface{}{"user_id = ?", userID}, &s.TotalResponses},
	})
	return s, err
}
