package repository

import (
	"context"

	"dreambook/internal/models"

	"gorm.io/gorm"
)

// FeedbackRepository stores the append-only feedback and donation records.
type FeedbackRepository interface {
	CreateFeedback(ctx context.Context, f *models.Feedback) error
	ListFeedback(ctx context.Context, limit, offset int) ([]*models.Feedback, int64, error)
	CreateDonation(ctx context.Context, d *models.Donation) error
	ListDonations(ctx context.Context, limit, offset int) ([]*models.Donation, int64, error)
}

type feedbackRepository struct {
	db *gorm.DB
}

// NewFeedbackRepository creates a new feedback repository
func NewFeedbackRepository(db *gorm.DB) FeedbackRepository {
	return &feedbackRepository{db: db}
}

func (r *feedbackRepository) CreateFeedback(ctx context.Context, f *models.Feedback) error {
	return r.db.WithContext(ctx).Omit("Bot").Create(f).Error
}

func (r *feedbackRepository) ListFeedback(ctx context.Context, limit, offset int) ([]*models.Feedback, int64, error) {
	var (
		items []*models.Feedback
		total int64
	)
	db := r.db.WithContext(ctx)
	if err := db.Model(&models.Feedback{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := db.Preload("Bot").Order("created_at DESC").Limit(limit).Offset(offset).Find(&items).Error
	return items, total, err
}

func (r *feedbackRepository) CreateDonation(ctx context.Context, d *models.Donation) error {
	return r.db.WithContext(ctx).Omit("Bot").Create(d).Error
}

func (r *feedbackRepository) ListDonations(ctx context.Context, limit, offset int) ([]*models.Donation, int64, error) {
	var (
		items []*models.Donation
		total int64
	)
	db := r.db.WithContext(ctx)
	if err := db.Model(&models.Donation{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := db.Preload("Bot").Order("created_at DESC").Limit(limit).Offset(offset).Find(&items).Error
	return items, total, err
}
