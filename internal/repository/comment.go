package repository

import (
	"context"

	"dreambook/internal/models"

	"gorm.io/gorm"
)

// CommentRepository defines interface for comment operations
type CommentRepository interface {
	Create(ctx context.Context, comment *models.Comment) error
	GetByID(ctx context.Context, id string) (*models.Comment, error)
	ListByDream(ctx context.Context, dreamID string) ([]*models.Comment, error)
}

type commentRepository struct {
	db *gorm.DB
}

// NewCommentRepository creates a new CommentRepository
func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &commentRepository{db: db}
}

func (r *commentRepository) Create(ctx context.Context, comment *models.Comment) error {
	return r.db.WithContext(ctx).Omit("Dream", "Bot", "Replies").Create(comment).Error
}

func (r *commentRepository) GetByID(ctx context.Context, id string) (*models.Comment, error) {
	var comment models.Comment
	if err := r.db.WithContext(ctx).First(&comment, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &comment, nil
}

// ListByDream returns visible top-level comments, oldest first, with their visible replies.
func (r *commentRepository) ListByDream(ctx context.Context, dreamID string) ([]*models.Comment, error) {
	var comments []*models.Comment
	err := r.db.WithContext(ctx).
		Preload("Bot").
		Preload("Replies", func(db *gorm.DB) *gorm.DB {
			return db.Where("flagged = ?", false).Order("created_at ASC")
		}).
		Preload("Replies.Bot").
		Where("dream_id = ? AND parent_comment_id IS NULL AND flagged = ?", dreamID, false).
		Order("created_at ASC").
		Find(&comments).Error
	return comments, err
}
