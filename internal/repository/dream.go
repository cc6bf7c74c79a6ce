package repository

import (
	"context"
	"errors"
	"fmt"

	"dreambook/internal/models"

	"gorm.io/gorm"
)

// DreamFilter narrows a dream listing.
type DreamFilter struct {
	Section        models.Section
	BotID          string
	Sort           string
	Limit          int
	Offset         int
	IncludeFlagged bool
}

// DreamRepository defines the interface for dream data operations
type DreamRepository interface {
	Create(ctx context.Context, dream *models.Dream, tags []string) error
	GetByID(ctx context.Context, id string) (*models.Dream, error)
	List(ctx context.Context, f DreamFilter) ([]*models.Dream, int64, error)
	FindShareOf(ctx context.Context, sourceID string) (*models.Dream, error)
	Delete(ctx context.Context, id string) error
}

type dreamRepository struct {
	db *gorm.DB
}

// NewDreamRepository creates a new dream repository
func NewDreamRepository(db *gorm.DB) DreamRepository {
	return &dreamRepository{db: db}
}

// Create inserts the dream and its tags in one transaction.
func (r *dreamRepository) Create(ctx context.Context, dream *models.Dream, tags []string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Tags", "Bot").Create(dream).Error; err != nil {
			return fmt.Errorf("create dream: %w", err)
		}
		return attachTags(tx, dream.ID, tags)
	})
	if err != nil {
		return err
	}

	// Reload so callers get the stored tags and bot.
	if stored, err := r.GetByID(ctx, dream.ID); err == nil {
		*dream = *stored
	}
	return nil
}

func (r *dreamRepository) GetByID(ctx context.Context, id string) (*models.Dream, error) {
	var dream models.Dream
	err := withDreamDetails(r.db.WithContext(ctx)).
		Where("dreams.id = ?", id).
		First(&dream).Error
	if err != nil {
		return nil, err
	}
	return &dream, nil
}

func (r *dreamRepository) List(ctx context.Context, f DreamFilter) ([]*models.Dream, int64, error) {
	db := r.db.WithContext(ctx)

	var total int64
	if err := applyDreamFilter(db.Model(&models.Dream{}), f).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var dreams []*models.Dream
	q := applyDreamFilter(withDreamDetails(db), f)
	err := applyDreamSort(q, f.Sort).
		Limit(f.Limit).
		Offset(f.Offset).
		Find(&dreams).Error
	if err != nil {
		return nil, 0, err
	}
	return dreams, total, nil
}

func (r *dreamRepository) FindShareOf(ctx context.Context, sourceID string) (*models.Dream, error) {
	var dream models.Dream
	if err := r.db.WithContext(ctx).Where("shared_from = ?", sourceID).First(&dream).Error; err != nil {
		return nil, err
	}
	return &dream, nil
}

// Delete removes the dream with its votes, comments and tag links.
func (r *dreamRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		n, err := deleteDreams(tx, []string{id})
		if err != nil {
			return err
		}
		if n == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// withDreamDetails selects the comment count and preloads the bot and tags.
func withDreamDetails(db *gorm.DB) *gorm.DB {
	return db.
		Select("dreams.*, (SELECT COUNT(*) FROM comments WHERE comments.dream_id = dreams.id AND comments.flagged = ?) AS comment_count", false).
		Preload("Bot").
		Preload("Tags.Tag")
}

func applyDreamFilter(db *gorm.DB, f DreamFilter) *gorm.DB {
	if f.Section != "" {
		db = db.Where("dreams.section = ?", f.Section)
	}
	if f.BotID != "" {
		db = db.Where("dreams.bot_id = ?", f.BotID)
	}
	if !f.IncludeFlagged {
		db = db.Where("dreams.flagged = ?", false)
	}
	return db
}

func applyDreamSort(db *gorm.DB, sort string) *gorm.DB {
	switch sort {
	case models.SortPopular:
		return db.Order("dreams.vote_count DESC, dreams.created_at DESC")
	default:
		return db.Order("dreams.created_at DESC")
	}
}

// deleteDreams removes dreams and everything hanging off them inside tx.
// It reports how many dream rows were deleted.
func deleteDreams(tx *gorm.DB, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	if err := tx.Where("dream_id IN ?", ids).Delete(&models.Vote{}).Error; err != nil {
		return 0, fmt.Errorf("delete votes: %w", err)
	}
	if err := tx.Where("dream_id IN ? AND parent_comment_id IS NOT NULL", ids).Delete(&models.Comment{}).Error; err != nil {
		return 0, fmt.Errorf("delete replies: %w", err)
	}
	if err := tx.Where("dream_id IN ?", ids).Delete(&models.Comment{}).Error; err != nil {
		return 0, fmt.Errorf("delete comments: %w", err)
	}
	if err := detachTags(tx, ids); err != nil {
		return 0, err
	}
	res := tx.Where("id IN ?", ids).Delete(&models.Dream{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete dreams: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// IsNotFound reports whether err means the row does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
