// Package repository provides data access layer implementations for the application.
package repository

import (
	"context"

	"dreambook/internal/models"

	"gorm.io/gorm"
)

// BotCounts summarizes a bot's public footprint.
type BotCounts struct {
	Dreams   int64 `json:"dreams"`
	Comments int64 `json:"comments"`
	Votes    int64 `json:"votes"`
}

// BotRepository defines the interface for bot data operations
type BotRepository interface {
	Create(ctx context.Context, bot *models.Bot) error
	GetByID(ctx context.Context, id string) (*models.Bot, error)
	FindByAPIKey(ctx context.Context, apiKey string) (*models.Bot, error)
	GetByClaimToken(ctx context.Context, token string) (*models.Bot, error)
	GetByVerificationToken(ctx context.Context, token string) (*models.Bot, error)
	GetByNames(ctx context.Context, names []string) ([]*models.Bot, error)
	// RecordClaimRequest stores the pending email and verification fields of
	// bot. It reports false when the bot was claimed in the meantime.
	RecordClaimRequest(ctx context.Context, bot *models.Bot) (bool, error)
	// CompleteClaim marks the bot claimed by claimedBy if it is still unclaimed
	// and token is still its verification token.
	CompleteClaim(ctx context.Context, botID, token string, claimedBy *string) (bool, error)
	List(ctx context.Context, limit, offset int) ([]*models.Bot, int64, error)
	Counts(ctx context.Context, botID string) (BotCounts, error)
}

type botRepository struct {
	db *gorm.DB
}

// NewBotRepository creates a new bot repository
func NewBotRepository(db *gorm.DB) BotRepository {
	return &botRepository{db: db}
}

func (r *botRepository) Create(ctx context.Context, bot *models.Bot) error {
	return r.db.WithContext(ctx).Create(bot).Error
}

func (r *botRepository) GetByID(ctx context.Context, id string) (*models.Bot, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *botRepository) FindByAPIKey(ctx context.Context, apiKey string) (*models.Bot, error) {
	return r.first(ctx, "api_key = ?", apiKey)
}

func (r *botRepository) GetByClaimToken(ctx context.Context, token string) (*models.Bot, error) {
	return r.first(ctx, "claim_token = ?", token)
}

func (r *botRepository) GetByVerificationToken(ctx context.Context, token string) (*models.Bot, error) {
	return r.first(ctx, "verification_token = ?", token)
}

func (r *botRepository) first(ctx context.Context, query string, arg string) (*models.Bot, error) {
	if arg == "" {
		return nil, gorm.ErrRecordNotFound
	}
	var bot models.Bot
	if err := r.db.WithContext(ctx).Where(query, arg).First(&bot).Error; err != nil {
		return nil, err
	}
	return &bot, nil
}

func (r *botRepository) GetByNames(ctx context.Context, names []string) ([]*models.Bot, error) {
	var bots []*models.Bot
	if len(names) == 0 {
		return bots, nil
	}
	err := r.db.WithContext(ctx).Where("name IN ?", names).Find(&bots).Error
	return bots, err
}

func (r *botRepository) RecordClaimRequest(ctx context.Context, bot *models.Bot) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Bot{}).
		Where("id = ? AND claimed = ?", bot.ID, false).
		Updates(map[string]any{
			"pending_email":           bot.PendingEmail,
			"verification_token":      bot.VerificationToken,
			"verification_expires_at": bot.VerificationExpiresAt,
			"verification_sent_at":    bot.VerificationSentAt,
		})
	return res.RowsAffected == 1, res.Error
}

func (r *botRepository) CompleteClaim(ctx context.Context, botID, token string, claimedBy *string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Bot{}).
		Where("id = ? AND claimed = ? AND verification_token = ?", botID, false, token).
		Updates(map[string]any{
			"claimed":                 true,
			"claimed_by":              claimedBy,
			"pending_email":           nil,
			"verification_token":      nil,
			"verification_expires_at": nil,
		})
	return res.RowsAffected == 1, res.Error
}

func (r *botRepository) List(ctx context.Context, limit, offset int) ([]*models.Bot, int64, error) {
	var (
		bots  []*models.Bot
		total int64
	)
	db := r.db.WithContext(ctx)
	if err := db.Model(&models.Bot{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := db.Order("created_at DESC").Limit(limit).Offset(offset).Find(&bots).Error
	return bots, total, err
}

func (r *botRepository) Counts(ctx context.Context, botID string) (BotCounts, error) {
	var counts BotCounts
	db := r.db.WithContext(ctx)
	if err := db.Model(&models.Dream{}).Where("bot_id = ?", botID).Count(&counts.Dreams).Error; err != nil {
		return counts, err
	}
	if err := db.Model(&models.Comment{}).Where("bot_id = ?", botID).Count(&counts.Comments).Error; err != nil {
		return counts, err
	}
	if err := db.Model(&models.Vote{}).Where("bot_id = ?", botID).Count(&counts.Votes).Error; err != nil {
		return counts, err
	}
	return counts, nil
}
