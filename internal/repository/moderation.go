package repository

import (
	"context"
	"fmt"

	"dreambook/internal/models"

	"gorm.io/gorm"
)

// ModerationTarget names a moderatable content type.
type ModerationTarget string

const (
	TargetDream    ModerationTarget = "dream"
	TargetComment  ModerationTarget = "comment"
	TargetRequest  ModerationTarget = "request"
	TargetResponse ModerationTarget = "response"
)

// Valid reports whether t is a known content type.
func (t ModerationTarget) Valid() bool {
	switch t {
	case TargetDream, TargetComment, TargetRequest, TargetResponse:
		return true
	}
	return false
}

func (t ModerationTarget) model() interface{} {
	switch t {
	case TargetDream:
		return &models.Dream{}
	case TargetComment:
		return &models.Comment{}
	case TargetRequest:
		return &models.DreamRequest{}
	case TargetResponse:
		return &models.DreamResponse{}
	}
	return nil
}

// FlaggedContent is the admin review queue.
type FlaggedContent struct {
	Dreams    []*models.Dream         `json:"dreams"`
	Comments  []*models.Comment       `json:"comments"`
	Requests  []*models.DreamRequest  `json:"requests"`
	Responses []*models.DreamResponse `json:"responses"`
}

// PurgeResult counts what PurgeBots removed.
type PurgeResult struct {
	Bots   int64 `json:"bots"`
	Dreams int64 `json:"dreams"`
}

// ModerationRepository implements administrative content actions.
type ModerationRepository interface {
	Unflag(ctx context.Context, target ModerationTarget, id string) (bool, error)
	Delete(ctx context.Context, target ModerationTarget, id string) (bool, error)
	Flagged(ctx context.Context, limit int) (*FlaggedContent, error)
	PurgeBots(ctx context.Context, botIDs []string) (PurgeResult, error)
}

type moderationRepository struct {
	db *gorm.DB
}

// NewModerationRepository creates a new moderation repository
func NewModerationRepository(db *gorm.DB) ModerationRepository {
	return &moderationRepository{db: db}
}

// Unflag clears the flag; it reports false when no row has the id.
func (r *moderationRepository) Unflag(ctx context.Context, target ModerationTarget, id string) (bool, error) {
	model := target.model()
	if model == nil {
		return false, fmt.Errorf("unknown moderation target %q", target)
	}
	// UpdateColumn skips the authorship hooks, which a zero model would fail.
	res := r.db.WithContext(ctx).Model(model).Where("id = ?", id).UpdateColumn("flagged", false)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// Delete removes the item and its dependents; it reports false when nothing matched.
func (r *moderationRepository) Delete(ctx context.Context, target ModerationTarget, id string) (bool, error) {
	var deleted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		switch target {
		case TargetDream:
			deleted, err = deleteDreams(tx, []string{id})
		case TargetComment:
			if err = tx.Where("parent_comment_id = ?", id).Delete(&models.Comment{}).Error; err != nil {
				return err
			}
			res := tx.Where("id = ?", id).Delete(&models.Comment{})
			deleted, err = res.RowsAffected, res.Error
		case TargetRequest:
			if err = tx.Where("request_id = ?", id).Delete(&models.DreamResponse{}).Error; err != nil {
				return err
			}
			res := tx.Where("id = ?", id).Delete(&models.DreamRequest{})
			deleted, err = res.RowsAffected, res.Error
		case TargetResponse:
			res := tx.Where("id = ?", id).Delete(&models.DreamResponse{})
			deleted, err = res.RowsAffected, res.Error
		default:
			err = fmt.Errorf("unknown moderation target %q", target)
		}
		return err
	})
	if err != nil {
		return false, err
	}
	return deleted > 0, nil
}

func (r *moderationRepository) Flagged(ctx context.Context, limit int) (*FlaggedContent, error) {
	db := r.db.WithContext(ctx)
	out := &FlaggedContent{}
	if err := db.Preload("Bot").Where("flagged = ?", true).Order("created_at DESC").Limit(limit).Find(&out.Dreams).Error; err != nil {
		return nil, err
	}
	if err := db.Where("flagged = ?", true).Order("created_at DESC").Limit(limit).Find(&out.Comments).Error; err != nil {
		return nil, err
	}
	if err := db.Preload("Bot").Where("flagged = ?", true).Order("created_at DESC").Limit(limit).Find(&out.Requests).Error; err != nil {
		return nil, err
	}
	if err := db.Where("flagged = ?", true).Order("created_at DESC").Limit(limit).Find(&out.Responses).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// PurgeBots deletes the bots and everything they authored in one transaction.
// Vote counts of surviving dreams are reduced by the purged bots' votes.
func (r *moderationRepository) PurgeBots(ctx context.Context, botIDs []string) (PurgeResult, error) {
	var result PurgeResult
	if len(botIDs) == 0 {
		return result, nil
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var dreamIDs []string
		if err := tx.Model(&models.Dream{}).Where("bot_id IN ?", botIDs).Pluck("id", &dreamIDs).Error; err != nil {
			return err
		}
		n, err := deleteDreams(tx, dreamIDs)
		if err != nil {
			return err
		}
		result.Dreams = n

		if err := tx.Exec(
			"UPDATE dreams SET vote_count = vote_count - (SELECT COALESCE(SUM(vote_type), 0) FROM votes WHERE votes.dream_id = dreams.id AND votes.bot_id IN ?) "+
				"WHERE id IN (SELECT dream_id FROM votes WHERE bot_id IN ?)",
			botIDs, botIDs,
		).Error; err != nil {
			return fmt.Errorf("adjust vote counts: %w", err)
		}
		if err := tx.Where("bot_id IN ?", botIDs).Delete(&models.Vote{}).Error; err != nil {
			return err
		}

		if err := tx.Exec(
			"DELETE FROM comments WHERE parent_comment_id IN (SELECT id FROM comments WHERE bot_id IN ?)", botIDs,
		).Error; err != nil {
			return fmt.Errorf("delete replies: %w", err)
		}
		if err := tx.Where("bot_id IN ?", botIDs).Delete(&models.Comment{}).Error; err != nil {
			return err
		}

		if err := tx.Exec(
			"DELETE FROM dream_responses WHERE request_id IN (SELECT id FROM dream_requests WHERE bot_id IN ?)", botIDs,
		).Error; err != nil {
			return fmt.Errorf("delete responses: %w", err)
		}
		if err := tx.Where("bot_id IN ?", botIDs).Delete(&models.DreamResponse{}).Error; err != nil {
			return err
		}
		if err := tx.Where("bot_id IN ?", botIDs).Delete(&models.DreamRequest{}).Error; err != nil {
			return err
		}
		if err := tx.Where("bot_id IN ?", botIDs).Delete(&models.Feedback{}).Error; err != nil {
			return err
		}
		if err := tx.Where("bot_id IN ?", botIDs).Delete(&models.Donation{}).Error; err != nil {
			return err
		}

		res := tx.Where("id IN ?", botIDs).Delete(&models.Bot{})
		if res.Error != nil {
			return res.Error
		}
		result.Bots = res.RowsAffected
		return nil
	})
	return result, err
}
