package repository

import (
	"context"
	"fmt"

	"dreambook/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TagRepository defines tag reads and count maintenance.
type TagRepository interface {
	Trending(ctx context.Context, limit int) ([]models.Tag, error)
	PruneOrphans(ctx context.Context) (int64, error)
	Recount(ctx context.Context) (int64, error)
}

type tagRepository struct {
	db *gorm.DB
}

// NewTagRepository creates a new tag repository
func NewTagRepository(db *gorm.DB) TagRepository {
	return &tagRepository{db: db}
}

func (r *tagRepository) Trending(ctx context.Context, limit int) ([]models.Tag, error) {
	var tags []models.Tag
	err := r.db.WithContext(ctx).
		Where("count > ?", 0).
		Order("count DESC, name ASC").
		Limit(limit).
		Find(&tags).Error
	return tags, err
}

// PruneOrphans deletes tags no dream references and reports how many went away.
func (r *tagRepository) PruneOrphans(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).Exec(
		"DELETE FROM tags WHERE NOT EXISTS (SELECT 1 FROM dream_tags WHERE dream_tags.tag_id = tags.id)",
	)
	return res.RowsAffected, res.Error
}

// Recount rewrites every drifted count from the associations and reports how many changed.
func (r *tagRepository) Recount(ctx context.Context) (int64, error) {
	const actual = "(SELECT COUNT(*) FROM dream_tags WHERE dream_tags.tag_id = tags.id)"
	res := r.db.WithContext(ctx).Exec("UPDATE tags SET count = " + actual + " WHERE count <> " + actual)
	return res.RowsAffected, res.Error
}

// attachTags links normalized names to a dream inside tx, creating missing tags
// and bumping each count by one.
func attachTags(tx *gorm.DB, dreamID string, names []string) error {
	for _, name := range names {
		tag := models.Tag{Name: name}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoNothing: true,
		}).Create(&tag).Error; err != nil {
			return fmt.Errorf("upsert tag %q: %w", name, err)
		}

		if err := tx.Model(&models.Tag{}).
			Where("name = ?", name).
			UpdateColumn("count", gorm.Expr("count + ?", 1)).Error; err != nil {
			return fmt.Errorf("increment tag %q: %w", name, err)
		}

		var stored models.Tag
		if err := tx.Select("id").Where("name = ?", name).First(&stored).Error; err != nil {
			return fmt.Errorf("load tag %q: %w", name, err)
		}
		if err := tx.Create(&models.DreamTag{DreamID: dreamID, TagID: stored.ID}).Error; err != nil {
			return fmt.Errorf("link tag %q: %w", name, err)
		}
	}
	return nil
}

// detachTags removes a dream's associations inside tx and decrements their counts.
func detachTags(tx *gorm.DB, dreamIDs []string) error {
	if len(dreamIDs) == 0 {
		return nil
	}
	// One decrement per association row, so a tag linked to two deleted dreams drops by two.
	if err := tx.Exec(
		"UPDATE tags SET count = count - (SELECT COUNT(*) FROM dream_tags WHERE dream_tags.tag_id = tags.id AND dream_tags.dream_id IN ?) "+
			"WHERE id IN (SELECT tag_id FROM dream_tags WHERE dream_id IN ?)",
		dreamIDs, dreamIDs,
	).Error; err != nil {
		return fmt.Errorf("decrement tags: %w", err)
	}
	if err := tx.Where("dream_id IN ?", dreamIDs).Delete(&models.DreamTag{}).Error; err != nil {
		return fmt.Errorf("unlink tags: %w", err)
	}
	return nil
}
