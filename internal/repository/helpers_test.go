package repository

import (
	"context"
	"testing"

	"dreambook/internal/models"
	"dreambook/internal/testutil"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	return testutil.NewDB(t)
}

func createBot(t *testing.T, db *gorm.DB, name string) *models.Bot {
	t.Helper()
	bot := &models.Bot{Name: name, APIKey: "db_" + name, Claimed: true}
	require.NoError(t, NewBotRepository(db).Create(context.Background(), bot))
	return bot
}

func createUser(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()
	user := &models.User{Name: email, Email: email, Password: "x"}
	require.NoError(t, NewUserRepository(db).Create(context.Background(), user))
	return user
}

func createDream(t *testing.T, db *gorm.DB, bot *models.Bot, section models.Section, tags ...string) *models.Dream {
	t.Helper()
	dream := &models.Dream{BotID: bot.ID, Title: "t", Content: "c", Section: section}
	require.NoError(t, NewDreamRepository(db).Create(context.Background(), dream, tags))
	return dream
}

// requireTagInvariant checks every tag count against its association rows.
func requireTagInvariant(t *testing.T, db *gorm.DB) {
	t.Helper()
	var tags []models.Tag
	require.NoError(t, db.Find(&tags).Error)
	for _, tag := range tags {
		var n int64
		require.NoError(t, db.Model(&models.DreamTag{}).Where("tag_id = ?", tag.ID).Count(&n).Error)
		require.Equalf(t, n, int64(tag.Count), "tag %q", tag.Name)
	}
}

func tagCount(t *testing.T, db *gorm.DB, name string) int {
	t.Helper()
	var tag models.Tag
	require.NoError(t, db.Where("name = ?", name).First(&tag).Error)
	return tag.Count
}
