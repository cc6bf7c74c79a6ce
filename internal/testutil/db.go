// Package testutil provides shared fixtures for backend tests.
package testutil

import (
	"testing"
	"time"

	"dreambook/internal/database"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB returns a migrated in-memory sqlite store that is closed when the test ends.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()
	db, err := database.OpenSQLite(":memory:", time.Second, &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(database.PersistentModels()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}
