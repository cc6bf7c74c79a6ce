package database

import (
	"context"
	"errors"
	"testing"
	"testing/fstest"
	"time"

	"dreambook/internal/config"
	"dreambook/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestSQLiteDSN(t *testing.T) {
	assert.Equal(t, "file::memory:?_busy_timeout=5000&_foreign_keys=on", SQLiteDSN(":memory:", 5*time.Second))
	assert.Equal(t, "file:data/x.db?_busy_timeout=250&_foreign_keys=on&_journal_mode=WAL", SQLiteDSN("data/x.db", 250*time.Millisecond))
}

func TestPostgresDSN_CarriesLockTimeout(t *testing.T) {
	cfg := &config.Config{DBHost: "db", DBPort: "5432", DBUser: "u", DBPassword: "p", DBName: "n", DBBusyTimeoutMS: 1500}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=n sslmode=disable lock_timeout=1500", PostgresDSN(cfg))
}

func TestOpen_DoesNotTouchPostgres(t *testing.T) {
	cfg := &config.Config{DBDriver: "postgres", DBHost: "127.0.0.1", DBPort: "1", DBUser: "u", DBPassword: "p", DBName: "n"}
	db, err := Open(cfg)
	require.NoError(t, err)
	assert.True(t, IsPostgres(db))
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(&config.Config{DBDriver: "oracle"})
	assert.Error(t, err)
}

func TestApplySchema_SQLiteAutoMigrates(t *testing.T) {
	db, err := OpenSQLite(":memory:", time.Second, nil)
	require.NoError(t, err)

	require.NoError(t, ApplySchema(context.Background(), db, &config.Config{Env: "test"}))
	for _, model := range PersistentModels() {
		assert.True(t, db.Migrator().HasTable(model))
	}
}

func TestApplySchema_SQLiteRejectsSQLMode(t *testing.T) {
	db, err := OpenSQLite(":memory:", time.Second, nil)
	require.NoError(t, err)

	err = ApplySchema(context.Background(), db, &config.Config{DBSchemaMode: "sql"})
	assert.ErrorIs(t, err, ErrSQLMigrationsUnsupported)
	assert.ErrorIs(t, RunMigrations(context.Background(), db), ErrSQLMigrationsUnsupported)
	assert.ErrorIs(t, RollbackMigration(context.Background(), db, 1), ErrSQLMigrationsUnsupported)
}

func TestSchemaPolicy(t *testing.T) {
	tests := []struct {
		name    string
		driver  string
		mode    string
		env     string
		wantSQL bool
		wantAut bool
		wantErr bool
	}{
		{"sqlite default", "sqlite", "", "development", false, true, false},
		{"sqlite auto in prod", "sqlite", "auto", "production", false, true, false},
		{"sqlite sql", "sqlite", "sql", "development", false, false, true},
		{"postgres hybrid dev", "postgres", "hybrid", "development", true, true, false},
		{"postgres hybrid prod", "postgres", "", "production", true, false, false},
		{"postgres sql", "postgres", "sql", "development", true, false, false},
		{"postgres auto prod", "postgres", "auto", "staging", false, false, true},
		{"unknown mode", "postgres", "yolo", "development", false, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runSQL, runAuto, err := schemaPolicy(tt.driver, &config.Config{DBSchemaMode: tt.mode, Env: tt.env})
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, runSQL)
			assert.Equal(t, tt.wantAut, runAuto)
		})
	}
}

func TestIsDuplicateKey(t *testing.T) {
	db, err := OpenSQLite(":memory:", time.Second, nil)
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Bot{}))

	require.NoError(t, db.Create(&models.Bot{Name: "Twin", APIKey: "k1"}).Error)
	err = db.Create(&models.Bot{Name: "Twin", APIKey: "k2"}).Error
	require.Error(t, err)
	assert.True(t, IsDuplicateKey(err))

	assert.False(t, IsDuplicateKey(nil))
	assert.False(t, IsDuplicateKey(errors.New("boom")))
}

func TestLazy_ConnectsOnce(t *testing.T) {
	lazy := NewLazy(&config.Config{DBDriver: "sqlite", DBPath: ":memory:", Env: "test"})
	defer lazy.Close()

	first, err := lazy.Get(context.Background())
	require.NoError(t, err)
	second, err := lazy.Get(context.Background())
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.True(t, first.Migrator().HasTable(&models.Dream{}))
}

func TestLazy_CloseBeforeUse(t *testing.T) {
	assert.NoError(t, NewLazy(&config.Config{}).Close())
}

func TestLoadMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"m/000002_second.up.sql":   {Data: []byte("up2")},
		"m/000002_second.down.sql": {Data: []byte("down2")},
		"m/000001_first.up.sql":    {Data: []byte("up1")},
		"m/000001_first.down.sql":  {Data: []byte("down1")},
		"m/README.md":              {Data: []byte("ignored")},
		"m/bad.up.sql":             {Data: []byte("skipped")},
	}
	got, err := LoadMigrations(fsys, "m")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 1, got[0].Version)
	assert.Equal(t, "first", got[0].Name)
	assert.Equal(t, "down1", got[0].DownScript)
	assert.Equal(t, "000002_second", got[1].String())
}

func TestLoadMigrations_MissingDown(t *testing.T) {
	fsys := fstest.MapFS{"m/000001_only.up.sql": {Data: []byte("up")}}
	_, err := LoadMigrations(fsys, "m")
	assert.Error(t, err)
}

func TestEmbeddedMigrationsRegistered(t *testing.T) {
	require.NotEmpty(t, GetMigrations())
	m := GetMigrationByVersion(1)
	require.NotNil(t, m)
	assert.Contains(t, m.UpScript, "CREATE TABLE IF NOT EXISTS dreams")
	assert.Contains(t, m.DownScript, "DROP TABLE IF EXISTS dreams")
	assert.Nil(t, GetMigrationByVersion(999))
}

func TestValidateAppliedVersions(t *testing.T) {
	registered := []Migration{{Version: 1}, {Version: 2}}
	assert.NoError(t, validateAppliedVersions(nil, registered))
	assert.NoError(t, validateAppliedVersions([]int{1, 2}, registered))
	err := validateAppliedVersions([]int{1, 7, 5}, registered)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "000005, 000007")
}

func TestPersistentModels_IncludesVoteLedger(t *testing.T) {
	found := false
	for _, model := range PersistentModels() {
		if _, ok := model.(*models.Vote); ok {
			found = true
			break
		}
	}
	require.True(t, found, "PersistentModels should include Vote")
}

func newMockPostgres(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db, mock
}

func TestRunMigrations_AppliesPendingInTransaction(t *testing.T) {
	db, mock := newMockPostgres(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS schema_migrations`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT version FROM schema_migrations ORDER BY version`).
		WillReturnRows(sqlmock.NewRows([]string{"version"}))
	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS bots`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`INSERT INTO schema_migrations`).
		WithArgs(1, "init").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, RunMigrations(context.Background(), db))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunMigrations_SkipsApplied(t *testing.T) {
	db, mock := newMockPostgres(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS schema_migrations`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT version FROM schema_migrations`).
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(1))

	require.NoError(t, RunMigrations(context.Background(), db))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRollbackMigration_RemovesLedgerRowWithScript(t *testing.T) {
	db, mock := newMockPostgres(t)

	mock.ExpectQuery(`SELECT version FROM schema_migrations`).
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(1))
	mock.ExpectBegin()
	mock.ExpectExec(`DROP TABLE IF EXISTS donations`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`DELETE FROM schema_migrations WHERE version = `).
		WithArgs(1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, RollbackMigration(context.Background(), db, 1))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRollbackMigration_ScriptFailureKeepsLedgerRow(t *testing.T) {
	db, mock := newMockPostgres(t)

	mock.ExpectQuery(`SELECT version FROM schema_migrations`).
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(1))
	mock.ExpectBegin()
	mock.ExpectExec(`DROP TABLE IF EXISTS donations`).
		WillReturnError(errors.New("permission denied"))
	mock.ExpectRollback()

	err := RollbackMigration(context.Background(), db, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permission denied")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRollbackMigration_NotApplied(t *testing.T) {
	db, mock := newMockPostgres(t)

	mock.ExpectQuery(`SELECT version FROM schema_migrations`).
		WillReturnRows(sqlmock.NewRows([]string{"version"}))

	err := RollbackMigration(context.Background(), db, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "has not been applied")
	assert.NoError(t, mock.ExpectationsWereMet())

	err = RollbackMigration(context.Background(), db, 999)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}
