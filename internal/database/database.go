// Package database handles database connections and migrations.
package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"dreambook/internal/config"
	"dreambook/internal/middleware"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DB is the global database connection instance.
var DB *gorm.DB

// CustomGormLogger integrates GORM with slog
type CustomGormLogger struct {
	logger *slog.Logger
	Config logger.Config
}

func newGormLogger() *CustomGormLogger {
	return &CustomGormLogger{
		logger: middleware.Logger,
		Config: logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	}
}

// LogMode sets the logging level and returns a new interface instance.
func (l *CustomGormLogger) LogMode(level logger.LogLevel) logger.Interface {
	newlogger := *l
	newlogger.Config.LogLevel = level
	return &newlogger
}

// Info logs an informational message with context.
func (l *CustomGormLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.Config.LogLevel >= logger.Info {
		l.logger.InfoContext(ctx, fmt.Sprintf(msg, data...))
	}
}

// Warn logs a warning message with context.
func (l *CustomGormLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if l.Config.LogLevel >= logger.Warn {
		l.logger.WarnContext(ctx, fmt.Sprintf(msg, data...))
	}
}

func (l *CustomGormLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if l.Config.LogLevel >= logger.Error {
		l.logger.ErrorContext(ctx, fmt.Sprintf(msg, data...))
	}
}

// Trace logs trace-level information including SQL queries and execution time.
func (l *CustomGormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.Config.LogLevel <= logger.Silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()

	switch {
	case err != nil && l.Config.LogLevel >= logger.Error && !errors.Is(err, gorm.ErrRecordNotFound) && !IsDuplicateKey(err):
		l.logger.ErrorContext(ctx, "GORM query error",
			slog.String("sql", sql),
			slog.Int64("rows", rows),
			slog.Duration("elapsed", elapsed),
			slog.String("error", err.Error()),
		)
	case elapsed > l.Config.SlowThreshold && l.Config.SlowThreshold != 0 && l.Config.LogLevel >= logger.Warn:
		l.logger.WarnContext(ctx, "GORM slow query",
			slog.String("sql", sql),
			slog.Int64("rows", rows),
			slog.Duration("elapsed", elapsed),
		)
	case l.Config.LogLevel >= logger.Info:
		l.logger.InfoContext(ctx, "GORM query",
			slog.String("sql", sql),
			slog.Int64("rows", rows),
			slog.Duration("elapsed", elapsed),
		)
	}
}

// SQLiteDSN builds the DSN for a sqlite file (or ":memory:") with a bounded lock wait.
func SQLiteDSN(path string, busy time.Duration) string {
	params := fmt.Sprintf("_busy_timeout=%d&_foreign_keys=on", busy.Milliseconds())
	if path == ":memory:" {
		return "file::memory:?" + params
	}
	return "file:" + path + "?" + params + "&_journal_mode=WAL"
}

// PostgresDSN builds the keyword/value DSN for postgres.
func PostgresDSN(cfg *config.Config) string {
	sslMode := cfg.DBSSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s lock_timeout=%d",
		cfg.DBHost,
		cfg.DBPort,
		cfg.DBUser,
		cfg.DBPassword,
		cfg.DBName,
		sslMode,
		cfg.BusyTimeout().Milliseconds(),
	)
}

// Open returns a handle for the configured store without touching the network
// or the file system beyond creating the sqlite directory. Schema is applied separately.
func Open(cfg *config.Config) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		Logger:               newGormLogger(),
		DisableAutomaticPing: true,
		TranslateError:       true,
	}

	switch cfg.DBDriver {
	case "postgres":
		db, err := gorm.Open(postgres.Open(PostgresDSN(cfg)), gormCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres: %w", err)
		}
		configurePool(db, 25, 5)
		return db, nil
	case "sqlite", "":
		return OpenSQLite(cfg.DBPath, cfg.BusyTimeout(), gormCfg)
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}
}

// OpenSQLite opens a sqlite database. A nil gormCfg uses the package defaults.
// The pool holds a single connection so writers serialize inside the process.
func OpenSQLite(path string, busy time.Duration, gormCfg *gorm.Config) (*gorm.DB, error) {
	if gormCfg == nil {
		gormCfg = &gorm.Config{
			Logger:               newGormLogger(),
			DisableAutomaticPing: true,
			TranslateError:       true,
		}
	}
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create sqlite directory: %w", err)
			}
		}
	}
	db, err := gorm.Open(sqlite.Open(SQLiteDSN(path, busy)), gormCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	configurePool(db, 1, 1)
	return db, nil
}

func configurePool(db *gorm.DB, maxOpen, maxIdle int) {
	sqlDB, err := db.DB()
	if err != nil {
		return
	}
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(maxIdle)
	if maxOpen > 1 {
		sqlDB.SetConnMaxLifetime(5 * time.Minute)
	}
}

// Connect opens the store, applies the schema and sets the global DB.
func Connect(ctx context.Context, cfg *config.Config) (*gorm.DB, error) {
	dbInstance, err := Open(cfg)
	if err != nil {
		return nil, err
	}
	if err := ApplySchema(ctx, dbInstance, cfg); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	middleware.Logger.Info("Database connected successfully", slog.String("driver", dbInstance.Dialector.Name()))
	DB = dbInstance
	return DB, nil
}

// Lazy defers connecting until the first caller needs the store.
type Lazy struct {
	cfg  *config.Config
	once sync.Once
	db   *gorm.DB
	err  error
}

// NewLazy returns a Lazy bound to cfg.
func NewLazy(cfg *config.Config) *Lazy {
	return &Lazy{cfg: cfg}
}

// Get connects on first use and returns the same handle or error afterwards.
func (l *Lazy) Get(ctx context.Context) (*gorm.DB, error) {
	l.once.Do(func() {
		l.db, l.err = Connect(ctx, l.cfg)
	})
	return l.db, l.err
}

// Close releases the underlying pool if one was opened.
func (l *Lazy) Close() error {
	if l.db == nil {
		return nil
	}
	sqlDB, err := l.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// IsDuplicateKey reports whether err is a unique-constraint violation on either driver.
func IsDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// IsPostgres reports whether db talks to postgres.
func IsPostgres(db *gorm.DB) bool {
	return db != nil && db.Dialector.Name() == "postgres"
}
