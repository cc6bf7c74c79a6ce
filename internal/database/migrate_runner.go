package database

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"dreambook/internal/middleware"

	"gorm.io/gorm"
)

const ensureLedgerSQL = `
CREATE TABLE IF NOT EXISTS schema_migrations (
	version BIGINT PRIMARY KEY,
	name VARCHAR(255) NOT NULL,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// appliedVersions lists the versions recorded in schema_migrations. A store
// that has never run SQL migrations has none.
func appliedVersions(ctx context.Context, db *gorm.DB) ([]int, error) {
	var versions []int
	err := db.WithContext(ctx).Raw("SELECT version FROM schema_migrations ORDER BY version").Scan(&versions).Error
	if err != nil {
		if isMissingTable(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read applied migrations: %w", err)
	}
	return versions, nil
}

func isMissingTable(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "no such table") ||
		(strings.Contains(msg, "relation") && strings.Contains(msg, "does not exist"))
}

// RunMigrations applies every pending embedded migration to a postgres store.
// Each script and its ledger row commit together.
func RunMigrations(ctx context.Context, db *gorm.DB) error {
	if !IsPostgres(db) {
		return ErrSQLMigrationsUnsupported
	}
	if err := db.WithContext(ctx).Exec(ensureLedgerSQL).Error; err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	applied, err := appliedVersions(ctx, db)
	if err != nil {
		return err
	}
	if err := validateAppliedVersions(applied, migrations); err != nil {
		return err
	}

	for _, m := range migrations {
		if slices.Contains(applied, m.Version) {
			continue
		}
		err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Exec(m.UpScript).Error; err != nil {
				return fmt.Errorf("apply migration %s: %w", m.String(), err)
			}
			return tx.Exec("INSERT INTO schema_migrations (version, name) VALUES (?, ?)", m.Version, m.Name).Error
		})
		if err != nil {
			return err
		}
		middleware.Logger.InfoContext(ctx, "migration applied", slog.String("migration", m.String()))
	}
	return nil
}

// validateAppliedVersions rejects a ledger that mentions versions this build
// does not ship, which means the store is ahead of the binary.
func validateAppliedVersions(applied []int, registered []Migration) error {
	var unknown []string
	for _, version := range applied {
		if !slices.ContainsFunc(registered, func(m Migration) bool { return m.Version == version }) {
			unknown = append(unknown, fmt.Sprintf("%06d", version))
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	slices.Sort(unknown)
	return fmt.Errorf("schema_migrations lists versions this build does not know: %s", strings.Join(unknown, ", "))
}

// RollbackMigration runs the down script of an applied migration and removes
// its ledger row in one transaction.
func RollbackMigration(ctx context.Context, db *gorm.DB, version int) error {
	if !IsPostgres(db) {
		return ErrSQLMigrationsUnsupported
	}
	m := GetMigrationByVersion(version)
	if m == nil {
		return fmt.Errorf("migration version %d not found", version)
	}

	applied, err := appliedVersions(ctx, db)
	if err != nil {
		return err
	}
	if !slices.Contains(applied, version) {
		return fmt.Errorf("migration %s has not been applied", m.String())
	}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(m.DownScript).Error; err != nil {
			return fmt.Errorf("roll back migration %s: %w", m.String(), err)
		}
		return tx.Exec("DELETE FROM schema_migrations WHERE version = ?", version).Error
	})
	if err != nil {
		return err
	}
	middleware.Logger.InfoContext(ctx, "migration rolled back", slog.String("migration", m.String()))
	return nil
}
