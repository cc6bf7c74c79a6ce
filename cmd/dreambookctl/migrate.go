package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"dreambook/internal/config"
	"dreambook/internal/database"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

// withStore opens the configured store without applying the schema, so status
// reflects the store as it is.
func withStore(fn func(cfg *config.Config, db *gorm.DB) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := database.Open(cfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}()
	return fn(cfg, db)
}

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Schema operations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending SQL migrations (postgres)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(func(_ *config.Config, db *gorm.DB) error {
				if err := database.RunMigrations(cmd.Context(), db); err != nil {
					if errors.Is(err, database.ErrSQLMigrationsUnsupported) {
						return fmt.Errorf("%w; use 'migrate auto' for sqlite", err)
					}
					return fmt.Errorf("sql migrations failed: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "sql migrations applied")
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "auto",
		Short: "Apply the schema with gorm auto-migration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(func(cfg *config.Config, db *gorm.DB) error {
				cfg.DBSchemaMode = database.SchemaModeAuto
				if err := database.ApplySchema(cmd.Context(), db, cfg); err != nil {
					return fmt.Errorf("auto schema apply failed: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "automigrations applied")
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show applied and pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(func(cfg *config.Config, db *gorm.DB) error {
				return printSchemaStatus(cmd.Context(), cmd, cfg, db)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down <version>",
		Short: "Roll back one applied migration (postgres)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid version %q: %w", args[0], err)
			}
			return withStore(func(_ *config.Config, db *gorm.DB) error {
				if err := database.RollbackMigration(cmd.Context(), db, version); err != nil {
					return fmt.Errorf("rollback failed: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "rolled back migration %d\n", version)
				return nil
			})
		},
	})
	return cmd
}

func printSchemaStatus(ctx context.Context, cmd *cobra.Command, cfg *config.Config, db *gorm.DB) error {
	status, err := database.GetSchemaStatus(ctx, db, cfg)
	if err != nil {
		return fmt.Errorf("schema status failed: %w", err)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "driver=%s mode=%s env=%s run_sql=%t run_auto=%t applied=%d pending=%d\n",
		status.Driver, status.Mode, status.Environment, status.WillRunSQL, status.WillRunAutoMigrate,
		len(status.AppliedVersions), len(status.PendingMigrations))
	for _, m := range status.PendingMigrations {
		fmt.Fprintf(out, "pending: %s\n", m.String())
	}
	return nil
}
