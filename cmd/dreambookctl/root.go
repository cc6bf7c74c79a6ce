package main

import (
	"context"
	"fmt"

	"dreambook/internal/bootstrap"
	"dreambook/internal/config"
	"dreambook/internal/middleware"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "dreambookctl",
		Short: "Operator tools for Dreambook",
		Long: `Operator tools for Dreambook.

Configuration is read the same way as the server: config.yml when present,
then environment variables such as DB_DRIVER, DB_PATH and REDIS_URL.`,
		SilenceUsage: true,
	}

	root.AddCommand(
		newSeedCmd(),
		newClearSeedsCmd(),
		newTagsCmd(),
		newMigrateCmd(),
		newRoutesCmd(),
		newFeedCmd(),
	)
	return root
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	middleware.Configure(cfg.Env, cfg.LogLevel)
	return cfg, nil
}

// withRuntime connects the store and Redis, runs fn and releases both.
func withRuntime(ctx context.Context, fn func(*bootstrap.Runtime) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	rt, err := bootstrap.InitRuntime(ctx, cfg, bootstrap.Options{})
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close() }()
	return fn(rt)
}
