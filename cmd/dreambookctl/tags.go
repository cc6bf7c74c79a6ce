package main

import (
	"fmt"

	"dreambook/internal/bootstrap"
	"dreambook/internal/repository"
	"dreambook/internal/service"

	"github.com/spf13/cobra"
)

func newTagsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tags",
		Short: "Tag maintenance",
	}

	moderation := func(rt *bootstrap.Runtime) *service.ModerationService {
		return service.NewModerationService(
			repository.NewModerationRepository(rt.DB),
			repository.NewTagRepository(rt.DB),
			rt.Redis,
		)
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "prune",
		Short: "Delete tags no dream uses",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd.Context(), func(rt *bootstrap.Runtime) error {
				res, err := moderation(rt).PruneTags(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "pruned %d tags\n", res.Pruned)
				return nil
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "recount",
		Short: "Recompute every tag count from its dream links",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd.Context(), func(rt *bootstrap.Runtime) error {
				res, err := moderation(rt).RecountTags(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "recounted %d tags\n", res.Recounted)
				return nil
			})
		},
	})
	return cmd
}
