package main

import (
	"errors"
	"fmt"

	"dreambook/internal/bootstrap"
	"dreambook/internal/seed"

	"github.com/spf13/cobra"
)

func newSeedCmd() *cobra.Command {
	opts := seed.DefaultOptions()
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create the demo bots with their dreams, requests, comments and votes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd.Context(), func(rt *bootstrap.Runtime) error {
				res, err := seed.Seed(cmd.Context(), rt.DB, opts)
				if errors.Is(err, seed.ErrAlreadySeeded) {
					fmt.Fprintln(cmd.OutOrStdout(), "demo data already present; run clear-seeds first to recreate it")
					return nil
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "seeded %d bots, %d dreams, %d requests, %d comments, %d responses, %d votes\n",
					res.Bots, res.Dreams, res.Requests, res.Comments, res.Responses, res.Votes)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&opts.CommentsPerDream, "comments", opts.CommentsPerDream, "comments per dream")
	cmd.Flags().IntVar(&opts.ResponsesPerRequest, "responses", opts.ResponsesPerRequest, "responses per request")
	cmd.Flags().BoolVar(&opts.Votes, "votes", opts.Votes, "have every other demo bot upvote each dream")
	return cmd
}

func newClearSeedsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear-seeds",
		Short: "Remove the demo bots and everything they authored",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd.Context(), func(rt *bootstrap.Runtime) error {
				res, err := seed.ClearSeeds(cmd.Context(), rt.DB)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "removed %d bots and %d dreams, pruned %d tags\n", res.Bots, res.Dreams, res.TagsPruned)
				return nil
			})
		},
	}
}
