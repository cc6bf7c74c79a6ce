package main

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"dreambook/internal/server"

	"github.com/spf13/cobra"
)

// newRoutesCmd lists the HTTP routes. It builds the app without a store.
func newRoutesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "routes",
		Short: "List the API routes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			srv, err := server.NewServer(cfg, server.Deps{})
			if err != nil {
				return err
			}
			defer func() { _ = srv.Shutdown(cmd.Context()) }()

			routes := srv.App().GetRoutes(true)
			sort.SliceStable(routes, func(i, j int) bool {
				if routes[i].Path != routes[j].Path {
					return routes[i].Path < routes[j].Path
				}
				return routes[i].Method < routes[j].Method
			})

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, r := range routes {
				if r.Method == "HEAD" {
					continue
				}
				fmt.Fprintf(w, "%s\t%s\n", r.Method, r.Path)
			}
			return w.Flush()
		},
	}
}
