package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wayfind-dev/wayfind/pkg/history"
	"github.com/wayfind-dev/wayfind/pkg/route"
)

func matchCmd() *cobra.Command {
	var file string
	var basename string

	cmd := &cobra.Command{
		Use:   "match <path>",
		Short: "Match a URL against the route table",
		Long: `Match a URL against the route table and print the winning branch,
root to leaf, with the parameters each route captured.

Example:
  wayfind match /users/42 -f routes.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			routes, err := loadRoutes(file)
			if err != nil {
				return err
			}

			path := history.ParsePath(args[0])
			matches := route.MatchRoutes(routes, path, basename)
			if matches == nil {
				return fmt.Errorf("no route matches %q", args[0])
			}

			for _, m := range matches {
				pathname := m.Pathname
				if pathname == "" {
					pathname = "/"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-20s %-30s %s\n", m.Route.ID, pathname, formatParams(m.Params))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "routes.json", "route table JSON file (\"-\" for stdin)")
	cmd.Flags().StringVarP(&basename, "basename", "b", "/", "application basename")
	return cmd
}
