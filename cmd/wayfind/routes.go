package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wayfind-dev/wayfind/pkg/route"
)

// loadRoutes reads a route table from a JSON file, or stdin when the
// path is "-". The format mirrors route.Route: id, path, index,
// caseSensitive, hasErrorBoundary, children.
func loadRoutes(file string) ([]*route.DataRoute, error) {
	var r io.Reader
	if file == "-" {
		r = os.Stdin
	} else {
		f, err := os.Open(file)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}

	var defs []routeDef
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&defs); err != nil {
		return nil, fmt.Errorf("parse route table: %w", err)
	}
	return route.ConvertRoutesToDataRoutes(toRoutes(defs))
}

type routeDef struct {
	ID               string     `json:"id"`
	Path             string     `json:"path"`
	Index            bool       `json:"index"`
	CaseSensitive    bool       `json:"caseSensitive"`
	HasErrorBoundary bool       `json:"hasErrorBoundary"`
	Children         []routeDef `json:"children"`
}

func toRoutes(defs []routeDef) []route.Route {
	out := make([]route.Route, len(defs))
	for i, d := range defs {
		out[i] = route.Route{
			ID:               d.ID,
			Path:             d.Path,
			Index:            d.Index,
			CaseSensitive:    d.CaseSensitive,
			HasErrorBoundary: d.HasErrorBoundary,
			Children:         toRoutes(d.Children),
		}
	}
	return out
}

func routesCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "routes",
		Short: "List every branch with its ranking score",
		Long: `List the full pattern, route id, and ranking score of every branch
in the route table. Higher scores win when branches overlap.

Example:
  wayfind routes -f routes.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			routes, err := loadRoutes(file)
			if err != nil {
				return err
			}

			type row struct {
				pattern string
				id      string
				score   int
			}
			var rows []row
			var walk func(rs []*route.DataRoute, base string)
			walk = func(rs []*route.DataRoute, base string) {
				for _, r := range rs {
					pattern := route.JoinPaths(base, r.Path)
					if len(r.Children) == 0 {
						rows = append(rows, row{pattern, r.ID, route.Score(pattern, r.Index)})
					} else {
						walk(r.Children, pattern)
					}
				}
			}
			walk(routes, "/")

			sort.Slice(rows, func(i, j int) bool { return rows[i].score > rows[j].score })
			for _, r := range rows {
				fmt.Fprintf(cmd.OutOrStdout(), "%4d  %-40s %s\n", r.score, r.pattern, r.id)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "routes.json", "route table JSON file (\"-\" for stdin)")
	return cmd
}

func formatParams(params route.Params) string {
	if len(params) == 0 {
		return ""
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + params[k]
	}
	return strings.Join(parts, " ")
}
