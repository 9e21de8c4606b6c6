package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wayfind-dev/wayfind/pkg/route"
)

func genCmd() *cobra.Command {
	var params []string

	cmd := &cobra.Command{
		Use:   "gen <pattern>",
		Short: "Generate a concrete URL from a route pattern",
		Long: `Interpolate parameters into a route pattern.

Examples:
  wayfind gen /users/:id -p id=42
  wayfind gen "/files/*" -p "*=docs/readme.md"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			values := route.Params{}
			for _, p := range params {
				key, value, ok := strings.Cut(p, "=")
				if !ok {
					return fmt.Errorf("invalid param %q, expected key=value", p)
				}
				values[key] = value
			}

			path, err := route.GeneratePath(args[0], values)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "parameter as key=value (repeatable)")
	return cmd
}
