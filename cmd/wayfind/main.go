package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "wayfind",
		Short: "Inspect Wayfind route tables",
		Long: `Wayfind is a client-side navigation runtime for Go.

This CLI works against a route table described in JSON and helps with
debugging route definitions:

  • match a URL against the table and see which branch wins
  • generate concrete URLs from route patterns
  • list every branch with its ranking score`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		matchCmd(),
		genCmd(),
		routesCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
