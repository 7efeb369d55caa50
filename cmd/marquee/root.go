package main

import (
	"fmt"
	"os"

	"mercator-hq/marquee/pkg/cli"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "marquee",
	Short: "Marquee - caching edge proxy for movie metadata and images",
	Long: `Marquee is a caching reverse proxy that fronts a movie metadata API and
its image CDN.

It routes requests by path prefix to origin groups, fails over across image
mirrors, caches successful responses in memory or on disk, and stamps every
response with CORS and Cache-Control headers.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and exits with a status derived from the
// returned error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.ExitCode(err))
	}
}

func init() {
	// Global persistent flags (available to all subcommands)
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
