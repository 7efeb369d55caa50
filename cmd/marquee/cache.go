package main

import (
	"errors"
	"fmt"

	"mercator-hq/marquee/pkg/cache"
	"mercator-hq/marquee/pkg/cli"
	"mercator-hq/marquee/pkg/config"

	"github.com/spf13/cobra"
)

var cacheFlags struct {
	key    string
	prefix string
	all    bool
	output string
}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and maintain the durable response cache",
	Long: `Inspect and maintain the durable response cache.

Cache keys have the form "<METHOD> <absolute upstream URL>", for example:

  GET https://api.themoviedb.org/3/movie/550?language=en-US

The in-memory store belongs to the running server and is not reachable
from here.`,
}

var cacheListCmd = &cobra.Command{
	Use:   "list",
	Short: "List live cache keys",
	Long: `List live keys in the durable cache, oldest first.

Examples:
  marquee cache list
  marquee cache list --prefix "GET https://image.tmdb.org/t/p/w500/" --output csv`,
	RunE: runCacheList,
}

var cachePurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete cache entries",
	Long: `Delete durable cache entries: one exact --key, every key beginning
with --prefix, or everything with --all.

Examples:
  marquee cache purge --key "GET https://image.tmdb.org/t/p/w500/kqjL17yufvn9OVLyXYpvtyrFfak.jpg"
  marquee cache purge --prefix "GET https://api.themoviedb.org/3/movie/550"
  marquee cache purge --all`,
	RunE: runCachePurge,
}

var cacheSweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Remove expired cache entries now",
	RunE:  runCacheSweep,
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheListCmd, cachePurgeCmd, cacheSweepCmd)

	cacheListCmd.Flags().StringVar(&cacheFlags.prefix, "prefix", "", "only list keys with this prefix")
	cacheListCmd.Flags().StringVarP(&cacheFlags.output, "output", "o", "text", "output format: text, json, csv")

	cachePurgeCmd.Flags().StringVar(&cacheFlags.key, "key", "", "delete this exact key")
	cachePurgeCmd.Flags().StringVar(&cacheFlags.prefix, "prefix", "", "delete keys with this prefix")
	cachePurgeCmd.Flags().BoolVar(&cacheFlags.all, "all", false, "delete every entry")
}

// openDurableFromConfig opens the durable store named by --config.
func openDurableFromConfig(cmd *cobra.Command) (*cache.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if !cfg.Cache.Durable.Enabled {
		return nil, cli.NewConfigError("cache.durable.enabled", "durable cache is disabled")
	}
	return openDurable(cmd.Context(), &cfg.Cache.Durable, nil)
}

func runCacheList(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseOutputFormat(cacheFlags.output)
	if err != nil {
		return err
	}

	store, err := openDurableFromConfig(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	keys, err := store.List(cmd.Context(), cacheFlags.prefix)
	if err != nil {
		return cli.NewCommandError("cache list", err)
	}

	table := &cli.Table{Headers: []string{"KEY"}}
	for _, k := range keys {
		table.Append(k)
	}
	return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), table)
}

func runCachePurge(cmd *cobra.Command, args []string) error {
	scopes := 0
	for _, set := range []bool{cacheFlags.key != "", cacheFlags.prefix != "", cacheFlags.all} {
		if set {
			scopes++
		}
	}
	if scopes != 1 {
		return errors.New("exactly one of --key, --prefix or --all is required")
	}

	store, err := openDurableFromConfig(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	if cacheFlags.key != "" {
		if err := store.Delete(cmd.Context(), cacheFlags.key); err != nil {
			return cli.NewCommandError("cache purge", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Deleted %s\n", cacheFlags.key)
		return nil
	}

	n, err := store.Purge(cmd.Context(), cacheFlags.prefix)
	if err != nil {
		return cli.NewCommandError("cache purge", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Purged %d entries from %s cache\n", n, config.StoreDurable)
	return nil
}

func runCacheSweep(cmd *cobra.Command, args []string) error {
	store, err := openDurableFromConfig(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	n, err := store.Sweep(cmd.Context())
	if err != nil {
		return cli.NewCommandError("cache sweep", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Removed %d expired entries from %s cache\n", n, config.StoreDurable)
	return nil
}
