package main

import (
	"fmt"
	"strconv"
	"strings"

	"mercator-hq/marquee/pkg/cli"
	"mercator-hq/marquee/pkg/routing"

	"github.com/spf13/cobra"
)

var validateFlags struct {
	output string
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Load and validate the configuration file, then print the routes it
resolves to.

Environment overrides (MARQUEE_*) are applied before validation, exactly as
"marquee run" would apply them. Origins outside upstream.region are dropped
from the printed candidate lists.

Examples:
  # Validate the default config file
  marquee validate

  # Validate a specific file and print JSON
  marquee validate --config /etc/marquee/config.yaml --output json`,
	RunE: validateConfig,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringVarP(&validateFlags.output, "output", "o", "text", "output format: text, json, csv")
}

func validateConfig(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseOutputFormat(validateFlags.output)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	routes, err := routing.BuildRoutes(cfg.Routes, cfg.Upstream.Region)
	if err != nil {
		return configError(err)
	}
	if _, err := routing.NewRouter(routes); err != nil {
		return configError(err)
	}

	table := routeTable(routes)
	if format == cli.FormatText {
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Configuration valid (%d routes)\n\n", len(routes))
	}
	return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), table)
}

func routeTable(routes []*routing.Route) *cli.Table {
	table := &cli.Table{Headers: []string{"ROUTE", "CLASS", "PREFIXES", "ORIGINS", "TTL", "STORE", "FAILOVER"}}
	for _, r := range routes {
		origins := make([]string, 0, r.Selector.Len())
		for _, o := range r.Selector.Origins() {
			origins = append(origins, o.Name)
		}

		store := "-"
		if r.Cache {
			store = r.Store
		}

		table.Append(
			r.Name,
			r.Class,
			strings.Join(r.Prefixes, ","),
			strings.Join(origins, ","),
			r.TTL.String(),
			store,
			strconv.FormatBool(r.Failover),
		)
	}
	return table
}
