/*
Package cli provides command-line helpers used by the marquee command.

Output Formatting:

Command results are rendered as a Table in text, JSON or CSV:

	table := &cli.Table{Headers: []string{"KEY", "STORE"}}
	table.Append("GET https://api.themoviedb.org/3/movie/550", "durable")
	if err := cli.NewFormatter(cli.FormatJSON).FormatTo(os.Stdout, table); err != nil {
		return err
	}

Signal Handling:

For graceful shutdown on SIGINT/SIGTERM:

	ctx, stop := cli.SetupSignalHandler(context.Background())
	defer stop()

SIGHUP is delivered separately through ReloadSignal so a running server can
re-read its configuration without restarting.
*/
package cli
