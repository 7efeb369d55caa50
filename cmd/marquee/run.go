package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"mercator-hq/marquee/pkg/admission"
	"mercator-hq/marquee/pkg/cache"
	"mercator-hq/marquee/pkg/cli"
	"mercator-hq/marquee/pkg/config"
	"mercator-hq/marquee/pkg/proxy"
	"mercator-hq/marquee/pkg/proxy/handlers"
	"mercator-hq/marquee/pkg/routing"
	"mercator-hq/marquee/pkg/server"
	"mercator-hq/marquee/pkg/telemetry"
	"mercator-hq/marquee/pkg/telemetry/health"
	"mercator-hq/marquee/pkg/telemetry/tracing"

	"github.com/spf13/cobra"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the Marquee edge proxy",
	Long: `Start the Marquee edge proxy with the specified configuration.

The server listens on the configured address, resolves each request to a
route, answers from cache when it can and otherwise forwards to the route's
origins.

Routes and the log level are reloaded on SIGHUP, and on file changes when
watch.enabled is set.

Examples:
  # Start with default config
  marquee run

  # Start with custom config
  marquee run --config /etc/marquee/config.yaml

  # Override listen address
  marquee run --listen 0.0.0.0:8080

  # Validate config without starting server
  marquee run --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting server")
}

func runServer(cmd *cobra.Command, args []string) error {
	holder, err := config.NewHolder(cfgFile)
	if err != nil {
		return configError(err)
	}
	cfg := holder.Get()

	// Apply flag overrides
	if runFlags.listenAddress != "" {
		cfg.Proxy.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}

	routes, err := routing.BuildRoutes(cfg.Routes, cfg.Upstream.Region)
	if err != nil {
		return configError(err)
	}

	out := cmd.OutOrStdout()
	if runFlags.dryRun {
		fmt.Fprintf(out, "✓ Configuration valid (%d routes)\n", len(routes))
		return nil
	}

	tracing.Version = Version
	tel, err := telemetry.New(&cfg.Telemetry, os.Stdout)
	if err != nil {
		return configError(err)
	}
	tel.Logger.Install()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(ctx); err != nil {
			slog.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	printBanner(cmd, cfg)

	ctx, stop := cli.SetupSignalHandler(cmd.Context())
	defer stop()

	st, err := openStores(ctx, &cfg.Cache, tel.Metrics)
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			slog.Warn("failed to close cache stores", "error", err)
		}
	}()
	fmt.Fprintf(out, "✓ Cache stores opened (%d)\n", len(st.byName))

	janitor := cache.NewJanitor(cfg.Cache.Durable.SweepSchedule, st.all()...)
	if err := janitor.Start(ctx); err != nil {
		slog.Warn("failed to start cache janitor", "error", err)
	} else {
		defer janitor.Stop()
		if next := janitor.NextRun(); next != nil {
			slog.Debug("cache janitor started", "next_sweep", next)
		}
	}

	router, err := routing.NewRouter(routes)
	if err != nil {
		return configError(err)
	}
	fmt.Fprintf(out, "✓ Routes loaded (%d routes)\n", router.Len())

	upstream := proxy.NewUpstream(cfg.Upstream)
	defer upstream.Close()

	cors := corsPolicy(cfg.Proxy.CORS)
	pipeline := proxy.NewPipeline(proxy.PipelineOptions{
		Admission:         admission.NewController(cfg.Admission.MaxConcurrent, tel.Metrics),
		Upstream:          upstream,
		Stores:            st.byName,
		CORS:              cors,
		MaxCacheableBytes: cfg.Upstream.MaxCacheableBytes,
		AdmissionWait:     cfg.Admission.WaitTimeout,
		Recorder:          tel.Metrics,
		Tracer:            tel.Tracer,
	})

	edge := handlers.NewEdgeHandler(handlers.EdgeOptions{
		Router:          router,
		Pipeline:        pipeline,
		Recorder:        tel.Metrics,
		Tracer:          tel.Tracer,
		CORS:            cors,
		PreflightMaxAge: cfg.Proxy.CORS.MaxAge,
	})

	tel.Health.RegisterCheck("routes", health.CountCheck("routes", router.Len))
	if st.durable != nil {
		tel.Health.RegisterCheck("durable_cache", health.PingCheck(st.durable))
	}

	reload := func() error {
		prev, next, err := holder.Reload()
		if err != nil {
			slog.Error("configuration reload rejected", "error", err)
			return err
		}

		routes, err := routing.BuildRoutes(next.Routes, next.Upstream.Region)
		if err == nil {
			err = router.Reload(routes)
		}
		if err != nil {
			slog.Error("route reload rejected, keeping previous routes", "error", err)
			return err
		}

		if runFlags.logLevel == "" && !verbose && next.Telemetry.Logging.Level != prev.Telemetry.Logging.Level {
			if err := tel.Logger.SetLevel(next.Telemetry.Logging.Level); err != nil {
				slog.Warn("log level not changed", "error", err)
			}
		}

		slog.Info("configuration reloaded", "routes", router.Len())
		return nil
	}

	if cfg.Watch.Enabled {
		watcher, err := config.NewWatcher(holder.Path(), cfg.Watch.Debounce)
		if err != nil {
			slog.Warn("config watcher unavailable", "error", err)
		} else {
			defer watcher.Stop()
			go func() {
				if err := watcher.Watch(ctx, reload); err != nil {
					slog.Error("config watcher stopped", "error", err)
				}
			}()
		}
	}

	hup := cli.ReloadSignal()
	defer cli.StopReload(hup)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-hup:
				slog.Info("received SIGHUP, reloading configuration")
				_ = reload()
			}
		}
	}()

	srv := server.NewServer(server.Options{
		Proxy:               &cfg.Proxy,
		Telemetry:           tel,
		TelemetryConfig:     &cfg.Telemetry,
		Edge:                edge,
		MaxRequestBodyBytes: cfg.Upstream.MaxRequestBodyBytes,
		Version:             Version,
		Commit:              GitCommit,
		BuildTime:           BuildDate,
	})

	fmt.Fprintf(out, "✓ Server listening on %s\n", cfg.Proxy.ListenAddress)
	if cfg.Telemetry.Health.Enabled {
		fmt.Fprintf(out, "✓ Health endpoint: http://%s%s\n", cfg.Proxy.ListenAddress, cfg.Telemetry.Health.LivenessPath)
	}
	if cfg.Telemetry.Metrics.Enabled {
		fmt.Fprintf(out, "✓ Metrics endpoint: http://%s%s\n", cfg.Proxy.ListenAddress, cfg.Telemetry.Metrics.Path)
	}
	fmt.Fprintln(out, "\nPress Ctrl+C to stop")

	if err := srv.Start(ctx); err != nil {
		return cli.NewCommandError("run", err)
	}

	fmt.Fprintln(out, "✓ Server stopped")
	return nil
}

func printBanner(cmd *cobra.Command, cfg *config.Config) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Marquee v%s\n", Version)
	fmt.Fprintf(out, "Loading configuration from: %s\n", cfgFile)
	fmt.Fprintln(out, "✓ Configuration loaded")

	slog.Debug("upstream configured",
		"region", cfg.Upstream.Region,
		"timeout", cfg.Upstream.Timeout,
		"max_concurrent", cfg.Admission.MaxConcurrent,
	)
	if cfg.Cache.Durable.Enabled {
		slog.Debug("durable cache enabled", "backend", cfg.Cache.Durable.Backend)
	}
}
