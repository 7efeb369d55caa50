package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"mercator-hq/marquee/pkg/config"
	"mercator-hq/marquee/pkg/proxy/handlers"
	"mercator-hq/marquee/pkg/proxy/middleware"
	"mercator-hq/marquee/pkg/telemetry"
	"mercator-hq/marquee/pkg/telemetry/health"
	"mercator-hq/marquee/pkg/telemetry/tracing"
)

// Options wires a Server.
type Options struct {
	Proxy     *config.ProxyConfig
	Telemetry *telemetry.Telemetry

	// TelemetryConfig supplies the health and metrics mount points.
	TelemetryConfig *config.TelemetryConfig

	// Edge serves every path not claimed by an operational endpoint.
	Edge http.Handler

	// MaxRequestBodyBytes bounds inbound request bodies.
	MaxRequestBodyBytes int64

	Version   string
	Commit    string
	BuildTime string
}

// Server is the inbound HTTP server.
type Server struct {
	opts         Options
	httpServer   *http.Server
	addr         net.Addr
	shutdownChan chan struct{}
	shutdownOnce sync.Once
	mu           sync.RWMutex
	isRunning    bool
	logger       *slog.Logger
}

// NewServer creates a server. Nothing listens until Start.
func NewServer(opts Options) *Server {
	if opts.TelemetryConfig == nil {
		opts.TelemetryConfig = &config.TelemetryConfig{}
	}
	return &Server{
		opts:         opts,
		shutdownChan: make(chan struct{}),
		logger:       slog.Default().With("component", "server"),
	}
}

// Start listens and serves until shutdown. It returns once the server has
// stopped.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}

	ln, err := net.Listen("tcp", s.opts.Proxy.ListenAddress)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to listen on %s: %w", s.opts.Proxy.ListenAddress, err)
	}

	s.httpServer = &http.Server{
		Handler:        s.Handler(),
		ReadTimeout:    s.opts.Proxy.ReadTimeout,
		WriteTimeout:   s.opts.Proxy.WriteTimeout,
		IdleTimeout:    s.opts.Proxy.IdleTimeout,
		MaxHeaderBytes: s.opts.Proxy.MaxHeaderBytes,
	}
	s.addr = ln.Addr()
	s.isRunning = true
	s.mu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting edge server", "address", ln.Addr().String())

		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, initiating shutdown")
	case sig := <-sigChan:
		s.logger.Info("received shutdown signal", "signal", sig.String())
	case err := <-errChan:
		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()
		return err
	case <-s.shutdownChan:
		s.logger.Info("shutdown requested")
	}
	return s.shutdown(context.Background())
}

// Shutdown asks a running Start to stop and waits for nothing; Start
// returns once in-flight requests finish.
func (s *Server) Shutdown() {
	select {
	case <-s.shutdownChan:
	default:
		close(s.shutdownChan)
	}
}

func (s *Server) shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.RLock()
		running := s.isRunning
		s.mu.RUnlock()
		if !running {
			return
		}

		if s.opts.Telemetry != nil {
			s.opts.Telemetry.Health.SetDraining(true)
		}

		timeout := s.opts.Proxy.ShutdownTimeout
		if timeout <= 0 {
			timeout = config.DefaultShutdownTimeout
		}
		s.logger.Info("initiating graceful shutdown", "timeout", timeout.String())

		shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("error during server shutdown", "error", err)
			shutdownErr = fmt.Errorf("server shutdown error: %w", err)
		}

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()

		s.logger.Info("edge server stopped")
	})

	return shutdownErr
}

// Addr returns the bound address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.addr
}

// IsRunning returns true if the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Handler returns the routed handler wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	tcfg := s.opts.TelemetryConfig

	mux.Handle("GET /{$}", handlers.NewRootHandler())

	if tel := s.opts.Telemetry; tel != nil {
		if tcfg.Health.Enabled {
			mux.Handle(pathOr(tcfg.Health.LivenessPath, config.DefaultLivenessPath), tel.Health.LivenessHandler())
			mux.Handle(pathOr(tcfg.Health.ReadinessPath, config.DefaultReadinessPath), tel.Health.ReadinessHandler())
		}
		if tcfg.Metrics.Enabled {
			mux.Handle(pathOr(tcfg.Metrics.Path, config.DefaultMetricsPath), tel.Metrics.Handler())
		}
	}
	mux.Handle("/version", health.VersionHandler(s.opts.Version, s.opts.Commit, s.opts.BuildTime))

	if s.opts.Edge != nil {
		mux.Handle("/", s.opts.Edge)
	}

	var handler http.Handler = mux

	handler = middleware.BodyLimitMiddleware(s.opts.MaxRequestBodyBytes)(handler)
	handler = tracing.HTTPMiddleware(handler)
	handler = middleware.LoggingMiddleware(handler)
	handler = middleware.RequestIDMiddleware(handler)
	// Recovery middleware (outermost)
	handler = middleware.RecoveryMiddleware(handler)

	return handler
}

func pathOr(path, fallback string) string {
	if path == "" {
		return fallback
	}
	return path
}
