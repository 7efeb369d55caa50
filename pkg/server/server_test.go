package server

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"mercator-hq/marquee/pkg/config"
	"mercator-hq/marquee/pkg/proxy/middleware"
	"mercator-hq/marquee/pkg/telemetry"
)

func testOptions(edge http.Handler) Options {
	cfg := config.Default()
	cfg.Proxy.ListenAddress = "127.0.0.1:0"
	cfg.Proxy.ShutdownTimeout = 2 * time.Second

	return Options{
		Proxy:               &cfg.Proxy,
		Telemetry:           telemetry.NewForTest(io.Discard),
		TelemetryConfig:     &cfg.Telemetry,
		Edge:                edge,
		MaxRequestBodyBytes: 32,
		Version:             "1.2.3",
	}
}

func TestServerHandlerRoutes(t *testing.T) {
	edge := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "edge:"+r.URL.Path)
	})
	h := NewServer(testOptions(edge)).Handler()

	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
		wantBody   string
	}{
		{name: "root", method: http.MethodGet, path: "/", wantStatus: http.StatusOK, wantBody: "OK"},
		{name: "liveness", method: http.MethodGet, path: "/health", wantStatus: http.StatusOK, wantBody: `"status":"ok"`},
		{name: "readiness", method: http.MethodGet, path: "/ready", wantStatus: http.StatusOK},
		{name: "version", method: http.MethodGet, path: "/version", wantStatus: http.StatusOK, wantBody: `"version":"1.2.3"`},
		{name: "metrics", method: http.MethodGet, path: "/metrics", wantStatus: http.StatusOK},
		{name: "proxied", method: http.MethodGet, path: "/3/movie/1", wantStatus: http.StatusOK, wantBody: "edge:/3/movie/1"},
		{name: "options on root reaches edge", method: http.MethodOptions, path: "/", wantStatus: http.StatusOK, wantBody: "edge:/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if tt.wantBody != "" && !strings.Contains(w.Body.String(), tt.wantBody) {
				t.Errorf("body = %q, want it to contain %q", w.Body.String(), tt.wantBody)
			}
			if w.Header().Get(middleware.RequestIDHeader) == "" {
				t.Error("missing X-Request-ID")
			}
		})
	}
}

func TestServerRecoversPanics(t *testing.T) {
	edge := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})
	h := NewServer(testOptions(edge)).Handler()

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/3/panic", nil))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
	if !strings.Contains(w.Body.String(), "internal_error") {
		t.Errorf("body = %q", w.Body.String())
	}
}

func TestServerBodyLimit(t *testing.T) {
	edge := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("oversized request reached the edge handler")
	})
	h := NewServer(testOptions(edge)).Handler()

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/3/list", strings.NewReader(strings.Repeat("x", 64))))

	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", w.Code)
	}
}

func TestServerStartAndShutdown(t *testing.T) {
	opts := testOptions(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "edge")
	}))
	srv := NewServer(opts)

	done := make(chan error, 1)
	go func() { done <- srv.Start(context.Background()) }()

	deadline := time.Now().Add(2 * time.Second)
	for srv.Addr() == nil {
		if time.Now().After(deadline) {
			t.Fatal("server did not start")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if !srv.IsRunning() {
		t.Error("IsRunning() = false after start")
	}

	resp, err := http.Get("http://" + srv.Addr().String() + "/3/movie/1")
	if err != nil {
		t.Fatalf("GET error = %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != "edge" {
		t.Errorf("body = %q, want edge", body)
	}

	srv.Shutdown()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}

	if srv.IsRunning() {
		t.Error("IsRunning() = true after shutdown")
	}
	if status := opts.Telemetry.Health.CheckReadiness(context.Background()); status.Ready() {
		t.Error("readiness still ok after shutdown")
	}
}

func TestServerStartFailsOnBusyAddress(t *testing.T) {
	busy := httptest.NewServer(http.NotFoundHandler())
	defer busy.Close()

	opts := testOptions(nil)
	opts.Proxy.ListenAddress = strings.TrimPrefix(busy.URL, "http://")

	if err := NewServer(opts).Start(context.Background()); err == nil {
		t.Fatal("Start() on a bound address succeeded")
	}
}
