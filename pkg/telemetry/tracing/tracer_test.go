package tracing

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"mercator-hq/marquee/pkg/config"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		config  *config.TracingConfig
		enabled bool
		wantErr bool
	}{
		{name: "nil config", config: nil, wantErr: true},
		{
			name:   "disabled",
			config: &config.TracingConfig{Enabled: false, ServiceName: "marquee"},
		},
		{
			name: "enabled ratio",
			config: &config.TracingConfig{
				Enabled:     true,
				Endpoint:    "localhost:4317",
				Insecure:    true,
				Sampler:     SamplerRatio,
				SampleRatio: 0.5,
				ServiceName: "marquee",
			},
			enabled: true,
		},
		{
			name: "enabled without endpoint",
			config: &config.TracingConfig{
				Enabled:     true,
				Sampler:     SamplerAlways,
				ServiceName: "marquee",
			},
			wantErr: true,
		},
		{
			name: "bad sampler",
			config: &config.TracingConfig{
				Enabled:  true,
				Endpoint: "localhost:4317",
				Sampler:  "sometimes",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracer, err := New(tt.config)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			defer tracer.Shutdown(context.Background())

			if tracer.Enabled() != tt.enabled {
				t.Errorf("Enabled() = %v, want %v", tracer.Enabled(), tt.enabled)
			}
			_, span := tracer.Start(context.Background(), "check")
			span.End()
		})
	}
}

func TestCreateSampler(t *testing.T) {
	tests := []struct {
		strategy string
		ratio    float64
		wantErr  bool
	}{
		{SamplerAlways, 0, false},
		{"", 0, false},
		{SamplerNever, 0, false},
		{SamplerRatio, 0.25, false},
		{SamplerRatio, 1.5, true},
		{SamplerRatio, -0.1, true},
		{"bogus", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.strategy, func(t *testing.T) {
			s, err := createSampler(tt.strategy, tt.ratio)
			if (err != nil) != tt.wantErr {
				t.Fatalf("createSampler(%q, %v) error = %v", tt.strategy, tt.ratio, err)
			}
			if err == nil && s == nil {
				t.Fatal("expected sampler")
			}
		})
	}
}

func TestNilTracerIsSafe(t *testing.T) {
	var tracer *Tracer
	_, span := tracer.Start(context.Background(), "x")
	span.End()
	if tracer.Enabled() {
		t.Error("nil tracer reported enabled")
	}
	if err := tracer.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() = %v", err)
	}
}

func TestSpanStatusHelpers(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	tracer := NewWithProvider(tp)

	_, ok := tracer.Start(context.Background(), "ok")
	SetStatus(ok, nil)
	SetHTTPStatus(ok, 200)
	ok.End()

	_, failed := tracer.Start(context.Background(), "failed")
	SetStatus(failed, errors.New("boom"))
	failed.End()

	_, upstream := tracer.Start(context.Background(), "upstream")
	SetHTTPStatus(upstream, 502)
	upstream.End()

	spans := rec.Ended()
	if len(spans) != 3 {
		t.Fatalf("got %d spans, want 3", len(spans))
	}
	if spans[0].Status().Code != codes.Ok {
		t.Errorf("ok span status = %v", spans[0].Status().Code)
	}
	if spans[1].Status().Code != codes.Error || len(spans[1].Events()) == 0 {
		t.Errorf("failed span should carry error status and event")
	}
	if spans[2].Status().Code != codes.Error {
		t.Errorf("5xx span status = %v", spans[2].Status().Code)
	}
}

func TestPropagationRoundTrip(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	defer otel.SetTextMapPropagator(prev)

	tp := sdktrace.NewTracerProvider()
	tracer := NewWithProvider(tp)

	ctx, span := tracer.Start(context.Background(), "parent")
	defer span.End()

	headers := http.Header{}
	Inject(ctx, headers)
	if headers.Get("traceparent") == "" {
		t.Fatal("traceparent not injected")
	}

	got := TraceID(Extract(context.Background(), headers))
	if got != span.SpanContext().TraceID().String() {
		t.Errorf("extracted trace ID = %q, want %q", got, span.SpanContext().TraceID())
	}
}

func TestHTTPMiddlewareEchoesTraceID(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	defer otel.SetTextMapPropagator(prev)

	h := HTTPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/3/movie/1", nil)
	req.Header.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Trace-ID"); got != "4bf92f3577b34da6a3ce929d0e0e4736" {
		t.Errorf("X-Trace-ID = %q", got)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if got := rec.Header().Get("X-Trace-ID"); got != "" {
		t.Errorf("X-Trace-ID without parent = %q, want empty", got)
	}
}
