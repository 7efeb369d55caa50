package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"mercator-hq/marquee/pkg/proxy"
	"mercator-hq/marquee/pkg/proxy/header"
	"mercator-hq/marquee/pkg/proxy/middleware"
	"mercator-hq/marquee/pkg/routing"
	"mercator-hq/marquee/pkg/telemetry/logging"
	"mercator-hq/marquee/pkg/telemetry/tracing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// RequestRecorder receives one observation per proxied request.
type RequestRecorder interface {
	RecordRequest(route, class string, status int, cacheOutcome string, duration time.Duration)
}

type nopRequestRecorder struct{}

func (nopRequestRecorder) RecordRequest(string, string, int, string, time.Duration) {}

// unmatchedRoute labels requests that resolved to no route.
const unmatchedRoute = "unmatched"

// EdgeOptions wires an EdgeHandler.
type EdgeOptions struct {
	Router   *routing.Router
	Pipeline *proxy.Pipeline
	Recorder RequestRecorder
	Tracer   *tracing.Tracer

	CORS header.CORSPolicy

	// PreflightMaxAge is sent as Access-Control-Max-Age on OPTIONS.
	PreflightMaxAge int

	// MaxBodyBytes caps buffered request bodies. Zero leaves the cap to
	// the server's body limit middleware.
	MaxBodyBytes int64
}

// EdgeHandler routes inbound requests into the proxy pipeline.
type EdgeHandler struct {
	router   *routing.Router
	pipeline *proxy.Pipeline
	recorder RequestRecorder
	tracer   *tracing.Tracer
	cors     header.CORSPolicy
	maxBody  int64
	handler  http.Handler
	logger   *slog.Logger
}

// NewEdgeHandler creates the proxy-facing handler.
func NewEdgeHandler(opts EdgeOptions) *EdgeHandler {
	h := &EdgeHandler{
		router:   opts.Router,
		pipeline: opts.Pipeline,
		recorder: opts.Recorder,
		tracer:   opts.Tracer,
		cors:     opts.CORS,
		maxBody:  opts.MaxBodyBytes,
		logger:   slog.Default().With("component", "proxy.edge"),
	}
	if h.recorder == nil {
		h.recorder = nopRequestRecorder{}
	}
	h.handler = middleware.PreflightMiddleware(opts.CORS, opts.PreflightMaxAge)(http.HandlerFunc(h.serve))
	return h
}

// ServeHTTP implements http.Handler.
func (h *EdgeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.handler.ServeHTTP(w, r)
}

func (h *EdgeHandler) serve(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()

	route, err := h.router.Resolve(r.URL.Path)
	if err != nil {
		status := h.writeError(ctx, w, err)
		h.recorder.RecordRequest(unmatchedRoute, "", status, proxy.CacheBypass, time.Since(start))
		return
	}

	ctx = logging.WithRoute(ctx, route.Name)
	ctx, span := h.tracer.Start(ctx, "edge.request",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String(tracing.AttrHTTPMethod, r.Method),
			attribute.String(tracing.AttrHTTPTarget, r.URL.EscapedPath()),
			attribute.String(tracing.AttrRequestID, middleware.GetRequestID(ctx)),
		),
	)
	defer span.End()
	tracing.SetRouteAttributes(span, route.Name, route.Class)

	var status int
	var outcome string
	if r.Method == http.MethodHead {
		status, outcome = h.serveHead(ctx, w, r, route)
	} else {
		status, outcome = h.serveProxy(ctx, w, r, route)
	}

	tracing.SetHTTPStatus(span, status)
	span.SetAttributes(attribute.String(tracing.AttrCacheOutcome, outcome))
	h.recorder.RecordRequest(route.Name, route.Class, status, strings.ToLower(outcome), time.Since(start))
}

// serveHead answers from cache alone. Origins are never contacted.
func (h *EdgeHandler) serveHead(ctx context.Context, w http.ResponseWriter, r *http.Request, route *routing.Route) (int, string) {
	if resp, ok := h.pipeline.Lookup(ctx, route, proxy.NewRequest(r, nil)); ok {
		defer resp.Body.Close()
		copyHeader(w.Header(), resp.Header)
		w.WriteHeader(resp.StatusCode)
		return resp.StatusCode, proxy.CacheHit
	}

	copyHeader(w.Header(), header.ApplyResponsePolicy(nil, route.TTLSeconds(), h.cors))
	w.Header().Set("X-Cache", proxy.CacheMiss)
	w.WriteHeader(http.StatusOK)
	return http.StatusOK, proxy.CacheMiss
}

func (h *EdgeHandler) serveProxy(ctx context.Context, w http.ResponseWriter, r *http.Request, route *routing.Route) (int, string) {
	body, err := h.readBody(w, r)
	if err != nil {
		return h.writeError(ctx, w, err), proxy.CacheBypass
	}

	resp, err := h.pipeline.Serve(ctx, route, proxy.NewRequest(r, body))
	if err != nil {
		return h.writeError(ctx, w, err), proxy.CacheBypass
	}
	defer resp.Body.Close()

	copyHeader(w.Header(), resp.Header)
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		logging.FromContext(ctx, h.logger).Debug("response relay interrupted",
			"origin", resp.Origin,
			"error", err,
		)
	}
	return resp.StatusCode, resp.Cache
}

// readBody buffers the request body so failover attempts can replay it.
// GET and HEAD bodies are ignored.
func (h *EdgeHandler) readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	if r.Method == http.MethodGet || r.Method == http.MethodHead {
		return nil, nil
	}
	if r.Body == nil || r.Body == http.NoBody {
		return nil, nil
	}

	src := r.Body
	if h.maxBody > 0 {
		src = http.MaxBytesReader(w, r.Body, h.maxBody)
	}
	body, err := io.ReadAll(src)
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return nil, nil
	}
	return body, nil
}

func (h *EdgeHandler) writeError(ctx context.Context, w http.ResponseWriter, err error) int {
	errResp := proxy.HandleError(err)
	status := errResp.Error.HTTPStatusCode()

	logger := logging.FromContext(ctx, h.logger)
	switch {
	case status >= 500:
		logger.Error("request failed", "status", status, "error", err)
	case errors.Is(err, routing.ErrRouteNotFound):
		logger.Debug("no route", "error", err)
	default:
		logger.Warn("request failed", "status", status, "error", err)
	}

	header.ApplyCORS(w.Header(), h.cors)
	if werr := proxy.WriteErrorResponse(w, errResp); werr != nil {
		logger.Error("failed to write error response", "error", werr)
	}
	return status
}

func copyHeader(dst, src http.Header) {
	for name, values := range src {
		dst[name] = append([]string(nil), values...)
	}
}
