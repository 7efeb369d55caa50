package proxy

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"mercator-hq/marquee/pkg/admission"
	"mercator-hq/marquee/pkg/cache"
	"mercator-hq/marquee/pkg/config"
	"mercator-hq/marquee/pkg/proxy/header"
	"mercator-hq/marquee/pkg/routing"
	"mercator-hq/marquee/pkg/telemetry/logging"
	"mercator-hq/marquee/pkg/telemetry/tracing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Upstream attempt outcomes.
const (
	OutcomeAccepted = "accepted"
	OutcomeRejected = "rejected"
	OutcomeTimeout  = "timeout"
	OutcomeError    = "error"
)

// mediaFallbackContentType is relayed for media responses without one.
const mediaFallbackContentType = "image/jpeg"

// drainLimit bounds how much of a rejected body is read to reuse the
// connection.
const drainLimit = 64 << 10

// Recorder receives upstream attempt metrics.
type Recorder interface {
	RecordUpstreamAttempt(origin, outcome string, duration time.Duration)
	RecordFailover(route string)
}

type nopRecorder struct{}

func (nopRecorder) RecordUpstreamAttempt(string, string, time.Duration) {}
func (nopRecorder) RecordFailover(string)                               {}

// PipelineOptions wires a Pipeline.
type PipelineOptions struct {
	Admission *admission.Controller
	Upstream  *Upstream

	// Stores maps store names referenced by routes to response stores.
	Stores map[string]*cache.Store

	CORS header.CORSPolicy

	// MaxCacheableBytes is the largest body written through to a store.
	MaxCacheableBytes int64

	// AdmissionWait bounds the wait for a ticket. Zero waits until the
	// request context ends.
	AdmissionWait time.Duration

	Recorder Recorder
	Tracer   *tracing.Tracer

	// Now is the clock used for Age headers.
	Now func() time.Time
}

// Pipeline runs the per-request state machine.
type Pipeline struct {
	admission     *admission.Controller
	upstream      *Upstream
	stores        map[string]*cache.Store
	cors          header.CORSPolicy
	maxCacheable  int64
	admissionWait time.Duration
	recorder      Recorder
	tracer        *tracing.Tracer
	now           func() time.Time
	logger        *slog.Logger
}

// NewPipeline creates a Pipeline.
func NewPipeline(opts PipelineOptions) *Pipeline {
	p := &Pipeline{
		admission:     opts.Admission,
		upstream:      opts.Upstream,
		stores:        opts.Stores,
		cors:          opts.CORS,
		maxCacheable:  opts.MaxCacheableBytes,
		admissionWait: opts.AdmissionWait,
		recorder:      opts.Recorder,
		tracer:        opts.Tracer,
		now:           opts.Now,
		logger:        slog.Default().With("component", "proxy.pipeline"),
	}
	if p.recorder == nil {
		p.recorder = nopRecorder{}
	}
	if p.now == nil {
		p.now = time.Now
	}
	if p.maxCacheable <= 0 {
		p.maxCacheable = config.DefaultUpstreamMaxCacheable
	}
	if p.stores == nil {
		p.stores = map[string]*cache.Store{}
	}
	return p
}

// upstreamResult is the accepted attempt.
type upstreamResult struct {
	resp     *http.Response
	origin   string
	attempts int

	// body holds the materialized body when complete is set, otherwise
	// the prefix already read from resp.Body.
	body     []byte
	complete bool

	// stream relays the rest of the body when complete is not set.
	stream io.ReadCloser
}

// Serve runs req through the pipeline for route. On success the caller
// must close the response body.
//
// The admission ticket taken here travels with the response body and is
// released when that body is closed.
//
// Parameters:
//   - ctx: Request context; bounds admission wait and every upstream attempt
//   - route: Matched route carrying origins, TTL and failover settings
//   - req: Buffered client request
//
// Example usage:
//
//	resp, err := pipeline.Serve(ctx, route, proxy.NewRequest(r, body))
//	if err != nil {
//	    WriteErrorResponse(w, proxy.HandleError(err))
//	    return
//	}
//	defer resp.Body.Close()
func (p *Pipeline) Serve(ctx context.Context, route *routing.Route, req *Request) (*Response, error) {
	ctx, span := p.tracer.Start(ctx, "edge.pipeline", trace.WithAttributes(
		attribute.String(tracing.AttrHTTPMethod, req.Method),
		attribute.String(tracing.AttrHTTPTarget, req.Path),
	))
	defer span.End()
	logger := logging.FromContext(ctx, p.logger)

	// ADMITTED
	ticket, err := p.acquire(ctx)
	if err != nil {
		tracing.SetStatus(span, err)
		return nil, err
	}
	handedOff := false
	defer func() {
		if !handedOff {
			ticket.Release()
		}
	}()

	candidates := route.Selector.CandidatesFor(req.Path)
	if len(candidates) == 0 {
		err := &routing.NoCandidatesError{Route: route.Name}
		tracing.SetStatus(span, err)
		return nil, err
	}

	// The key is fixed by the primary candidate for the whole request.
	key := cache.BuildKey(req.Method, candidates[0].Target(req.Path, req.RawQuery))
	store := p.storeFor(route, req)

	// CACHE_CHECK
	if store != nil {
		if resp, ok := p.lookup(ctx, store, route, key); ok {
			tracing.SetCacheAttributes(span, store.Name(), key, CacheHit)
			return resp, nil
		}
	}

	// UPSTREAM_ATTEMPT
	res, err := p.attemptAll(ctx, route, candidates, req, store != nil)
	if err != nil {
		logger.Warn("all candidates failed", "error", err)
		tracing.SetStatus(span, err)
		return nil, err
	}

	// SUCCESS
	outcome := CacheBypass
	if store != nil {
		outcome = CacheMiss
		tracing.SetCacheAttributes(span, store.Name(), key, CacheMiss)
	}

	stored := header.StripHopByHop(res.resp.Header, header.Response)
	stored.Del("Content-Length")
	if route.Class == config.ClassMedia && stored.Get("Content-Type") == "" {
		stored.Set("Content-Type", mediaFallbackContentType)
	}

	out := &Response{
		StatusCode: res.resp.StatusCode,
		Header:     header.ApplyResponsePolicy(stored, route.TTLSeconds(), p.cors),
		Cache:      outcome,
		Origin:     res.origin,
		Attempts:   res.attempts,
	}
	out.Header.Set("X-Cache", outcome)

	if !res.complete {
		if res.resp.ContentLength >= 0 {
			out.Header.Set("Content-Length", strconv.FormatInt(res.resp.ContentLength, 10))
		}
		var r io.Reader = res.stream
		if len(res.body) > 0 {
			r = io.MultiReader(bytes.NewReader(res.body), res.stream)
		}
		out.Body = newReleasingBody(r, res.stream, ticket.Release)
		handedOff = true
		if store != nil {
			logger.Debug("response too large to cache", "key", key, "limit", p.maxCacheable)
		}
		return out, nil
	}

	out.Header.Set("Content-Length", strconv.Itoa(len(res.body)))
	out.Body = io.NopCloser(bytes.NewReader(res.body))

	// CACHE_WRITE
	if store != nil {
		snap := &cache.Snapshot{
			StatusCode: res.resp.StatusCode,
			Header:     stored,
			Body:       res.body,
		}
		if _, err := store.Put(context.WithoutCancel(ctx), key, snap, route.TTL); err != nil {
			logger.Warn("cache write failed", "store", store.Name(), "key", key, "error", err)
		}
	}

	return out, nil
}

// Lookup answers from the route's cache without admission or upstream
// calls. HEAD requests are looked up under the GET key of the same URL.
func (p *Pipeline) Lookup(ctx context.Context, route *routing.Route, req *Request) (*Response, bool) {
	if !route.Cache {
		return nil, false
	}
	store := p.stores[route.Store]
	if store == nil {
		return nil, false
	}
	candidates := route.Selector.CandidatesFor(req.Path)
	if len(candidates) == 0 {
		return nil, false
	}

	method := req.Method
	if method == http.MethodHead {
		method = http.MethodGet
	}
	key := cache.BuildKey(method, candidates[0].Target(req.Path, req.RawQuery))
	return p.lookup(ctx, store, route, key)
}

func (p *Pipeline) acquire(ctx context.Context) (*admission.Ticket, error) {
	if p.admissionWait <= 0 {
		return p.admission.Acquire(ctx)
	}
	waitCtx, cancel := context.WithTimeout(ctx, p.admissionWait)
	defer cancel()
	return p.admission.Acquire(waitCtx)
}

func (p *Pipeline) storeFor(route *routing.Route, req *Request) *cache.Store {
	if !route.Cache || !cache.Cacheable(req.Method, req.HasBody()) {
		return nil
	}
	store := p.stores[route.Store]
	if store == nil {
		p.logger.Debug("route store not configured, bypassing cache", "route", route.Name, "store", route.Store)
	}
	return store
}

func (p *Pipeline) lookup(ctx context.Context, store *cache.Store, route *routing.Route, key string) (*Response, bool) {
	snap, ok, err := store.Get(ctx, key)
	if err != nil {
		logging.FromContext(ctx, p.logger).Warn("cache read failed, treating as miss",
			"store", store.Name(), "key", key, "error", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}

	age := snap.Age(p.now())
	if age < 0 {
		age = 0
	}

	h := header.ApplyResponsePolicy(snap.HTTPHeader(), route.TTLSeconds(), p.cors)
	h.Set("X-Cache", CacheHit)
	h.Set("Age", strconv.Itoa(int(age/time.Second)))
	h.Set("Content-Length", strconv.Itoa(len(snap.Body)))

	return &Response{
		StatusCode: snap.StatusCode,
		Header:     h,
		Body:       io.NopCloser(bytes.NewReader(snap.Body)),
		Cache:      CacheHit,
	}, true
}

// attemptAll walks candidates in order. With more than one candidate only
// an exact 200 is accepted; a lone candidate's answer is relayed whatever
// its status, including on a failover route whose region filter left one
// origin. When materialize is set, 2xx bodies up to the cacheable limit
// are read during the attempt so a mid-body fault can fail over. Anything
// left to relay is handed over as a stream, free of the attempt deadline.
func (p *Pipeline) attemptAll(ctx context.Context, route *routing.Route, candidates []routing.Candidate, req *Request, materialize bool) (*upstreamResult, error) {
	logger := logging.FromContext(ctx, p.logger)
	failures := make([]error, 0, len(candidates))
	failover := route.Failover && len(candidates) > 1

	for i, c := range candidates {
		target := c.Target(req.Path, req.RawQuery)
		actx, span := p.tracer.Start(ctx, "edge.upstream")
		tracing.SetOriginAttributes(span, c.Name, target, i+1)
		start := time.Now()

		fail := func(err error, msg string) {
			uerr := &UpstreamUnreachableError{Origin: c.Name, Err: err}
			outcome := OutcomeError
			if uerr.Timeout() {
				outcome = OutcomeTimeout
			}
			p.recorder.RecordUpstreamAttempt(c.Name, outcome, time.Since(start))
			tracing.SetStatus(span, uerr)
			span.End()
			logger.Warn(msg, "origin", c.Name, "attempt", i+1, "error", err)
			failures = append(failures, uerr)
		}

		att, err := p.upstream.Do(actx, target, req, route.FollowRedirects)
		if err != nil {
			fail(err, "upstream attempt failed")
			continue
		}
		resp := att.Response
		tracing.SetHTTPStatus(span, resp.StatusCode)

		if failover && resp.StatusCode != http.StatusOK {
			drainAndClose(resp.Body)
			att.Close()
			p.recorder.RecordUpstreamAttempt(c.Name, OutcomeRejected, time.Since(start))
			span.End()
			logger.Debug("upstream candidate rejected", "origin", c.Name, "attempt", i+1, "status", resp.StatusCode)
			failures = append(failures, &UpstreamStatusError{Origin: c.Name, StatusCode: resp.StatusCode})
			continue
		}

		res := &upstreamResult{resp: resp, origin: c.Name, attempts: i + 1}
		if materialize && resp.StatusCode >= 200 && resp.StatusCode <= 299 {
			body, err := io.ReadAll(io.LimitReader(resp.Body, p.maxCacheable+1))
			if err != nil {
				err = att.Err(err)
				att.Close()
				fail(err, "upstream body read failed")
				continue
			}
			res.body = body
			if int64(len(body)) <= p.maxCacheable {
				res.complete = true
				att.Close()
			}
		}

		if !res.complete {
			stream, ok := att.Stream()
			if !ok {
				att.Close()
				fail(fmt.Errorf("%w after %s before relay", context.DeadlineExceeded, p.upstream.Timeout()), "upstream attempt expired")
				continue
			}
			res.stream = stream
		}

		p.recorder.RecordUpstreamAttempt(c.Name, OutcomeAccepted, time.Since(start))
		span.End()
		if i > 0 {
			p.recorder.RecordFailover(route.Name)
			logger.Info("served by failover candidate", "origin", c.Name, "attempt", i+1)
		}
		return res, nil
	}

	return nil, &AllCandidatesExhaustedError{Route: route.Name, Attempts: failures}
}

func drainAndClose(body io.ReadCloser) {
	_, _ = io.CopyN(io.Discard, body, drainLimit)
	_ = body.Close()
}
