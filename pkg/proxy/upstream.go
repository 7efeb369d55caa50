package proxy

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"mercator-hq/marquee/pkg/config"
	"mercator-hq/marquee/pkg/proxy/header"
	"mercator-hq/marquee/pkg/telemetry/tracing"
)

// Upstream issues requests to origins over a shared connection pool. Two
// clients share the transport: one follows redirects, the other hands 3xx
// responses back for relay.
type Upstream struct {
	transport *http.Transport
	follow    *http.Client
	manual    *http.Client
	timeout    time.Duration
	streamIdle time.Duration
	userAgent  string
}

// NewUpstream creates the upstream clients from configuration.
func NewUpstream(cfg config.UpstreamConfig) *Upstream {
	dialer := &net.Dialer{
		Timeout:   cfg.DialTimeout,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         dialer.DialContext,
		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:     cfg.IdleConnTimeout,
		TLSHandshakeTimeout: 10 * time.Second,
		// Bodies are relayed and cached exactly as the origin encoded them.
		DisableCompression: true,
		ForceAttemptHTTP2:  true,
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = config.DefaultUpstreamTimeout
	}

	return &Upstream{
		transport: transport,
		follow:    &http.Client{Transport: transport},
		manual: &http.Client{
			Transport: transport,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		timeout:    timeout,
		streamIdle: cfg.StreamIdleTimeout,
		userAgent:  cfg.UserAgent,
	}
}

// Timeout returns the per-attempt bound.
func (u *Upstream) Timeout() time.Duration {
	return u.timeout
}

// Do sends req to target. The attempt runs under its own deadline detached
// from ctx's cancellation, so a client disconnect does not abort an upstream
// call whose response may still be cached. The deadline keeps running after
// Do returns so that reading a cacheable body stays bounded; call
// Attempt.Stream to lift it before relaying, or Attempt.Close when done.
//
// Parameters:
//   - ctx: Request context, used for trace propagation only
//   - target: Absolute upstream URL
//   - req: Request to forward; its body is replayed for every attempt
//   - followRedirects: Follow 3xx instead of returning them
//
// Example usage:
//
//	att, err := upstream.Do(ctx, target, req, route.FollowRedirects)
//	if err != nil {
//	    return err
//	}
//	defer att.Close()
func (u *Upstream) Do(ctx context.Context, target string, req *Request, followRedirects bool) (*Attempt, error) {
	attemptCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	att := &Attempt{cancel: cancel, timeout: u.timeout, idle: u.streamIdle}
	att.timer = time.AfterFunc(u.timeout, att.expire)

	var body *bytes.Reader
	if req.HasBody() {
		body = bytes.NewReader(req.Body)
	}

	var out *http.Request
	var err error
	if body != nil {
		out, err = http.NewRequestWithContext(attemptCtx, req.Method, target, body)
	} else {
		out, err = http.NewRequestWithContext(attemptCtx, req.Method, target, nil)
	}
	if err != nil {
		att.Close()
		return nil, err
	}

	out.Header = header.StripHopByHop(req.Header, header.Request)
	if u.userAgent != "" {
		out.Header.Set("User-Agent", u.userAgent)
	} else if _, ok := out.Header["User-Agent"]; !ok {
		// Keep net/http from adding its own agent string.
		out.Header["User-Agent"] = nil
	}
	tracing.Inject(attemptCtx, out.Header)

	client := u.manual
	if followRedirects {
		client = u.follow
	}

	resp, err := client.Do(out)
	if err != nil {
		err = att.Err(err)
		att.Close()
		return nil, err
	}
	att.Response = resp
	return att, nil
}

// Attempt is one upstream call with an accepted connection. Until Stream is
// called it is bounded by the upstream timeout; afterwards only by the
// stream idle timeout.
type Attempt struct {
	Response *http.Response

	cancel  context.CancelFunc
	timeout time.Duration
	idle    time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	expired bool
	closed  bool
}

func (a *Attempt) expire() {
	a.mu.Lock()
	a.expired = true
	a.mu.Unlock()
	a.cancel()
}

// Expired reports whether the attempt was cut off by one of its deadlines.
func (a *Attempt) Expired() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.expired
}

// Err rewrites err as a deadline error when the attempt expired, so the
// failure is classified as a timeout rather than a cancellation.
func (a *Attempt) Err(err error) error {
	if err == nil || !a.Expired() {
		return err
	}
	return fmt.Errorf("%w after %s: %v", context.DeadlineExceeded, a.timeout, err)
}

// Stream lifts the attempt deadline and returns the response body for
// relay. Reads then fail only if no progress is made for the idle timeout.
// It returns false when the attempt deadline already fired.
func (a *Attempt) Stream() (io.ReadCloser, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.expired || !a.timer.Stop() {
		return nil, false
	}
	if a.idle > 0 {
		a.timeout = a.idle
		a.timer = time.AfterFunc(a.idle, a.expire)
	}
	return &streamBody{attempt: a}, true
}

// Close stops the deadline, closes the body and releases the connection.
func (a *Attempt) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	a.timer.Stop()
	a.mu.Unlock()

	var err error
	if a.Response != nil {
		err = a.Response.Body.Close()
	}
	a.cancel()
	return err
}

// touch pushes the idle deadline out after read progress.
func (a *Attempt) touch() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.idle > 0 && !a.expired && !a.closed {
		a.timer.Reset(a.idle)
	}
}

// streamBody relays an attempt's body under the idle deadline.
type streamBody struct {
	attempt *Attempt
}

func (b *streamBody) Read(p []byte) (int, error) {
	n, err := b.attempt.Response.Body.Read(p)
	if n > 0 {
		b.attempt.touch()
	}
	if err != nil && err != io.EOF {
		err = b.attempt.Err(err)
	}
	return n, err
}

func (b *streamBody) Close() error {
	return b.attempt.Close()
}

// Close drops idle pooled connections.
func (u *Upstream) Close() {
	u.transport.CloseIdleConnections()
}
