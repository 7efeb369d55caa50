package proxy

import (
	"io"
	"net/http"
	"sync"
)

// Cache outcomes reported in X-Cache and metrics.
const (
	CacheHit    = "HIT"
	CacheMiss   = "MISS"
	CacheBypass = "BYPASS"
)

// Request is the pipeline's view of an inbound request. It is immutable
// once built; every upstream attempt reads from it.
type Request struct {
	Method string

	// Path is the escaped request path.
	Path string

	// RawQuery is appended to upstream URLs verbatim.
	RawQuery string

	Header http.Header

	// Body is buffered so failover attempts can replay it. Nil when the
	// request has no body.
	Body []byte
}

// HasBody reports whether the request carries a body.
func (r *Request) HasBody() bool {
	return len(r.Body) > 0
}

// NewRequest builds a Request from an inbound HTTP request and its
// already-read body.
func NewRequest(r *http.Request, body []byte) *Request {
	return &Request{
		Method:   r.Method,
		Path:     r.URL.EscapedPath(),
		RawQuery: r.URL.RawQuery,
		Header:   r.Header.Clone(),
		Body:     body,
	}
}

// Response is what the pipeline relays to the client. Body must be closed;
// closing it releases any admission ticket still held for the request.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       io.ReadCloser

	// Cache is CacheHit, CacheMiss or CacheBypass.
	Cache string

	// Origin names the candidate that produced the response; empty on a hit.
	Origin string

	// Attempts counts upstream attempts made.
	Attempts int
}

// OK reports whether the status is 2xx.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode <= 299
}

// releasingBody closes the wrapped body and then runs each release func
// once, however many times Close is called.
type releasingBody struct {
	io.Reader
	closer  io.Closer
	once    sync.Once
	release []func()
}

func newReleasingBody(r io.Reader, closer io.Closer, release ...func()) *releasingBody {
	return &releasingBody{Reader: r, closer: closer, release: release}
}

func (b *releasingBody) Close() error {
	var err error
	b.once.Do(func() {
		if b.closer != nil {
			err = b.closer.Close()
		}
		for _, fn := range b.release {
			fn()
		}
	})
	return err
}
