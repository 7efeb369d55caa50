// Package testorigin provides a scriptable origin server for proxy tests.
package testorigin

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// MockOrigin is an httptest server that answers with scripted responses
// and records what it received.
type MockOrigin struct {
	server    *httptest.Server
	responses map[string]MockResponse
	fallback  *MockResponse

	mu           sync.Mutex
	requestCount int
	inFlight     int
	peakInFlight int
	lastRequest  *RecordedRequest
}

// MockResponse defines a scripted response.
type MockResponse struct {
	StatusCode int
	Body       []byte
	Delay      time.Duration
	Headers    map[string]string
}

// RecordedRequest is what the origin saw for one request.
type RecordedRequest struct {
	Method   string
	URI      string
	Header   http.Header
	Body     []byte
	Received time.Time
}

// NewMockOrigin starts a mock origin. Unscripted paths answer 404.
func NewMockOrigin() *MockOrigin {
	mo := &MockOrigin{
		responses: make(map[string]MockResponse),
	}
	mo.server = httptest.NewServer(http.HandlerFunc(mo.handler))
	return mo
}

// URL returns the origin's base URL.
func (mo *MockOrigin) URL() string {
	return mo.server.URL
}

// Close stops the origin.
func (mo *MockOrigin) Close() {
	mo.server.CloseClientConnections()
	mo.server.Close()
}

// SetResponse scripts the response for path.
func (mo *MockOrigin) SetResponse(path string, response MockResponse) {
	mo.mu.Lock()
	defer mo.mu.Unlock()

	mo.responses[path] = response
}

// SetDefault scripts the response for every unscripted path.
func (mo *MockOrigin) SetDefault(response MockResponse) {
	mo.mu.Lock()
	defer mo.mu.Unlock()

	mo.fallback = &response
}

// GetRequestCount returns the number of requests received.
func (mo *MockOrigin) GetRequestCount() int {
	mo.mu.Lock()
	defer mo.mu.Unlock()

	return mo.requestCount
}

// PeakInFlight returns the highest number of requests served at once.
func (mo *MockOrigin) PeakInFlight() int {
	mo.mu.Lock()
	defer mo.mu.Unlock()

	return mo.peakInFlight
}

// LastRequest returns the most recent request, or nil.
func (mo *MockOrigin) LastRequest() *RecordedRequest {
	mo.mu.Lock()
	defer mo.mu.Unlock()

	return mo.lastRequest
}

// ResetRequestCount resets the counters.
func (mo *MockOrigin) ResetRequestCount() {
	mo.mu.Lock()
	defer mo.mu.Unlock()

	mo.requestCount = 0
	mo.peakInFlight = 0
}

func (mo *MockOrigin) handler(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	mo.mu.Lock()
	mo.requestCount++
	mo.inFlight++
	if mo.inFlight > mo.peakInFlight {
		mo.peakInFlight = mo.inFlight
	}
	mo.lastRequest = &RecordedRequest{
		Method:   r.Method,
		URI:      r.URL.RequestURI(),
		Header:   r.Header.Clone(),
		Body:     body,
		Received: time.Now(),
	}
	response, ok := mo.responses[r.URL.Path]
	if !ok && mo.fallback != nil {
		response, ok = *mo.fallback, true
	}
	mo.mu.Unlock()

	defer func() {
		mo.mu.Lock()
		mo.inFlight--
		mo.mu.Unlock()
	}()

	if !ok {
		http.NotFound(w, r)
		return
	}

	if response.Delay > 0 {
		select {
		case <-time.After(response.Delay):
		case <-r.Context().Done():
			return
		}
	}

	for key, value := range response.Headers {
		w.Header().Set(key, value)
	}

	status := response.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if len(response.Body) > 0 {
		_, _ = w.Write(response.Body)
	}
}

// MockStatus creates a response with status and a short text body.
func MockStatus(status int, body string) MockResponse {
	return MockResponse{
		StatusCode: status,
		Body:       []byte(body),
		Headers:    map[string]string{"Content-Type": "text/plain"},
	}
}

// MockJSON creates a 200 JSON response.
func MockJSON(body string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       []byte(body),
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}

// MockSlow creates a 200 response delivered after delay.
func MockSlow(delay time.Duration, body string) MockResponse {
	resp := MockStatus(http.StatusOK, body)
	resp.Delay = delay
	return resp
}
