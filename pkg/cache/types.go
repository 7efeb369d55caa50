package cache

import (
	"context"
	"net/http"
	"time"
)

// Backend stores opaque values under string keys. Implementations must be
// safe for concurrent use, enforce their maximum entry count on every Put,
// and never return an entry whose TTL has elapsed.
type Backend interface {
	// Get returns the value stored under key. The boolean is false when the
	// key is absent or expired.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Put stores value under key, replacing any existing entry, then evicts
	// the oldest-stored entries until the size bound holds. A non-positive
	// ttl stores nothing.
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// List returns the live keys beginning with prefix, oldest first.
	List(ctx context.Context, prefix string) ([]string, error)

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Len returns the number of stored entries, including expired entries
	// that have not yet been removed.
	Len(ctx context.Context) (int, error)

	// Sweep removes every expired entry and returns how many were removed.
	Sweep(ctx context.Context) (int, error)

	// Close releases the backend's resources.
	Close() error
}

// Pinger is implemented by backends that depend on an external service.
type Pinger interface {
	Ping(ctx context.Context) error
}

// EvictReason explains why an entry left a backend.
type EvictReason string

const (
	// EvictCapacity means the entry was the oldest when the size bound was exceeded.
	EvictCapacity EvictReason = "capacity"
	// EvictExpired means the entry's TTL elapsed.
	EvictExpired EvictReason = "expired"
)

// EvictFunc is called once for every evicted key, outside backend locks.
type EvictFunc func(key string, reason EvictReason)

// BackendOptions are shared by all backend implementations.
type BackendOptions struct {
	// MaxEntries bounds the number of stored entries. Zero means unbounded.
	MaxEntries int

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time

	// OnEvict is notified of capacity and expiry evictions.
	OnEvict EvictFunc
}

func (o BackendOptions) withDefaults() BackendOptions {
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.OnEvict == nil {
		o.OnEvict = func(string, EvictReason) {}
	}
	return o
}

// Snapshot is a fully materialized upstream response. It is the value the
// Store keeps per key and may be read any number of times.
type Snapshot struct {
	StatusCode int                 `cbor:"1,keyasint"`
	Header     map[string][]string `cbor:"2,keyasint"`
	Body       []byte              `cbor:"3,keyasint"`
	StoredAt   int64               `cbor:"4,keyasint"`
}

// OK reports whether the snapshot's status is in the 2xx range.
func (s *Snapshot) OK() bool {
	return s.StatusCode >= 200 && s.StatusCode <= 299
}

// HTTPHeader returns a copy of the snapshot headers.
func (s *Snapshot) HTTPHeader() http.Header {
	return http.Header(s.Header).Clone()
}

// Age returns how long ago the snapshot was stored.
func (s *Snapshot) Age(now time.Time) time.Duration {
	if s.StoredAt == 0 {
		return 0
	}
	return now.Sub(time.Unix(0, s.StoredAt))
}

// Recorder receives cache metrics. The telemetry collector satisfies it.
type Recorder interface {
	RecordCacheHit(cache string)
	RecordCacheMiss(cache string)
	RecordCacheEviction(cache, reason string)
	UpdateCacheSize(cache string, size int)
}

type nopRecorder struct{}

func (nopRecorder) RecordCacheHit(string)              {}
func (nopRecorder) RecordCacheMiss(string)             {}
func (nopRecorder) RecordCacheEviction(string, string) {}
func (nopRecorder) UpdateCacheSize(string, int)        {}
