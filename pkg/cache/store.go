package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Store is the response cache: it keeps successful response snapshots in a
// Backend and reports hits, misses and evictions to a Recorder.
type Store struct {
	name     string
	backend  Backend
	codec    Codec
	now      func() time.Time
	recorder Recorder
	logger   *slog.Logger
}

// StoreOption customizes a Store.
type StoreOption func(*Store)

// WithCodec sets the snapshot codec.
func WithCodec(c Codec) StoreOption {
	return func(s *Store) { s.codec = c }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) StoreOption {
	return func(s *Store) {
		if r != nil {
			s.recorder = r
		}
	}
}

// WithClock sets the clock used for snapshot timestamps.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

// NewStore creates a named Store over backend.
func NewStore(name string, backend Backend, opts ...StoreOption) *Store {
	s := &Store{
		name:     name,
		backend:  backend,
		now:      time.Now,
		recorder: nopRecorder{},
		logger:   slog.Default().With("component", "cache.store", "store", name),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EvictionRecorder adapts a Recorder into an EvictFunc for the named store.
// Pass it as BackendOptions.OnEvict when building the store's backend.
func EvictionRecorder(name string, r Recorder) EvictFunc {
	if r == nil {
		return nil
	}
	return func(_ string, reason EvictReason) {
		r.RecordCacheEviction(name, string(reason))
	}
}

// Name returns the store name used in logs and metrics.
func (s *Store) Name() string {
	return s.name
}

// Backend returns the underlying backend.
func (s *Store) Backend() Backend {
	return s.backend
}

// Get returns the snapshot stored under key. A corrupt value is deleted and
// reported as a BackendError.
func (s *Store) Get(ctx context.Context, key string) (*Snapshot, bool, error) {
	data, ok, err := s.backend.Get(ctx, key)
	if err != nil {
		s.recorder.RecordCacheMiss(s.name)
		return nil, false, &BackendError{Backend: s.name, Op: "get", Err: err}
	}
	if !ok {
		s.recorder.RecordCacheMiss(s.name)
		return nil, false, nil
	}

	snap, err := s.codec.Decode(data)
	if err != nil {
		s.recorder.RecordCacheMiss(s.name)
		if derr := s.backend.Delete(ctx, key); derr != nil {
			s.logger.Warn("failed to delete corrupt entry", "key", key, "error", derr)
		}
		return nil, false, &BackendError{Backend: s.name, Op: "decode", Err: err}
	}

	s.recorder.RecordCacheHit(s.name)
	return snap, true, nil
}

// Put stores snap under key for ttl. Non-2xx snapshots and non-positive
// TTLs are ignored; the boolean reports whether a write happened.
//
// Parameters:
//   - ctx: Context for the backend write
//   - key: Cache key produced by the route's key function
//   - snap: Fully materialized response
//   - ttl: Lifetime of the entry
//
// Example usage:
//
//	if _, err := store.Put(ctx, key, snap, route.TTL); err != nil {
//	    logger.Warn("cache write failed", "error", err)
//	}
func (s *Store) Put(ctx context.Context, key string, snap *Snapshot, ttl time.Duration) (bool, error) {
	if snap == nil || !snap.OK() || ttl <= 0 {
		return false, nil
	}

	stored := *snap
	stored.StoredAt = s.now().UnixNano()

	data, err := s.codec.Encode(&stored)
	if err != nil {
		return false, &BackendError{Backend: s.name, Op: "encode", Err: err}
	}

	if err := s.backend.Put(ctx, key, data, ttl); err != nil {
		return false, &BackendError{Backend: s.name, Op: "put", Err: err}
	}

	s.refreshSize(ctx)
	return true, nil
}

// List returns live keys beginning with prefix.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	keys, err := s.backend.List(ctx, prefix)
	if err != nil {
		return nil, &BackendError{Backend: s.name, Op: "list", Err: err}
	}
	return keys, nil
}

// Delete removes key.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.backend.Delete(ctx, key); err != nil {
		return &BackendError{Backend: s.name, Op: "delete", Err: err}
	}
	s.refreshSize(ctx)
	return nil
}

// Purge deletes every live key beginning with prefix and returns the count.
func (s *Store) Purge(ctx context.Context, prefix string) (int, error) {
	keys, err := s.List(ctx, prefix)
	if err != nil {
		return 0, err
	}

	var errs []error
	deleted := 0
	for _, key := range keys {
		if err := s.backend.Delete(ctx, key); err != nil {
			errs = append(errs, err)
			continue
		}
		deleted++
	}
	s.refreshSize(ctx)

	if len(errs) > 0 {
		return deleted, &BackendError{Backend: s.name, Op: "purge", Err: errors.Join(errs...)}
	}
	return deleted, nil
}

// Sweep removes expired entries from the backend.
func (s *Store) Sweep(ctx context.Context) (int, error) {
	n, err := s.backend.Sweep(ctx)
	if err != nil {
		return n, &BackendError{Backend: s.name, Op: "sweep", Err: err}
	}
	s.refreshSize(ctx)
	return n, nil
}

// Ping checks the backend when it depends on an external resource.
func (s *Store) Ping(ctx context.Context) error {
	if p, ok := s.backend.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Close closes the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}

func (s *Store) refreshSize(ctx context.Context) {
	if n, err := s.backend.Len(ctx); err == nil {
		s.recorder.UpdateCacheSize(s.name, n)
	}
}
