package cache

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type countingRecorder struct {
	mu        sync.Mutex
	hits      int
	misses    int
	evictions map[string]int
	size      int
}

func (r *countingRecorder) RecordCacheHit(string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hits++
}

func (r *countingRecorder) RecordCacheMiss(string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.misses++
}

func (r *countingRecorder) RecordCacheEviction(_, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.evictions == nil {
		r.evictions = make(map[string]int)
	}
	r.evictions[reason]++
}

func (r *countingRecorder) UpdateCacheSize(_ string, size int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.size = size
}

// faultyBackend fails every operation.
type faultyBackend struct{}

var errBackendDown = errors.New("backend down")

func (faultyBackend) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errBackendDown
}
func (faultyBackend) Put(context.Context, string, []byte, time.Duration) error { return errBackendDown }
func (faultyBackend) List(context.Context, string) ([]string, error)        { return nil, errBackendDown }
func (faultyBackend) Delete(context.Context, string) error                  { return errBackendDown }
func (faultyBackend) Len(context.Context) (int, error)                      { return 0, errBackendDown }
func (faultyBackend) Sweep(context.Context) (int, error)                    { return 0, errBackendDown }
func (faultyBackend) Close() error                                          { return nil }

func TestStore_PutOnlyStoresSuccess(t *testing.T) {
	ctx := context.Background()
	store := NewStore("test", NewMemoryBackend(BackendOptions{}))

	tests := []struct {
		status int
		want   bool
	}{
		{200, true},
		{204, true},
		{299, true},
		{301, false},
		{404, false},
		{500, false},
	}

	for _, tt := range tests {
		stored, err := store.Put(ctx, "k", &Snapshot{StatusCode: tt.status}, time.Minute)
		if err != nil {
			t.Fatalf("Put(%d) error = %v", tt.status, err)
		}
		if stored != tt.want {
			t.Errorf("Put(%d) stored = %v, want %v", tt.status, stored, tt.want)
		}
		_ = store.Delete(ctx, "k")
	}
}

func TestStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	recorder := &countingRecorder{}
	store := NewStore("memory",
		NewMemoryBackend(BackendOptions{Now: clock.Now}),
		WithRecorder(recorder),
		WithClock(clock.Now),
	)

	body := bytes.Repeat([]byte{0x89, 'P', 'N', 'G'}, 100)
	in := &Snapshot{
		StatusCode: 200,
		Header:     map[string][]string{"Content-Type": {"image/png"}, "Etag": {`"x"`}},
		Body:       body,
	}

	if _, ok, _ := store.Get(ctx, "k"); ok {
		t.Fatal("unexpected hit on empty store")
	}
	if _, err := store.Put(ctx, "k", in, time.Minute); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	clock.Advance(10 * time.Second)
	got, ok, err := store.Get(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("Get() = ok %v, err %v", ok, err)
	}
	if got.StatusCode != 200 || !bytes.Equal(got.Body, body) {
		t.Errorf("Get() = status %d, %d body bytes", got.StatusCode, len(got.Body))
	}
	if got.HTTPHeader().Get("Content-Type") != "image/png" {
		t.Errorf("Content-Type = %q", got.HTTPHeader().Get("Content-Type"))
	}
	if age := got.Age(clock.Now()); age != 10*time.Second {
		t.Errorf("Age() = %v, want 10s", age)
	}

	if recorder.hits != 1 || recorder.misses != 1 || recorder.size != 1 {
		t.Errorf("recorder = hits %d misses %d size %d", recorder.hits, recorder.misses, recorder.size)
	}
}

func TestStore_BackendFaultsAreTyped(t *testing.T) {
	ctx := context.Background()
	store := NewStore("durable", faultyBackend{})

	_, ok, err := store.Get(ctx, "k")
	if ok || !IsBackendError(err) || !errors.Is(err, errBackendDown) {
		t.Errorf("Get() = ok %v, err %v; want BackendError wrapping errBackendDown", ok, err)
	}

	stored, err := store.Put(ctx, "k", &Snapshot{StatusCode: 200}, time.Minute)
	if stored || !IsBackendError(err) {
		t.Errorf("Put() = stored %v, err %v", stored, err)
	}
}

func TestStore_CorruptEntryIsDeleted(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend(BackendOptions{})
	store := NewStore("memory", backend)

	_ = backend.Put(ctx, "k", []byte{0x7f, 0x01}, time.Minute)

	_, ok, err := store.Get(ctx, "k")
	if ok || !errors.Is(err, ErrCorruptEntry) {
		t.Fatalf("Get() = ok %v, err %v; want ErrCorruptEntry", ok, err)
	}
	if _, present, _ := backend.Get(ctx, "k"); present {
		t.Error("corrupt entry was not removed")
	}
}

func TestStore_Purge(t *testing.T) {
	ctx := context.Background()
	store := NewStore("memory", NewMemoryBackend(BackendOptions{}))

	for _, k := range []string{"GET https://a/1", "GET https://a/2", "GET https://b/1"} {
		_, _ = store.Put(ctx, k, &Snapshot{StatusCode: 200}, time.Minute)
	}

	n, err := store.Purge(ctx, "GET https://a/")
	if err != nil {
		t.Fatalf("Purge() error = %v", err)
	}
	if n != 2 {
		t.Errorf("Purge() = %d, want 2", n)
	}

	keys, _ := store.List(ctx, "")
	if len(keys) != 1 || keys[0] != "GET https://b/1" {
		t.Errorf("remaining keys = %v", keys)
	}
}

func TestEvictionRecorder(t *testing.T) {
	ctx := context.Background()
	recorder := &countingRecorder{}
	backend := NewMemoryBackend(BackendOptions{
		MaxEntries: 1,
		OnEvict:    EvictionRecorder("memory", recorder),
	})

	_ = backend.Put(ctx, "a", []byte("1"), time.Minute)
	_ = backend.Put(ctx, "b", []byte("2"), time.Minute)

	if recorder.evictions["capacity"] != 1 {
		t.Errorf("capacity evictions = %d, want 1", recorder.evictions["capacity"])
	}
}

func TestCodec(t *testing.T) {
	compressible := &Snapshot{
		StatusCode: 200,
		Header:     map[string][]string{"Content-Type": {"application/json"}},
		Body:       bytes.Repeat([]byte(`{"id":550,"title":"Fight Club"},`), 200),
	}

	plain, err := Codec{}.Encode(compressible)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	packed, err := Codec{Compress: true}.Encode(compressible)
	if err != nil {
		t.Fatalf("Encode(compress) error = %v", err)
	}

	if plain[0] != tagPlain || packed[0] != tagZstd {
		t.Errorf("tags = %d, %d; want %d, %d", plain[0], packed[0], tagPlain, tagZstd)
	}
	if len(packed) >= len(plain) {
		t.Errorf("compressed size %d not smaller than plain %d", len(packed), len(plain))
	}

	// A decoder without compression enabled still reads compressed values.
	got, err := Codec{}.Decode(packed)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if !bytes.Equal(got.Body, compressible.Body) {
		t.Error("decoded body differs from original")
	}

	for _, bad := range [][]byte{nil, {9}, {tagZstd, 1, 2, 3}} {
		if _, err := (Codec{}).Decode(bad); !errors.Is(err, ErrCorruptEntry) {
			t.Errorf("Decode(%v) error = %v, want ErrCorruptEntry", bad, err)
		}
	}
}
