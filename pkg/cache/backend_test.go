package cache

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"
)

// fakeClock is a manually advanced clock for TTL tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// evictLog collects eviction callbacks.
type evictLog struct {
	mu     sync.Mutex
	events []string
}

func (l *evictLog) record(key string, reason EvictReason) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, string(reason)+":"+key)
}

func (l *evictLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

// backendHarness builds a backend with the given options and returns a
// function that moves the backend's notion of time forward.
type backendHarness func(t *testing.T, opts BackendOptions) (Backend, func(time.Duration))

// runBackendContract exercises behavior every Backend must share.
func runBackendContract(t *testing.T, newBackend backendHarness) {
	ctx := context.Background()

	t.Run("get missing key", func(t *testing.T) {
		b, _ := newBackend(t, BackendOptions{})
		_, ok, err := b.Get(ctx, "GET https://x/absent")
		if err != nil || ok {
			t.Fatalf("Get() = ok %v, err %v; want miss", ok, err)
		}
	})

	t.Run("put then get", func(t *testing.T) {
		b, _ := newBackend(t, BackendOptions{})
		if err := b.Put(ctx, "k", []byte("value"), time.Minute); err != nil {
			t.Fatalf("Put() error = %v", err)
		}
		got, ok, err := b.Get(ctx, "k")
		if err != nil || !ok {
			t.Fatalf("Get() = ok %v, err %v", ok, err)
		}
		if string(got) != "value" {
			t.Errorf("Get() = %q, want %q", got, "value")
		}
	})

	t.Run("overwrite replaces value", func(t *testing.T) {
		b, _ := newBackend(t, BackendOptions{})
		_ = b.Put(ctx, "k", []byte("v1"), time.Minute)
		_ = b.Put(ctx, "k", []byte("v2"), time.Minute)

		got, _, _ := b.Get(ctx, "k")
		if string(got) != "v2" {
			t.Errorf("Get() = %q, want v2", got)
		}
		if n, _ := b.Len(ctx); n != 1 {
			t.Errorf("Len() = %d, want 1", n)
		}
	})

	t.Run("non-positive ttl stores nothing", func(t *testing.T) {
		b, _ := newBackend(t, BackendOptions{})
		_ = b.Put(ctx, "k", []byte("v"), 0)
		if _, ok, _ := b.Get(ctx, "k"); ok {
			t.Error("entry with zero ttl was stored")
		}
	})

	t.Run("ttl boundary", func(t *testing.T) {
		b, advance := newBackend(t, BackendOptions{})
		_ = b.Put(ctx, "k", []byte("v"), 600*time.Second)

		advance(599 * time.Second)
		if _, ok, _ := b.Get(ctx, "k"); !ok {
			t.Fatal("entry missing at t=599s")
		}

		advance(2 * time.Second)
		if _, ok, _ := b.Get(ctx, "k"); ok {
			t.Fatal("entry still present at t=601s")
		}
	})

	t.Run("fifo eviction keeps newest", func(t *testing.T) {
		log := &evictLog{}
		b, _ := newBackend(t, BackendOptions{MaxEntries: 2, OnEvict: log.record})

		for _, k := range []string{"k1", "k2", "k3"} {
			if err := b.Put(ctx, k, []byte(k), time.Minute); err != nil {
				t.Fatalf("Put(%s) error = %v", k, err)
			}
		}

		keys, err := b.List(ctx, "")
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if !reflect.DeepEqual(keys, []string{"k2", "k3"}) {
			t.Errorf("List() = %v, want [k2 k3]", keys)
		}
		if got := log.snapshot(); !reflect.DeepEqual(got, []string{"capacity:k1"}) {
			t.Errorf("evictions = %v, want [capacity:k1]", got)
		}
	})

	t.Run("reads do not change eviction order", func(t *testing.T) {
		b, _ := newBackend(t, BackendOptions{MaxEntries: 2})
		_ = b.Put(ctx, "k1", []byte("1"), time.Minute)
		_ = b.Put(ctx, "k2", []byte("2"), time.Minute)
		_, _, _ = b.Get(ctx, "k1")
		_ = b.Put(ctx, "k3", []byte("3"), time.Minute)

		if _, ok, _ := b.Get(ctx, "k1"); ok {
			t.Error("k1 survived although it was stored first")
		}
	})

	t.Run("overwrite moves key to back", func(t *testing.T) {
		b, _ := newBackend(t, BackendOptions{MaxEntries: 2})
		_ = b.Put(ctx, "k1", []byte("1"), time.Minute)
		_ = b.Put(ctx, "k2", []byte("2"), time.Minute)
		_ = b.Put(ctx, "k1", []byte("1b"), time.Minute)
		_ = b.Put(ctx, "k3", []byte("3"), time.Minute)

		keys, _ := b.List(ctx, "")
		if !reflect.DeepEqual(keys, []string{"k1", "k3"}) {
			t.Errorf("List() = %v, want [k1 k3]", keys)
		}
	})

	t.Run("size bound holds for many puts", func(t *testing.T) {
		const max = 5
		b, _ := newBackend(t, BackendOptions{MaxEntries: max})
		for i := 0; i < 40; i++ {
			_ = b.Put(ctx, fmt.Sprintf("k%02d", i), []byte("v"), time.Minute)
			if n, _ := b.Len(ctx); n > max {
				t.Fatalf("after put %d Len() = %d, want <= %d", i, n, max)
			}
		}

		keys, _ := b.List(ctx, "")
		want := []string{"k35", "k36", "k37", "k38", "k39"}
		if !reflect.DeepEqual(keys, want) {
			t.Errorf("List() = %v, want %v", keys, want)
		}
	})

	t.Run("list filters by prefix and delete removes", func(t *testing.T) {
		b, _ := newBackend(t, BackendOptions{})
		_ = b.Put(ctx, "GET https://image.tmdb.org/t/p/w500/a.jpg", []byte("a"), time.Minute)
		_ = b.Put(ctx, "GET https://api.themoviedb.org/3/movie/1", []byte("b"), time.Minute)
		_ = b.Put(ctx, "GET https://image.tmdb.org/t/p/w92/c.jpg", []byte("c"), time.Minute)

		keys, err := b.List(ctx, "GET https://image.tmdb.org/")
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(keys) != 2 {
			t.Fatalf("List() = %v, want 2 image keys", keys)
		}

		if err := b.Delete(ctx, keys[0]); err != nil {
			t.Fatalf("Delete() error = %v", err)
		}
		if err := b.Delete(ctx, "never-stored"); err != nil {
			t.Errorf("Delete() of absent key error = %v", err)
		}
		if _, ok, _ := b.Get(ctx, keys[0]); ok {
			t.Error("deleted key still readable")
		}
	})

	t.Run("sweep removes expired entries", func(t *testing.T) {
		log := &evictLog{}
		b, advance := newBackend(t, BackendOptions{OnEvict: log.record})
		_ = b.Put(ctx, "short", []byte("s"), time.Second)
		_ = b.Put(ctx, "long", []byte("l"), time.Hour)

		advance(2 * time.Second)
		n, err := b.Sweep(ctx)
		if err != nil {
			t.Fatalf("Sweep() error = %v", err)
		}
		if n != 1 {
			t.Errorf("Sweep() = %d, want 1", n)
		}
		if got := log.snapshot(); !reflect.DeepEqual(got, []string{"expired:short"}) {
			t.Errorf("evictions = %v", got)
		}
		if size, _ := b.Len(ctx); size != 1 {
			t.Errorf("Len() = %d, want 1", size)
		}
	})
}

func TestMemoryBackend(t *testing.T) {
	runBackendContract(t, func(t *testing.T, opts BackendOptions) (Backend, func(time.Duration)) {
		clock := newFakeClock()
		opts.Now = clock.Now
		return NewMemoryBackend(opts), clock.Advance
	})
}

func TestMemoryBackend_ExpiredReadRemovesEntry(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	log := &evictLog{}
	b := NewMemoryBackend(BackendOptions{Now: clock.Now, OnEvict: log.record})

	_ = b.Put(ctx, "k", []byte("v"), time.Second)
	clock.Advance(time.Second)

	if _, ok, _ := b.Get(ctx, "k"); ok {
		t.Fatal("entry valid at now == storedAt + ttl")
	}
	if n, _ := b.Len(ctx); n != 0 {
		t.Errorf("Len() = %d, want 0 after lazy expiry", n)
	}
	if got := log.snapshot(); !reflect.DeepEqual(got, []string{"expired:k"}) {
		t.Errorf("evictions = %v", got)
	}
}

func TestMemoryBackend_ValueIsCopied(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend(BackendOptions{})

	buf := []byte("original")
	_ = b.Put(ctx, "k", buf, time.Minute)
	copy(buf, "mutated!")

	got, _, _ := b.Get(ctx, "k")
	if string(got) != "original" {
		t.Errorf("Get() = %q, caller mutation leaked into the cache", got)
	}
}

func TestMemoryBackend_Closed(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend(BackendOptions{})
	_ = b.Close()

	if _, _, err := b.Get(ctx, "k"); err != ErrClosed {
		t.Errorf("Get() error = %v, want ErrClosed", err)
	}
	if err := b.Put(ctx, "k", []byte("v"), time.Minute); err != ErrClosed {
		t.Errorf("Put() error = %v, want ErrClosed", err)
	}
}

func TestMemoryBackend_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	const max = 16
	b := NewMemoryBackend(BackendOptions{MaxEntries: max})

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("k%d", (w*200+i)%50)
				_ = b.Put(ctx, key, []byte(key), time.Minute)
				_, _, _ = b.Get(ctx, key)
			}
		}(w)
	}
	wg.Wait()

	if n, _ := b.Len(ctx); n > max {
		t.Errorf("Len() = %d, want <= %d", n, max)
	}
}
