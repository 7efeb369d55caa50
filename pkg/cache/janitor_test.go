package cache

import (
	"context"
	"testing"
	"time"
)

func TestJanitor_SweepAll(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()

	a := NewStore("a", NewMemoryBackend(BackendOptions{Now: clock.Now}))
	b := NewStore("b", NewMemoryBackend(BackendOptions{Now: clock.Now}))

	_, _ = a.Put(ctx, "a1", &Snapshot{StatusCode: 200}, time.Second)
	_, _ = a.Put(ctx, "a2", &Snapshot{StatusCode: 200}, time.Hour)
	_, _ = b.Put(ctx, "b1", &Snapshot{StatusCode: 200}, time.Second)

	clock.Advance(time.Minute)

	j := NewJanitor("*/5 * * * *", a, b)
	if got := j.SweepAll(ctx); got != 2 {
		t.Errorf("SweepAll() = %d, want 2", got)
	}
}

func TestJanitor_StartStop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := NewStore("a", NewMemoryBackend(BackendOptions{}))
	j := NewJanitor("@every 1h", store)

	if err := j.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !j.IsRunning() {
		t.Fatal("janitor not running after Start")
	}
	if next := j.NextRun(); next == nil || !next.After(time.Now()) {
		t.Errorf("NextRun() = %v, want a future time", next)
	}

	j.Stop()
	if j.IsRunning() {
		t.Error("janitor still running after Stop")
	}
}

func TestJanitor_InvalidSchedule(t *testing.T) {
	j := NewJanitor("not a schedule", NewStore("a", NewMemoryBackend(BackendOptions{})))
	if err := j.Start(context.Background()); err == nil {
		t.Error("Start() expected error for invalid schedule")
	}
}

func TestJanitor_EmptyScheduleIsNoop(t *testing.T) {
	j := NewJanitor("", NewStore("a", NewMemoryBackend(BackendOptions{})))
	if err := j.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if j.IsRunning() {
		t.Error("janitor running with empty schedule")
	}
}
