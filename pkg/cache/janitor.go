package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Janitor sweeps expired entries from a set of stores on a cron schedule.
// Reads already ignore expired entries; sweeping reclaims their space.
type Janitor struct {
	schedule string
	stores   []*Store
	cron     *cron.Cron
	mu       sync.Mutex
	logger   *slog.Logger
	running  bool
}

// NewJanitor creates a janitor for stores. An empty schedule disables it.
//
// Common schedules:
//   - "*/10 * * * *" - every 10 minutes
//   - "@hourly"      - once an hour
func NewJanitor(schedule string, stores ...*Store) *Janitor {
	return &Janitor{
		schedule: schedule,
		stores:   stores,
		cron:     cron.New(),
		logger:   slog.Default().With("component", "cache.janitor"),
	}
}

// ValidateSchedule reports whether schedule is a valid standard cron spec.
func ValidateSchedule(schedule string) error {
	if _, err := cron.ParseStandard(schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", schedule, err)
	}
	return nil
}

// Start schedules the sweep. The janitor stops when ctx is cancelled.
func (j *Janitor) Start(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.schedule == "" || len(j.stores) == 0 {
		j.logger.Info("sweep schedule not configured, skipping janitor")
		return nil
	}

	if err := ValidateSchedule(j.schedule); err != nil {
		return err
	}

	if _, err := j.cron.AddFunc(j.schedule, func() {
		j.SweepAll(ctx)
	}); err != nil {
		return fmt.Errorf("failed to schedule sweep: %w", err)
	}

	j.cron.Start()
	j.running = true

	j.logger.Info("cache janitor started", "schedule", j.schedule, "stores", len(j.stores))

	go func() {
		<-ctx.Done()
		j.Stop()
	}()

	return nil
}

// SweepAll sweeps every store once and returns the total removed.
func (j *Janitor) SweepAll(ctx context.Context) int {
	total := 0
	for _, store := range j.stores {
		start := time.Now()
		n, err := store.Sweep(ctx)
		if err != nil {
			j.logger.Error("cache sweep failed", "store", store.Name(), "error", err)
			continue
		}
		total += n
		j.logger.Debug("cache sweep completed",
			"store", store.Name(),
			"removed", n,
			"duration", time.Since(start),
		)
	}
	return total
}

// Stop stops the schedule and waits for a running sweep to finish.
func (j *Janitor) Stop() {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.running {
		<-j.cron.Stop().Done()
		j.running = false
		j.logger.Info("cache janitor stopped")
	}
}

// IsRunning returns true if the janitor is scheduled.
func (j *Janitor) IsRunning() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.running
}

// NextRun returns the next scheduled sweep, or nil when not running.
func (j *Janitor) NextRun() *time.Time {
	j.mu.Lock()
	defer j.mu.Unlock()

	entries := j.cron.Entries()
	if len(entries) == 0 {
		return nil
	}
	next := entries[0].Next
	return &next
}
