// Package admission bounds the number of proxy operations that run at once.
//
// A Controller hands out tickets up to its ceiling. Callers beyond the
// ceiling block in Acquire until a ticket is released or their context
// ends. Waiters are woken in FIFO order.
//
// # Usage
//
//	ticket, err := controller.Acquire(ctx)
//	if err != nil {
//	    return err
//	}
//	defer ticket.Release()
package admission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
)

// ErrAdmissionTimeout is returned when the caller's context ends before a
// slot frees up.
var ErrAdmissionTimeout = errors.New("admission slot not acquired before deadline")

// Observer receives admission metrics. The telemetry collector satisfies it.
type Observer interface {
	UpdateAdmissionInFlight(n int)
	RecordAdmissionWait(wait time.Duration, admitted bool)
}

// Controller is a counting semaphore with exactly-once tickets.
type Controller struct {
	sem      *semaphore.Weighted
	limit    int64
	inFlight atomic.Int64
	waiting  atomic.Int64
	observer Observer
	logger   *slog.Logger
}

// Ticket is one held admission slot. It must be released exactly once;
// further releases are ignored.
type Ticket struct {
	controller *Controller
	once       sync.Once
	acquiredAt time.Time
}

// NewController creates a controller admitting at most maxConcurrent
// operations. Values below 1 are raised to 1.
func NewController(maxConcurrent int, observer Observer) *Controller {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Controller{
		sem:      semaphore.NewWeighted(int64(maxConcurrent)),
		limit:    int64(maxConcurrent),
		observer: observer,
		logger:   slog.Default().With("component", "admission"),
	}
}

// Acquire blocks until a slot is free and returns its ticket. If ctx ends
// first, the error wraps ErrAdmissionTimeout and the context's error.
//
// Parameters:
//   - ctx: Bounds the wait; use context.WithTimeout for a queue deadline
//
// Example usage:
//
//	waitCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
//	defer cancel()
//	ticket, err := controller.Acquire(waitCtx)
//	if errors.Is(err, admission.ErrAdmissionTimeout) {
//	    return err
//	}
//	defer ticket.Release()
func (c *Controller) Acquire(ctx context.Context) (*Ticket, error) {
	start := time.Now()

	c.waiting.Add(1)
	err := c.sem.Acquire(ctx, 1)
	c.waiting.Add(-1)

	wait := time.Since(start)
	if err != nil {
		if c.observer != nil {
			c.observer.RecordAdmissionWait(wait, false)
		}
		c.logger.Warn("admission wait abandoned", "waited", wait, "in_flight", c.inFlight.Load())
		return nil, fmt.Errorf("%w: %w", ErrAdmissionTimeout, err)
	}

	n := c.inFlight.Add(1)
	if c.observer != nil {
		c.observer.RecordAdmissionWait(wait, true)
		c.observer.UpdateAdmissionInFlight(int(n))
	}

	return &Ticket{controller: c, acquiredAt: time.Now()}, nil
}

// TryAcquire returns a ticket only if a slot is immediately free.
func (c *Controller) TryAcquire() (*Ticket, bool) {
	if !c.sem.TryAcquire(1) {
		return nil, false
	}

	n := c.inFlight.Add(1)
	if c.observer != nil {
		c.observer.UpdateAdmissionInFlight(int(n))
	}
	return &Ticket{controller: c, acquiredAt: time.Now()}, true
}

// Release returns ticket's slot. It is equivalent to ticket.Release.
func (c *Controller) Release(ticket *Ticket) {
	if ticket == nil {
		return
	}
	ticket.Release()
}

// Release returns the slot to its controller. Only the first call has an effect.
func (t *Ticket) Release() {
	t.once.Do(func() {
		c := t.controller
		n := c.inFlight.Add(-1)
		c.sem.Release(1)
		if c.observer != nil {
			c.observer.UpdateAdmissionInFlight(int(n))
		}
	})
}

// Held returns how long the ticket has been held.
func (t *Ticket) Held() time.Duration {
	return time.Since(t.acquiredAt)
}

// Limit returns the configured ceiling.
func (c *Controller) Limit() int {
	return int(c.limit)
}

// InFlight returns the number of outstanding tickets.
func (c *Controller) InFlight() int {
	return int(c.inFlight.Load())
}

// Waiting returns the number of callers blocked in Acquire.
func (c *Controller) Waiting() int {
	return int(c.waiting.Load())
}

// Utilization returns InFlight / Limit as a percentage.
func (c *Controller) Utilization() float64 {
	return float64(c.InFlight()) / float64(c.limit) * 100
}
