package routing

import (
	"sync"
	"sync/atomic"
	"time"
)

// AtomicRoutingStats counts resolutions without locking the hot path.
type AtomicRoutingStats struct {
	totalRequests    atomic.Int64
	requestsPerRoute sync.Map // map[string]*atomic.Int64
	unmatched        atomic.Int64
	reloads          atomic.Int64

	mu            sync.RWMutex
	lastResetTime time.Time
}

// NewAtomicRoutingStats creates an empty tracker.
func NewAtomicRoutingStats() *AtomicRoutingStats {
	return &AtomicRoutingStats{lastResetTime: time.Now()}
}

func (s *AtomicRoutingStats) recordMatch(route string) {
	s.totalRequests.Add(1)
	val, _ := s.requestsPerRoute.LoadOrStore(route, &atomic.Int64{})
	val.(*atomic.Int64).Add(1)
}

func (s *AtomicRoutingStats) recordMiss() {
	s.totalRequests.Add(1)
	s.unmatched.Add(1)
}

func (s *AtomicRoutingStats) recordReload() {
	s.reloads.Add(1)
}

// Snapshot returns a point-in-time copy.
func (s *AtomicRoutingStats) Snapshot() *RoutingStats {
	perRoute := make(map[string]int64)
	s.requestsPerRoute.Range(func(key, value any) bool {
		perRoute[key.(string)] = value.(*atomic.Int64).Load()
		return true
	})

	s.mu.RLock()
	defer s.mu.RUnlock()
	return &RoutingStats{
		TotalRequests:    s.totalRequests.Load(),
		RequestsPerRoute: perRoute,
		Unmatched:        s.unmatched.Load(),
		Reloads:          s.reloads.Load(),
		LastResetTime:    s.lastResetTime,
	}
}

// Reset zeroes all counters.
func (s *AtomicRoutingStats) Reset() {
	s.totalRequests.Store(0)
	s.unmatched.Store(0)
	s.reloads.Store(0)
	s.requestsPerRoute.Range(func(key, _ any) bool {
		s.requestsPerRoute.Delete(key)
		return true
	})

	s.mu.Lock()
	s.lastResetTime = time.Now()
	s.mu.Unlock()
}
