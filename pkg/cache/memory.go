package cache

import (
	"container/list"
	"context"
	"strings"
	"sync"
	"time"
)

// MemoryBackend is an in-process Backend. Entries are kept in a map for
// lookup and a list in store order for FIFO eviction.
type MemoryBackend struct {
	mu      sync.Mutex
	entries map[string]*list.Element
	order   *list.List
	opts    BackendOptions
	closed  bool
}

type memoryEntry struct {
	key       string
	value     []byte
	storedAt  time.Time
	expiresAt time.Time
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend(opts BackendOptions) *MemoryBackend {
	return &MemoryBackend{
		entries: make(map[string]*list.Element),
		order:   list.New(),
		opts:    opts.withDefaults(),
	}
}

// Get returns the value for key, removing it if it has expired.
func (m *MemoryBackend) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, false, ErrClosed
	}

	elem, ok := m.entries[key]
	if !ok {
		m.mu.Unlock()
		return nil, false, nil
	}

	entry := elem.Value.(*memoryEntry)
	if !m.opts.Now().Before(entry.expiresAt) {
		m.removeLocked(elem)
		m.mu.Unlock()
		m.opts.OnEvict(key, EvictExpired)
		return nil, false, nil
	}

	value := entry.value
	m.mu.Unlock()
	return value, true, nil
}

// Put stores value under key and evicts the oldest entries past MaxEntries.
func (m *MemoryBackend) Put(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if key == "" {
		return ErrEmptyKey
	}
	if ttl <= 0 {
		return nil
	}

	now := m.opts.Now()
	entry := &memoryEntry{
		key:       key,
		value:     append([]byte(nil), value...),
		storedAt:  now,
		expiresAt: now.Add(ttl),
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}

	if elem, ok := m.entries[key]; ok {
		elem.Value = entry
		m.order.MoveToBack(elem)
	} else {
		m.entries[key] = m.order.PushBack(entry)
	}

	evicted := m.evictOldestLocked()
	m.mu.Unlock()

	for _, k := range evicted {
		m.opts.OnEvict(k, EvictCapacity)
	}
	return nil
}

// evictOldestLocked trims the list from the front until the bound holds.
// Must be called with m.mu held.
func (m *MemoryBackend) evictOldestLocked() []string {
	if m.opts.MaxEntries <= 0 {
		return nil
	}

	var evicted []string
	for m.order.Len() > m.opts.MaxEntries {
		front := m.order.Front()
		evicted = append(evicted, front.Value.(*memoryEntry).key)
		m.removeLocked(front)
	}
	return evicted
}

func (m *MemoryBackend) removeLocked(elem *list.Element) {
	delete(m.entries, elem.Value.(*memoryEntry).key)
	m.order.Remove(elem)
}

// List returns live keys with the given prefix in store order.
func (m *MemoryBackend) List(_ context.Context, prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrClosed
	}

	now := m.opts.Now()
	keys := []string{}
	for elem := m.order.Front(); elem != nil; elem = elem.Next() {
		entry := elem.Value.(*memoryEntry)
		if now.Before(entry.expiresAt) && strings.HasPrefix(entry.key, prefix) {
			keys = append(keys, entry.key)
		}
	}
	return keys, nil
}

// Delete removes key if present.
func (m *MemoryBackend) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if elem, ok := m.entries[key]; ok {
		m.removeLocked(elem)
	}
	return nil
}

// Len returns the number of stored entries.
func (m *MemoryBackend) Len(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.order.Len(), nil
}

// Sweep removes all expired entries.
func (m *MemoryBackend) Sweep(_ context.Context) (int, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return 0, ErrClosed
	}

	now := m.opts.Now()
	var expired []string
	for elem := m.order.Front(); elem != nil; {
		next := elem.Next()
		entry := elem.Value.(*memoryEntry)
		if !now.Before(entry.expiresAt) {
			expired = append(expired, entry.key)
			m.removeLocked(elem)
		}
		elem = next
	}
	m.mu.Unlock()

	for _, k := range expired {
		m.opts.OnEvict(k, EvictExpired)
	}
	return len(expired), nil
}

// Close drops all entries. Further calls return ErrClosed.
func (m *MemoryBackend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.entries = make(map[string]*list.Element)
	m.order.Init()
	return nil
}
