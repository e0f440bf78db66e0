package persistence

import (
	"context"
	"sync"
	"time"
)

// MemoryEngine is an in-memory implementation of Engine
type MemoryEngine struct {
	mu   sync.RWMutex
	data map[string]memoryEntry
	now  func() time.Time
}

type memoryEntry struct {
	value     string
	expiresAt time.Time // zero means no expiry
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// NewMemoryEngine creates a new in-memory engine using the wall clock
func NewMemoryEngine() *MemoryEngine {
	return NewMemoryEngineWithClock(time.Now)
}

// NewMemoryEngineWithClock creates an in-memory engine that reads time from
// now, so expiration can be driven by a fake clock.
func NewMemoryEngineWithClock(now func() time.Time) *MemoryEngine {
	return &MemoryEngine{
		data: make(map[string]memoryEntry),
		now:  now,
	}
}

func (m *MemoryEngine) Get(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.data[key]
	if !ok || entry.expired(m.now()) {
		return "", ErrKeyNotFound
	}
	return entry.value, nil
}

func (m *MemoryEngine) Put(_ context.Context, key, value string, opts PutOptions) error {
	entry := memoryEntry{value: value}
	if opts.ExpirationTTL > 0 {
		entry.expiresAt = m.now().Add(opts.ExpirationTTL)
	}

	m.mu.Lock()
	m.data[key] = entry
	m.mu.Unlock()
	return nil
}

// Sweep removes expired records and returns how many were dropped
func (m *MemoryEngine) Sweep(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for key, entry := range m.data {
		if entry.expired(now) {
			delete(m.data, key)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of held records, expired or not
func (m *MemoryEngine) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

func (m *MemoryEngine) Close() error {
	return nil
}
