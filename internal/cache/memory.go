package cache

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	value     []byte
	expiresAt time.Time
	storedAt  time.Time
}

// Memory is an in-process cache bounded by entry count. When full, the
// oldest entry is evicted. A zero ttl keeps entries until evicted.
type Memory struct {
	mu         sync.Mutex
	entries    map[string]entry
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
}

func NewMemory(ttl time.Duration, maxEntries int) *Memory {
	return &Memory{
		entries:    make(map[string]entry),
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	if expired(e.expiresAt, m.now()) {
		delete(m.entries, key)
		return nil, false, nil
	}
	return e.value, true, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	e := entry{value: value, storedAt: now}
	if m.ttl > 0 {
		e.expiresAt = now.Add(m.ttl)
	}

	if _, exists := m.entries[key]; !exists && m.maxEntries > 0 {
		for len(m.entries) >= m.maxEntries {
			m.evictOldest(now)
		}
	}
	m.entries[key] = e
	return nil
}

// evictOldest drops expired entries, or the single oldest one if none expired.
func (m *Memory) evictOldest(now time.Time) {
	var (
		oldestKey string
		oldest    time.Time
		found     bool
		dropped   bool
	)
	for k, e := range m.entries {
		if expired(e.expiresAt, now) {
			delete(m.entries, k)
			dropped = true
			continue
		}
		if !found || e.storedAt.Before(oldest) {
			oldestKey, oldest, found = k, e.storedAt, true
		}
	}
	if !dropped && found {
		delete(m.entries, oldestKey)
	}
}

func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) Close() error { return nil }
