package storage

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	value     string
	expiresAt time.Time
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

type MemoryStore struct {
	values map[string]entry
	mutex  sync.RWMutex
	now    func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		values: make(map[string]entry),
		now:    time.Now,
	}
}

func (m *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	e, ok := m.values[key]
	if !ok || e.expired(m.now()) {
		return "", false, nil
	}
	return e.value, true, nil
}

func (m *MemoryStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	e := entry{value: value}
	if ttl > 0 {
		e.expiresAt = m.now().Add(ttl)
	}
	m.values[key] = e

	// expired entries are dropped lazily on writes
	now := m.now()
	for k, v := range m.values {
		if v.expired(now) {
			delete(m.values, k)
		}
	}
	return nil
}

func (m *MemoryStore) Close() error {
	return nil
}
