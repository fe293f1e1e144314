package cache

import (
	"context"
	"sync"
	"time"
)

const sweepThreshold = 1024

type entry struct {
	value     string
	count     int64
	expiresAt time.Time
}

// Memory is the process-local backend. It does not survive restarts and is
// not shared between replicas.
type Memory struct {
	mu      sync.Mutex
	entries map[string]*entry
	now     func() time.Time
}

func NewMemory() *Memory {
	return &Memory{entries: map[string]*entry{}, now: time.Now}
}

func (m *Memory) Save(_ context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweep()
	m.entries[key] = &entry{value: value, expiresAt: m.now().Add(ttl)}
	return nil
}

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.live(key)
	if !ok {
		return "", false, nil
	}
	return e.value, true, nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

func (m *Memory) Incr(_ context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	e, ok := m.live(key)
	if !ok {
		m.sweep()
		e = &entry{expiresAt: now.Add(window)}
		m.entries[key] = e
	}
	e.count++
	return e.count, e.expiresAt.Sub(now), nil
}

// live returns the entry for key, dropping it when expired. Callers hold mu.
func (m *Memory) live(key string) (*entry, bool) {
	e, ok := m.entries[key]
	if !ok {
		return nil, false
	}
	if !m.now().Before(e.expiresAt) {
		delete(m.entries, key)
		return nil, false
	}
	return e, true
}

func (m *Memory) sweep() {
	if len(m.entries) < sweepThreshold {
		return
	}
	now := m.now()
	for key, e := range m.entries {
		if !now.Before(e.expiresAt) {
			delete(m.entries, key)
		}
	}
}
