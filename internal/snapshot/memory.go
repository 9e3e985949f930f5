package snapshot

import (
	"context"
	"slices"
	"sync"
	"time"
)

type memoryEntry struct {
	value   string
	expires time.Time
}

// MemoryBackend keeps entries in a process-local map. A zero TTL keeps
// entries until deleted.
type MemoryBackend struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend(ttl time.Duration) *MemoryBackend {
	return &MemoryBackend{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// SetClock overrides the time source used for expiry, for tests.
func (m *MemoryBackend) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func (m *MemoryBackend) live(e memoryEntry) bool {
	return e.expires.IsZero() || m.now().Before(e.expires)
}

func (m *MemoryBackend) entry(value string) memoryEntry {
	e := memoryEntry{value: value}
	if m.ttl > 0 {
		e.expires = m.now().Add(m.ttl)
	}
	return e
}

func (m *MemoryBackend) Put(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = m.entry(value)
	return nil
}

func (m *MemoryBackend) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[key]
	if !ok || !m.live(e) {
		return "", false, nil
	}
	return e.value, true, nil
}

func (m *MemoryBackend) Delete(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return false, nil
	}
	delete(m.entries, key)
	return m.live(e), nil
}

func (m *MemoryBackend) Exists(ctx context.Context, key string) (bool, error) {
	_, ok, err := m.Get(ctx, key)
	return ok, err
}

func (m *MemoryBackend) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, e := range m.entries {
		if m.live(e) {
			n++
		}
	}
	return n, nil
}

func (m *MemoryBackend) List(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.entries))
	for k, e := range m.entries {
		if m.live(e) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	return keys, nil
}

func (m *MemoryBackend) Swap(_ context.Context, key, old, value string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur := ""
	if e, ok := m.entries[key]; ok && m.live(e) {
		cur = e.value
	}
	if cur != old {
		return false, nil
	}
	m.entries[key] = m.entry(value)
	return true, nil
}

var (
	_ Backend = (*MemoryBackend)(nil)
	_ Counter = (*MemoryBackend)(nil)
	_ Lister  = (*MemoryBackend)(nil)
	_ Swapper = (*MemoryBackend)(nil)
)
