package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process Store. It backs tests and local tooling; it
// is not shared between processes.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*memoryEntry
	sets    map[string]map[string]struct{}
	now     func() time.Time
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithClock replaces time.Now, letting callers move time forward.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *MemoryStore) {
		if now != nil {
			m.now = now
		}
	}
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	m := &MemoryStore{
		entries: make(map[string]*memoryEntry),
		sets:    make(map[string]map[string]struct{}),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Get retrieves a value. Returns (nil, false, nil) on miss or expiry.
func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	entry, ok := m.entries[key]
	m.mu.RUnlock()

	if !ok {
		return nil, false, nil
	}

	if !m.now().Before(entry.expiresAt) {
		// Expired - clean up lazily
		m.mu.Lock()
		if cur, ok := m.entries[key]; ok && cur == entry {
			delete(m.entries, key)
		}
		m.mu.Unlock()
		return nil, false, nil
	}

	return entry.value, true, nil
}

// Set stores a value with the given TTL.
func (m *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return ErrInvalidTTL
	}

	m.mu.Lock()
	m.entries[key] = &memoryEntry{
		value:     value,
		expiresAt: m.now().Add(ttl),
	}
	m.mu.Unlock()
	return nil
}

// Delete removes values and sets. Idempotent - no error on miss.
func (m *MemoryStore) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	for _, k := range keys {
		delete(m.entries, k)
		delete(m.sets, k)
	}
	m.mu.Unlock()
	return nil
}

// Exists reports which keys hold an unexpired value or a set.
func (m *MemoryStore) Exists(_ context.Context, keys ...string) ([]bool, error) {
	now := m.now()
	out := make([]bool, len(keys))

	m.mu.RLock()
	defer m.mu.RUnlock()
	for i, k := range keys {
		if e, ok := m.entries[k]; ok && now.Before(e.expiresAt) {
			out[i] = true
			continue
		}
		_, out[i] = m.sets[k]
	}
	return out, nil
}

// SAdd adds members to a set.
func (m *MemoryStore) SAdd(_ context.Context, set string, members ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sets[set]
	if !ok {
		s = make(map[string]struct{}, len(members))
		m.sets[set] = s
	}
	for _, member := range members {
		s[member] = struct{}{}
	}
	return nil
}

// SMembers returns the members of a set in no particular order.
func (m *MemoryStore) SMembers(_ context.Context, set string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := m.sets[set]
	out := make([]string, 0, len(s))
	for member := range s {
		out = append(out, member)
	}
	return out, nil
}

// SRem removes members from a set, dropping the set once empty.
func (m *MemoryStore) SRem(_ context.Context, set string, members ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sets[set]
	if !ok {
		return nil
	}
	for _, member := range members {
		delete(s, member)
	}
	if len(s) == 0 {
		delete(m.sets, set)
	}
	return nil
}

// Ensure MemoryStore implements Store
var _ Store = (*MemoryStore)(nil)
