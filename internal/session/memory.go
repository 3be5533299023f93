package session

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/tidwall/match"
)

const defaultMemoryCapacity = 10_000

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// MemoryStore is an in-process Store bounded by an LRU. Expiry is checked
// lazily on read.
type MemoryStore struct {
	mu    sync.Mutex
	cache *lru.Cache[string, memoryEntry]
	now   func() time.Time
}

// MemoryOption customizes a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithClock overrides the time source, mainly for tests.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *MemoryStore) { m.now = now }
}

// NewMemoryStore creates a store holding at most capacity keys. A
// non-positive capacity uses the default.
func NewMemoryStore(capacity int, opts ...MemoryOption) *MemoryStore {
	if capacity <= 0 {
		capacity = defaultMemoryCapacity
	}
	// lru.New only errors on non-positive size which we guard above.
	cache, _ := lru.New[string, memoryEntry](capacity)
	m := &MemoryStore{cache: cache, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *MemoryStore) Get(_ context.Context, key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.cache.Get(key)
	if !ok {
		return "", false
	}
	if e.expired(m.now()) {
		m.cache.Remove(key)
		return "", false
	}
	return e.value, true
}

func (m *MemoryStore) Set(_ context.Context, key, value string, ttl time.Duration) {
	e := memoryEntry{value: value}
	if ttl > 0 {
		e.expiresAt = m.now().Add(ttl)
	}
	m.mu.Lock()
	m.cache.Add(key, e)
	m.mu.Unlock()
}

func (m *MemoryStore) Del(_ context.Context, keys ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		m.cache.Remove(k)
	}
}

// Keys matches like Redis SCAN for "*", "?" and backslash escapes, so "*"
// crosses any separator. Character classes are not supported.
func (m *MemoryStore) Keys(_ context.Context, pattern string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	var out []string
	for _, k := range m.cache.Keys() {
		e, ok := m.cache.Peek(k)
		if !ok || e.expired(now) {
			continue
		}
		if match.Match(k, pattern) {
			out = append(out, k)
		}
	}
	return out
}

// Len reports the number of keys currently held, expired or not.
func (m *MemoryStore) Len() int {
	return m.cache.Len()
}

var _ Store = (*MemoryStore)(nil)
