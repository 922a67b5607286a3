package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// Cache is the byte-level cache seam shared by the search result mirror
// and the auth token cache. A nil, nil return from Get means "not found";
// errors are reserved for transport problems.
type Cache interface {
	// Get retrieves a value from cache
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value in cache with expiration
	Set(ctx context.Context, key string, value []byte, expiration time.Duration) error

	// Delete removes a key from cache
	Delete(ctx context.Context, key string) error

	// Close closes the cache connection
	Close() error

	// Health checks cache health
	Health(ctx context.Context) error
}

// CacheError represents a cache operation error
type CacheError struct {
	Operation string
	Key       string
	Err       error
}

func (e *CacheError) Error() string {
	return "cache " + e.Operation + " failed for key '" + e.Key + "': " + e.Err.Error()
}

func (e *CacheError) Unwrap() error {
	return e.Err
}

// GetJSON reads key and unmarshals it into dest. Returns false when the
// key is absent.
func GetJSON(ctx context.Context, c Cache, key string, dest any) (bool, error) {
	data, err := c.Get(ctx, key)
	if err != nil || data == nil {
		return false, err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, &CacheError{Operation: "decode", Key: key, Err: err}
	}
	return true, nil
}

// SetJSON marshals value and stores it under key.
func SetJSON(ctx context.Context, c Cache, key string, value any, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return &CacheError{Operation: "encode", Key: key, Err: err}
	}
	return c.Set(ctx, key, data, expiration)
}

// Memory is a process-local Cache with TTLs and a soft item cap. It backs
// the auth token cache and stands in for valkey in tests.
type Memory struct {
	mu       sync.RWMutex
	items    map[string]memoryItem
	maxItems int
}

type memoryItem struct {
	data      []byte
	expiresAt time.Time
}

// NewMemory creates an in-memory cache holding at most maxItems entries.
func NewMemory(maxItems int) *Memory {
	if maxItems <= 0 {
		maxItems = 1024
	}
	return &Memory{
		items:    make(map[string]memoryItem),
		maxItems: maxItems,
	}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	item, ok := m.items[key]
	m.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	if !item.expiresAt.IsZero() && time.Now().After(item.expiresAt) {
		m.mu.Lock()
		// Re-check under the write lock; another goroutine may have
		// replaced the entry in the meantime.
		if cur, ok := m.items[key]; ok && !cur.expiresAt.IsZero() && time.Now().After(cur.expiresAt) {
			delete(m.items, key)
		}
		m.mu.Unlock()
		return nil, nil
	}
	return item.data, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte, expiration time.Duration) error {
	var expiresAt time.Time
	if expiration > 0 {
		expiresAt = time.Now().Add(expiration)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.items[key]; !exists && len(m.items) >= m.maxItems {
		m.evictOneLocked()
	}
	m.items[key] = memoryItem{data: value, expiresAt: expiresAt}
	return nil
}

// evictOneLocked drops the entry closest to expiry, or an arbitrary one
// when nothing carries a deadline.
func (m *Memory) evictOneLocked() {
	var victim string
	var victimExpiry time.Time
	for k, item := range m.items {
		if victim == "" || (!item.expiresAt.IsZero() && (victimExpiry.IsZero() || item.expiresAt.Before(victimExpiry))) {
			victim = k
			victimExpiry = item.expiresAt
		}
	}
	if victim != "" {
		delete(m.items, victim)
	}
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.items, key)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	m.items = make(map[string]memoryItem)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Health(context.Context) error {
	return nil
}

// Len reports the live entry count, expired entries included until a Get
// touches them.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}
