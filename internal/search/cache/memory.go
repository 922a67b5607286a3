package cache

import (
	"container/list"
	"sync"
	"time"
)

// MemoryCache is the in-process LRU layer of the result cache. Entries
// expire once their age passes the stale window; until then they stay
// resident so stale reads can be served while a refresh runs.
type MemoryCache struct {
	maxItems int
	ttl      time.Duration
	items    map[string]*list.Element
	lru      *list.List
	mu       sync.RWMutex
}

type cacheItem struct {
	key   string
	entry *Entry
}

// NewMemoryCache creates an LRU cache that keeps entries for ttl past
// their UpdatedAt.
func NewMemoryCache(maxItems int, ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		maxItems: maxItems,
		ttl:      ttl,
		items:    make(map[string]*list.Element),
		lru:      list.New(),
	}
}

// Get retrieves the entry for key. Expired entries are dropped and
// reported as misses. The returned entry's song slice is a copy, so
// callers may annotate songs without corrupting the cache. Get takes
// the write lock: it bumps LRU order, and the entry pointer it reads
// may be swapped by a concurrent Set on the same key.
func (m *MemoryCache) Get(key string) (*Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	elem, found := m.items[key]
	if !found {
		return nil, false
	}

	item := elem.Value.(*cacheItem)
	if time.Now().After(item.entry.UpdatedAt.Add(m.ttl)) {
		m.removeElement(elem)
		return nil, false
	}

	m.lru.MoveToFront(elem)
	return item.entry.clone(), true
}

// Set stores an entry under key and evicts from the cold end when over
// capacity.
func (m *MemoryCache) Set(key string, entry *Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if elem, found := m.items[key]; found {
		elem.Value.(*cacheItem).entry = entry
		m.lru.MoveToFront(elem)
		return
	}

	elem := m.lru.PushFront(&cacheItem{key: key, entry: entry})
	m.items[key] = elem

	for m.lru.Len() > m.maxItems {
		oldest := m.lru.Back()
		if oldest == nil {
			break
		}
		m.removeElement(oldest)
	}
}

// Delete removes a key from the cache.
func (m *MemoryCache) Delete(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if elem, found := m.items[key]; found {
		m.removeElement(elem)
	}
}

// removeElement removes an element from both the map and the list.
func (m *MemoryCache) removeElement(elem *list.Element) {
	item := elem.Value.(*cacheItem)
	delete(m.items, item.key)
	m.lru.Remove(elem)
}

// Clear removes all items from the cache.
func (m *MemoryCache) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = make(map[string]*list.Element)
	m.lru = list.New()
}

// Size returns the current number of items in the cache.
func (m *MemoryCache) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

// CleanupExpired removes all expired items and reports how many were
// dropped.
func (m *MemoryCache) CleanupExpired() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	removed := 0
	for _, elem := range m.items {
		item := elem.Value.(*cacheItem)
		if now.After(item.entry.UpdatedAt.Add(m.ttl)) {
			m.removeElement(elem)
			removed++
		}
	}
	return removed
}

func (e *Entry) clone() *Entry {
	out := &Entry{UpdatedAt: e.UpdatedAt}
	if e.Songs != nil {
		out.Songs = append(out.Songs, e.Songs...)
	}
	return out
}
