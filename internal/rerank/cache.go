package rerank

import (
	"container/list"
	"sync"
	"time"

	"musichub/internal/profile"
)

// profileCache is a small LRU keyed by uid. Two closely spaced
// requests for the same user reuse one profile; there is no
// single-flight because an occasional double build is cheaper than the
// coordination.
type profileCache struct {
	mu    sync.Mutex
	cap   int
	ttl   time.Duration
	items map[string]*list.Element
	lru   *list.List
}

type profileItem struct {
	uid     string
	profile *profile.RealtimeProfile
	fetched time.Time
}

func newProfileCache(capacity int, ttl time.Duration) *profileCache {
	return &profileCache{
		cap:   capacity,
		ttl:   ttl,
		items: make(map[string]*list.Element),
		lru:   list.New(),
	}
}

func (c *profileCache) get(uid string) (*profile.RealtimeProfile, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	elem, ok := c.items[uid]
	if !ok {
		return nil, false
	}
	item := elem.Value.(*profileItem)
	if time.Since(item.fetched) > c.ttl {
		c.lru.Remove(elem)
		delete(c.items, uid)
		return nil, false
	}
	c.lru.MoveToFront(elem)
	return item.profile, true
}

func (c *profileCache) put(uid string, p *profile.RealtimeProfile) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.items[uid]; ok {
		item := elem.Value.(*profileItem)
		item.profile = p
		item.fetched = time.Now()
		c.lru.MoveToFront(elem)
		return
	}
	c.items[uid] = c.lru.PushFront(&profileItem{uid: uid, profile: p, fetched: time.Now()})
	for c.lru.Len() > c.cap {
		oldest := c.lru.Back()
		if oldest == nil {
			break
		}
		c.lru.Remove(oldest)
		delete(c.items, oldest.Value.(*profileItem).uid)
	}
}

func (c *profileCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}
