package handlers

import (
	"container/list"
	"sync"
	"time"
)

// languageCache remembers each user's preferred languages so /search
// does not read the store on every request. Empty preference lists are
// cached too; a user without preferences should not cost a store read
// per search either.
type languageCache struct {
	mu    sync.Mutex
	cap   int
	ttl   time.Duration
	items map[string]*list.Element
	lru   *list.List
}

type languageItem struct {
	uid       string
	languages []string
	fetched   time.Time
}

func newLanguageCache(capacity int, ttl time.Duration) *languageCache {
	return &languageCache{
		cap:   capacity,
		ttl:   ttl,
		items: make(map[string]*list.Element),
		lru:   list.New(),
	}
}

func (c *languageCache) get(uid string) ([]string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	elem, ok := c.items[uid]
	if !ok {
		return nil, false
	}
	item := elem.Value.(*languageItem)
	if time.Since(item.fetched) > c.ttl {
		c.lru.Remove(elem)
		delete(c.items, uid)
		return nil, false
	}
	c.lru.MoveToFront(elem)
	return item.languages, true
}

func (c *languageCache) put(uid string, languages []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.items[uid]; ok {
		item := elem.Value.(*languageItem)
		item.languages = languages
		item.fetched = time.Now()
		c.lru.MoveToFront(elem)
		return
	}
	c.items[uid] = c.lru.PushFront(&languageItem{uid: uid, languages: languages, fetched: time.Now()})
	for c.lru.Len() > c.cap {
		oldest := c.lru.Back()
		if oldest == nil {
			break
		}
		c.lru.Remove(oldest)
		delete(c.items, oldest.Value.(*languageItem).uid)
	}
}
