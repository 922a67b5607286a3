package cache

import (
	"context"
	"time"

	"musichub/internal/cache"
)

// mirrorKeyPrefix namespaces search entries inside the shared cache so
// they never collide with auth token keys.
const mirrorKeyPrefix = "search:v1:"

// PersistentCache mirrors search entries into a shared byte cache
// (valkey in production) so a restarted or sibling process can serve
// stale results without paying the upstream fan-out again. It is a
// best-effort layer: the in-process cache stays authoritative and the
// manager only logs mirror errors.
type PersistentCache struct {
	store cache.Cache
	ttl   time.Duration
}

// NewPersistentCache wraps a shared byte cache. Entries live for ttl,
// normally the stale window, since older entries are useless to every
// process.
func NewPersistentCache(store cache.Cache, ttl time.Duration) *PersistentCache {
	return &PersistentCache{store: store, ttl: ttl}
}

// GetEntry retrieves an entry by cache key. A miss is (nil, false, nil).
func (pc *PersistentCache) GetEntry(ctx context.Context, key string) (*Entry, bool, error) {
	var entry Entry
	found, err := cache.GetJSON(ctx, pc.store, mirrorKeyPrefix+key, &entry)
	if err != nil || !found {
		return nil, false, err
	}
	return &entry, true, nil
}

// StoreEntry writes an entry under its cache key.
func (pc *PersistentCache) StoreEntry(ctx context.Context, key string, entry *Entry) error {
	return cache.SetJSON(ctx, pc.store, mirrorKeyPrefix+key, entry, pc.ttl)
}
