package cache

import (
	"context"
	"log/slog"
	"time"

	"musichub/internal/cache"
	"musichub/internal/models"
)

// Manager orchestrates the result cache layers. The in-process LRU is
// authoritative; the shared mirror is consulted on a local miss and
// written through on store, with failures logged rather than surfaced.
type Manager struct {
	memory *MemoryCache
	mirror *PersistentCache
	config Config
}

// NewManager builds the layered cache. shared may be nil, which leaves
// the manager purely in-process.
func NewManager(config Config, shared cache.Cache) *Manager {
	m := &Manager{
		memory: NewMemoryCache(config.Capacity, config.StaleTTL),
		config: config,
	}
	if shared != nil {
		m.mirror = NewPersistentCache(shared, config.StaleTTL)
	}
	return m
}

// Lookup returns the entry for key together with its freshness state.
// A local miss falls through to the mirror; a usable mirror entry is
// installed locally on the way back.
func (m *Manager) Lookup(ctx context.Context, key string) (*Entry, State, bool) {
	if entry, found := m.memory.Get(key); found {
		return entry, entry.StateAt(time.Now(), m.config.FreshTTL, m.config.StaleTTL), true
	}

	if m.mirror == nil {
		return nil, StateExpired, false
	}
	entry, found, err := m.mirror.GetEntry(ctx, key)
	if err != nil {
		slog.Warn("search cache mirror read failed", "key", key, "error", err)
		return nil, StateExpired, false
	}
	if !found {
		return nil, StateExpired, false
	}
	state := entry.StateAt(time.Now(), m.config.FreshTTL, m.config.StaleTTL)
	if state == StateExpired {
		return nil, StateExpired, false
	}
	m.Install(key, entry)
	slog.Debug("search cache mirror hit", "key", key, "state", state.String(), "songs", len(entry.Songs))
	return entry, state, true
}

// Install places an already-built entry in the in-process layer without
// touching the mirror.
func (m *Manager) Install(key string, entry *Entry) {
	m.memory.Set(key, entry)
}

// Store installs a freshly computed result in every layer and returns
// the entry.
func (m *Manager) Store(ctx context.Context, key string, songs []models.Song) *Entry {
	entry := &Entry{Songs: songs, UpdatedAt: time.Now()}
	m.memory.Set(key, entry)
	if m.mirror != nil {
		if err := m.mirror.StoreEntry(ctx, key, entry); err != nil {
			slog.Warn("search cache mirror write failed", "key", key, "error", err)
		}
	}
	return entry
}

// Size reports the in-process entry count.
func (m *Manager) Size() int {
	return m.memory.Size()
}
