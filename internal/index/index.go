// Package index keeps every song seen in a provider response in a
// bounded in-memory LRU map. Searchable fields are precomputed at
// insertion time so the zero-latency local pass can score candidates
// without I/O and without per-candidate allocation.
package index

import (
	"container/list"
	"strings"
	"sync"
	"time"

	"musichub/internal/models"
	"musichub/internal/normalize"
)

// Entry is an indexed song together with its precomputed match fields.
// Entries are owned by the index; callers receive Song value copies and
// must treat a visited Entry as read-only.
type Entry struct {
	Song models.Song

	Name            string
	Artists         string
	Album           string
	Haystack        string
	CompactName     string
	CompactHaystack string
	Tokens          []string

	UpdatedAt  time.Time
	AccessedAt time.Time
}

// NewEntry precomputes the searchable fields for a song. The same
// constructor serves the index and the upstream scoring path, so a query
// always compares against identically normalized text.
func NewEntry(song models.Song) *Entry {
	name := normalize.Normalize(song.Name)
	artists := normalize.Normalize(song.ArtistLine())
	album := normalize.Normalize(song.Album.Name)

	parts := make([]string, 0, 3)
	for _, p := range []string{name, artists, album} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	haystack := strings.Join(parts, " ")

	var tokens []string
	if haystack != "" {
		tokens = strings.Split(haystack, " ")
	}

	now := time.Now()
	return &Entry{
		Song:            song,
		Name:            name,
		Artists:         artists,
		Album:           album,
		Haystack:        haystack,
		CompactName:     strings.ReplaceAll(name, " ", ""),
		CompactHaystack: strings.ReplaceAll(haystack, " ", ""),
		Tokens:          tokens,
		UpdatedAt:       now,
		AccessedAt:      now,
	}
}

// Index is a bounded LRU of recently seen songs keyed by id.
type Index struct {
	capacity int
	entries  map[string]*list.Element
	lru      *list.List
	mu       sync.RWMutex
}

// New creates an index that holds at most capacity entries.
func New(capacity int) *Index {
	return &Index{
		capacity: capacity,
		entries:  make(map[string]*list.Element),
		lru:      list.New(),
	}
}

// Upsert inserts or refreshes a song. Records without an id or a name
// never enter the index.
func (x *Index) Upsert(song models.Song) {
	if song.ID == "" || song.Name == "" {
		return
	}
	x.PutEntry(NewEntry(song))
}

// UpsertAll inserts or refreshes a batch of songs.
func (x *Index) UpsertAll(songs []models.Song) {
	for _, s := range songs {
		x.Upsert(s)
	}
}

// PutEntry inserts a precomputed entry, taking ownership of it. The
// search engine reuses the entries it already built for scoring.
func (x *Index) PutEntry(e *Entry) {
	if e == nil || e.Song.ID == "" || e.Song.Name == "" {
		return
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	if elem, found := x.entries[e.Song.ID]; found {
		elem.Value = e
		x.lru.MoveToFront(elem)
		return
	}

	elem := x.lru.PushFront(e)
	x.entries[e.Song.ID] = elem

	for x.lru.Len() > x.capacity {
		oldest := x.lru.Back()
		if oldest == nil {
			break
		}
		x.removeElement(oldest)
	}
}

// Get returns a copy of the indexed song and bumps its recency.
func (x *Index) Get(id string) (models.Song, bool) {
	x.mu.Lock()
	defer x.mu.Unlock()

	elem, found := x.entries[id]
	if !found {
		return models.Song{}, false
	}
	e := elem.Value.(*Entry)
	e.AccessedAt = time.Now()
	x.lru.MoveToFront(elem)
	return e.Song, true
}

// Touch bumps the recency of id without reading it. The local pass calls
// this for every entry it returns as a hit, so hits outlive misses.
func (x *Index) Touch(id string) {
	x.mu.Lock()
	defer x.mu.Unlock()

	if elem, found := x.entries[id]; found {
		elem.Value.(*Entry).AccessedAt = time.Now()
		x.lru.MoveToFront(elem)
	}
}

// Each visits entries from most to least recently used until visit
// returns false. Visitors must not retain or mutate entries.
func (x *Index) Each(visit func(e *Entry) bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	for elem := x.lru.Front(); elem != nil; elem = elem.Next() {
		if !visit(elem.Value.(*Entry)) {
			return
		}
	}
}

// Len returns the current number of indexed songs.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.entries)
}

// Capacity returns the configured maximum.
func (x *Index) Capacity() int {
	return x.capacity
}

// removeElement drops an element from both the map and the list. Callers
// hold the write lock.
func (x *Index) removeElement(elem *list.Element) {
	e := elem.Value.(*Entry)
	delete(x.entries, e.Song.ID)
	x.lru.Remove(elem)
}
