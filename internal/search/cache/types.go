// Package cache holds the search result cache: an authoritative
// in-process LRU in front of an optional shared mirror, with entries
// classified as fresh, stale, or expired by age.
package cache

import (
	"hash/fnv"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"musichub/internal/models"
)

// Entry is one cached search computation.
type Entry struct {
	Songs     []models.Song `json:"songs"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// State classifies an entry's age against the fresh and stale windows.
type State int

const (
	// StateFresh entries are served as-is.
	StateFresh State = iota
	// StateStale entries are served while a refresh runs behind them.
	StateStale
	// StateExpired entries are treated as misses.
	StateExpired
)

func (s State) String() string {
	switch s {
	case StateFresh:
		return "fresh"
	case StateStale:
		return "stale"
	default:
		return "expired"
	}
}

// StateAt classifies the entry at the given instant.
func (e *Entry) StateAt(now time.Time, freshTTL, staleTTL time.Duration) State {
	age := now.Sub(e.UpdatedAt)
	switch {
	case age <= freshTTL:
		return StateFresh
	case age <= staleTTL:
		return StateStale
	default:
		return StateExpired
	}
}

// Config carries the result cache windows and the in-process capacity.
type Config struct {
	FreshTTL time.Duration
	StaleTTL time.Duration
	Capacity int
}

// Key derives the cache key for a normalized query and the caller's
// preferred languages. Languages are lowercased, deduplicated, and
// sorted so that equivalent requests share an entry; no languages hash
// as "_". The FNV-64a sum is rendered in base 36 to keep mirror keys
// short.
func Key(normalizedQuery string, languages []string) string {
	langs := make([]string, 0, len(languages))
	seen := make(map[string]bool, len(languages))
	for _, l := range languages {
		l = strings.ToLower(strings.TrimSpace(l))
		if l == "" || seen[l] {
			continue
		}
		seen[l] = true
		langs = append(langs, l)
	}
	sort.Strings(langs)

	suffix := "_"
	if len(langs) > 0 {
		suffix = strings.Join(langs, ",")
	}

	h := fnv.New64a()
	io.WriteString(h, normalizedQuery)
	io.WriteString(h, "|")
	io.WriteString(h, suffix)
	return strconv.FormatUint(h.Sum64(), 36)
}
