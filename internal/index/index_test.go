package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"musichub/internal/models"
)

func song(id, name, artist, album string) models.Song {
	return models.Song{
		ID:   id,
		Name: name,
		Album: models.Album{
			ID:   album + "-id",
			Name: album,
		},
		Artists: models.ArtistCredits{
			Primary: []models.Artist{{ID: artist + "-id", Name: artist}},
		},
	}
}

func TestNewEntryPrecomputesFields(t *testing.T) {
	e := NewEntry(song("s1", "Love Story (Taylor's Version)", "Taylor Swift", "Fearless"))

	assert.Equal(t, "love story taylor s version", e.Name)
	assert.Equal(t, "taylor swift", e.Artists)
	assert.Equal(t, "fearless", e.Album)
	assert.Equal(t, "love story taylor s version taylor swift fearless", e.Haystack)
	assert.Equal(t, "lovestorytaylorsversion", e.CompactName)
	assert.Contains(t, e.Tokens, "love")
	assert.Contains(t, e.Tokens, "fearless")
	assert.False(t, e.UpdatedAt.IsZero())
}

func TestUpsertAndGet(t *testing.T) {
	x := New(10)
	x.Upsert(song("s1", "Believer", "Imagine Dragons", "Evolve"))

	got, found := x.Get("s1")
	require.True(t, found)
	assert.Equal(t, "Believer", got.Name)

	_, found = x.Get("missing")
	assert.False(t, found)
}

func TestUpsertRejectsPartialRecords(t *testing.T) {
	x := New(10)
	x.Upsert(models.Song{ID: "", Name: "No ID"})
	x.Upsert(models.Song{ID: "s1", Name: ""})
	assert.Equal(t, 0, x.Len())
}

func TestUpsertRefreshesExisting(t *testing.T) {
	x := New(10)
	x.Upsert(song("s1", "Believer", "Imagine Dragons", "Evolve"))
	x.Upsert(song("s1", "Believer (Remix)", "Imagine Dragons", "Evolve"))

	assert.Equal(t, 1, x.Len())
	got, found := x.Get("s1")
	require.True(t, found)
	assert.Equal(t, "Believer (Remix)", got.Name)
}

func TestEvictionDropsLeastRecentlyUsed(t *testing.T) {
	x := New(3)
	x.Upsert(song("s1", "One", "A", "X"))
	x.Upsert(song("s2", "Two", "B", "X"))
	x.Upsert(song("s3", "Three", "C", "X"))
	x.Upsert(song("s4", "Four", "D", "X"))

	assert.Equal(t, 3, x.Len())
	_, found := x.Get("s1")
	assert.False(t, found, "oldest entry should be evicted")
	_, found = x.Get("s4")
	assert.True(t, found)
}

func TestTouchProtectsFromEviction(t *testing.T) {
	x := New(3)
	x.Upsert(song("s1", "One", "A", "X"))
	x.Upsert(song("s2", "Two", "B", "X"))
	x.Upsert(song("s3", "Three", "C", "X"))

	x.Touch("s1")
	x.Upsert(song("s4", "Four", "D", "X"))

	_, found := x.Get("s1")
	assert.True(t, found, "touched entry should survive")
	_, found = x.Get("s2")
	assert.False(t, found, "least recently used entry should be evicted instead")
}

func TestEachVisitsMostRecentFirst(t *testing.T) {
	x := New(10)
	x.Upsert(song("s1", "One", "A", "X"))
	x.Upsert(song("s2", "Two", "B", "X"))
	x.Upsert(song("s3", "Three", "C", "X"))

	var ids []string
	x.Each(func(e *Entry) bool {
		ids = append(ids, e.Song.ID)
		return true
	})
	assert.Equal(t, []string{"s3", "s2", "s1"}, ids)
}

func TestEachStopsWhenVisitorReturnsFalse(t *testing.T) {
	x := New(10)
	x.Upsert(song("s1", "One", "A", "X"))
	x.Upsert(song("s2", "Two", "B", "X"))

	visited := 0
	x.Each(func(e *Entry) bool {
		visited++
		return false
	})
	assert.Equal(t, 1, visited)
}
