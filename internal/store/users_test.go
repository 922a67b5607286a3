package store

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"musichub/internal/models"
)

func TestPreferencesMissingUser(t *testing.T) {
	s := NewUserStore(NewMemoryClient())
	_, err := s.Preferences(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSavePreferencesRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewUserStore(NewMemoryClient())

	saved, err := s.SavePreferences(ctx, "u1", PreferencesUpdate{
		Languages:       []string{"hindi", "punjabi"},
		FavoriteArtists: []models.Artist{{ID: "ar-1", Name: "Arijit Singh"}},
		DisplayName:     "Asha",
	})
	require.NoError(t, err)
	assert.Equal(t, "u1", saved.UID)
	assert.Equal(t, []string{"hindi", "punjabi"}, saved.Languages)
	assert.NotZero(t, saved.CreatedAt)
	assert.NotZero(t, saved.UpdatedAt)

	got, err := s.Preferences(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, saved.Languages, got.Languages)
	require.Len(t, got.FavoriteArtists, 1)
	assert.Equal(t, "Arijit Singh", got.FavoriteArtists[0].Name)
	assert.Equal(t, saved.CreatedAt, got.CreatedAt)
}

func TestSavePreferencesPartialUpdateKeepsOtherFields(t *testing.T) {
	ctx := context.Background()
	s := NewUserStore(NewMemoryClient())

	first, err := s.SavePreferences(ctx, "u1", PreferencesUpdate{Languages: []string{"hindi"}})
	require.NoError(t, err)

	second, err := s.SavePreferences(ctx, "u1", PreferencesUpdate{
		FavoriteArtists: []models.Artist{{ID: "ar-9", Name: "Shreya Ghoshal"}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"hindi"}, second.Languages)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)

	got, err := s.Preferences(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"hindi"}, got.Languages)
	require.Len(t, got.FavoriteArtists, 1)
	assert.Equal(t, "Shreya Ghoshal", got.FavoriteArtists[0].Name)
}

func TestPreferencesReadsLegacyLanguageKey(t *testing.T) {
	ctx := context.Background()
	tree := NewMemoryClient()
	require.NoError(t, tree.Set(ctx, "users/u1", map[string]any{
		"preferred_language": "hindi",
		"displayName":        "Ravi",
	}))

	got, err := NewUserStore(tree).Preferences(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"hindi"}, got.Languages)
	assert.Equal(t, "Ravi", got.DisplayName)
}

func TestPreferencesCurrentKeyWinsOverLegacy(t *testing.T) {
	ctx := context.Background()
	tree := NewMemoryClient()
	require.NoError(t, tree.Set(ctx, "users/u1", map[string]any{
		"languages":          []string{"tamil"},
		"preferred_language": []string{"hindi"},
	}))

	got, err := NewUserStore(tree).Preferences(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"tamil"}, got.Languages)
}

func TestSavePreferencesWritesBothLanguageKeys(t *testing.T) {
	ctx := context.Background()
	tree := NewMemoryClient()
	_, err := NewUserStore(tree).SavePreferences(ctx, "u1", PreferencesUpdate{Languages: []string{"hindi"}})
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, tree.Get(ctx, "users/u1", &raw))
	assert.Equal(t, []any{"hindi"}, raw["languages"])
	assert.Equal(t, []any{"hindi"}, raw["preferred_language"])
}

func TestPreferencesIgnoresActivitySubtrees(t *testing.T) {
	ctx := context.Background()
	tree := NewMemoryClient()
	s := NewUserStore(tree)

	_, err := s.SavePreferences(ctx, "u1", PreferencesUpdate{Languages: []string{"hindi"}})
	require.NoError(t, err)
	_, err = s.LogActivity(ctx, "u1", ActivityEvent{Type: ActivityPlay, SongID: "song-1"})
	require.NoError(t, err)

	got, err := s.Preferences(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"hindi"}, got.Languages)
}

func TestLogActivityRejectsUnknownType(t *testing.T) {
	s := NewUserStore(NewMemoryClient())
	_, err := s.LogActivity(context.Background(), "u1", ActivityEvent{Type: "hum"})
	require.Error(t, err)
	var serr *StoreError
	assert.ErrorAs(t, err, &serr)
}

func TestLogActivityAppendsAndDerives(t *testing.T) {
	ctx := context.Background()
	tree := NewMemoryClient()
	s := NewUserStore(tree)

	_, err := s.LogActivity(ctx, "u1", ActivityEvent{
		Type:     ActivityPlay,
		SongID:   "song-1",
		SongName: "Tum Hi Ho",
		Artist:   "Arijit Singh",
		Language: "hindi",
	})
	require.NoError(t, err)

	events, err := s.RecentActivity(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, ActivityPlay, events[0].Type)
	assert.NotZero(t, events[0].Timestamp)

	aggs, err := s.SongAggregates(ctx, "u1")
	require.NoError(t, err)
	agg := aggs["song-1"]
	assert.Equal(t, int64(1), agg.PlayCount)
	assert.InDelta(t, 2.0, agg.Affinity, 1e-9)
	assert.Equal(t, "hindi", agg.Language)
	assert.NotZero(t, agg.LastPlayed)

	var rec ListeningRecord
	require.NoError(t, tree.Get(ctx, "users/u1/listening_history/song-1", &rec))
	assert.Equal(t, int64(1), rec.PlayCount)
	assert.Equal(t, "Arijit Singh", rec.Artist)

	var mark SongMark
	require.NoError(t, tree.Get(ctx, "users/u1/liked_songs/song-1", &mark))
	assert.Equal(t, "Tum Hi Ho", mark.SongName)
}

func TestConcurrentPlaysBothCount(t *testing.T) {
	ctx := context.Background()
	s := NewUserStore(NewMemoryClient())

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.LogActivity(ctx, "u1", ActivityEvent{Type: ActivityPlay, SongID: "song-1"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	aggs, err := s.SongAggregates(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), aggs["song-1"].PlayCount)
	assert.InDelta(t, 4.0, aggs["song-1"].Affinity, 1e-9)

	events, err := s.RecentActivity(ctx, "u1", 10)
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestAffinityBalancesPlaysClicksAndSkips(t *testing.T) {
	ctx := context.Background()
	s := NewUserStore(NewMemoryClient())

	for _, typ := range []string{ActivityPlay, ActivitySearchClick, ActivitySkip} {
		_, err := s.LogActivity(ctx, "u1", ActivityEvent{Type: typ, SongID: "song-1"})
		require.NoError(t, err)
	}

	aggs, err := s.SongAggregates(ctx, "u1")
	require.NoError(t, err)
	agg := aggs["song-1"]
	assert.Equal(t, int64(1), agg.PlayCount)
	assert.Equal(t, int64(1), agg.SearchClicked)
	assert.Equal(t, int64(1), agg.SkipCount)
	assert.InDelta(t, 0.25, agg.Affinity, 1e-9)
}

func TestSearchActivityBumpsHistory(t *testing.T) {
	ctx := context.Background()
	tree := NewMemoryClient()
	s := NewUserStore(tree)

	for i := 0; i < 2; i++ {
		_, err := s.LogActivity(ctx, "u1", ActivityEvent{Type: ActivitySearch, Query: "tum hi ho?"})
		require.NoError(t, err)
	}

	var rec SearchRecord
	require.NoError(t, tree.Get(ctx, "users/u1/search_history/"+SafeKey("tum hi ho?"), &rec))
	assert.Equal(t, "tum hi ho?", rec.Query)
	assert.Equal(t, int64(2), rec.Count)
	assert.NotZero(t, rec.LastSearched)
}

func TestRecentActivityMostRecentFirst(t *testing.T) {
	ctx := context.Background()
	s := NewUserStore(NewMemoryClient())

	for _, q := range []string{"first", "second", "third"} {
		_, err := s.LogActivity(ctx, "u1", ActivityEvent{Type: ActivitySearch, Query: q})
		require.NoError(t, err)
	}

	events, err := s.RecentActivity(ctx, "u1", 2)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "third", events[0].Query)
	assert.Equal(t, "second", events[1].Query)
}

func TestSkippedSongIDsNewestFirstAndCapped(t *testing.T) {
	ctx := context.Background()
	s := NewUserStore(NewMemoryClient())

	for i, id := range []string{"song-a", "song-b", "song-c"} {
		_, err := s.LogActivity(ctx, "u1", ActivityEvent{
			Type:      ActivitySkip,
			SongID:    id,
			Timestamp: int64(1000 + i),
		})
		require.NoError(t, err)
	}

	ids, err := s.SkippedSongIDs(ctx, "u1", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"song-c", "song-b"}, ids)

	none, err := s.SkippedSongIDs(ctx, "nobody", 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}
