package profile

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"musichub/internal/models"
	"musichub/internal/store"
)

func TestBuildEmptyUser(t *testing.T) {
	b := NewBuilder(store.NewUserStore(store.NewMemoryClient()))

	p, err := b.Build(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Equal(t, "ghost", p.UID)
	assert.Empty(t, p.Languages)
	assert.Empty(t, p.SearchTerms)
	assert.Empty(t, p.SongInteractions)
}

func TestBuildFoldsPreferencesAndActivity(t *testing.T) {
	ctx := context.Background()
	users := store.NewUserStore(store.NewMemoryClient())
	b := NewBuilder(users)

	_, err := users.SavePreferences(ctx, "u1", store.PreferencesUpdate{
		Languages:       []string{"Hindi"},
		FavoriteArtists: []models.Artist{{ID: "ar-1", Name: "Arijit Singh"}},
	})
	require.NoError(t, err)

	_, err = users.LogActivity(ctx, "u1", store.ActivityEvent{
		Type:     store.ActivityPlay,
		SongID:   "song-1",
		SongName: "Tum Hi Ho",
		Artist:   "Arijit Singh",
		Language: "Hindi",
	})
	require.NoError(t, err)

	p, err := b.Build(ctx, "u1")
	require.NoError(t, err)

	assert.Equal(t, []string{"Hindi"}, p.Languages)
	require.Len(t, p.FavoriteArtists, 1)

	// one play: affinity 2.0, so 1.5 seed + 0.3*2 for the language and
	// 0.5*2 for the artist
	assert.InDelta(t, 2.1, p.LanguageAffinity["hindi"], 1e-9)
	assert.InDelta(t, 1.0, p.ArtistAffinity["arijit singh"], 1e-9)

	inter, ok := p.SongInteractions["song-1"]
	require.True(t, ok)
	assert.Equal(t, int64(1), inter.PlayCount)
	assert.InDelta(t, 2.0, inter.Affinity, 1e-9)
	assert.Equal(t, "hindi", inter.Language)
	assert.NotZero(t, inter.LastPlayed)
}

func TestBuildSkipsDragAffinityDown(t *testing.T) {
	ctx := context.Background()
	users := store.NewUserStore(store.NewMemoryClient())

	for i := 0; i < 2; i++ {
		_, err := users.LogActivity(ctx, "u1", store.ActivityEvent{
			Type:     store.ActivitySkip,
			SongID:   "song-1",
			Artist:   "Some Band",
			Language: "english",
		})
		require.NoError(t, err)
	}

	p, err := NewBuilder(users).Build(ctx, "u1")
	require.NoError(t, err)

	// two skips: affinity -5, language gets 0.3 of it, artist 0.5
	assert.InDelta(t, -1.5, p.LanguageAffinity["english"], 1e-9)
	assert.InDelta(t, -2.5, p.ArtistAffinity["some band"], 1e-9)
}

func TestBuildSearchTermsDedupedMostRecentFirst(t *testing.T) {
	ctx := context.Background()
	users := store.NewUserStore(store.NewMemoryClient())

	for _, q := range []string{"Tum Hi Ho", "tum hi ho", "arijit"} {
		_, err := users.LogActivity(ctx, "u1", store.ActivityEvent{
			Type:  store.ActivitySearch,
			Query: q,
		})
		require.NoError(t, err)
	}

	p, err := NewBuilder(users).Build(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"arijit", "tum hi ho"}, p.SearchTerms)
}

func TestBuildCapsInteractionsAtMostRecent(t *testing.T) {
	ctx := context.Background()
	tree := store.NewMemoryClient()
	users := store.NewUserStore(tree)

	aggs := make(map[string]store.SongAggregate, maxInteractions+10)
	for i := 0; i < maxInteractions+10; i++ {
		aggs[fmt.Sprintf("song-%04d", i)] = store.SongAggregate{
			PlayCount:  1,
			LastPlayed: int64(1000 + i),
			Affinity:   2,
		}
	}
	require.NoError(t, tree.Set(ctx, "user_activity/u1", aggs))

	p, err := NewBuilder(users).Build(ctx, "u1")
	require.NoError(t, err)

	assert.Len(t, p.SongInteractions, maxInteractions)
	// the ten oldest fall off
	_, oldest := p.SongInteractions["song-0000"]
	assert.False(t, oldest)
	_, newest := p.SongInteractions[fmt.Sprintf("song-%04d", maxInteractions+9)]
	assert.True(t, newest)
}
