package rerank

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"musichub/internal/models"
	"musichub/internal/profile"
)

func emptyProfile(uid string) *profile.RealtimeProfile {
	return &profile.RealtimeProfile{
		UID:              uid,
		LanguageAffinity: map[string]float64{},
		ArtistAffinity:   map[string]float64{},
		SongInteractions: map[string]profile.Interaction{},
	}
}

func TestTextRankSpansUnitInterval(t *testing.T) {
	f := newFeaturizer(emptyProfile("u1"), nil, "", 5)
	assert.InDelta(t, 1.0, f.textRank(0), 1e-9)
	assert.InDelta(t, 0.5, f.textRank(2), 1e-9)
	assert.InDelta(t, 0.0, f.textRank(4), 1e-9)

	lone := newFeaturizer(emptyProfile("u1"), nil, "", 1)
	assert.InDelta(t, 1.0, lone.textRank(0), 1e-9)
}

func TestLanguageScore(t *testing.T) {
	prof := emptyProfile("u1")
	prof.LanguageAffinity["tamil"] = 6
	prof.LanguageAffinity["english"] = -5
	f := newFeaturizer(prof, []string{"hindi"}, "", 1)

	hindi := &models.Song{Language: "hindi"}
	assert.InDelta(t, 1.0, f.languageScore(hindi), 1e-9)

	// not preferred but positive affinity: 0.25 + min(0.35, 6/12)
	tamil := &models.Song{Language: "tamil"}
	assert.InDelta(t, 0.6, f.languageScore(tamil), 1e-9)

	// negative affinity drags below zero and clamps
	english := &models.Song{Language: "english"}
	assert.InDelta(t, 0.0, f.languageScore(english), 1e-9)

	// unknown language, no affinity
	kannada := &models.Song{Language: "kannada"}
	assert.InDelta(t, 0.25, f.languageScore(kannada), 1e-9)
}

func TestArtistScore(t *testing.T) {
	prof := emptyProfile("u1")
	prof.FavoriteArtists = []models.Artist{{ID: "ar-1", Name: "Arijit Singh"}}
	prof.ArtistAffinity["arijit singh"] = 7
	prof.ArtistAffinity["some band"] = -6
	f := newFeaturizer(prof, nil, "", 1)

	favorite := &models.Song{Artists: models.ArtistCredits{Primary: []models.Artist{{Name: "Arijit Singh"}}}}
	// 0.1 + 0.45 favorite + min(0.35, 7/14)
	assert.InDelta(t, 0.9, f.artistScore(favorite), 1e-9)

	disliked := &models.Song{Artists: models.ArtistCredits{Primary: []models.Artist{{Name: "Some Band"}}}}
	// 0.1 - min(0.35, 6/12) clamps at zero
	assert.InDelta(t, 0.0, f.artistScore(disliked), 1e-9)

	unknown := &models.Song{Artists: models.ArtistCredits{Primary: []models.Artist{{Name: "Nobody"}}}}
	assert.InDelta(t, 0.1, f.artistScore(unknown), 1e-9)
}

func TestPopularityScore(t *testing.T) {
	assert.InDelta(t, defaultPopularity, popularityScore(0), 1e-9)
	assert.InDelta(t, 0.93764, popularityScore(1000), 1e-4)
	assert.InDelta(t, 1.0, popularityScore(10_000_000), 1e-9)
}

func TestInteractionAndSkipRisk(t *testing.T) {
	prof := emptyProfile("u1")
	prof.SongInteractions["song-1"] = profile.Interaction{PlayCount: 3, SkipCount: 1, Affinity: 2}
	f := newFeaturizer(prof, nil, "", 1)

	inter, skip := f.interactionScores("song-1")
	assert.InDelta(t, sigmoid(0.7), inter, 1e-9)
	assert.InDelta(t, 0.25, skip, 1e-9)

	inter, skip = f.interactionScores("never-seen")
	assert.InDelta(t, defaultInteraction, inter, 1e-9)
	assert.InDelta(t, defaultSkipRisk, skip, 1e-9)
}

func TestQueryIntent(t *testing.T) {
	song := &models.Song{
		Name:    "Tum Hi Ho",
		Artists: models.ArtistCredits{Primary: []models.Artist{{Name: "Arijit Singh"}}},
	}

	noQuery := newFeaturizer(emptyProfile("u1"), nil, "", 1)
	assert.InDelta(t, defaultQueryIntent, noQuery.queryIntent(song), 1e-9)

	full := newFeaturizer(emptyProfile("u1"), nil, "tum hi ho", 1)
	assert.InDelta(t, 1.0, full.queryIntent(song), 1e-9)

	partial := newFeaturizer(emptyProfile("u1"), nil, "tum hi believer", 1)
	assert.InDelta(t, 2.0/3.0, partial.queryIntent(song), 1e-9)

	artistHit := newFeaturizer(emptyProfile("u1"), nil, "arijit", 1)
	assert.InDelta(t, 1.0, artistHit.queryIntent(song), 1e-9)
}

func TestPreferredLanguagesFallBackToProfile(t *testing.T) {
	prof := emptyProfile("u1")
	prof.Languages = []string{"Hindi"}
	f := newFeaturizer(prof, nil, "", 1)
	assert.InDelta(t, 1.0, f.languageScore(&models.Song{Language: "hindi"}), 1e-9)
}
