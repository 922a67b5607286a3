package rerank

import (
	"math"
	"strings"

	"musichub/internal/models"
	"musichub/internal/normalize"
	"musichub/internal/profile"
)

// Feature indexes, in the order the network consumes them.
const (
	idxTextRank = iota
	idxEmbedding
	idxLanguage
	idxArtist
	idxPopularity
	idxInteraction
	idxSkipRisk
	idxQueryIntent
)

// Defaults used when a signal is absent for a song.
const (
	defaultPopularity  = 0.45
	defaultInteraction = 0.35
	defaultSkipRisk    = 0.2
	defaultQueryIntent = 0.5
)

// featurizer holds the per-request state shared by every candidate.
type featurizer struct {
	profile     *profile.RealtimeProfile
	userVec     vector
	preferred   map[string]bool
	favorites   map[string]bool
	queryTokens []string
	total       int
}

func newFeaturizer(p *profile.RealtimeProfile, preferredLanguages []string, query string, total int) *featurizer {
	preferred := make(map[string]bool)
	for _, lang := range preferredLanguages {
		if key := normalize.Language(lang); key != "" {
			preferred[key] = true
		}
	}
	if len(preferred) == 0 {
		for _, lang := range p.Languages {
			if key := normalize.Language(lang); key != "" {
				preferred[key] = true
			}
		}
	}
	favorites := make(map[string]bool, len(p.FavoriteArtists))
	for _, a := range p.FavoriteArtists {
		if name := normalize.Normalize(a.Name); name != "" {
			favorites[name] = true
		}
	}
	return &featurizer{
		profile:     p,
		userVec:     userVector(p),
		preferred:   preferred,
		favorites:   favorites,
		queryTokens: normalize.Tokens(query),
		total:       total,
	}
}

func (f *featurizer) features(song *models.Song, position int) [featureCount]float64 {
	var out [featureCount]float64
	out[idxTextRank] = f.textRank(position)
	out[idxEmbedding] = similarity(f.userVec, songVector(song))
	out[idxLanguage] = f.languageScore(song)
	out[idxArtist] = f.artistScore(song)
	out[idxPopularity] = popularityScore(song.PlayCount)
	out[idxInteraction], out[idxSkipRisk] = f.interactionScores(song.ID)
	out[idxQueryIntent] = f.queryIntent(song)
	return out
}

// textRank preserves upstream order as a prior: first song 1.0, last
// 0.0, a lone candidate 1.0.
func (f *featurizer) textRank(position int) float64 {
	if f.total <= 1 {
		return 1
	}
	return clamp01(1 - float64(position)/float64(f.total-1))
}

func (f *featurizer) languageScore(song *models.Song) float64 {
	lang := normalize.Language(song.Language)
	score := 0.25
	if lang != "" && f.preferred[lang] {
		score = 1.0
	}
	if aff := f.profile.LanguageAffinity[lang]; aff > 0 {
		score += math.Min(0.35, aff/12)
	} else if aff < 0 {
		score -= math.Min(0.35, -aff/10)
	}
	return clamp01(score)
}

func (f *featurizer) artistScore(song *models.Song) float64 {
	score := 0.1
	var aff float64
	for _, name := range song.PrimaryArtistNames() {
		key := normalize.Normalize(name)
		if key == "" {
			continue
		}
		if f.favorites[key] {
			score += 0.45
		}
		aff += f.profile.ArtistAffinity[key]
	}
	if aff > 0 {
		score += math.Min(0.35, aff/14)
	} else if aff < 0 {
		score -= math.Min(0.35, -aff/12)
	}
	return clamp01(score)
}

func popularityScore(playCount int64) float64 {
	if playCount <= 0 {
		return defaultPopularity
	}
	return clamp01(math.Log10(float64(playCount)+1) / 3.2)
}

func (f *featurizer) interactionScores(songID string) (interaction, skipRisk float64) {
	it, ok := f.profile.SongInteractions[songID]
	if !ok {
		return defaultInteraction, defaultSkipRisk
	}
	interaction = sigmoid(it.Affinity * 0.35)
	total := it.PlayCount + it.SkipCount
	if total == 0 {
		return interaction, defaultSkipRisk
	}
	return interaction, float64(it.SkipCount) / float64(total)
}

// queryIntent is the fraction of query tokens present in the song's
// title or artist line. No query context scores neutral.
func (f *featurizer) queryIntent(song *models.Song) float64 {
	if len(f.queryTokens) == 0 {
		return defaultQueryIntent
	}
	haystack := normalize.Normalize(song.Name + " " + song.ArtistLine())
	found := 0
	for _, tok := range f.queryTokens {
		if strings.Contains(haystack, tok) {
			found++
		}
	}
	return float64(found) / float64(len(f.queryTokens))
}
