package rerank

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"musichub/internal/config"
	"musichub/internal/metrics"
	"musichub/internal/models"
	"musichub/internal/profile"
)

// Rule blend weights over the feature vector, and the share the neural
// head gets in the final score.
const (
	ruleTextWeight        = 0.4
	rulePreferenceWeight  = 0.3
	rulePopularityWeight  = 0.2
	ruleInteractionWeight = 0.1

	ruleShare   = 0.65
	neuralShare = 0.35
)

// ProfileSource builds a fresh profile for a user.
type ProfileSource interface {
	Build(ctx context.Context, uid string) (*profile.RealtimeProfile, error)
}

// Options carry the request context a rerank happens in.
type Options struct {
	Query              string
	PreferredLanguages []string
	Mode               string
}

// Reranker reorders candidates by blended personalization score.
type Reranker struct {
	source   ProfileSource
	profiles *profileCache
	net      *network
}

// New wires the reranker with the default weight tables. The shape
// check runs here so a bad table stops startup instead of a request.
func New(source ProfileSource) (*Reranker, error) {
	net, err := newNetwork(defaultWeights())
	if err != nil {
		return nil, err
	}
	tuning := config.GetTuning()
	return &Reranker{
		source:   source,
		profiles: newProfileCache(tuning.ProfileCacheCapacity, tuning.ProfileCacheTTL()),
		net:      net,
	}, nil
}

// Rerank returns songs reordered by final score, each annotated with
// its ranking breakdown. An empty uid or candidate list passes through
// untouched. On profile failure the input order comes back along with
// the error so callers can fall back to their rule-scored list.
func (r *Reranker) Rerank(ctx context.Context, uid string, songs []models.Song, opts Options) ([]models.Song, error) {
	if uid == "" || len(songs) == 0 {
		return songs, nil
	}
	prof, err := r.userProfile(ctx, uid)
	if err != nil {
		return songs, fmt.Errorf("rerank for %s: %w", uid, err)
	}

	start := time.Now()
	defer func() { metrics.ObserveRerank(time.Since(start)) }()

	f := newFeaturizer(prof, opts.PreferredLanguages, opts.Query, len(songs))
	ranked := make([]models.Song, len(songs))
	for i := range songs {
		song := songs[i]
		feats := f.features(&song, i)
		neural := r.net.score(feats)
		rule := ruleTextWeight*feats[idxTextRank] +
			rulePreferenceWeight*preferenceMatch(feats) +
			rulePopularityWeight*feats[idxPopularity] +
			ruleInteractionWeight*feats[idxInteraction]
		final := clamp01(rule)*ruleShare + neural*neuralShare

		song.Ranking = &models.Ranking{
			FinalScore:       round4(final),
			TextRankScore:    round4(feats[idxTextRank]),
			PreferenceMatch:  round4(preferenceMatch(feats)),
			PopularityScore:  round4(feats[idxPopularity]),
			InteractionScore: round4(feats[idxInteraction]),
			NeuralScore:      round4(neural),
		}
		ranked[i] = song
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Ranking.FinalScore > ranked[j].Ranking.FinalScore
	})
	return ranked, nil
}

// preferenceMatch is the blend's middle term: how well the song lines
// up with the user across embedding, language and artist.
func preferenceMatch(feats [featureCount]float64) float64 {
	return (feats[idxEmbedding] + feats[idxLanguage] + feats[idxArtist]) / 3
}

func (r *Reranker) userProfile(ctx context.Context, uid string) (*profile.RealtimeProfile, error) {
	if p, ok := r.profiles.get(uid); ok {
		return p, nil
	}
	p, err := r.source.Build(ctx, uid)
	if err != nil {
		return nil, err
	}
	r.profiles.put(uid, p)
	return p, nil
}

func round4(x float64) float64 {
	return math.Round(x*10000) / 10000
}
