// Package recommend builds personalized song feeds. The general mode
// synthesizes seed queries from preferences and activity, collects
// candidates through the smart search engine, rule-scores them and
// hands the survivors to the reranker. The next-track mode does the
// same under hard playback-continuity constraints.
package recommend

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"strings"
	"sync"

	"musichub/internal/models"
	"musichub/internal/normalize"
	"musichub/internal/rerank"
	"musichub/internal/search"
	"musichub/internal/store"
)

const (
	maxSeeds          = 15
	maxSeedsPerGroup  = 5
	maxLanguageSeeds  = 3
	preRerankCap      = 100
	postRerankCap     = 50
	defaultLimit      = 20
	fallbackSeedQuery = "Top Hindi songs"

	baseRuleScore          = 10.0
	favoriteArtistBonus    = 30.0
	playedArtistBonusPerPC = 5.0
	skippedPenalty         = 100.0
	preferredLanguageBonus = 10.0

	ruleBlendShare  = 0.6
	modelBlendShare = 0.4

	topArtistCount     = 10
	recentSkipWindow   = 100
	recentSearchWindow = 10
	recentPlayWindow   = 20
	activityReadWindow = 120
)

// Searcher is the slice of the smart search engine the generators use.
type Searcher interface {
	SmartSearch(ctx context.Context, query string, opts search.Options) ([]models.Song, error)
}

// Ranker reorders candidates against a user's taste profile.
type Ranker interface {
	Rerank(ctx context.Context, uid string, songs []models.Song, opts rerank.Options) ([]models.Song, error)
}

// SongLookup enriches thin next-track contexts from the catalog.
type SongLookup interface {
	SongByID(ctx context.Context, id string) (*models.Song, error)
}

// Generator produces recommendation feeds.
type Generator struct {
	searcher Searcher
	ranker   Ranker
	catalog  SongLookup
	users    *store.UserStore
}

func NewGenerator(searcher Searcher, ranker Ranker, catalog SongLookup, users *store.UserStore) *Generator {
	return &Generator{searcher: searcher, ranker: ranker, catalog: catalog, users: users}
}

// activitySignals is the digest of a user's recent behavior that seeds
// and rule scores draw from. Every field tolerates a failed read; a
// recommendation built from partial signals beats none at all.
type activitySignals struct {
	artistPlays   map[string]int64  // normalized artist name -> total plays
	artistNames   map[string]string // normalized -> display form
	topArtists    []string          // display names, play-count descending
	skipped       map[string]bool
	recentQueries []string
	playedArtists []string // display names from recent play events, most recent first
}

// collectSignals reads the aggregate, skip and activity views in
// parallel. Individual failures are logged and leave their slice empty.
func (g *Generator) collectSignals(ctx context.Context, uid string) activitySignals {
	sig := activitySignals{
		artistPlays: make(map[string]int64),
		artistNames: make(map[string]string),
		skipped:     make(map[string]bool),
	}
	if uid == "" {
		return sig
	}

	var (
		wg     sync.WaitGroup
		aggs   map[string]store.SongAggregate
		skips  []string
		events []store.ActivityEvent
	)
	wg.Add(3)
	go func() {
		defer wg.Done()
		var err error
		if aggs, err = g.users.SongAggregates(ctx, uid); err != nil {
			slog.Warn("recommend: song aggregates read failed", "uid", uid, "error", err)
		}
	}()
	go func() {
		defer wg.Done()
		var err error
		if skips, err = g.users.SkippedSongIDs(ctx, uid, recentSkipWindow); err != nil {
			slog.Warn("recommend: skipped songs read failed", "uid", uid, "error", err)
		}
	}()
	go func() {
		defer wg.Done()
		var err error
		if events, err = g.users.RecentActivity(ctx, uid, activityReadWindow); err != nil {
			slog.Warn("recommend: recent activity read failed", "uid", uid, "error", err)
		}
	}()
	wg.Wait()

	for _, agg := range aggs {
		key := normalize.Normalize(agg.Artist)
		if key == "" || agg.PlayCount == 0 {
			continue
		}
		sig.artistPlays[key] += agg.PlayCount
		if _, seen := sig.artistNames[key]; !seen {
			sig.artistNames[key] = agg.Artist
		}
	}
	type artistCount struct {
		key   string
		plays int64
	}
	counts := make([]artistCount, 0, len(sig.artistPlays))
	for key, plays := range sig.artistPlays {
		counts = append(counts, artistCount{key: key, plays: plays})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].plays != counts[j].plays {
			return counts[i].plays > counts[j].plays
		}
		return counts[i].key < counts[j].key
	})
	if len(counts) > topArtistCount {
		counts = counts[:topArtistCount]
	}
	for _, c := range counts {
		sig.topArtists = append(sig.topArtists, sig.artistNames[c.key])
	}

	for _, id := range skips {
		sig.skipped[id] = true
	}

	plays := 0
	for _, ev := range events {
		switch ev.Type {
		case store.ActivitySearch:
			if ev.Query != "" && len(sig.recentQueries) < recentSearchWindow {
				sig.recentQueries = append(sig.recentQueries, ev.Query)
			}
		case store.ActivityPlay:
			if plays < recentPlayWindow {
				plays++
				if ev.Artist != "" {
					sig.playedArtists = append(sig.playedArtists, ev.Artist)
				}
			}
		}
	}
	return sig
}

// buildSeeds synthesizes the search queries that harvest candidates:
// favorite artists first, then the most-played ones, then what the user
// recently searched for. Thin histories fall back to recently played
// artists, then to per-language chart queries.
func buildSeeds(prefs *store.UserPreferences, sig activitySignals) []string {
	var seeds []string
	seen := make(map[string]bool)
	add := func(q string) {
		q = normalize.CollapseSpaces(q)
		key := normalize.Normalize(q)
		if q == "" || seen[key] || len(seeds) >= maxSeeds {
			return
		}
		seen[key] = true
		seeds = append(seeds, q)
	}
	addGroup := func(items []string, most int) {
		for i, item := range items {
			if i >= most {
				return
			}
			add(item)
		}
	}

	var favorites []string
	var languages []string
	if prefs != nil {
		for _, a := range prefs.FavoriteArtists {
			if a.Name != "" {
				favorites = append(favorites, a.Name)
			}
		}
		languages = prefs.Languages
	}
	addGroup(favorites, maxSeedsPerGroup)
	addGroup(sig.topArtists, maxSeedsPerGroup)
	addGroup(sig.recentQueries, maxSeedsPerGroup)

	if len(seeds) < 3 {
		addGroup(sig.playedArtists, maxSeedsPerGroup)
	}
	if len(seeds) == 0 {
		for i, lang := range languages {
			if i >= maxLanguageSeeds {
				break
			}
			add("Top " + lang + " songs")
		}
	}
	if len(seeds) == 0 {
		add(fallbackSeedQuery)
	}
	return seeds
}

// collectCandidates fans the seeds out through the search engine in
// parallel and merges the results uniquely by id, preserving seed
// order. A failed seed contributes nothing and aborts nothing.
func (g *Generator) collectCandidates(ctx context.Context, seeds []string, opts search.Options) []models.Song {
	results := make([][]models.Song, len(seeds))
	var wg sync.WaitGroup
	for i, seed := range seeds {
		wg.Add(1)
		go func(i int, seed string) {
			defer wg.Done()
			songs, err := g.searcher.SmartSearch(ctx, seed, opts)
			if err != nil {
				slog.Warn("recommend: seed search failed", "seed", seed, "error", err)
				return
			}
			results[i] = songs
		}(i, seed)
	}
	wg.Wait()

	seen := make(map[string]bool)
	var merged []models.Song
	for _, songs := range results {
		for _, song := range songs {
			if song.ID == "" || seen[song.ID] {
				continue
			}
			seen[song.ID] = true
			merged = append(merged, song)
		}
	}
	return merged
}

// ruleScore rates a candidate against the user's explicit and observed
// taste before any model runs.
func ruleScore(song *models.Song, prefs *store.UserPreferences, sig activitySignals, preferred map[string]bool) float64 {
	score := baseRuleScore

	if prefs != nil {
		for _, fav := range prefs.FavoriteArtists {
			favKey := normalize.Normalize(fav.Name)
			if favKey == "" {
				continue
			}
			for _, name := range song.PrimaryArtistNames() {
				if normalize.Normalize(name) == favKey {
					score += favoriteArtistBonus
					break
				}
			}
		}
	}
	for _, name := range song.PrimaryArtistNames() {
		if plays := sig.artistPlays[normalize.Normalize(name)]; plays > 0 {
			score += playedArtistBonusPerPC * float64(plays)
		}
	}
	if sig.skipped[song.ID] {
		score -= skippedPenalty
	}
	if preferred[normalize.Language(song.Language)] {
		score += preferredLanguageBonus
	}
	return score
}

// Generate builds the general recommendation feed for a user with saved
// preferences. limit is clamped to [1, 50]; zero means the default.
func (g *Generator) Generate(ctx context.Context, uid string, prefs *store.UserPreferences, limit int) ([]models.Song, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > postRerankCap {
		limit = postRerankCap
	}

	sig := g.collectSignals(ctx, uid)
	seeds := buildSeeds(prefs, sig)

	var languages []string
	if prefs != nil {
		languages = prefs.Languages
	}
	preferred := languageSet(languages)

	candidates := g.collectCandidates(ctx, seeds, search.Options{PreferredLanguages: languages})
	if len(candidates) == 0 {
		return []models.Song{}, nil
	}

	rules := make(map[string]float64, len(candidates))
	for i := range candidates {
		rules[candidates[i].ID] = ruleScore(&candidates[i], prefs, sig, preferred)
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return rules[candidates[i].ID] > rules[candidates[j].ID]
	})
	if len(preferred) > 0 {
		candidates = partitionByLanguage(candidates, preferred)
	}
	if len(candidates) > preRerankCap {
		candidates = candidates[:preRerankCap]
	}

	reranked, err := g.ranker.Rerank(ctx, uid, candidates, rerank.Options{
		Query:              rerankQueryContext(seeds),
		PreferredLanguages: languages,
		Mode:               "recommend",
	})
	if err != nil {
		// Model failures degrade to the rule-scored order.
		slog.Warn("recommend: rerank failed, serving rule order", "uid", uid, "error", err)
		reranked = candidates
	}

	for i := range reranked {
		final := rules[reranked[i].ID] * ruleBlendShare
		if reranked[i].Ranking != nil {
			final += reranked[i].Ranking.FinalScore * 100 * modelBlendShare
		}
		reranked[i].RecScore = round2(final)
	}
	sort.SliceStable(reranked, func(i, j int) bool {
		return reranked[i].RecScore > reranked[j].RecScore
	})

	if len(reranked) > limit {
		reranked = reranked[:limit]
	}
	return reranked, nil
}

// rerankQueryContext folds the leading seeds into the query the
// reranker scores intent against.
func rerankQueryContext(seeds []string) string {
	if len(seeds) > 3 {
		seeds = seeds[:3]
	}
	return strings.Join(seeds, " ")
}

// partitionByLanguage stably moves songs in a preferred language ahead
// of the rest, preserving relative order inside both groups.
func partitionByLanguage(songs []models.Song, preferred map[string]bool) []models.Song {
	matched := make([]models.Song, 0, len(songs))
	var rest []models.Song
	for _, song := range songs {
		if preferred[normalize.Language(song.Language)] {
			matched = append(matched, song)
		} else {
			rest = append(rest, song)
		}
	}
	return append(matched, rest...)
}

func languageSet(languages []string) map[string]bool {
	if len(languages) == 0 {
		return nil
	}
	set := make(map[string]bool, len(languages))
	for _, lang := range languages {
		if key := normalize.Language(lang); key != "" {
			set[key] = true
		}
	}
	return set
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}

func clamp01(x float64) float64 {
	return math.Max(0, math.Min(1, x))
}

// popularityScore maps a raw global play count onto [0,1] on a log
// scale, saturating around the catalog's most played tracks.
func popularityScore(playCount int64) float64 {
	if playCount <= 0 {
		return 0
	}
	return clamp01(math.Log10(float64(playCount)+1) / 3.2)
}
