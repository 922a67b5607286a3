package recommend

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"musichub/internal/models"
	"musichub/internal/normalize"
	"musichub/internal/rerank"
	"musichub/internal/search"
	"musichub/internal/store"
)

const (
	maxNextSeeds        = 6
	nextDefaultLimit    = 10
	nextMaxLimit        = 20
	recentPlayExclusion = 40
	recentSkipExclusion = 40
	nextRerankFactor    = 4

	sameLanguageBonus = 120.0
	sameGenreBonus    = 50.0
	partialGenreBonus = 30.0
	popularityFactor  = 40.0
	recentYearBonus   = 8.0
	olderYearBonus    = 4.0
	recentYearFloor   = 2020
	olderYearFloor    = 2015
)

// trackContext is the resolved playback context the hard filters and
// seeds are built from. Comparison fields are normalized once.
type trackContext struct {
	song        models.Song
	language    string // normalized
	genre       string // normalized
	artistIDs   map[string]bool
	artistNames map[string]bool // normalized
	albumID     string
	albumName   string // normalized
	canonical   string
	canonTokens []string
	exclude     map[string]bool
}

// NextTrack recommends what to play after current: same language,
// different artist, different album, not recently played or skipped,
// and never another cut of the same recording. limit is clamped to
// [1, 20]; zero means the default.
func (g *Generator) NextTrack(ctx context.Context, uid string, current models.Song, limit int) ([]models.Song, error) {
	if limit <= 0 {
		limit = nextDefaultLimit
	}
	if limit > nextMaxLimit {
		limit = nextMaxLimit
	}

	g.enrichCurrent(ctx, &current)
	tc := g.buildTrackContext(ctx, uid, current)

	seeds := buildNextSeeds(current)
	opts := search.Options{}
	if tc.language != "" {
		opts.PreferredLanguages = []string{tc.language}
	}
	candidates := g.collectCandidates(ctx, seeds, opts)

	filtered := candidates[:0]
	for _, song := range candidates {
		if passesNextFilters(&song, tc) {
			filtered = append(filtered, song)
		}
	}
	if len(filtered) == 0 {
		return []models.Song{}, nil
	}

	rules := make(map[string]float64, len(filtered))
	for i := range filtered {
		score, reason := nextRuleScore(&filtered[i], tc)
		rules[filtered[i].ID] = score
		filtered[i].NextReason = reason
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		return rules[filtered[i].ID] > rules[filtered[j].ID]
	})
	if most := nextRerankFactor * limit; len(filtered) > most {
		filtered = filtered[:most]
	}

	reranked, err := g.ranker.Rerank(ctx, uid, filtered, rerank.Options{
		Query:              current.Name,
		PreferredLanguages: opts.PreferredLanguages,
		Mode:               "next_track",
	})
	if err != nil {
		slog.Warn("next track: rerank failed, serving rule order", "uid", uid, "error", err)
		reranked = filtered
	}

	if len(reranked) > limit {
		reranked = reranked[:limit]
	}
	return reranked, nil
}

// enrichCurrent fills thin playback metadata from the catalog. Lookup
// failure is ignored; the filters just run on what the client sent.
func (g *Generator) enrichCurrent(ctx context.Context, current *models.Song) {
	thin := current.Language == "" || len(current.Artists.Primary) == 0 || current.Album.ID == ""
	if !thin || current.ID == "" || g.catalog == nil {
		return
	}
	full, err := g.catalog.SongByID(ctx, current.ID)
	if err != nil || full == nil {
		return
	}
	if current.Language == "" {
		current.Language = full.Language
	}
	if current.Genre == "" {
		current.Genre = full.Genre
	}
	if len(current.Artists.Primary) == 0 {
		current.Artists = full.Artists
	}
	if current.Album.ID == "" && current.Album.Name == "" {
		current.Album = full.Album
	}
	if current.Name == "" {
		current.Name = full.Name
	}
}

func (g *Generator) buildTrackContext(ctx context.Context, uid string, current models.Song) trackContext {
	tc := trackContext{
		song:        current,
		language:    normalize.Language(current.Language),
		genre:       normalize.Normalize(current.Genre),
		artistIDs:   make(map[string]bool),
		artistNames: make(map[string]bool),
		albumID:     current.Album.ID,
		albumName:   normalize.Normalize(current.Album.Name),
		canonical:   normalize.CanonicalTitle(current.Name),
		exclude:     map[string]bool{current.ID: true},
	}
	tc.canonTokens = strings.Fields(tc.canonical)
	for _, a := range current.Artists.Primary {
		if a.ID != "" {
			tc.artistIDs[a.ID] = true
		}
		if name := normalize.Normalize(a.Name); name != "" {
			tc.artistNames[name] = true
		}
	}

	if uid == "" {
		return tc
	}
	events, err := g.users.RecentActivity(ctx, uid, activityReadWindow)
	if err != nil {
		slog.Warn("next track: recent activity read failed", "uid", uid, "error", err)
		return tc
	}
	plays, skips := 0, 0
	for _, ev := range events {
		if ev.SongID == "" {
			continue
		}
		switch ev.Type {
		case store.ActivityPlay:
			if plays < recentPlayExclusion {
				plays++
				tc.exclude[ev.SongID] = true
			}
		case store.ActivitySkip:
			if skips < recentSkipExclusion {
				skips++
				tc.exclude[ev.SongID] = true
			}
		}
	}
	return tc
}

// buildNextSeeds derives the candidate-harvest queries from the
// playback context, most specific first.
func buildNextSeeds(current models.Song) []string {
	lang := normalize.CollapseSpaces(current.Language)
	genre := normalize.CollapseSpaces(current.Genre)

	var seeds []string
	seen := make(map[string]bool)
	add := func(q string) {
		q = normalize.CollapseSpaces(q)
		key := normalize.Normalize(q)
		if q == "" || seen[key] || len(seeds) >= maxNextSeeds {
			return
		}
		seen[key] = true
		seeds = append(seeds, q)
	}

	if lang != "" && genre != "" {
		add("Top " + lang + " " + genre)
		add(lang + " " + genre)
	}
	if lang != "" {
		add("Top " + lang)
		add("Latest " + lang)
		add(lang)
	}
	if genre != "" {
		add("Top " + genre)
	}
	add(current.Name)

	if len(seeds) == 0 {
		seeds = append(seeds, fallbackSeedQuery)
	}
	return seeds
}

// passesNextFilters applies the hard playback constraints. Every
// returned candidate must share the language, avoid the recent set,
// share no artist, come from a different album and not be another
// version of the same title.
func passesNextFilters(song *models.Song, tc trackContext) bool {
	if tc.language != "" && normalize.Language(song.Language) != tc.language {
		return false
	}
	if tc.exclude[song.ID] {
		return false
	}
	for _, a := range song.Artists.Primary {
		if a.ID != "" && tc.artistIDs[a.ID] {
			return false
		}
		if name := normalize.Normalize(a.Name); name != "" && tc.artistNames[name] {
			return false
		}
	}
	if tc.albumID != "" && song.Album.ID == tc.albumID {
		return false
	}
	if tc.albumName != "" && normalize.Normalize(song.Album.Name) == tc.albumName {
		return false
	}
	canonical := normalize.CanonicalTitle(song.Name)
	if tc.canonical != "" {
		if canonical == tc.canonical {
			return false
		}
		if normalize.ContainsAllTokens(strings.Fields(canonical), tc.canonTokens) {
			return false
		}
	}
	return true
}

// nextRuleScore pre-scores a surviving candidate and names the signals
// that admitted it. The reason string is informational output only.
func nextRuleScore(song *models.Song, tc trackContext) (float64, string) {
	var score float64
	var reasons []string

	if tc.language != "" && normalize.Language(song.Language) == tc.language {
		score += sameLanguageBonus
		reasons = append(reasons, "same language")
	}
	if tc.genre != "" {
		genre := normalize.Normalize(song.Genre)
		switch {
		case genre == tc.genre:
			score += sameGenreBonus
			reasons = append(reasons, "same genre")
		case genre != "" && genreOverlap(genre, tc.genre):
			score += partialGenreBonus
			reasons = append(reasons, "related genre")
		}
	}
	if pop := popularityScore(song.PlayCount); pop > 0 {
		score += popularityFactor * pop
		if pop > 0.5 {
			reasons = append(reasons, "popular")
		}
	}
	switch {
	case song.Year >= recentYearFloor:
		score += recentYearBonus
		reasons = append(reasons, "recent release")
	case song.Year >= olderYearFloor:
		score += olderYearBonus
	}

	if len(reasons) == 0 {
		reasons = append(reasons, "related listening")
	}
	return score, strings.Join(reasons, ", ")
}

// genreOverlap reports whether two normalized genre strings share a
// token, which covers pairs like "romantic pop" and "pop".
func genreOverlap(a, b string) bool {
	tokens := make(map[string]bool)
	for _, t := range strings.Fields(a) {
		tokens[t] = true
	}
	for _, t := range strings.Fields(b) {
		if tokens[t] {
			return true
		}
	}
	return false
}
