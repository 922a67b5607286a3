package search

import (
	"slices"
	"sort"
	"strings"

	"musichub/internal/index"
	"musichub/internal/models"
	"musichub/internal/normalize"
)

const (
	exactBonus      = 260
	startsWithBonus = 200
	containsBonus   = 140
	fuzzyBonus      = 80

	nameTermBonus   = 20
	artistTermBonus = 13
	albumTermBonus  = 10
	fuzzyTermBonus  = 6

	langHintMatchBonus   = 18
	langHintMissPenalty  = 4
	preferredMatchBonus  = 28
	preferredMissPenalty = 2

	variantOrderPenalty = 10
	fuzzyTierPenalty    = 10
)

// queryContext precomputes the comparison material for one search so that
// scoring a candidate is cheap.
type queryContext struct {
	raw       string
	compact   string
	terms     []string
	effective []string
	langHints []string
	preferred map[string]bool
}

func newQueryContext(query string, preferred []string) queryContext {
	qc := queryContext{
		raw:     query,
		compact: normalize.Compact(query),
		terms:   normalize.Tokens(query),
	}
	for _, t := range qc.terms {
		if normalize.IsLanguage(t) {
			qc.langHints = append(qc.langHints, t)
		}
		if !noiseWords[t] {
			qc.effective = append(qc.effective, t)
		}
	}
	// A query made of nothing but noise still has to match on something.
	if len(qc.effective) == 0 {
		qc.effective = qc.terms
	}
	for _, p := range preferred {
		if lang := normalize.Language(p); lang != "" {
			if qc.preferred == nil {
				qc.preferred = make(map[string]bool, len(preferred))
			}
			qc.preferred[lang] = true
		}
	}
	return qc
}

// scoreEntry rates an index entry against the query. The tier records how
// directly the name matched, the score folds in every bonus and penalty.
// ok is false when the entry should not appear in results at all.
func scoreEntry(e *index.Entry, qc queryContext, source string, variantIdx int) (Tier, float64, bool) {
	tier, matched, ok := matchTier(e, qc)
	if !ok {
		return 0, 0, false
	}
	if len(qc.effective) >= 2 && matched == 0 && tier > TierContains {
		return 0, 0, false
	}

	score := tierBonus(tier)
	for _, term := range qc.terms {
		direct := false
		if strings.Contains(e.Name, term) {
			score += nameTermBonus
			direct = true
		}
		if strings.Contains(e.Artists, term) {
			score += artistTermBonus
			direct = true
		}
		if strings.Contains(e.Album, term) {
			score += albumTermBonus
			direct = true
		}
		if !direct && fuzzyMatchesAny(term, e.Tokens) {
			score += fuzzyTermBonus
		}
	}

	lang := normalize.Language(e.Song.Language)
	if len(qc.langHints) > 0 {
		if lang != "" && slices.Contains(qc.langHints, lang) {
			score += langHintMatchBonus
		} else {
			score -= langHintMissPenalty
		}
	}
	if len(qc.preferred) > 0 {
		if qc.preferred[lang] {
			score += preferredMatchBonus
		} else {
			score -= preferredMissPenalty
		}
	}

	score += sourceWeights[source]
	score -= float64(variantIdx * variantOrderPenalty)
	if tier == TierFuzzy {
		score -= fuzzyTierPenalty
	}
	return tier, score, true
}

// matchTier picks the tier for an entry. The matched count only has to be
// exact on the fuzzy path, where the coverage gate and the zero-match
// rejection consume it; the direct tiers cover every term by definition.
func matchTier(e *index.Entry, qc queryContext) (Tier, int, bool) {
	switch {
	case e.Name == qc.raw || e.CompactName == qc.compact:
		return TierExact, len(qc.effective), true
	case strings.HasPrefix(e.Name, qc.raw) || strings.HasPrefix(e.CompactName, qc.compact):
		return TierStartsWith, len(qc.effective), true
	case strings.Contains(e.Name, qc.raw) ||
		strings.Contains(e.Haystack, qc.raw) ||
		strings.Contains(e.CompactHaystack, qc.compact):
		return TierContains, len(qc.effective), true
	}

	matched := 0
	for _, term := range qc.effective {
		if strings.Contains(e.Haystack, term) || fuzzyMatchesAny(term, e.Tokens) {
			matched++
		}
	}
	if matched >= minCoverage(len(qc.effective)) {
		return TierFuzzy, matched, true
	}
	maxDist := normalize.MaxEditDistance(len(qc.compact))
	if normalize.Levenshtein(qc.compact, e.CompactName, maxDist) <= maxDist {
		return TierFuzzy, matched, true
	}
	return 0, 0, false
}

func minCoverage(effective int) int {
	if effective <= 1 {
		return 1
	}
	return effective - 1
}

func fuzzyMatchesAny(term string, tokens []string) bool {
	for _, tok := range tokens {
		if normalize.FuzzyTokenMatch(term, tok) {
			return true
		}
	}
	return false
}

func tierBonus(t Tier) float64 {
	switch t {
	case TierExact:
		return exactBonus
	case TierStartsWith:
		return startsWithBonus
	case TierContains:
		return containsBonus
	default:
		return fuzzyBonus
	}
}

type scoredSong struct {
	song  models.Song
	tier  Tier
	score float64
}

// rankedSet accumulates scored songs across sources and variants,
// deduplicating by song id and keeping the better (tier, score) on a
// collision.
type rankedSet struct {
	byID  map[string]int
	items []scoredSong
}

func newRankedSet() *rankedSet {
	return &rankedSet{byID: make(map[string]int)}
}

func (rs *rankedSet) add(song models.Song, tier Tier, score float64) {
	if song.ID == "" {
		return
	}
	if at, seen := rs.byID[song.ID]; seen {
		cur := &rs.items[at]
		if tier < cur.tier || (tier == cur.tier && score > cur.score) {
			cur.song = song
			cur.tier = tier
			cur.score = score
		}
		return
	}
	rs.byID[song.ID] = len(rs.items)
	rs.items = append(rs.items, scoredSong{song: song, tier: tier, score: score})
}

func (rs *rankedSet) size() int { return len(rs.items) }

func (rs *rankedSet) hasExact() bool {
	for i := range rs.items {
		if rs.items[i].tier == TierExact {
			return true
		}
	}
	return false
}

// countAtOrBetter reports how many songs matched at the given tier or a
// more direct one.
func (rs *rankedSet) countAtOrBetter(t Tier) int {
	n := 0
	for i := range rs.items {
		if rs.items[i].tier <= t {
			n++
		}
	}
	return n
}

// sorted returns the songs ordered by (tier asc, score desc), truncated to
// max when max is positive. The set itself is left untouched.
func (rs *rankedSet) sorted(max int) []models.Song {
	items := make([]scoredSong, len(rs.items))
	copy(items, rs.items)
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].tier != items[j].tier {
			return items[i].tier < items[j].tier
		}
		return items[i].score > items[j].score
	})
	if max > 0 && len(items) > max {
		items = items[:max]
	}
	out := make([]models.Song, 0, len(items))
	for i := range items {
		out = append(out, items[i].song)
	}
	return out
}
