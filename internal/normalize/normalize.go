// Package normalize holds the text normalization shared by the search
// engine, the local index, the reranker and the recommenders. Everything
// here is pure string work; keeping it in one place guarantees that a
// query and an indexed song go through the identical pipeline.
package normalize

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	whitespaceRe  = regexp.MustCompile(`\s+`)
	parentheticRe = regexp.MustCompile(`\([^)]*\)|\[[^\]]*\]`)
)

// versionDescriptors are stripped when building canonical titles so that
// "Tum Hi Ho (Lofi Remix)" and "Tum Hi Ho" compare equal.
var versionDescriptors = map[string]bool{
	"remix":        true,
	"version":      true,
	"live":         true,
	"slowed":       true,
	"reverb":       true,
	"karaoke":      true,
	"instrumental": true,
	"lofi":         true,
	"cover":        true,
}

// Normalize lowercases s, replaces every non-alphanumeric rune with a
// space and collapses runs of whitespace. "Imagine&nbsp;DRAGONS!!" and
// "imagine dragons" normalize to the same string.
func Normalize(s string) string {
	if s == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Compact is Normalize with the spaces removed as well. Compact forms make
// "lovestory" match "love story" at the exact tier instead of falling
// through to fuzzy matching.
func Compact(s string) string {
	return strings.ReplaceAll(Normalize(s), " ", "")
}

// Tokens splits s into normalized terms.
func Tokens(s string) []string {
	n := Normalize(s)
	if n == "" {
		return nil
	}
	return strings.Split(n, " ")
}

// CollapseSpaces trims s and squeezes internal whitespace without touching
// punctuation. Used for display strings that should keep their casing.
func CollapseSpaces(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// CanonicalTitle reduces a song title to its comparable core: lowercased,
// parenthetical and bracketed segments dropped, version descriptor tokens
// removed, then normalized. Two titles with equal canonical forms are
// treated as the same recording family.
func CanonicalTitle(title string) string {
	stripped := parentheticRe.ReplaceAllString(strings.ToLower(title), " ")
	tokens := Tokens(stripped)
	kept := tokens[:0]
	for _, t := range tokens {
		if !versionDescriptors[t] {
			kept = append(kept, t)
		}
	}
	return strings.Join(kept, " ")
}

// ContainsAllTokens reports whether every token of want appears in have.
// An empty want never matches; a title is not a superset of nothing.
func ContainsAllTokens(have, want []string) bool {
	if len(want) == 0 {
		return false
	}
	set := make(map[string]bool, len(have))
	for _, t := range have {
		set[t] = true
	}
	for _, t := range want {
		if !set[t] {
			return false
		}
	}
	return true
}

// MaxEditDistance is the tolerance ladder used for fuzzy matching: short
// strings allow a single edit, medium strings two, long strings three.
func MaxEditDistance(length int) int {
	switch {
	case length < 6:
		return 1
	case length <= 9:
		return 2
	default:
		return 3
	}
}

// Levenshtein returns the edit distance between a and b, giving up early
// once the distance provably exceeds max (it then returns max+1). The
// two-row rolling implementation keeps allocation flat for the hot path.
func Levenshtein(a, b string, max int) int {
	if a == b {
		return 0
	}
	// Length difference alone is a lower bound on the distance.
	if diff := len(a) - len(b); diff > max || -diff > max {
		return max + 1
	}
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		rowMin := curr[0]
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			ins := curr[j-1] + 1
			del := prev[j] + 1
			sub := prev[j-1] + cost
			best := ins
			if del < best {
				best = del
			}
			if sub < best {
				best = sub
			}
			curr[j] = best
			if best < rowMin {
				rowMin = best
			}
		}
		if rowMin > max {
			return max + 1
		}
		prev, curr = curr, prev
	}
	if prev[len(rb)] > max {
		return max + 1
	}
	return prev[len(rb)]
}

// FuzzyTokenMatch reports whether term plausibly matches candidate with
// typo tolerance: first runes must agree and the edit distance must stay
// within the ladder for the term's length.
func FuzzyTokenMatch(term, candidate string) bool {
	if term == "" || candidate == "" {
		return false
	}
	if term[0] != candidate[0] {
		return false
	}
	max := MaxEditDistance(len(term))
	if diff := len(term) - len(candidate); diff > max || -diff > max {
		return false
	}
	return Levenshtein(term, candidate, max) <= max
}
