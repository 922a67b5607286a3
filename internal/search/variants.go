package search

import (
	"strings"

	"musichub/internal/normalize"
)

// maxVariants caps the upstream fan-out per search computation.
const maxVariants = 4

// noiseWords are tokens that narrow upstream recall without carrying
// intent: the catalog language names plus the filler words users type
// around a title.
var noiseWords = func() map[string]bool {
	words := map[string]bool{
		"song":     true,
		"songs":    true,
		"movie":    true,
		"album":    true,
		"lyrics":   true,
		"official": true,
		"audio":    true,
		"music":    true,
		"theme":    true,
		"bgm":      true,
		"ost":      true,
	}
	for _, l := range normalize.Languages() {
		words[l] = true
	}
	return words
}()

// buildVariants rewrites a normalized query into at most maxVariants
// upstream queries, original first, each step trading precision for
// recall: noise stripped, last token dropped, leading tokens only, one
// token left out, a long token shortened by a character. A query that is
// nothing but noise keeps only its original form.
func buildVariants(query string) []string {
	if query == "" {
		return nil
	}
	tokens := strings.Split(query, " ")

	candidates := []string{query}

	kept := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if !noiseWords[t] {
			kept = append(kept, t)
		}
	}
	if len(kept) > 0 && len(kept) < len(tokens) {
		candidates = append(candidates, strings.Join(kept, " "))
	}

	if len(tokens) > 1 {
		candidates = append(candidates, strings.Join(tokens[:len(tokens)-1], " "))
	}
	if len(tokens) > 2 {
		candidates = append(candidates, strings.Join(tokens[:2], " "))
	}
	if len(tokens) > 1 {
		candidates = append(candidates, tokens[0])
	}

	if len(tokens) > 2 {
		for i := range tokens {
			loo := make([]string, 0, len(tokens)-1)
			loo = append(loo, tokens[:i]...)
			loo = append(loo, tokens[i+1:]...)
			candidates = append(candidates, strings.Join(loo, " "))
		}
	}

	for i, t := range tokens {
		if runes := []rune(t); len(runes) >= 6 {
			short := make([]string, len(tokens))
			copy(short, tokens)
			short[i] = string(runes[:len(runes)-1])
			candidates = append(candidates, strings.Join(short, " "))
		}
	}

	seen := make(map[string]bool, len(candidates))
	variants := make([]string, 0, maxVariants)
	for _, c := range candidates {
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		variants = append(variants, c)
		if len(variants) == maxVariants {
			break
		}
	}
	return variants
}
