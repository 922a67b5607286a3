// Package search implements the smart search engine: query variant
// rewriting, fan-out to the catalog providers, a zero-latency local index
// pass, tiered lexical and fuzzy scoring, deduplication and a result
// cache with stale-while-revalidate and single-flight refresh.
package search

import (
	"context"

	"musichub/internal/catalog"
	"musichub/internal/models"
)

// Tier is a coarse match-quality bucket. Tier dominates numeric score in
// result ordering: any EXACT match sorts before any STARTS_WITH match no
// matter how the scores compare.
type Tier int

const (
	TierExact Tier = iota
	TierStartsWith
	TierContains
	TierFuzzy
)

func (t Tier) String() string {
	switch t {
	case TierExact:
		return "exact"
	case TierStartsWith:
		return "starts_with"
	case TierContains:
		return "contains"
	case TierFuzzy:
		return "fuzzy"
	default:
		return "unknown"
	}
}

// Candidate sources, in decreasing trust order. The weight feeds into the
// numeric score so that, within a tier, a local or primary sighting of a
// song outranks the same song seen only via the fallback.
const (
	sourceLocal    = "local"
	sourcePrimary  = "primary"
	sourceBroad    = "broad"
	sourceFallback = "fallback"
)

var sourceWeights = map[string]float64{
	sourceLocal:    20,
	sourcePrimary:  15,
	sourceBroad:    8,
	sourceFallback: 5,
}

// Options modify a single SmartSearch call.
type Options struct {
	// WaitForFresh forces a synchronous recompute when the cache entry
	// is stale instead of serving it and refreshing in the background.
	WaitForFresh bool

	// PreferredLanguages biases scoring and is part of the cache key.
	PreferredLanguages []string
}

// Provider is the slice of the catalog adapter the engine fans out to.
type Provider interface {
	PrimarySongs(ctx context.Context, query string, page, limit int) ([]models.Song, error)
	BroadSearch(ctx context.Context, query string) (*catalog.BroadResult, error)
	FallbackSongs(ctx context.Context, query string) ([]models.Song, error)
}
