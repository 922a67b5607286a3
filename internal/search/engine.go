package search

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	sharedcache "musichub/internal/cache"
	"musichub/internal/catalog"
	"musichub/internal/config"
	"musichub/internal/index"
	"musichub/internal/metrics"
	"musichub/internal/models"
	"musichub/internal/normalize"
	"musichub/internal/search/cache"
)

// primaryPageSize is the page requested from the primary provider per
// variant.
const primaryPageSize = 20

// Engine is the smart search orchestrator: result cache, local index
// pass, variant fan-out over the upstream catalog, and ranking.
type Engine struct {
	provider Provider
	index    *index.Index
	cache    *cache.Manager
	tuning   *config.Tuning
	group    singleflight.Group
}

// NewEngine wires the engine against a catalog provider and the shared
// song index. shared may be nil to run without the cross-process result
// mirror.
func NewEngine(provider Provider, idx *index.Index, shared sharedcache.Cache) *Engine {
	tuning := config.GetTuning()
	return &Engine{
		provider: provider,
		index:    idx,
		cache: cache.NewManager(cache.Config{
			FreshTTL: tuning.SearchFreshTTL(),
			StaleTTL: tuning.SearchStaleTTL(),
			Capacity: tuning.SearchCacheCapacity,
		}, shared),
		tuning: tuning,
	}
}

// Index exposes the song index backing this engine.
func (e *Engine) Index() *index.Index {
	return e.index
}

// SmartSearch returns up to SearchMaxResults ranked songs for query,
// cheapest path first: a fresh cache entry is returned as-is, a stale
// one is returned while a refresh runs behind it, and anything else is
// computed synchronously. Concurrent computations for the same cache
// key collapse to one flight.
func (e *Engine) SmartSearch(ctx context.Context, query string, opts Options) ([]models.Song, error) {
	normalized := normalize.Normalize(query)
	if normalized == "" {
		return []models.Song{}, nil
	}
	key := cache.Key(normalized, opts.PreferredLanguages)

	entry, state, found := e.cache.Lookup(ctx, key)
	if found && state == cache.StateFresh {
		metrics.RecordSearchServed("fresh")
		return entry.Songs, nil
	}
	if found && state == cache.StateStale && !opts.WaitForFresh {
		metrics.RecordSearchServed("stale")
		e.refreshAsync(key, normalized, opts)
		return entry.Songs, nil
	}

	if found {
		// Stale entry recomputed in-line (WaitForFresh); not a true miss.
		metrics.RecordSearchServed("stale_refresh")
	} else {
		metrics.RecordSearchServed("miss")
	}
	songs, err := e.computeShared(ctx, key, normalized, opts)
	if err != nil {
		// A failed recompute never evicts what we still have.
		if found {
			slog.Warn("smart search recompute failed, serving stale entry",
				"query", normalized, "error", err)
			return entry.Songs, nil
		}
		return nil, err
	}
	return songs, nil
}

// refreshAsync recomputes the entry behind an already-served response.
// The refresh carries its own deadline because the request context dies
// with the response.
func (e *Engine) refreshAsync(key, normalized string, opts Options) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), e.tuning.SearchMaxLatency()+time.Second)
		defer cancel()
		if _, err := e.computeShared(ctx, key, normalized, opts); err != nil {
			slog.Warn("background search refresh failed", "query", normalized, "error", err)
		}
	}()
}

// computeShared collapses concurrent computations for one cache key and
// installs the winner's result in the cache.
func (e *Engine) computeShared(ctx context.Context, key, normalized string, opts Options) ([]models.Song, error) {
	v, err, _ := e.group.Do(key, func() (any, error) {
		songs, err := e.compute(ctx, normalized, opts)
		if err != nil {
			metrics.RecordSearchRefresh(false)
			return nil, err
		}
		metrics.RecordSearchRefresh(true)
		e.cache.Store(ctx, key, songs)
		return songs, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]models.Song), nil
}

// compute runs the full search: local pass, variant loop, and the final
// broad pass when nothing matched exactly. It fails only when the ranked
// set is empty and every upstream call errored; an empty result from
// healthy sources is a valid answer.
func (e *Engine) compute(ctx context.Context, normalized string, opts Options) ([]models.Song, error) {
	start := time.Now()
	qc := newQueryContext(normalized, opts.PreferredLanguages)
	set := newRankedSet()

	e.localPass(set, qc)
	minResults := e.tuning.SearchMinResults
	if set.countAtOrBetter(TierContains) >= minResults {
		slog.Debug("smart search served from local index",
			"query", normalized, "results", set.size())
		return set.sorted(e.tuning.SearchMaxResults), nil
	}

	budget := e.tuning.SearchMaxLatency()
	attempted, failed := 0, 0

	for i, variant := range buildVariants(normalized) {
		a, f := e.fanOut(ctx, set, qc, variant, i, minResults)
		attempted += a
		failed += f

		if set.size() >= minResults {
			break
		}
		if time.Since(start) >= budget && set.size() > 0 {
			slog.Debug("smart search stopped at latency budget",
				"query", normalized, "variants", i+1, "results", set.size())
			break
		}
	}

	if !set.hasExact() {
		a, f := e.globalPass(ctx, set, qc)
		attempted += a
		failed += f
	}

	if set.size() == 0 && attempted > 0 && failed == attempted {
		return nil, fmt.Errorf("search %q: all upstream sources failed", normalized)
	}
	return set.sorted(e.tuning.SearchMaxResults), nil
}

// fanOut issues the upstream calls for one variant in parallel and
// merges their songs in a fixed order so reruns rank identically.
// Primary is always queried; broad joins for the first two variants or
// while the set is under the minimum; fallback joins for the first
// variant or while the set is under half the minimum.
func (e *Engine) fanOut(ctx context.Context, set *rankedSet, qc queryContext, variant string, variantIdx, minResults int) (attempted, failed int) {
	withBroad := variantIdx < 2 || set.size() < minResults
	withFallback := variantIdx == 0 || set.size() < minResults/2

	var (
		wg sync.WaitGroup

		primarySongs []models.Song
		primaryErr   error

		broadRes *catalog.BroadResult
		broadErr error

		fallbackSongs []models.Song
		fallbackErr   error
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		primarySongs, primaryErr = e.provider.PrimarySongs(ctx, variant, 1, primaryPageSize)
	}()
	if withBroad {
		wg.Add(1)
		go func() {
			defer wg.Done()
			broadRes, broadErr = e.provider.BroadSearch(ctx, variant)
		}()
	}
	if withFallback {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fallbackSongs, fallbackErr = e.provider.FallbackSongs(ctx, variant)
		}()
	}
	wg.Wait()

	attempted++
	if primaryErr != nil {
		failed++
		slog.Warn("primary song search failed", "variant", variant, "error", primaryErr)
	} else {
		e.absorb(set, primarySongs, qc, sourcePrimary, variantIdx)
	}

	if withBroad {
		attempted++
		if broadErr != nil {
			failed++
			slog.Warn("broad search failed", "variant", variant, "error", broadErr)
		} else if broadRes != nil {
			e.absorb(set, broadRes.Songs, qc, sourceBroad, variantIdx)
		}
	}

	if withFallback {
		attempted++
		if fallbackErr != nil {
			failed++
			slog.Warn("fallback search failed", "variant", variant, "error", fallbackErr)
		} else {
			e.absorb(set, fallbackSongs, qc, sourceFallback, variantIdx)
		}
	}
	return attempted, failed
}

// globalPass reruns the broadest sources on the original query when the
// variant loop produced no exact match.
func (e *Engine) globalPass(ctx context.Context, set *rankedSet, qc queryContext) (attempted, failed int) {
	var (
		wg sync.WaitGroup

		broadRes *catalog.BroadResult
		broadErr error

		fallbackSongs []models.Song
		fallbackErr   error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		broadRes, broadErr = e.provider.BroadSearch(ctx, qc.raw)
	}()
	go func() {
		defer wg.Done()
		fallbackSongs, fallbackErr = e.provider.FallbackSongs(ctx, qc.raw)
	}()
	wg.Wait()

	attempted = 2
	if broadErr != nil {
		failed++
		slog.Warn("global broad search failed", "query", qc.raw, "error", broadErr)
	} else if broadRes != nil {
		e.absorb(set, broadRes.Songs, qc, sourceBroad, 0)
	}
	if fallbackErr != nil {
		failed++
		slog.Warn("global fallback search failed", "query", qc.raw, "error", fallbackErr)
	} else {
		e.absorb(set, fallbackSongs, qc, sourceFallback, 0)
	}
	return attempted, failed
}

// absorb indexes every well-formed song and ranks the ones that clear
// the scoring gates.
func (e *Engine) absorb(set *rankedSet, songs []models.Song, qc queryContext, source string, variantIdx int) {
	for i := range songs {
		song := songs[i]
		if song.ID == "" || song.Name == "" {
			continue
		}
		entry := index.NewEntry(song)
		e.index.PutEntry(entry)
		if tier, score, ok := scoreEntry(entry, qc, source, variantIdx); ok {
			set.add(song, tier, score)
		}
	}
}
