// Package profile assembles per-user listening profiles from the
// activity store. A profile is a point-in-time snapshot; the reranker
// caches it briefly, so the builder always reads the store fresh.
package profile

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"musichub/internal/models"
	"musichub/internal/normalize"
	"musichub/internal/store"
)

const (
	maxSearchTerms  = 40
	maxInteractions = 500

	// activityScanWindow bounds the log read that feeds search terms.
	activityScanWindow = 200

	preferredLanguageSeed  = 1.5
	artistAffinityFraction = 0.5
	langAffinityFraction   = 0.3
)

// Interaction summarizes one user-song pair.
type Interaction struct {
	PlayCount  int64
	SkipCount  int64
	Affinity   float64
	LastPlayed int64
	Artist     string
	Language   string
}

// RealtimeProfile is what the reranker and recommender personalize
// against. Affinity map keys and interaction languages are normalized;
// SearchTerms are normalized and ordered most recent first.
type RealtimeProfile struct {
	UID              string
	Languages        []string
	LanguageAffinity map[string]float64
	FavoriteArtists  []models.Artist
	ArtistAffinity   map[string]float64
	SearchTerms      []string
	SongInteractions map[string]Interaction
}

// Builder constructs profiles on demand.
type Builder struct {
	users *store.UserStore
}

func NewBuilder(users *store.UserStore) *Builder {
	return &Builder{users: users}
}

// Build reads preferences, song aggregates and recent activity in
// parallel and folds them into one profile. A user with no saved
// preferences still gets a profile from activity alone.
func (b *Builder) Build(ctx context.Context, uid string) (*RealtimeProfile, error) {
	var (
		prefs  *store.UserPreferences
		aggs   map[string]store.SongAggregate
		events []store.ActivityEvent
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := b.users.Preferences(gctx, uid)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		prefs = p
		return nil
	})
	g.Go(func() error {
		a, err := b.users.SongAggregates(gctx, uid)
		if err != nil {
			return err
		}
		aggs = a
		return nil
	})
	g.Go(func() error {
		ev, err := b.users.RecentActivity(gctx, uid, activityScanWindow)
		if err != nil {
			return err
		}
		events = ev
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("build profile for %s: %w", uid, err)
	}

	p := &RealtimeProfile{
		UID:              uid,
		LanguageAffinity: make(map[string]float64),
		ArtistAffinity:   make(map[string]float64),
		SongInteractions: make(map[string]Interaction, min(len(aggs), maxInteractions)),
	}
	if prefs != nil {
		p.Languages = prefs.Languages
		p.FavoriteArtists = prefs.FavoriteArtists
		for _, lang := range prefs.Languages {
			if key := normalize.Language(lang); key != "" {
				p.LanguageAffinity[key] += preferredLanguageSeed
			}
		}
	}

	p.foldInteractions(aggs)
	p.collectSearchTerms(events)
	return p, nil
}

// foldInteractions keeps the most recently played aggregates and folds
// their affinity into the artist and language maps. Skip-only entries
// carry no lastPlayed, so they are the first to fall off the cap.
func (p *RealtimeProfile) foldInteractions(aggs map[string]store.SongAggregate) {
	type keyed struct {
		id  string
		agg store.SongAggregate
	}
	items := make([]keyed, 0, len(aggs))
	for id, agg := range aggs {
		items = append(items, keyed{id: id, agg: agg})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].agg.LastPlayed != items[j].agg.LastPlayed {
			return items[i].agg.LastPlayed > items[j].agg.LastPlayed
		}
		return items[i].id < items[j].id
	})
	if len(items) > maxInteractions {
		items = items[:maxInteractions]
	}

	for _, it := range items {
		lang := normalize.Language(it.agg.Language)
		p.SongInteractions[it.id] = Interaction{
			PlayCount:  it.agg.PlayCount,
			SkipCount:  it.agg.SkipCount,
			Affinity:   it.agg.Affinity,
			LastPlayed: it.agg.LastPlayed,
			Artist:     it.agg.Artist,
			Language:   lang,
		}
		if name := normalize.Normalize(it.agg.Artist); name != "" {
			p.ArtistAffinity[name] += artistAffinityFraction * it.agg.Affinity
		}
		if lang != "" {
			p.LanguageAffinity[lang] += langAffinityFraction * it.agg.Affinity
		}
	}
}

func (p *RealtimeProfile) collectSearchTerms(events []store.ActivityEvent) {
	seen := make(map[string]bool)
	for _, ev := range events {
		if ev.Type != store.ActivitySearch || ev.Query == "" {
			continue
		}
		term := normalize.Normalize(ev.Query)
		if term == "" || seen[term] {
			continue
		}
		seen[term] = true
		p.SearchTerms = append(p.SearchTerms, term)
		if len(p.SearchTerms) >= maxSearchTerms {
			return
		}
	}
}
