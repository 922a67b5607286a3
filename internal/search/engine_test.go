package search

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"musichub/internal/catalog"
	"musichub/internal/index"
	"musichub/internal/metrics"
	"musichub/internal/models"
	"musichub/internal/search/cache"
)

type mockProvider struct {
	mu            sync.Mutex
	primaryFn     func(query string, page, limit int) ([]models.Song, error)
	broadFn       func(query string) (*catalog.BroadResult, error)
	fallbackFn    func(query string) ([]models.Song, error)
	primaryCalls  int
	broadCalls    int
	fallbackCalls int
}

func (m *mockProvider) PrimarySongs(_ context.Context, query string, page, limit int) ([]models.Song, error) {
	m.mu.Lock()
	m.primaryCalls++
	fn := m.primaryFn
	m.mu.Unlock()
	if fn == nil {
		return nil, nil
	}
	return fn(query, page, limit)
}

func (m *mockProvider) BroadSearch(_ context.Context, query string) (*catalog.BroadResult, error) {
	m.mu.Lock()
	m.broadCalls++
	fn := m.broadFn
	m.mu.Unlock()
	if fn == nil {
		return nil, nil
	}
	return fn(query)
}

func (m *mockProvider) FallbackSongs(_ context.Context, query string) ([]models.Song, error) {
	m.mu.Lock()
	m.fallbackCalls++
	fn := m.fallbackFn
	m.mu.Unlock()
	if fn == nil {
		return nil, nil
	}
	return fn(query)
}

func (m *mockProvider) counts() (primary, broad, fallback int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.primaryCalls, m.broadCalls, m.fallbackCalls
}

func (m *mockProvider) total() int {
	p, b, f := m.counts()
	return p + b + f
}

func newTestEngine(provider Provider) *Engine {
	return NewEngine(provider, index.New(128), nil)
}

func catalogSong(id, name, artist, language string) models.Song {
	return models.Song{
		ID:       id,
		Name:     name,
		Language: language,
		Artists: models.ArtistCredits{
			Primary: []models.Artist{{ID: "a-" + id, Name: artist}},
		},
	}
}

// tumHiHoSet is an upstream answer big enough to satisfy the minimum
// result count in one variant, led by an exact title match.
func tumHiHoSet(prefix string) []models.Song {
	songs := []models.Song{catalogSong(prefix+"-0", "Tum Hi Ho", "Arijit Singh", "hindi")}
	for i := 1; i < 10; i++ {
		songs = append(songs, catalogSong(
			fmt.Sprintf("%s-%d", prefix, i),
			fmt.Sprintf("Tum Hi Ho Part %d", i),
			"Arijit Singh", "hindi"))
	}
	return songs
}

func TestSmartSearchEmptyQuery(t *testing.T) {
	provider := &mockProvider{}
	eng := newTestEngine(provider)

	for _, q := range []string{"", "   ", "\t"} {
		res, err := eng.SmartSearch(context.Background(), q, Options{})
		require.NoError(t, err)
		assert.Empty(t, res)
	}
	assert.Zero(t, provider.total())
}

func TestSmartSearchComputesCachesAndIndexes(t *testing.T) {
	provider := &mockProvider{}
	provider.primaryFn = func(string, int, int) ([]models.Song, error) {
		return tumHiHoSet("s"), nil
	}
	eng := newTestEngine(provider)

	res, err := eng.SmartSearch(context.Background(), "  Tum  Hi Ho ", Options{})
	require.NoError(t, err)
	require.Len(t, res, 10)
	assert.Equal(t, "s-0", res[0].ID)

	// one variant was enough: an exact match plus the minimum count
	primary, broad, fallback := provider.counts()
	assert.Equal(t, 1, primary)
	assert.Equal(t, 1, broad)
	assert.Equal(t, 1, fallback)

	// every fetched song landed in the index
	assert.Equal(t, 10, eng.Index().Len())

	// a repeat within the fresh window is answered from cache alone
	res2, err := eng.SmartSearch(context.Background(), "tum hi ho", Options{})
	require.NoError(t, err)
	assert.Equal(t, res, res2)
	assert.Equal(t, 3, provider.total())
}

func TestSmartSearchLocalShortCircuit(t *testing.T) {
	provider := &mockProvider{}
	eng := newTestEngine(provider)
	for i := 0; i < 9; i++ {
		eng.Index().Upsert(catalogSong(
			fmt.Sprintf("local-%d", i),
			fmt.Sprintf("Love Story %d", i),
			"Taylor Swift", "english"))
	}

	res, err := eng.SmartSearch(context.Background(), "love story", Options{})
	require.NoError(t, err)
	assert.Len(t, res, 9)
	assert.Zero(t, provider.total(), "local index satisfied the query, upstream must stay idle")
}

func TestSmartSearchFuzzyTypoRecovery(t *testing.T) {
	provider := &mockProvider{}
	eng := newTestEngine(provider)
	eng.Index().Upsert(catalogSong("song-believer", "Believer", "Imagine Dragons", "english"))
	eng.Index().Upsert(catalogSong("song-feliz", "Feliz Navidad", "Jose Feliciano", "spanish"))

	res, err := eng.SmartSearch(context.Background(), "immagine dragonz", Options{})
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "song-believer", res[0].ID)

	primary, _, _ := provider.counts()
	assert.Positive(t, primary, "a thin local result still fans out upstream")
}

func TestSmartSearchDedupPrefersBetterScoredSource(t *testing.T) {
	rich := catalogSong("dup-1", "Tum Hi Ho", "Arijit Singh", "hindi")
	rich.Album = models.Album{ID: "alb-1", Name: "Aashiqui 2"}
	poor := catalogSong("dup-1", "Tum Hi Ho", "Arijit Singh", "hindi")

	provider := &mockProvider{}
	provider.primaryFn = func(string, int, int) ([]models.Song, error) {
		return []models.Song{rich}, nil
	}
	provider.fallbackFn = func(string) ([]models.Song, error) {
		return []models.Song{poor}, nil
	}
	eng := newTestEngine(provider)

	res, err := eng.SmartSearch(context.Background(), "tum hi ho", Options{})
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "Aashiqui 2", res[0].Album.Name, "primary variant of the duplicate must win")
}

func TestSmartSearchServesStaleAndRefreshes(t *testing.T) {
	provider := &mockProvider{}
	provider.primaryFn = func(string, int, int) ([]models.Song, error) {
		return tumHiHoSet("new"), nil
	}
	eng := newTestEngine(provider)

	key := cache.Key("tum hi ho", nil)
	eng.cache.Install(key, &cache.Entry{
		Songs:     []models.Song{catalogSong("old-1", "Tum Hi Ho", "Arijit Singh", "hindi")},
		UpdatedAt: time.Now().Add(-5 * time.Minute),
	})

	res, err := eng.SmartSearch(context.Background(), "Tum Hi Ho", Options{})
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "old-1", res[0].ID, "stale entry is served immediately")

	require.Eventually(t, func() bool {
		r, err := eng.SmartSearch(context.Background(), "Tum Hi Ho", Options{})
		return err == nil && len(r) == 10 && r[0].ID == "new-0"
	}, 2*time.Second, 20*time.Millisecond, "background refresh should replace the stale entry")
}

func TestSmartSearchStaleReadsCollapseToOneRefresh(t *testing.T) {
	provider := &mockProvider{}
	provider.primaryFn = func(string, int, int) ([]models.Song, error) {
		time.Sleep(150 * time.Millisecond)
		return tumHiHoSet("new"), nil
	}
	eng := newTestEngine(provider)

	key := cache.Key("tum hi ho", nil)
	eng.cache.Install(key, &cache.Entry{
		Songs:     []models.Song{catalogSong("old-1", "Tum Hi Ho", "Arijit Singh", "hindi")},
		UpdatedAt: time.Now().Add(-5 * time.Minute),
	})

	const readers = 8
	results := make([][]models.Song, readers)
	var wg sync.WaitGroup
	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r, err := eng.SmartSearch(context.Background(), "tum hi ho", Options{})
			assert.NoError(t, err)
			results[i] = r
		}(i)
	}
	wg.Wait()

	for i := 0; i < readers; i++ {
		require.Len(t, results[i], 1)
		assert.Equal(t, "old-1", results[i][0].ID)
	}

	require.Eventually(t, func() bool {
		p, _, _ := provider.counts()
		return p == 1
	}, 2*time.Second, 10*time.Millisecond)
	time.Sleep(200 * time.Millisecond)
	p, _, _ := provider.counts()
	assert.Equal(t, 1, p, "concurrent stale reads must share one refresh")
}

func TestSmartSearchWaitForFreshRecomputes(t *testing.T) {
	provider := &mockProvider{}
	provider.primaryFn = func(string, int, int) ([]models.Song, error) {
		return tumHiHoSet("new"), nil
	}
	eng := newTestEngine(provider)

	key := cache.Key("tum hi ho", nil)
	eng.cache.Install(key, &cache.Entry{
		Songs:     []models.Song{catalogSong("old-1", "Tum Hi Ho", "Arijit Singh", "hindi")},
		UpdatedAt: time.Now().Add(-5 * time.Minute),
	})

	res, err := eng.SmartSearch(context.Background(), "tum hi ho", Options{WaitForFresh: true})
	require.NoError(t, err)
	require.Len(t, res, 10)
	assert.Equal(t, "new-0", res[0].ID)
}

func TestSmartSearchOutcomeLabels(t *testing.T) {
	provider := &mockProvider{}
	provider.primaryFn = func(string, int, int) ([]models.Song, error) {
		return tumHiHoSet("new"), nil
	}
	eng := newTestEngine(provider)

	staleRefresh := metrics.SearchServedTotal.WithLabelValues("stale_refresh")
	miss := metrics.SearchServedTotal.WithLabelValues("miss")
	refreshBase := promtestutil.ToFloat64(staleRefresh)
	missBase := promtestutil.ToFloat64(miss)

	// an in-line recompute of a stale entry is not a miss
	key := cache.Key("tum hi ho", nil)
	eng.cache.Install(key, &cache.Entry{
		Songs:     []models.Song{catalogSong("old-1", "Tum Hi Ho", "Arijit Singh", "hindi")},
		UpdatedAt: time.Now().Add(-5 * time.Minute),
	})
	_, err := eng.SmartSearch(context.Background(), "tum hi ho", Options{WaitForFresh: true})
	require.NoError(t, err)
	assert.Equal(t, refreshBase+1, promtestutil.ToFloat64(staleRefresh))
	assert.Equal(t, missBase, promtestutil.ToFloat64(miss))

	// a cold key is a true miss
	_, err = eng.SmartSearch(context.Background(), "kesariya", Options{})
	require.NoError(t, err)
	assert.Equal(t, missBase+1, promtestutil.ToFloat64(miss))
	assert.Equal(t, refreshBase+1, promtestutil.ToFloat64(staleRefresh))
}

func TestSmartSearchKeepsStaleWhenRecomputeFails(t *testing.T) {
	boom := errors.New("upstream down")
	provider := &mockProvider{
		primaryFn:  func(string, int, int) ([]models.Song, error) { return nil, boom },
		broadFn:    func(string) (*catalog.BroadResult, error) { return nil, boom },
		fallbackFn: func(string) ([]models.Song, error) { return nil, boom },
	}
	eng := newTestEngine(provider)

	key := cache.Key("tum hi ho", nil)
	eng.cache.Install(key, &cache.Entry{
		Songs:     []models.Song{catalogSong("old-1", "Tum Hi Ho", "Arijit Singh", "hindi")},
		UpdatedAt: time.Now().Add(-5 * time.Minute),
	})

	res, err := eng.SmartSearch(context.Background(), "tum hi ho", Options{WaitForFresh: true})
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "old-1", res[0].ID, "failed recompute must not evict the stale entry")

	res2, err := eng.SmartSearch(context.Background(), "tum hi ho", Options{})
	require.NoError(t, err)
	assert.Equal(t, "old-1", res2[0].ID)
}

func TestSmartSearchAllSourcesFailingWithoutCacheErrors(t *testing.T) {
	boom := errors.New("upstream down")
	provider := &mockProvider{
		primaryFn:  func(string, int, int) ([]models.Song, error) { return nil, boom },
		broadFn:    func(string) (*catalog.BroadResult, error) { return nil, boom },
		fallbackFn: func(string) ([]models.Song, error) { return nil, boom },
	}
	eng := newTestEngine(provider)

	_, err := eng.SmartSearch(context.Background(), "tum hi ho", Options{})
	require.Error(t, err)
}

func TestSmartSearchMissesCollapseToOneComputation(t *testing.T) {
	provider := &mockProvider{}
	provider.primaryFn = func(string, int, int) ([]models.Song, error) {
		time.Sleep(100 * time.Millisecond)
		return tumHiHoSet("new"), nil
	}
	eng := newTestEngine(provider)

	const callers = 6
	results := make([][]models.Song, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r, err := eng.SmartSearch(context.Background(), "tum hi ho", Options{})
			assert.NoError(t, err)
			results[i] = r
		}(i)
	}
	wg.Wait()

	p, _, _ := provider.counts()
	assert.Equal(t, 1, p, "cold concurrent searches must share one computation")
	for i := 0; i < callers; i++ {
		require.Len(t, results[i], 10)
		assert.Equal(t, "new-0", results[i][0].ID)
	}
}

func TestSmartSearchPreferredLanguagesSplitCacheKeys(t *testing.T) {
	// a thin upstream answer keeps the local pass below the short-circuit
	// threshold, so every cache miss is visible as upstream traffic
	provider := &mockProvider{}
	provider.primaryFn = func(string, int, int) ([]models.Song, error) {
		return []models.Song{
			catalogSong("s-0", "Tum Hi Ho", "Arijit Singh", "hindi"),
			catalogSong("s-1", "Tum Hi Ho Reprise", "Arijit Singh", "hindi"),
		}, nil
	}
	eng := newTestEngine(provider)

	_, err := eng.SmartSearch(context.Background(), "tum hi ho", Options{})
	require.NoError(t, err)
	first := provider.total()
	require.Positive(t, first)

	// different language set, different cache entry, fresh computation
	_, err = eng.SmartSearch(context.Background(), "tum hi ho", Options{PreferredLanguages: []string{"hindi"}})
	require.NoError(t, err)
	assert.Greater(t, provider.total(), first)

	// equivalent language spellings reuse the second entry
	again := provider.total()
	_, err = eng.SmartSearch(context.Background(), "tum hi ho", Options{PreferredLanguages: []string{" Hindi "}})
	require.NoError(t, err)
	assert.Equal(t, again, provider.total())
}
