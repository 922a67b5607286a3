package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Tuning holds the operational knobs of the ranking pipeline: cache
// lifetimes, result caps and the search latency budget. The defaults are
// the contract the tests pin down; the TOML overlay exists for capacity
// tuning on small instances, not for changing scoring behavior.
type Tuning struct {
	// Smart-search result cache
	SearchFreshTTLSeconds int `toml:"search_fresh_ttl_seconds"`
	SearchStaleTTLSeconds int `toml:"search_stale_ttl_seconds"`
	SearchCacheCapacity   int `toml:"search_cache_capacity"`

	// Result shaping
	SearchMaxResults   int `toml:"search_max_results"`
	SearchMinResults   int `toml:"search_min_results"`
	SearchMaxLatencyMS int `toml:"search_max_latency_ms"`

	// Local song index
	IndexCapacity  int `toml:"index_capacity"`
	LocalResultCap int `toml:"local_result_cap"`

	// Reranker profile cache
	ProfileCacheCapacity  int `toml:"profile_cache_capacity"`
	ProfileCacheTTLSecond int `toml:"profile_cache_ttl_seconds"`

	// Per-user language lookup cache used by /api/search
	UserLanguageCapacity   int `toml:"user_language_capacity"`
	UserLanguageTTLSeconds int `toml:"user_language_ttl_seconds"`
}

// DefaultTuning returns the hard-coded defaults.
func DefaultTuning() *Tuning {
	return &Tuning{
		SearchFreshTTLSeconds: 120,
		SearchStaleTTLSeconds: 1200,
		SearchCacheCapacity:   512,

		SearchMaxResults:   40,
		SearchMinResults:   8,
		SearchMaxLatencyMS: 3200,

		IndexCapacity:  6000,
		LocalResultCap: 120,

		ProfileCacheCapacity:  300,
		ProfileCacheTTLSecond: 120,

		UserLanguageCapacity:   500,
		UserLanguageTTLSeconds: 300,
	}
}

var (
	tuningCfg  *Tuning
	tuningOnce sync.Once
	tuningMu   sync.RWMutex
)

// GetTuning loads the tuning overlay from TOML if TUNING_CONFIG_PATH is
// set, otherwise probes well-known locations. Unreadable or absent files
// fall back to defaults.
func GetTuning() *Tuning {
	tuningOnce.Do(func() {
		cfg := DefaultTuning()
		if path := os.Getenv("TUNING_CONFIG_PATH"); path != "" {
			if fileCfg, err := loadTuningFromPath(path); err == nil && fileCfg != nil {
				mergeTuning(cfg, fileCfg)
			}
		} else {
			for _, p := range candidateTuningPaths() {
				if fileCfg, err := loadTuningFromPath(p); err == nil && fileCfg != nil {
					mergeTuning(cfg, fileCfg)
					break
				}
			}
		}
		tuningMu.Lock()
		tuningCfg = cfg
		tuningMu.Unlock()
	})
	tuningMu.RLock()
	defer tuningMu.RUnlock()
	return tuningCfg
}

func loadTuningFromPath(path string) (*Tuning, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var cfg Tuning
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// mergeTuning copies every positive override onto base. Zero values mean
// "keep the default"; there is no knob whose legitimate value is zero.
func mergeTuning(base, override *Tuning) {
	if base == nil || override == nil {
		return
	}
	fields := []struct {
		dst *int
		src int
	}{
		{&base.SearchFreshTTLSeconds, override.SearchFreshTTLSeconds},
		{&base.SearchStaleTTLSeconds, override.SearchStaleTTLSeconds},
		{&base.SearchCacheCapacity, override.SearchCacheCapacity},
		{&base.SearchMaxResults, override.SearchMaxResults},
		{&base.SearchMinResults, override.SearchMinResults},
		{&base.SearchMaxLatencyMS, override.SearchMaxLatencyMS},
		{&base.IndexCapacity, override.IndexCapacity},
		{&base.LocalResultCap, override.LocalResultCap},
		{&base.ProfileCacheCapacity, override.ProfileCacheCapacity},
		{&base.ProfileCacheTTLSecond, override.ProfileCacheTTLSecond},
		{&base.UserLanguageCapacity, override.UserLanguageCapacity},
		{&base.UserLanguageTTLSeconds, override.UserLanguageTTLSeconds},
	}
	for _, f := range fields {
		if f.src > 0 {
			*f.dst = f.src
		}
	}
}

// candidateTuningPaths returns common locations to auto-discover the overlay
func candidateTuningPaths() []string {
	paths := []string{
		"tuning.toml",
		filepath.Join("config", "tuning.toml"),
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		paths = append(paths, filepath.Join(xdg, "musichub", "tuning.toml"))
	}
	if home := os.Getenv("HOME"); home != "" {
		paths = append(paths, filepath.Join(home, ".config", "musichub", "tuning.toml"))
	}
	paths = append(paths, filepath.Join(string(os.PathSeparator), "etc", "musichub", "tuning.toml"))
	return paths
}

// Duration accessors so call sites never re-derive units.

func (t *Tuning) SearchFreshTTL() time.Duration {
	return time.Duration(t.SearchFreshTTLSeconds) * time.Second
}

func (t *Tuning) SearchStaleTTL() time.Duration {
	return time.Duration(t.SearchStaleTTLSeconds) * time.Second
}

func (t *Tuning) SearchMaxLatency() time.Duration {
	return time.Duration(t.SearchMaxLatencyMS) * time.Millisecond
}

func (t *Tuning) ProfileCacheTTL() time.Duration {
	return time.Duration(t.ProfileCacheTTLSecond) * time.Second
}

func (t *Tuning) UserLanguageTTL() time.Duration {
	return time.Duration(t.UserLanguageTTLSeconds) * time.Second
}
