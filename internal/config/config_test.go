package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setBaselineEnv() func() {
	os.Setenv("FIREBASE_DATABASE_URL", "https://test-db.firebaseio.com")
	os.Setenv("FIREBASE_WEB_API_KEY", "test-api-key")
	return func() {
		os.Unsetenv("FIREBASE_DATABASE_URL")
		os.Unsetenv("FIREBASE_WEB_API_KEY")
	}
}

func TestLoad(t *testing.T) {
	cleanup := setBaselineEnv()
	defer cleanup()

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)              // default value
	assert.Equal(t, "release", cfg.GinMode)        // default value
	assert.Equal(t, StoreBackendFirebase, cfg.StoreBackend)
	assert.Equal(t, AuthModeIdentity, cfg.AuthMode)
	assert.Equal(t, "https://test-db.firebaseio.com", cfg.FirebaseDatabaseURL)
	assert.NotEmpty(t, cfg.CatalogPrimaryURL)
	assert.NotEmpty(t, cfg.CatalogFallbackURL)
	assert.Equal(t, 240000, cfg.KeepaliveIntervalMS)
	assert.Equal(t, 10000, cfg.KeepaliveTimeoutMS)
}

func TestLoad_MissingDatabaseURL(t *testing.T) {
	original := os.Getenv("FIREBASE_DATABASE_URL")
	os.Unsetenv("FIREBASE_DATABASE_URL")
	os.Setenv("FIREBASE_WEB_API_KEY", "test-api-key")
	defer func() {
		if original != "" {
			os.Setenv("FIREBASE_DATABASE_URL", original)
		}
		os.Unsetenv("FIREBASE_WEB_API_KEY")
	}()

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FIREBASE_DATABASE_URL")
}

func TestLoad_MemoryBackendNeedsNoDatabase(t *testing.T) {
	os.Setenv("STORE_BACKEND", "memory")
	os.Setenv("AUTH_MODE", "off")
	defer func() {
		os.Unsetenv("STORE_BACKEND")
		os.Unsetenv("AUTH_MODE")
	}()

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, StoreBackendMemory, cfg.StoreBackend)
	assert.Equal(t, AuthModeOff, cfg.AuthMode)
}

func TestValidate_AuthModes(t *testing.T) {
	testCases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "identity needs api key",
			mutate: func(c *Config) { c.AuthMode = AuthModeIdentity; c.FirebaseWebAPIKey = "" },

			wantErr: "FIREBASE_WEB_API_KEY",
		},
		{
			name:    "jwt needs secret",
			mutate:  func(c *Config) { c.AuthMode = AuthModeJWT; c.AuthJWTSecret = "" },
			wantErr: "AUTH_JWT_SECRET",
		},
		{
			name:    "unknown mode rejected",
			mutate:  func(c *Config) { c.AuthMode = "basic" },
			wantErr: "unsupported auth mode",
		},
		{
			name:    "unknown backend rejected",
			mutate:  func(c *Config) { c.StoreBackend = "postgres" },
			wantErr: "unsupported store backend",
		},
		{
			name:    "empty primary catalog rejected",
			mutate:  func(c *Config) { c.CatalogPrimaryURL = "" },
			wantErr: "CATALOG_PRIMARY_URL",
		},
		{
			name:   "jwt mode valid with secret",
			mutate: func(c *Config) { c.AuthMode = AuthModeJWT; c.AuthJWTSecret = "s3cret" },
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := &Config{
				Port:                "8080",
				StoreBackend:        StoreBackendMemory,
				AuthMode:            AuthModeOff,
				CatalogPrimaryURL:   "https://catalog.example/api",
				CatalogFallbackURL:  "https://legacy.example/api",
				KeepaliveIntervalMS: 240000,
				KeepaliveTimeoutMS:  10000,
			}
			tc.mutate(cfg)

			err := cfg.Validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.wantErr)
			}
		})
	}
}

func TestKeepaliveClamps(t *testing.T) {
	cfg := &Config{KeepaliveIntervalMS: 5000, KeepaliveTimeoutMS: 200}

	assert.Equal(t, 60*time.Second, cfg.KeepaliveInterval(), "interval clamps up to the minimum")
	assert.Equal(t, time.Second, cfg.KeepaliveTimeout(), "timeout clamps up to the minimum")
	assert.False(t, cfg.KeepaliveIntervalValid())

	cfg.KeepaliveIntervalMS = 240000
	cfg.KeepaliveTimeoutMS = 10000
	assert.Equal(t, 4*time.Minute, cfg.KeepaliveInterval())
	assert.Equal(t, 10*time.Second, cfg.KeepaliveTimeout())
	assert.True(t, cfg.KeepaliveIntervalValid())

	assert.False(t, cfg.KeepaliveEnabled())
	cfg.KeepaliveURL = "https://app.example/healthz"
	assert.True(t, cfg.KeepaliveEnabled())
}

func TestDefaultTuning(t *testing.T) {
	tuning := DefaultTuning()

	assert.Equal(t, 2*time.Minute, tuning.SearchFreshTTL())
	assert.Equal(t, 20*time.Minute, tuning.SearchStaleTTL())
	assert.Equal(t, 3200*time.Millisecond, tuning.SearchMaxLatency())
	assert.Equal(t, 40, tuning.SearchMaxResults)
	assert.Equal(t, 8, tuning.SearchMinResults)
	assert.Equal(t, 6000, tuning.IndexCapacity)
	assert.Equal(t, 120, tuning.LocalResultCap)
	assert.Equal(t, 300, tuning.ProfileCacheCapacity)
	assert.Equal(t, 2*time.Minute, tuning.ProfileCacheTTL())
}

func TestMergeTuning(t *testing.T) {
	base := DefaultTuning()
	mergeTuning(base, &Tuning{SearchCacheCapacity: 64, IndexCapacity: 1000})

	assert.Equal(t, 64, base.SearchCacheCapacity)
	assert.Equal(t, 1000, base.IndexCapacity)
	// Unset override fields keep their defaults.
	assert.Equal(t, 120, base.SearchFreshTTLSeconds)
	assert.Equal(t, 40, base.SearchMaxResults)

	// Nil override is a no-op.
	mergeTuning(base, nil)
	assert.Equal(t, 64, base.SearchCacheCapacity)
}

func TestLoadTuningFromPath(t *testing.T) {
	missing, err := loadTuningFromPath("/nonexistent/tuning.toml")
	assert.NoError(t, err)
	assert.Nil(t, missing)

	dir := t.TempDir()
	path := dir + "/tuning.toml"
	require.NoError(t, os.WriteFile(path, []byte("search_cache_capacity = 32\nsearch_min_results = 4\n"), 0o644))

	loaded, err := loadTuningFromPath(path)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, 32, loaded.SearchCacheCapacity)
	assert.Equal(t, 4, loaded.SearchMinResults)

	require.NoError(t, os.WriteFile(path, []byte("search_cache_capacity = [broken"), 0o644))
	_, err = loadTuningFromPath(path)
	assert.Error(t, err)
}
