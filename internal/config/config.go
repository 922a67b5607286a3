package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// StoreBackend selects where user state lives.
type StoreBackend string

const (
	StoreBackendFirebase StoreBackend = "firebase"
	StoreBackendMemory   StoreBackend = "memory"
)

// AuthMode selects how bearer tokens are verified.
type AuthMode string

const (
	AuthModeIdentity AuthMode = "identity" // remote accounts:lookup verification
	AuthModeJWT      AuthMode = "jwt"      // local HS256 verification
	AuthModeOff      AuthMode = "off"      // tests and local tinkering only
)

const (
	minKeepaliveInterval = 60 * time.Second
	minKeepaliveTimeout  = time.Second
)

// Config holds all configuration for the application
type Config struct {
	// Application settings
	Port    string `envconfig:"PORT" default:"8080"`
	GinMode string `envconfig:"GIN_MODE" default:"release"`
	BaseURL string `envconfig:"BASE_URL" default:"http://localhost:8080"`

	// Upstream catalog providers. The primary gateway serves the rich
	// nested payloads; the fallback serves the legacy flat shape.
	CatalogPrimaryURL  string `envconfig:"CATALOG_PRIMARY_URL" default:"https://saavn.dev/api"`
	CatalogFallbackURL string `envconfig:"CATALOG_FALLBACK_URL" default:"https://jiosaavn-api.vercel.app/api"`

	// Optional OAuth2 client-credentials for hosted primary gateways.
	// Public gateways need none of these.
	CatalogClientID     string `envconfig:"CATALOG_CLIENT_ID"`
	CatalogClientSecret string `envconfig:"CATALOG_CLIENT_SECRET"`
	CatalogTokenURL     string `envconfig:"CATALOG_TOKEN_URL"`

	// User state store
	StoreBackend           StoreBackend `envconfig:"STORE_BACKEND" default:"firebase"`
	FirebaseDatabaseURL    string       `envconfig:"FIREBASE_DATABASE_URL"`
	FirebaseServiceAccount string       `envconfig:"FIREBASE_SERVICE_ACCOUNT"` // inline JSON or a file path
	FirebaseWebAPIKey      string       `envconfig:"FIREBASE_WEB_API_KEY"`

	// Bearer-token verification
	AuthMode      AuthMode `envconfig:"AUTH_MODE" default:"identity"`
	AuthJWTSecret string   `envconfig:"AUTH_JWT_SECRET"`

	// Optional shared cache tier for smart-search results
	ValkeyURL string `envconfig:"VALKEY_URL"`

	// Keepalive self-ping
	KeepaliveURL        string `envconfig:"KEEPALIVE_URL"`
	KeepaliveIntervalMS int    `envconfig:"KEEPALIVE_INTERVAL_MS" default:"240000"`
	KeepaliveTimeoutMS  int    `envconfig:"KEEPALIVE_TIMEOUT_MS" default:"10000"`
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadRaw reads configuration without cross-field validation. The
// standalone keepalive worker runs with none of the server's backends
// configured.
func LoadRaw() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field requirements that envconfig tags cannot express.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case StoreBackendFirebase:
		if c.FirebaseDatabaseURL == "" {
			return fmt.Errorf("FIREBASE_DATABASE_URL is required when STORE_BACKEND=firebase")
		}
	case StoreBackendMemory:
		// No external requirements.
	default:
		return fmt.Errorf("unsupported store backend: %s", c.StoreBackend)
	}

	switch c.AuthMode {
	case AuthModeIdentity:
		if c.FirebaseWebAPIKey == "" {
			return fmt.Errorf("FIREBASE_WEB_API_KEY is required when AUTH_MODE=identity")
		}
	case AuthModeJWT:
		if c.AuthJWTSecret == "" {
			return fmt.Errorf("AUTH_JWT_SECRET is required when AUTH_MODE=jwt")
		}
	case AuthModeOff:
		// Deliberately unauthenticated.
	default:
		return fmt.Errorf("unsupported auth mode: %s", c.AuthMode)
	}

	if c.CatalogPrimaryURL == "" {
		return fmt.Errorf("CATALOG_PRIMARY_URL cannot be empty")
	}
	return nil
}

// KeepaliveEnabled reports whether the in-process pinger should run.
func (c *Config) KeepaliveEnabled() bool {
	return c.KeepaliveURL != ""
}

// KeepaliveInterval returns the ping interval, clamped to the minimum so a
// misconfigured deployment cannot hammer itself.
func (c *Config) KeepaliveInterval() time.Duration {
	d := time.Duration(c.KeepaliveIntervalMS) * time.Millisecond
	if d < minKeepaliveInterval {
		return minKeepaliveInterval
	}
	return d
}

// KeepaliveTimeout returns the per-ping timeout, clamped to the minimum.
func (c *Config) KeepaliveTimeout() time.Duration {
	d := time.Duration(c.KeepaliveTimeoutMS) * time.Millisecond
	if d < minKeepaliveTimeout {
		return minKeepaliveTimeout
	}
	return d
}

// KeepaliveIntervalValid reports whether the configured interval meets the
// minimum without clamping. The standalone worker refuses to start on an
// invalid interval instead of silently correcting it.
func (c *Config) KeepaliveIntervalValid() bool {
	return c.KeepaliveIntervalMS >= int(minKeepaliveInterval/time.Millisecond)
}
