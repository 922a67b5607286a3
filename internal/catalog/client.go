package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"

	"musichub/internal/metrics"
)

// Config wires the provider endpoints. The OAuth2 fields are optional and
// only used by hosted primary gateways; public gateways take no auth.
type Config struct {
	PrimaryBaseURL  string
	FallbackBaseURL string

	ClientID     string
	ClientSecret string
	TokenURL     string
}

// Client implements Adapter against the two HTTP providers.
type Client struct {
	primary  *resty.Client
	fallback *resty.Client

	primaryGuard  *guard
	fallbackGuard *guard

	tokenCfg    *clientcredentials.Config
	accessToken string
	tokenExpiry time.Time
	mu          sync.RWMutex
}

// New creates the provider client. Retries are deliberately disabled: the
// search engine's variant loop is the retry mechanism, and a second
// attempt inside the per-call deadline would blow the latency budget.
func New(cfg Config) *Client {
	c := &Client{
		primary: resty.New().
			SetBaseURL(cfg.PrimaryBaseURL).
			SetTimeout(primarySearchTimeout).
			SetHeader("Accept", "application/json"),
		fallback: resty.New().
			SetBaseURL(cfg.FallbackBaseURL).
			SetTimeout(fallbackSearchTimeout).
			SetHeader("Accept", "application/json"),
		primaryGuard:  newGuard(ProviderPrimary, 20, 40),
		fallbackGuard: newGuard(ProviderFallback, 10, 20),
	}

	if cfg.ClientID != "" && cfg.ClientSecret != "" && cfg.TokenURL != "" {
		c.tokenCfg = &clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
		}
	}

	return c
}

// guard bundles the per-provider circuit breaker and rate limiter.
type guard struct {
	provider string
	breaker  *gobreaker.CircuitBreaker[*resty.Response]
	limiter  *rate.Limiter
}

func newGuard(provider string, rps float64, burst int) *guard {
	settings := gobreaker.Settings{
		Name:        provider,
		MaxRequests: 2,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("provider circuit state changed", "provider", name, "from", from.String(), "to", to.String())
		},
	}
	return &guard{
		provider: provider,
		breaker:  gobreaker.NewCircuitBreaker[*resty.Response](settings),
		limiter:  rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// statusError marks a 5xx response as a breaker failure while keeping the
// code for the caller's error mapping.
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("server status %d", e.code)
}

// run executes one provider request through the limiter and the breaker.
// Only transport faults and 5xx responses count against the breaker; a
// 404 is an answer, not an outage.
func (g *guard) run(ctx context.Context, op string, fn func() (*resty.Response, error)) (*resty.Response, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, &UpstreamError{Provider: g.provider, Operation: op, Kind: classifyTransportError(err), Err: err}
	}

	resp, err := g.breaker.Execute(func() (*resty.Response, error) {
		resp, err := fn()
		if err != nil {
			return nil, err
		}
		if resp.StatusCode() >= 500 {
			return resp, &statusError{code: resp.StatusCode()}
		}
		return resp, nil
	})
	metrics.RecordUpstreamRequest(g.provider, err)
	if err != nil {
		switch {
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			return nil, &UpstreamError{Provider: g.provider, Operation: op, Kind: KindUnavailable, Err: err}
		default:
			var se *statusError
			if errors.As(err, &se) {
				return nil, &UpstreamError{Provider: g.provider, Operation: op, Kind: KindStatus, Status: se.code, Err: err}
			}
			return nil, &UpstreamError{Provider: g.provider, Operation: op, Kind: classifyTransportError(err), Err: err}
		}
	}
	return resp, nil
}

// ensureValidToken refreshes the OAuth2 token when configured. Uses the
// read-then-write double check so concurrent searches never stampede the
// token endpoint.
func (c *Client) ensureValidToken(ctx context.Context) error {
	if c.tokenCfg == nil {
		return nil
	}

	c.mu.RLock()
	if c.accessToken != "" && time.Now().Before(c.tokenExpiry) {
		c.mu.RUnlock()
		return nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	// Double-check after acquiring write lock
	if c.accessToken != "" && time.Now().Before(c.tokenExpiry) {
		return nil
	}

	token, err := c.tokenCfg.Token(ctx)
	if err != nil {
		return &UpstreamError{Provider: ProviderPrimary, Operation: "auth", Kind: classifyTransportError(err), Err: err}
	}

	c.accessToken = token.AccessToken
	c.tokenExpiry = token.Expiry

	slog.Info("catalog access token refreshed", "expires_at", token.Expiry)
	return nil
}

// bearerToken returns the cached token, empty when auth is not configured.
func (c *Client) bearerToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.accessToken
}

var _ Adapter = (*Client)(nil)
