// Package keepalive keeps free-tier hosts awake by self-pinging the
// health endpoint on a fixed interval. Operational glue only; nothing
// in the request path depends on it.
package keepalive

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"
)

// Pinger issues periodic GET requests against a single URL.
type Pinger struct {
	client   *resty.Client
	url      string
	interval time.Duration
}

// New builds a pinger for url. timeout bounds each individual ping.
func New(url string, interval, timeout time.Duration) *Pinger {
	return &Pinger{
		client: resty.New().
			SetTimeout(timeout).
			SetHeader("User-Agent", "musichub-keepalive"),
		url:      url,
		interval: interval,
	}
}

// Ping issues one request. Any 2xx counts as success.
func (p *Pinger) Ping(ctx context.Context) error {
	resp, err := p.client.R().SetContext(ctx).Get(p.url)
	if err != nil {
		return fmt.Errorf("keepalive ping %s: %w", p.url, err)
	}
	if resp.IsError() {
		return fmt.Errorf("keepalive ping %s: status %d", p.url, resp.StatusCode())
	}
	return nil
}

// Run pings immediately and then on every interval tick until ctx is
// cancelled. Failures are logged and the loop keeps going; a sleeping
// host is exactly when pings start failing.
func (p *Pinger) Run(ctx context.Context) {
	slog.Info("keepalive started", "url", p.url, "interval", p.interval)
	p.pingOnce(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.Info("keepalive stopped")
			return
		case <-ticker.C:
			p.pingOnce(ctx)
		}
	}
}

func (p *Pinger) pingOnce(ctx context.Context) {
	if err := p.Ping(ctx); err != nil {
		slog.Warn("keepalive ping failed", "error", err)
		return
	}
	slog.Debug("keepalive ping ok", "url", p.url)
}
