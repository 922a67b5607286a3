// Standalone keepalive worker. Deployments that cannot run the
// in-process pinger (the free tier suspends the whole process) run this
// binary somewhere that stays awake.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"musichub/internal/config"
	"musichub/internal/keepalive"
)

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.LoadRaw()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if cfg.KeepaliveURL == "" {
		slog.Error("KEEPALIVE_URL is required")
		os.Exit(1)
	}
	if !cfg.KeepaliveIntervalValid() {
		slog.Error("KEEPALIVE_INTERVAL_MS is below the minimum", "intervalMs", cfg.KeepaliveIntervalMS)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pinger := keepalive.New(cfg.KeepaliveURL, cfg.KeepaliveInterval(), cfg.KeepaliveTimeout())
	pinger.Run(ctx)
}
