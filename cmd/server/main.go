package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"musichub/internal/auth"
	"musichub/internal/cache"
	"musichub/internal/catalog"
	"musichub/internal/config"
	"musichub/internal/handlers"
	"musichub/internal/index"
	"musichub/internal/keepalive"
	"musichub/internal/profile"
	"musichub/internal/recommend"
	"musichub/internal/rerank"
	"musichub/internal/search"
	"musichub/internal/store"
)

func main() {
	// Load .env file for local development
	_ = godotenv.Load()

	// Initialize structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	gin.SetMode(cfg.GinMode)

	// User state store
	var tree store.Client
	switch cfg.StoreBackend {
	case config.StoreBackendFirebase:
		rtdb, err := store.NewRTDB(cfg.FirebaseDatabaseURL, cfg.FirebaseServiceAccount)
		if err != nil {
			slog.Error("Failed to connect to the user store", "error", err)
			os.Exit(1)
		}
		tree = rtdb
	case config.StoreBackendMemory:
		slog.Warn("Using the in-memory user store; state is lost on restart")
		tree = store.NewMemoryClient()
	}
	users := store.NewUserStore(tree)

	// Upstream catalog
	provider := catalog.New(catalog.Config{
		PrimaryBaseURL:  cfg.CatalogPrimaryURL,
		FallbackBaseURL: cfg.CatalogFallbackURL,
		ClientID:        cfg.CatalogClientID,
		ClientSecret:    cfg.CatalogClientSecret,
		TokenURL:        cfg.CatalogTokenURL,
	})

	// Optional shared result cache tier
	var shared cache.Cache
	if cfg.ValkeyURL != "" {
		valkey, err := cache.NewValkey(cfg.ValkeyURL)
		if err != nil {
			slog.Warn("Valkey unavailable, running on the local cache only", "error", err)
		} else {
			shared = valkey
		}
	}

	// Search and personalization pipeline
	tuning := config.GetTuning()
	engine := search.NewEngine(provider, index.New(tuning.IndexCapacity), shared)
	reranker, err := rerank.New(profile.NewBuilder(users))
	if err != nil {
		slog.Error("Failed to initialize the reranker", "error", err)
		os.Exit(1)
	}
	recommender := recommend.NewGenerator(engine, reranker, provider, users)

	// Bearer-token verification
	var verifier auth.Verifier
	switch cfg.AuthMode {
	case config.AuthModeIdentity:
		verifier = auth.NewCachedVerifier(auth.NewIdentityVerifier(cfg.FirebaseWebAPIKey), cache.NewMemory(2000))
	case config.AuthModeJWT:
		verifier = auth.NewJWTVerifier(cfg.AuthJWTSecret)
	case config.AuthModeOff:
		slog.Warn("Auth is off; bearer tokens are trusted as user ids")
		verifier = auth.InsecureVerifier{}
	}

	router := gin.New()
	router.Use(gin.Recovery())
	h := handlers.New(engine, reranker, recommender, provider, users, verifier)
	h.RegisterRoutes(router)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.KeepaliveEnabled() {
		pinger := keepalive.New(cfg.KeepaliveURL, cfg.KeepaliveInterval(), cfg.KeepaliveTimeout())
		go pinger.Run(ctx)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("Server starting", "port", cfg.Port, "store", cfg.StoreBackend, "auth", cfg.AuthMode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Graceful shutdown failed", "error", err)
		os.Exit(1)
	}
}
