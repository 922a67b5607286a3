// Package handlers is the HTTP surface: input validation, limit
// clamps, language resolution, and the JSON envelopes around the
// search, activity and recommendation pipelines. All ranking logic
// lives below this package.
package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"musichub/internal/auth"
	"musichub/internal/catalog"
	"musichub/internal/config"
	"musichub/internal/metrics"
	"musichub/internal/models"
	"musichub/internal/rerank"
	"musichub/internal/search"
	"musichub/internal/store"
)

// Searcher is the smart search seam the surface calls into.
type Searcher interface {
	SmartSearch(ctx context.Context, query string, opts search.Options) ([]models.Song, error)
}

// Ranker personalizes an ordered candidate list for a user.
type Ranker interface {
	Rerank(ctx context.Context, uid string, songs []models.Song, opts rerank.Options) ([]models.Song, error)
}

// Recommender serves the general and next-track feeds.
type Recommender interface {
	Generate(ctx context.Context, uid string, prefs *store.UserPreferences, limit int) ([]models.Song, error)
	NextTrack(ctx context.Context, uid string, current models.Song, limit int) ([]models.Song, error)
}

// Handlers bundles every route's dependencies.
type Handlers struct {
	searcher  Searcher
	ranker    Ranker
	recommend Recommender
	catalog   catalog.Adapter
	users     *store.UserStore
	verifier  auth.Verifier
	languages *languageCache
}

// New wires the HTTP surface.
func New(searcher Searcher, ranker Ranker, recommender Recommender, adapter catalog.Adapter, users *store.UserStore, verifier auth.Verifier) *Handlers {
	tuning := config.GetTuning()
	return &Handlers{
		searcher:  searcher,
		ranker:    ranker,
		recommend: recommender,
		catalog:   adapter,
		users:     users,
		verifier:  verifier,
		languages: newLanguageCache(tuning.UserLanguageCapacity, tuning.UserLanguageTTL()),
	}
}

// RegisterRoutes attaches every endpoint to the router.
func (h *Handlers) RegisterRoutes(router *gin.Engine) {
	router.GET("/healthz", h.Healthz)
	router.GET("/health", func(c *gin.Context) {
		c.Redirect(http.StatusFound, "/healthz")
	})
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := router.Group("/api")
	api.GET("/search", auth.Optional(h.verifier), h.Search)
	api.GET("/songs/:id", h.SongByID)
	api.GET("/albums", h.Albums)
	api.GET("/artists/by-language", h.ArtistsByLanguage)
	api.GET("/artists/:id/albums", h.ArtistAlbums)

	authed := api.Group("", auth.Require(h.verifier))
	authed.POST("/user/preferences", h.SavePreferences)
	authed.GET("/user/preferences", h.GetPreferences)
	authed.POST("/activity/:type", h.LogActivity)
	authed.GET("/activity/history", h.ActivityHistory)
	authed.GET("/recommendations", h.Recommendations)
	authed.POST("/recommendations/next", h.NextTrack)
}

// Healthz answers the liveness probe (and the keepalive pinger).
func (h *Handlers) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"ok":        true,
		"service":   "musichub",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// intQuery parses an integer query parameter, falling back to def on
// absence or garbage, then clamping to [min, max].
func intQuery(c *gin.Context, name string, def, min, max int) int {
	v := def
	if raw := c.Query(name); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			v = parsed
		}
	}
	if v < min {
		v = min
	}
	if v > max {
		v = max
	}
	return v
}
