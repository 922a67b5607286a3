package handlers

import (
	"errors"
	"log/slog"

	"github.com/gin-gonic/gin"

	"musichub/internal/auth"
	"musichub/internal/handlers/render"
	"musichub/internal/models"
	"musichub/internal/store"
)

type preferencesRequest struct {
	Languages       []string        `json:"languages"`
	FavoriteArtists []models.Artist `json:"favoriteArtists"`
}

// SavePreferences handles POST /api/user/preferences. At least one of
// languages or favoriteArtists must be present; absent fields leave the
// stored value untouched.
func (h *Handlers) SavePreferences(c *gin.Context) {
	uid := auth.UID(c)

	var req preferencesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		render.ErrorDetails(c, 400, "invalid_request", "malformed request body", err.Error())
		return
	}
	if req.Languages == nil && req.FavoriteArtists == nil {
		render.BadRequest(c, "at least one of languages or favoriteArtists is required")
		return
	}

	prefs, err := h.users.SavePreferences(c.Request.Context(), uid, store.PreferencesUpdate{
		Languages:       req.Languages,
		FavoriteArtists: req.FavoriteArtists,
	})
	if err != nil {
		slog.Error("preference save failed", "uid", uid, "error", err)
		render.Internal(c, "could not save preferences")
		return
	}

	// The stale cached language list must not outlive the write.
	h.languages.put(uid, prefs.Languages)

	render.OKMessage(c, "preferences saved", prefs)
}

// GetPreferences handles GET /api/user/preferences.
func (h *Handlers) GetPreferences(c *gin.Context) {
	uid := auth.UID(c)
	prefs, err := h.users.Preferences(c.Request.Context(), uid)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			render.NotFound(c, "no preferences saved yet; POST /api/user/preferences to create them")
			return
		}
		slog.Error("preference read failed", "uid", uid, "error", err)
		render.Internal(c, "could not load preferences")
		return
	}
	render.OK(c, prefs)
}
