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

const (
	recommendLimitDefault = 50
	recommendLimitMax     = 50

	nextTrackLimitDefault = 10
	nextTrackLimitMax     = 20
)

// Recommendations handles GET /api/recommendations. A user without
// saved preferences gets a 404 pointing at the preferences endpoint;
// there is nothing to personalize against.
func (h *Handlers) Recommendations(c *gin.Context) {
	uid := auth.UID(c)
	limit := intQuery(c, "limit", recommendLimitDefault, 1, recommendLimitMax)

	prefs, err := h.users.Preferences(c.Request.Context(), uid)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			render.NotFound(c, "save preferences first to get recommendations")
			return
		}
		slog.Error("preference read for recommendations failed", "uid", uid, "error", err)
		render.Internal(c, "could not load preferences")
		return
	}

	songs, err := h.recommend.Generate(c.Request.Context(), uid, prefs, limit)
	if err != nil {
		slog.Error("recommendation generation failed", "uid", uid, "error", err)
		render.Internal(c, "could not generate recommendations")
		return
	}
	render.OKCount(c, len(songs), songs)
}

type nextTrackRequest struct {
	CurrentSong *models.Song `json:"currentSong"`
	Limit       int          `json:"limit"`
}

// NextTrack handles POST /api/recommendations/next.
func (h *Handlers) NextTrack(c *gin.Context) {
	uid := auth.UID(c)

	var req nextTrackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		render.ErrorDetails(c, 400, "invalid_request", "malformed request body", err.Error())
		return
	}
	if req.CurrentSong == nil || (req.CurrentSong.ID == "" && req.CurrentSong.Name == "") {
		render.BadRequest(c, "currentSong with an id or name is required")
		return
	}
	limit := req.Limit
	if limit <= 0 {
		limit = nextTrackLimitDefault
	}
	if limit > nextTrackLimitMax {
		limit = nextTrackLimitMax
	}

	songs, err := h.recommend.NextTrack(c.Request.Context(), uid, *req.CurrentSong, limit)
	if err != nil {
		slog.Error("next track generation failed", "uid", uid, "error", err)
		render.Internal(c, "could not generate the next track")
		return
	}
	render.OKCount(c, len(songs), songs)
}
