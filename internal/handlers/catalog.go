package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"musichub/internal/catalog"
	"musichub/internal/handlers/render"
)

// upstreamFailure maps a catalog error onto the response. A 404 from
// the provider is a missing entity, everything else is our 500; the
// provider detail stays in the log.
func upstreamFailure(c *gin.Context, op string, err error) {
	var ue *catalog.UpstreamError
	if errors.As(err, &ue) && ue.Status == http.StatusNotFound {
		render.NotFound(c, op+" not found")
		return
	}
	slog.Error("catalog lookup failed", "op", op, "error", err)
	render.Internal(c, op+" lookup failed")
}

// SongByID handles GET /api/songs/:id.
func (h *Handlers) SongByID(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		render.BadRequest(c, "song id is required")
		return
	}
	song, err := h.catalog.SongByID(c.Request.Context(), id)
	if err != nil {
		upstreamFailure(c, "song", err)
		return
	}
	render.Passthrough(c, song)
}

// Albums handles GET /api/albums with id XOR query.
func (h *Handlers) Albums(c *gin.Context) {
	id := strings.TrimSpace(c.Query("id"))
	query := strings.TrimSpace(c.Query("query"))
	switch {
	case id == "" && query == "":
		render.BadRequest(c, "either id or query is required")
		return
	case id != "" && query != "":
		render.BadRequest(c, "id and query are mutually exclusive")
		return
	}

	if id != "" {
		album, err := h.catalog.AlbumByID(c.Request.Context(), id)
		if err != nil {
			upstreamFailure(c, "album", err)
			return
		}
		render.Passthrough(c, album)
		return
	}

	page := intQuery(c, "page", 1, 1, 100)
	limit := intQuery(c, "limit", 10, 1, 50)
	albums, err := h.catalog.AlbumsByQuery(c.Request.Context(), query, page, limit)
	if err != nil {
		upstreamFailure(c, "album search", err)
		return
	}
	render.Passthrough(c, albums)
}

// ArtistsByLanguage handles GET /api/artists/by-language.
func (h *Handlers) ArtistsByLanguage(c *gin.Context) {
	language := strings.TrimSpace(c.Query("language"))
	if language == "" {
		render.BadRequest(c, "language parameter is required")
		return
	}
	artists, err := h.catalog.ArtistsByLanguage(c.Request.Context(), language)
	if err != nil {
		upstreamFailure(c, "artist", err)
		return
	}
	render.OKCount(c, len(artists), artists)
}

// ArtistAlbums handles GET /api/artists/:id/albums.
func (h *Handlers) ArtistAlbums(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		render.BadRequest(c, "artist id is required")
		return
	}
	page := intQuery(c, "page", 1, 1, 100)
	limit := intQuery(c, "limit", 10, 1, 50)
	albums, err := h.catalog.ArtistAlbums(c.Request.Context(), id, page, limit)
	if err != nil {
		upstreamFailure(c, "artist albums", err)
		return
	}
	render.Passthrough(c, albums)
}
