package catalog

import (
	"context"
	"encoding/json"
	"html"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"

	"musichub/internal/models"
)

// imageQualities are the artwork sizes synthesized for fallback records,
// which only carry a single image URL.
var imageQualities = []string{"50x50", "150x150", "500x500"}

// FallbackSongs queries the legacy provider. The fallback never reports
// absence as an error: no matches, a 404 or an empty body all produce an
// empty list. Only transport faults and non-404 error statuses surface.
func (c *Client) FallbackSongs(ctx context.Context, query string) ([]models.Song, error) {
	ctx, cancel := context.WithTimeout(ctx, fallbackSearchTimeout)
	defer cancel()

	resp, err := c.fallbackGuard.run(ctx, "search", func() (*resty.Response, error) {
		return c.fallback.R().
			SetContext(ctx).
			SetQueryParam("query", query).
			Get("/search")
	})
	if err != nil {
		return nil, err
	}

	switch {
	case resp.StatusCode() == http.StatusNotFound:
		return nil, nil
	case resp.StatusCode() != http.StatusOK:
		return nil, &UpstreamError{Provider: ProviderFallback, Operation: "search", Kind: KindStatus, Status: resp.StatusCode()}
	}

	body := resp.Body()
	if len(body) == 0 {
		return nil, nil
	}

	var raw []fallbackSong
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, &UpstreamError{Provider: ProviderFallback, Operation: "search", Kind: KindParse, Err: err}
	}

	songs := make([]models.Song, 0, len(raw))
	for _, f := range raw {
		if song, ok := songFromFallback(f); ok {
			songs = append(songs, song)
		}
	}
	return songs, nil
}

// fallbackSong is the legacy flat record shape.
type fallbackSong struct {
	ID             string    `json:"id"`
	Song           string    `json:"song"`
	PrimaryArtists string    `json:"primary_artists"`
	Singers        string    `json:"singers"`
	Music          string    `json:"music"`
	AlbumID        string    `json:"albumid"`
	Album          string    `json:"album"`
	Year           flexInt   `json:"year"`
	Duration       flexInt   `json:"duration"`
	Language       string    `json:"language"`
	PlayCount      flexInt64 `json:"play_count"`
	MediaURL       string    `json:"media_url"`
	Image          string    `json:"image"`
	PermaURL       string    `json:"perma_url"`
}

// songFromFallback lifts a flat record into the unified shape. Records
// without an id or a title are dropped; everything else is best-effort.
func songFromFallback(f fallbackSong) (models.Song, bool) {
	if f.ID == "" || f.Song == "" {
		return models.Song{}, false
	}

	artistLine := f.PrimaryArtists
	if artistLine == "" {
		artistLine = f.Singers
	}

	song := models.Song{
		ID:        f.ID,
		Name:      html.UnescapeString(f.Song),
		Language:  f.Language,
		Year:      int(f.Year),
		Duration:  int(f.Duration),
		PlayCount: int64(f.PlayCount),
		URL:       f.PermaURL,
		Album: models.Album{
			ID:   f.AlbumID,
			Name: html.UnescapeString(f.Album),
		},
		Artists: models.ArtistCredits{
			Primary: artistsFromLine(artistLine),
		},
		Images: synthesizeImages(f.Image),
	}
	if f.MediaURL != "" {
		// The legacy provider serves one stream; tag it with the top
		// bitrate so clients treat both providers uniformly.
		song.DownloadURLs = []models.MediaURL{{Quality: "320kbps", URL: f.MediaURL}}
	}
	return song, true
}

// artistsFromLine splits the comma-joined credit string. The legacy shape
// carries no artist ids.
func artistsFromLine(line string) []models.Artist {
	if line == "" {
		return nil
	}
	parts := strings.Split(html.UnescapeString(line), ",")
	artists := make([]models.Artist, 0, len(parts))
	for _, p := range parts {
		name := strings.TrimSpace(p)
		if name == "" {
			continue
		}
		artists = append(artists, models.Artist{Name: name})
	}
	return artists
}

// synthesizeImages expands the single legacy artwork URL into the three
// standard sizes. CDN URLs embed the size, so the variants are derived by
// substitution; opaque URLs are repeated as-is.
func synthesizeImages(imageURL string) []models.MediaURL {
	if imageURL == "" {
		return nil
	}
	images := make([]models.MediaURL, 0, len(imageQualities))
	for _, quality := range imageQualities {
		url := imageURL
		if strings.Contains(imageURL, "150x150") {
			url = strings.Replace(imageURL, "150x150", quality, 1)
		}
		images = append(images, models.MediaURL{Quality: quality, URL: url})
	}
	return images
}
