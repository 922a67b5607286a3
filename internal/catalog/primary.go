package catalog

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-resty/resty/v2"
	"golang.org/x/sync/errgroup"

	"musichub/internal/models"
)

// ErrNotFound is returned by lookups when the catalog has no such entity.
var ErrNotFound = errors.New("catalog: not found")

// PrimarySongs runs a paged song search on the primary provider.
func (c *Client) PrimarySongs(ctx context.Context, query string, page, limit int) ([]models.Song, error) {
	ctx, cancel := context.WithTimeout(ctx, primarySearchTimeout)
	defer cancel()

	if err := c.ensureValidToken(ctx); err != nil {
		return nil, err
	}

	var result primarySongSearchResponse
	resp, err := c.primaryGuard.run(ctx, "search_songs", func() (*resty.Response, error) {
		return c.primary.R().
			SetContext(ctx).
			SetAuthToken(c.bearerToken()).
			SetQueryParams(map[string]string{
				"query": query,
				"page":  strconv.Itoa(page),
				"limit": strconv.Itoa(limit),
			}).
			SetResult(&result).
			Get("/search/songs")
	})
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, &UpstreamError{Provider: ProviderPrimary, Operation: "search_songs", Kind: KindStatus, Status: resp.StatusCode()}
	}

	return songsFromPrimary(result.Data.Results), nil
}

// BroadSearch runs the primary provider's multi-entity search.
func (c *Client) BroadSearch(ctx context.Context, query string) (*BroadResult, error) {
	ctx, cancel := context.WithTimeout(ctx, primarySearchTimeout)
	defer cancel()

	if err := c.ensureValidToken(ctx); err != nil {
		return nil, err
	}

	var result primaryBroadResponse
	resp, err := c.primaryGuard.run(ctx, "broad_search", func() (*resty.Response, error) {
		return c.primary.R().
			SetContext(ctx).
			SetAuthToken(c.bearerToken()).
			SetQueryParam("query", query).
			SetResult(&result).
			Get("/search")
	})
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, &UpstreamError{Provider: ProviderPrimary, Operation: "broad_search", Kind: KindStatus, Status: resp.StatusCode()}
	}

	return &BroadResult{
		Songs:   songsFromPrimary(result.Data.Songs.Results),
		Albums:  albumsFromPrimary(result.Data.Albums.Results),
		Artists: artistsFromPrimary(result.Data.Artists.Results),
	}, nil
}

// SongByID fetches one song by its catalog id.
func (c *Client) SongByID(ctx context.Context, id string) (*models.Song, error) {
	ctx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()

	if err := c.ensureValidToken(ctx); err != nil {
		return nil, err
	}

	var result primarySongLookupResponse
	resp, err := c.primaryGuard.run(ctx, "song_by_id", func() (*resty.Response, error) {
		return c.primary.R().
			SetContext(ctx).
			SetAuthToken(c.bearerToken()).
			SetResult(&result).
			Get("/songs/" + id)
	})
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, &UpstreamError{Provider: ProviderPrimary, Operation: "song_by_id", Kind: KindStatus, Status: resp.StatusCode()}
	}

	songs := songsFromPrimary(result.Data)
	if len(songs) == 0 {
		return nil, ErrNotFound
	}
	return &songs[0], nil
}

// AlbumByID fetches an album with its tracklist.
func (c *Client) AlbumByID(ctx context.Context, id string) (*AlbumInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()

	if err := c.ensureValidToken(ctx); err != nil {
		return nil, err
	}

	var result primaryAlbumLookupResponse
	resp, err := c.primaryGuard.run(ctx, "album_by_id", func() (*resty.Response, error) {
		return c.primary.R().
			SetContext(ctx).
			SetAuthToken(c.bearerToken()).
			SetQueryParam("id", id).
			SetResult(&result).
			Get("/albums")
	})
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, &UpstreamError{Provider: ProviderPrimary, Operation: "album_by_id", Kind: KindStatus, Status: resp.StatusCode()}
	}
	if result.Data.ID == "" {
		return nil, ErrNotFound
	}

	album := albumFromPrimary(result.Data)
	return &album, nil
}

// AlbumsByQuery searches albums by name.
func (c *Client) AlbumsByQuery(ctx context.Context, query string, page, limit int) ([]AlbumInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()

	if err := c.ensureValidToken(ctx); err != nil {
		return nil, err
	}

	var result primaryAlbumSearchResponse
	resp, err := c.primaryGuard.run(ctx, "search_albums", func() (*resty.Response, error) {
		return c.primary.R().
			SetContext(ctx).
			SetAuthToken(c.bearerToken()).
			SetQueryParams(map[string]string{
				"query": query,
				"page":  strconv.Itoa(page),
				"limit": strconv.Itoa(limit),
			}).
			SetResult(&result).
			Get("/search/albums")
	})
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, &UpstreamError{Provider: ProviderPrimary, Operation: "search_albums", Kind: KindStatus, Status: resp.StatusCode()}
	}

	return albumsFromPrimary(result.Data.Results), nil
}

// ArtistsByQuery searches artists by name.
func (c *Client) ArtistsByQuery(ctx context.Context, query string, page, limit int) ([]ArtistInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()

	if err := c.ensureValidToken(ctx); err != nil {
		return nil, err
	}

	var result primaryArtistSearchResponse
	resp, err := c.primaryGuard.run(ctx, "search_artists", func() (*resty.Response, error) {
		return c.primary.R().
			SetContext(ctx).
			SetAuthToken(c.bearerToken()).
			SetQueryParams(map[string]string{
				"query": query,
				"page":  strconv.Itoa(page),
				"limit": strconv.Itoa(limit),
			}).
			SetResult(&result).
			Get("/search/artists")
	})
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, &UpstreamError{Provider: ProviderPrimary, Operation: "search_artists", Kind: KindStatus, Status: resp.StatusCode()}
	}

	return artistsFromPrimary(result.Data.Results), nil
}

// ArtistsByLanguage merges the "Top" and "Popular" curated artist queries
// for a language, deduplicated by id with the "Top" ordering first.
func (c *Client) ArtistsByLanguage(ctx context.Context, language string) ([]ArtistInfo, error) {
	queries := []string{
		"Top " + language + " Artists",
		"Popular " + language + " Artists",
	}

	results := make([][]ArtistInfo, len(queries))
	g, gctx := errgroup.WithContext(ctx)
	for i, q := range queries {
		i, q := i, q
		g.Go(func() error {
			artists, err := c.ArtistsByQuery(gctx, q, 1, 20)
			if err != nil {
				return err
			}
			results[i] = artists
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var merged []ArtistInfo
	for _, batch := range results {
		for _, artist := range batch {
			if artist.ID == "" || seen[artist.ID] {
				continue
			}
			seen[artist.ID] = true
			merged = append(merged, artist)
		}
	}
	return merged, nil
}

// ArtistAlbums pages through an artist's discography.
func (c *Client) ArtistAlbums(ctx context.Context, artistID string, page, limit int) (*ArtistAlbumsPage, error) {
	ctx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()

	if err := c.ensureValidToken(ctx); err != nil {
		return nil, err
	}

	var result primaryArtistAlbumsResponse
	resp, err := c.primaryGuard.run(ctx, "artist_albums", func() (*resty.Response, error) {
		return c.primary.R().
			SetContext(ctx).
			SetAuthToken(c.bearerToken()).
			SetQueryParams(map[string]string{
				"page":  strconv.Itoa(page),
				"limit": strconv.Itoa(limit),
			}).
			SetResult(&result).
			Get("/artists/" + artistID + "/albums")
	})
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, &UpstreamError{Provider: ProviderPrimary, Operation: "artist_albums", Kind: KindStatus, Status: resp.StatusCode()}
	}

	albums := albumsFromPrimary(result.Data.Albums)
	if len(albums) > limit {
		albums = albums[:limit]
	}
	return &ArtistAlbumsPage{Total: result.Data.Total, Albums: albums}, nil
}

// Primary provider response structures. The gateway ships most numbers as
// strings; flexInt soaks that up.

type primarySongSearchResponse struct {
	Success bool `json:"success"`
	Data    struct {
		Total   int           `json:"total"`
		Start   int           `json:"start"`
		Results []primarySong `json:"results"`
	} `json:"data"`
}

type primarySongLookupResponse struct {
	Success bool          `json:"success"`
	Data    []primarySong `json:"data"`
}

type primaryBroadResponse struct {
	Success bool `json:"success"`
	Data    struct {
		Songs struct {
			Results []primarySong `json:"results"`
		} `json:"songs"`
		Albums struct {
			Results []primaryAlbum `json:"results"`
		} `json:"albums"`
		Artists struct {
			Results []primaryArtist `json:"results"`
		} `json:"artists"`
	} `json:"data"`
}

type primaryAlbumLookupResponse struct {
	Success bool         `json:"success"`
	Data    primaryAlbum `json:"data"`
}

type primaryAlbumSearchResponse struct {
	Success bool `json:"success"`
	Data    struct {
		Total   int            `json:"total"`
		Results []primaryAlbum `json:"results"`
	} `json:"data"`
}

type primaryArtistSearchResponse struct {
	Success bool `json:"success"`
	Data    struct {
		Total   int             `json:"total"`
		Results []primaryArtist `json:"results"`
	} `json:"data"`
}

type primaryArtistAlbumsResponse struct {
	Success bool `json:"success"`
	Data    struct {
		Total  int            `json:"total"`
		Albums []primaryAlbum `json:"albums"`
	} `json:"data"`
}

type primarySong struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Type        string          `json:"type"`
	Year        flexInt         `json:"year"`
	Duration    flexInt         `json:"duration"`
	Language    string          `json:"language"`
	PlayCount   flexInt64       `json:"playCount"`
	URL         string          `json:"url"`
	Album       primaryAlbumRef `json:"album"`
	Artists     primaryArtists  `json:"artists"`
	Image       []primaryMedia  `json:"image"`
	DownloadURL []primaryMedia  `json:"downloadUrl"`
}

type primaryAlbumRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

type primaryArtists struct {
	Primary  []primaryArtist `json:"primary"`
	Featured []primaryArtist `json:"featured"`
}

type primaryArtist struct {
	ID    string         `json:"id"`
	Name  string         `json:"name"`
	Role  string         `json:"role"`
	Type  string         `json:"type"`
	URL   string         `json:"url"`
	Image []primaryMedia `json:"image"`
}

type primaryAlbum struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Language  string         `json:"language"`
	Year      flexInt        `json:"year"`
	Artist    string         `json:"artist"`
	URL       string         `json:"url"`
	Image     []primaryMedia `json:"image"`
	SongCount flexInt        `json:"songCount"`
	Songs     []primarySong  `json:"songs"`
}

type primaryMedia struct {
	Quality string `json:"quality"`
	URL     string `json:"url"`
}

// songsFromPrimary normalizes a batch, silently dropping records without
// an id or a name; partial records are unrankable and undeduplicatable.
func songsFromPrimary(raw []primarySong) []models.Song {
	songs := make([]models.Song, 0, len(raw))
	for _, p := range raw {
		if song, ok := songFromPrimary(p); ok {
			songs = append(songs, song)
		}
	}
	return songs
}

func songFromPrimary(p primarySong) (models.Song, bool) {
	if p.ID == "" || p.Name == "" {
		return models.Song{}, false
	}
	return models.Song{
		ID:        p.ID,
		Name:      p.Name,
		Language:  p.Language,
		Year:      int(p.Year),
		Duration:  int(p.Duration),
		PlayCount: int64(p.PlayCount),
		URL:       p.URL,
		Album: models.Album{
			ID:   p.Album.ID,
			Name: p.Album.Name,
			URL:  p.Album.URL,
		},
		Artists: models.ArtistCredits{
			Primary:  artistRefsFromPrimary(p.Artists.Primary),
			Featured: artistRefsFromPrimary(p.Artists.Featured),
		},
		Images:       mediaFromPrimary(p.Image),
		DownloadURLs: mediaFromPrimary(p.DownloadURL),
	}, true
}

func artistRefsFromPrimary(raw []primaryArtist) []models.Artist {
	if len(raw) == 0 {
		return nil
	}
	artists := make([]models.Artist, 0, len(raw))
	for _, a := range raw {
		if a.Name == "" {
			continue
		}
		artists = append(artists, models.Artist{ID: a.ID, Name: a.Name, URL: a.URL})
	}
	return artists
}

func mediaFromPrimary(raw []primaryMedia) []models.MediaURL {
	if len(raw) == 0 {
		return nil
	}
	media := make([]models.MediaURL, 0, len(raw))
	for _, m := range raw {
		if m.URL == "" {
			continue
		}
		media = append(media, models.MediaURL{Quality: m.Quality, URL: m.URL})
	}
	return media
}

func albumsFromPrimary(raw []primaryAlbum) []AlbumInfo {
	albums := make([]AlbumInfo, 0, len(raw))
	for _, a := range raw {
		if a.ID == "" || a.Name == "" {
			continue
		}
		albums = append(albums, albumFromPrimary(a))
	}
	return albums
}

func albumFromPrimary(a primaryAlbum) AlbumInfo {
	return AlbumInfo{
		ID:        a.ID,
		Name:      a.Name,
		Language:  a.Language,
		Year:      int(a.Year),
		Artist:    a.Artist,
		URL:       a.URL,
		Images:    mediaFromPrimary(a.Image),
		SongCount: int(a.SongCount),
		Songs:     songsFromPrimary(a.Songs),
	}
}

func artistsFromPrimary(raw []primaryArtist) []ArtistInfo {
	artists := make([]ArtistInfo, 0, len(raw))
	for _, a := range raw {
		if a.ID == "" || a.Name == "" {
			continue
		}
		artists = append(artists, ArtistInfo{
			ID:     a.ID,
			Name:   a.Name,
			Role:   a.Role,
			Type:   a.Type,
			URL:    a.URL,
			Images: mediaFromPrimary(a.Image),
		})
	}
	return artists
}
