// Package catalog talks to the upstream music providers and normalizes
// their payloads into models.Song. Two providers are wired: the primary
// gateway with rich nested responses, and a legacy fallback with a flat
// shape. Everything above this package is provider-agnostic.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"musichub/internal/models"
)

// Provider names as they appear in errors, logs and source weights.
const (
	ProviderPrimary  = "primary"
	ProviderFallback = "fallback"
)

// Per-operation deadlines. Search calls get more room than utility
// lookups; the fallback is expected to answer faster or not at all.
const (
	primarySearchTimeout  = 2200 * time.Millisecond
	fallbackSearchTimeout = 1800 * time.Millisecond
	lookupTimeout         = 1500 * time.Millisecond
)

// ErrorKind classifies upstream failures for logging and metrics.
type ErrorKind string

const (
	KindTimeout     ErrorKind = "timeout"
	KindStatus      ErrorKind = "status"
	KindParse       ErrorKind = "parse"
	KindUnavailable ErrorKind = "unavailable" // circuit open
)

// UpstreamError describes a failed provider call. The search engine only
// ever logs these and keeps going; handlers turn them into a 500 solely
// when a mandatory lookup has no other source.
type UpstreamError struct {
	Provider  string
	Operation string
	Kind      ErrorKind
	Status    int
	Err       error
}

func (e *UpstreamError) Error() string {
	msg := fmt.Sprintf("%s %s failed (%s)", e.Provider, e.Operation, e.Kind)
	if e.Status != 0 {
		msg = fmt.Sprintf("%s: status %d", msg, e.Status)
	}
	if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// classifyTransportError distinguishes deadline expiry from other
// transport faults so timeouts are visible in metrics.
func classifyTransportError(err error) ErrorKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	return KindStatus
}

// AlbumInfo is a full album entity from album search or album lookup.
type AlbumInfo struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Language  string            `json:"language,omitempty"`
	Year      int               `json:"year,omitempty"`
	Artist    string            `json:"artist,omitempty"`
	URL       string            `json:"url,omitempty"`
	Images    []models.MediaURL `json:"image,omitempty"`
	SongCount int               `json:"songCount,omitempty"`
	Songs     []models.Song     `json:"songs,omitempty"`
}

// ArtistInfo is an artist entity from artist search.
type ArtistInfo struct {
	ID     string            `json:"id"`
	Name   string            `json:"name"`
	Role   string            `json:"role,omitempty"`
	Type   string            `json:"type,omitempty"`
	URL    string            `json:"url,omitempty"`
	Images []models.MediaURL `json:"image,omitempty"`
}

// BroadResult is the multi-entity search response from the primary
// provider. Song results feed the ranked set; albums and artists pass
// through to the search response builder.
type BroadResult struct {
	Songs   []models.Song
	Albums  []AlbumInfo
	Artists []ArtistInfo
}

// ArtistAlbumsPage is one page of an artist's discography.
type ArtistAlbumsPage struct {
	Total  int         `json:"total"`
	Albums []AlbumInfo `json:"albums"`
}

// Adapter is the provider seam the search engine and the handlers consume.
type Adapter interface {
	// PrimarySongs runs a paged song search on the primary provider.
	PrimarySongs(ctx context.Context, query string, page, limit int) ([]models.Song, error)

	// FallbackSongs queries the legacy provider. Absence of results is
	// never an error; the fallback answers with an empty list.
	FallbackSongs(ctx context.Context, query string) ([]models.Song, error)

	// BroadSearch runs the primary provider's multi-entity search.
	BroadSearch(ctx context.Context, query string) (*BroadResult, error)

	// SongByID fetches one song by its catalog id.
	SongByID(ctx context.Context, id string) (*models.Song, error)

	// AlbumByID fetches an album with its tracklist.
	AlbumByID(ctx context.Context, id string) (*AlbumInfo, error)

	// AlbumsByQuery searches albums by name.
	AlbumsByQuery(ctx context.Context, query string, page, limit int) ([]AlbumInfo, error)

	// ArtistsByQuery searches artists by name.
	ArtistsByQuery(ctx context.Context, query string, page, limit int) ([]ArtistInfo, error)

	// ArtistsByLanguage merges the two curated artist queries for a
	// language into one deduplicated list.
	ArtistsByLanguage(ctx context.Context, language string) ([]ArtistInfo, error)

	// ArtistAlbums pages through an artist's albums.
	ArtistAlbums(ctx context.Context, artistID string, page, limit int) (*ArtistAlbumsPage, error)
}
