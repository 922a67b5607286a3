package testutil

import (
	"context"

	"musichub/internal/catalog"
	"musichub/internal/models"
)

// MockAdapter implements catalog.Adapter with per-operation hooks.
// Unset hooks return empty results so tests only wire what they assert.
type MockAdapter struct {
	PrimarySongsFn      func(ctx context.Context, query string, page, limit int) ([]models.Song, error)
	FallbackSongsFn     func(ctx context.Context, query string) ([]models.Song, error)
	BroadSearchFn       func(ctx context.Context, query string) (*catalog.BroadResult, error)
	SongByIDFn          func(ctx context.Context, id string) (*models.Song, error)
	AlbumByIDFn         func(ctx context.Context, id string) (*catalog.AlbumInfo, error)
	AlbumsByQueryFn     func(ctx context.Context, query string, page, limit int) ([]catalog.AlbumInfo, error)
	ArtistsByQueryFn    func(ctx context.Context, query string, page, limit int) ([]catalog.ArtistInfo, error)
	ArtistsByLanguageFn func(ctx context.Context, language string) ([]catalog.ArtistInfo, error)
	ArtistAlbumsFn      func(ctx context.Context, artistID string, page, limit int) (*catalog.ArtistAlbumsPage, error)
}

func (m *MockAdapter) PrimarySongs(ctx context.Context, query string, page, limit int) ([]models.Song, error) {
	if m.PrimarySongsFn != nil {
		return m.PrimarySongsFn(ctx, query, page, limit)
	}
	return []models.Song{}, nil
}

func (m *MockAdapter) FallbackSongs(ctx context.Context, query string) ([]models.Song, error) {
	if m.FallbackSongsFn != nil {
		return m.FallbackSongsFn(ctx, query)
	}
	return []models.Song{}, nil
}

func (m *MockAdapter) BroadSearch(ctx context.Context, query string) (*catalog.BroadResult, error) {
	if m.BroadSearchFn != nil {
		return m.BroadSearchFn(ctx, query)
	}
	return &catalog.BroadResult{}, nil
}

func (m *MockAdapter) SongByID(ctx context.Context, id string) (*models.Song, error) {
	if m.SongByIDFn != nil {
		return m.SongByIDFn(ctx, id)
	}
	return nil, &catalog.UpstreamError{Provider: catalog.ProviderPrimary, Operation: "songById", Kind: catalog.KindStatus, Status: 404}
}

func (m *MockAdapter) AlbumByID(ctx context.Context, id string) (*catalog.AlbumInfo, error) {
	if m.AlbumByIDFn != nil {
		return m.AlbumByIDFn(ctx, id)
	}
	return nil, &catalog.UpstreamError{Provider: catalog.ProviderPrimary, Operation: "albumById", Kind: catalog.KindStatus, Status: 404}
}

func (m *MockAdapter) AlbumsByQuery(ctx context.Context, query string, page, limit int) ([]catalog.AlbumInfo, error) {
	if m.AlbumsByQueryFn != nil {
		return m.AlbumsByQueryFn(ctx, query, page, limit)
	}
	return []catalog.AlbumInfo{}, nil
}

func (m *MockAdapter) ArtistsByQuery(ctx context.Context, query string, page, limit int) ([]catalog.ArtistInfo, error) {
	if m.ArtistsByQueryFn != nil {
		return m.ArtistsByQueryFn(ctx, query, page, limit)
	}
	return []catalog.ArtistInfo{}, nil
}

func (m *MockAdapter) ArtistsByLanguage(ctx context.Context, language string) ([]catalog.ArtistInfo, error) {
	if m.ArtistsByLanguageFn != nil {
		return m.ArtistsByLanguageFn(ctx, language)
	}
	return []catalog.ArtistInfo{}, nil
}

func (m *MockAdapter) ArtistAlbums(ctx context.Context, artistID string, page, limit int) (*catalog.ArtistAlbumsPage, error) {
	if m.ArtistAlbumsFn != nil {
		return m.ArtistAlbumsFn(ctx, artistID, page, limit)
	}
	return &catalog.ArtistAlbumsPage{Albums: []catalog.AlbumInfo{}}, nil
}

var _ catalog.Adapter = (*MockAdapter)(nil)
