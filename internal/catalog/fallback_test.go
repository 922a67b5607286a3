package catalog

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFallbackSongs(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "tum hi ho", r.URL.Query().Get("query"))
		writeJSON(t, w, `[
			{
				"id": "fb-1",
				"song": "Tum Hi Ho &amp; More",
				"primary_artists": "Arijit Singh, Mithoon",
				"singers": "ignored when primary present",
				"albumid": "alb-7",
				"album": "Aashiqui 2",
				"year": "2013",
				"duration": "262",
				"language": "hindi",
				"play_count": "98000000",
				"media_url": "https://cdn.legacy/stream.mp3",
				"image": "https://img.legacy/fb-1-150x150.jpg",
				"perma_url": "https://legacy.example/song/fb-1"
			},
			{"id": "", "song": "No ID"},
			{"id": "fb-3", "song": ""}
		]`)
	})

	client := newTestClient(t, mux)
	songs, err := client.FallbackSongs(context.Background(), "tum hi ho")
	require.NoError(t, err)
	require.Len(t, songs, 1, "records without id or title should be dropped")

	song := songs[0]
	assert.Equal(t, "fb-1", song.ID)
	assert.Equal(t, "Tum Hi Ho & More", song.Name, "HTML entities should be decoded")
	assert.Equal(t, "hindi", song.Language)
	assert.Equal(t, 2013, song.Year)
	assert.Equal(t, 262, song.Duration)
	assert.Equal(t, int64(98000000), song.PlayCount)
	assert.Equal(t, "Aashiqui 2", song.Album.Name)

	require.Len(t, song.Artists.Primary, 2, "comma-joined credits should split")
	assert.Equal(t, "Arijit Singh", song.Artists.Primary[0].Name)
	assert.Equal(t, "Mithoon", song.Artists.Primary[1].Name)
	assert.Empty(t, song.Artists.Primary[0].ID, "legacy records carry no artist ids")

	require.Len(t, song.DownloadURLs, 1)
	assert.Equal(t, "320kbps", song.DownloadURLs[0].Quality)
	assert.Equal(t, "https://cdn.legacy/stream.mp3", song.DownloadURLs[0].URL)

	require.Len(t, song.Images, 3, "single legacy image should expand to three sizes")
	assert.Equal(t, "50x50", song.Images[0].Quality)
	assert.Equal(t, "https://img.legacy/fb-1-50x50.jpg", song.Images[0].URL)
	assert.Equal(t, "https://img.legacy/fb-1-500x500.jpg", song.Images[2].URL)
}

func TestFallbackSongsSingersFallback(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, `[{"id": "fb-2", "song": "Kesariya", "primary_artists": "", "singers": "Arijit Singh"}]`)
	})

	client := newTestClient(t, mux)
	songs, err := client.FallbackSongs(context.Background(), "kesariya")
	require.NoError(t, err)
	require.Len(t, songs, 1)
	require.Len(t, songs[0].Artists.Primary, 1)
	assert.Equal(t, "Arijit Singh", songs[0].Artists.Primary[0].Name)
}

func TestFallbackSongsAbsence(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "http 404", status: http.StatusNotFound, body: `{"error": "not found"}`},
		{name: "empty body", status: http.StatusOK, body: ""},
		{name: "empty array", status: http.StatusOK, body: `[]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			client := newTestClient(t, mux)
			songs, err := client.FallbackSongs(context.Background(), "anything")
			require.NoError(t, err, "absence is not an error on the fallback")
			assert.Empty(t, songs)
		})
	}
}

func TestFallbackSongsMalformedBody(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, `{"unexpected": "object shape"}`)
	})

	client := newTestClient(t, mux)
	_, err := client.FallbackSongs(context.Background(), "anything")
	require.Error(t, err)

	var upstreamErr *UpstreamError
	require.ErrorAs(t, err, &upstreamErr)
	assert.Equal(t, ProviderFallback, upstreamErr.Provider)
	assert.Equal(t, KindParse, upstreamErr.Kind)
}

func TestFallbackSongsServerError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	client := newTestClient(t, mux)
	_, err := client.FallbackSongs(context.Background(), "anything")
	require.Error(t, err)

	var upstreamErr *UpstreamError
	require.ErrorAs(t, err, &upstreamErr)
	assert.Equal(t, KindStatus, upstreamErr.Kind)
	assert.Equal(t, http.StatusTooManyRequests, upstreamErr.Status)
}

func TestSynthesizeImages(t *testing.T) {
	tests := []struct {
		name     string
		imageURL string
		want     []string
	}{
		{
			name:     "sized cdn url substitutes each quality",
			imageURL: "https://img.legacy/x-150x150.jpg",
			want: []string{
				"https://img.legacy/x-50x50.jpg",
				"https://img.legacy/x-150x150.jpg",
				"https://img.legacy/x-500x500.jpg",
			},
		},
		{
			name:     "opaque url repeats unchanged",
			imageURL: "https://img.legacy/opaque.jpg",
			want: []string{
				"https://img.legacy/opaque.jpg",
				"https://img.legacy/opaque.jpg",
				"https://img.legacy/opaque.jpg",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			images := synthesizeImages(tt.imageURL)
			require.Len(t, images, 3)
			for i, want := range tt.want {
				assert.Equal(t, imageQualities[i], images[i].Quality)
				assert.Equal(t, want, images[i].URL)
			}
		})
	}

	t.Run("empty url yields nothing", func(t *testing.T) {
		assert.Nil(t, synthesizeImages(""))
	})
}

func TestArtistsFromLine(t *testing.T) {
	tests := []struct {
		name string
		line string
		want []string
	}{
		{name: "single", line: "Arijit Singh", want: []string{"Arijit Singh"}},
		{name: "comma joined", line: "Arijit Singh, Shreya Ghoshal,Pritam", want: []string{"Arijit Singh", "Shreya Ghoshal", "Pritam"}},
		{name: "html entities", line: "Simon &amp; Garfunkel", want: []string{"Simon & Garfunkel"}},
		{name: "blank segments skipped", line: "Arijit Singh, , ", want: []string{"Arijit Singh"}},
		{name: "empty", line: "", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			artists := artistsFromLine(tt.line)
			names := make([]string, 0, len(artists))
			for _, a := range artists {
				names = append(names, a.Name)
			}
			if tt.want == nil {
				assert.Empty(t, names)
				return
			}
			assert.Equal(t, tt.want, names)
		})
	}
}

func TestParseFlex(t *testing.T) {
	tests := []struct {
		name string
		data string
		want int64
	}{
		{name: "bare number", data: `2017`, want: 2017},
		{name: "quoted number", data: `"2017"`, want: 2017},
		{name: "empty string", data: `""`, want: 0},
		{name: "null", data: `null`, want: 0},
		{name: "scientific notation", data: `"2.4e8"`, want: 240000000},
		{name: "junk collapses to zero", data: `"N/A"`, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseFlex([]byte(tt.data)))
		})
	}
}
