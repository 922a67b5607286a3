package testutil

import (
	"fmt"

	"musichub/internal/models"
)

// SongFixture builds a fully populated song for tests. The artist and
// album are derived from the id so fixtures never collide by accident.
func SongFixture(id, name, language string) models.Song {
	return models.Song{
		ID:       id,
		Name:     name,
		Language: language,
		Year:     2021,
		Duration: 240,
		Album:    models.Album{ID: "album-" + id, Name: name + " Album", Language: language},
		Artists: models.ArtistCredits{
			Primary: []models.Artist{{ID: "artist-" + id, Name: "Artist " + id}},
		},
		Images: []models.MediaURL{
			{Quality: "50x50", URL: fmt.Sprintf("https://img.example/%s-50.jpg", id)},
			{Quality: "500x500", URL: fmt.Sprintf("https://img.example/%s-500.jpg", id)},
		},
		DownloadURLs: []models.MediaURL{
			{Quality: "320kbps", URL: fmt.Sprintf("https://cdn.example/%s.mp3", id)},
		},
	}
}

// SongWithArtist overrides the fixture's primary artist credit.
func SongWithArtist(id, name, language, artistID, artistName string) models.Song {
	song := SongFixture(id, name, language)
	song.Artists.Primary = []models.Artist{{ID: artistID, Name: artistName}}
	return song
}

// SongList builds n fixtures with sequential ids in one language.
func SongList(prefix, language string, n int) []models.Song {
	songs := make([]models.Song, 0, n)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("%s-%d", prefix, i)
		songs = append(songs, SongFixture(id, "Song "+id, language))
	}
	return songs
}
