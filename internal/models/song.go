package models

import "strings"

// Artist identifies a performing artist as the upstream catalog credits it.
type Artist struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
	URL  string `json:"url,omitempty"`
}

// ArtistCredits groups the artists credited on a song. Ranking and the
// next-track filters only consider primary credits; featured credits ride
// along for display.
type ArtistCredits struct {
	Primary  []Artist `json:"primary"`
	Featured []Artist `json:"featured,omitempty"`
}

// Album is the song's album reference as reported upstream.
type Album struct {
	ID       string `json:"id,omitempty"`
	Name     string `json:"name,omitempty"`
	Language string `json:"language,omitempty"`
	URL      string `json:"url,omitempty"`
}

// MediaURL is a quality-tagged link, used for both artwork and streams.
type MediaURL struct {
	Quality string `json:"quality"`
	URL     string `json:"url"`
}

// Ranking is the reranker's annotation attached to a song before it is
// returned. Component scores are rounded to four decimals.
type Ranking struct {
	FinalScore       float64 `json:"finalScore"`
	TextRankScore    float64 `json:"textRankScore"`
	PreferenceMatch  float64 `json:"preferenceMatch"`
	PopularityScore  float64 `json:"popularityScore"`
	InteractionScore float64 `json:"interactionScore"`
	NeuralScore      float64 `json:"neuralScore"`
}

// Song is the unified record every provider response is normalized into.
// All ranking, caching and indexing operates on this shape only; nothing
// downstream of the catalog adapter sees provider-specific fields.
type Song struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Language     string        `json:"language,omitempty"`
	Genre        string        `json:"genre,omitempty"`
	Year         int           `json:"year,omitempty"`
	Duration     int           `json:"duration,omitempty"` // seconds
	PlayCount    int64         `json:"playCount,omitempty"`
	Album        Album         `json:"album"`
	Artists      ArtistCredits `json:"artists"`
	Images       []MediaURL    `json:"image,omitempty"`
	DownloadURLs []MediaURL    `json:"downloadUrl,omitempty"`
	URL          string        `json:"url,omitempty"`

	// Annotations added by the ranking layers; never populated upstream.
	Ranking    *Ranking `json:"_ranking,omitempty"`
	RecScore   float64  `json:"_recScore,omitempty"`
	NextReason string   `json:"_nextReason,omitempty"`
}

// PrimaryArtistNames returns the primary credit names in order.
func (s *Song) PrimaryArtistNames() []string {
	names := make([]string, 0, len(s.Artists.Primary))
	for _, a := range s.Artists.Primary {
		if a.Name != "" {
			names = append(names, a.Name)
		}
	}
	return names
}

// PrimaryArtistIDs returns the non-empty primary credit ids.
func (s *Song) PrimaryArtistIDs() []string {
	ids := make([]string, 0, len(s.Artists.Primary))
	for _, a := range s.Artists.Primary {
		if a.ID != "" {
			ids = append(ids, a.ID)
		}
	}
	return ids
}

// ArtistLine joins the primary credits into a single display string.
func (s *Song) ArtistLine() string {
	return strings.Join(s.PrimaryArtistNames(), ", ")
}

// BestImage picks the highest-quality artwork URL. Providers list artwork
// in ascending quality, so the last non-empty entry wins.
func (s *Song) BestImage() string {
	for i := len(s.Images) - 1; i >= 0; i-- {
		if s.Images[i].URL != "" {
			return s.Images[i].URL
		}
	}
	return ""
}

// Clone returns a copy safe to annotate without mutating cached state.
// Slice headers are re-sliced rather than deep-copied: callers only ever
// replace annotation fields, never elements.
func (s Song) Clone() Song {
	c := s
	if s.Ranking != nil {
		r := *s.Ranking
		c.Ranking = &r
	}
	return c
}
