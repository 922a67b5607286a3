package handlers

import (
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"

	"musichub/internal/auth"
	"musichub/internal/catalog"
	"musichub/internal/handlers/render"
	"musichub/internal/models"
	"musichub/internal/normalize"
	"musichub/internal/rerank"
	"musichub/internal/search"
	"musichub/internal/store"
)

const (
	searchLimitMin     = 10
	searchLimitMax     = 20
	searchLimitDefault = 20
)

// songSection is one per-language bucket of the search response.
type songSection struct {
	Language string        `json:"language"`
	Songs    []models.Song `json:"songs"`

	weight float64
}

// albumSection is the same bucketing applied to broad-search albums.
type albumSection struct {
	Language string              `json:"language"`
	Albums   []catalog.AlbumInfo `json:"albums"`
}

type searchData struct {
	Songs                 []models.Song        `json:"songs"`
	Albums                []catalog.AlbumInfo  `json:"albums"`
	Artists               []catalog.ArtistInfo `json:"artists"`
	TopResult             *models.Song         `json:"topResult"`
	RelatedLanguages      []string             `json:"relatedLanguages"`
	AlbumLanguageSections []albumSection       `json:"albumLanguageSections"`
	Sections              []songSection        `json:"sections"`
}

// Search handles GET /api/search: smart search, optional personalized
// rerank, language prioritization and the sectioned response shape.
func (h *Handlers) Search(c *gin.Context) {
	query := strings.TrimSpace(c.Query("query"))
	if query == "" {
		render.BadRequest(c, "query parameter is required")
		return
	}
	page := intQuery(c, "page", 1, 1, 100)
	limit := intQuery(c, "limit", searchLimitDefault, searchLimitMin, searchLimitMax)

	uid := auth.UID(c)
	preferred := h.resolveLanguages(c, uid)

	ctx := c.Request.Context()
	var (
		wg sync.WaitGroup

		songs     []models.Song
		searchErr error

		broad *catalog.BroadResult
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		songs, searchErr = h.searcher.SmartSearch(ctx, query, search.Options{PreferredLanguages: preferred})
	}()
	go func() {
		defer wg.Done()
		// Albums and artists are garnish; a failed broad search just
		// leaves those lists empty.
		res, err := h.catalog.BroadSearch(ctx, query)
		if err != nil {
			slog.Warn("broad search for response extras failed", "query", query, "error", err)
			return
		}
		broad = res
	}()
	wg.Wait()

	if searchErr != nil {
		slog.Error("smart search failed", "query", query, "error", searchErr)
		render.Internal(c, "search is temporarily unavailable")
		return
	}

	if uid != "" && len(songs) > 0 {
		reranked, err := h.ranker.Rerank(ctx, uid, songs, rerank.Options{
			Query:              query,
			PreferredLanguages: preferred,
			Mode:               "search",
		})
		if err != nil {
			slog.Warn("search rerank failed, serving lexical order", "uid", uid, "error", err)
		} else {
			songs = reranked
		}
	}
	songs = prioritizeLanguages(songs, preferred)

	data := buildSearchData(songs, broad, page, limit)
	render.OK(c, data)
}

// resolveLanguages picks the preferred languages for this request:
// the explicit languages query parameter wins, then the user's stored
// preferences through the per-user cache.
func (h *Handlers) resolveLanguages(c *gin.Context, uid string) []string {
	if csv := strings.TrimSpace(c.Query("languages")); csv != "" {
		var langs []string
		for _, part := range strings.Split(csv, ",") {
			if lang := normalize.Language(part); lang != "" {
				langs = append(langs, lang)
			}
		}
		return langs
	}
	if uid == "" {
		return nil
	}
	if langs, ok := h.languages.get(uid); ok {
		return langs
	}
	prefs, err := h.users.Preferences(c.Request.Context(), uid)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			slog.Warn("preference read for language resolution failed", "uid", uid, "error", err)
			return nil
		}
		h.languages.put(uid, nil)
		return nil
	}
	langs := make([]string, 0, len(prefs.Languages))
	for _, l := range prefs.Languages {
		if lang := normalize.Language(l); lang != "" {
			langs = append(langs, lang)
		}
	}
	h.languages.put(uid, langs)
	return langs
}

// prioritizeLanguages stably moves songs in a preferred language ahead
// of the rest.
func prioritizeLanguages(songs []models.Song, preferred []string) []models.Song {
	if len(preferred) == 0 || len(songs) == 0 {
		return songs
	}
	set := make(map[string]bool, len(preferred))
	for _, lang := range preferred {
		set[normalize.Language(lang)] = true
	}
	matched := make([]models.Song, 0, len(songs))
	var rest []models.Song
	for _, song := range songs {
		if set[normalize.Language(song.Language)] {
			matched = append(matched, song)
		} else {
			rest = append(rest, song)
		}
	}
	return append(matched, rest...)
}

// buildSearchData assembles the response: the paged song window, the
// top result, per-language sections ordered by weight, and the album
// and artist extras from the broad search.
func buildSearchData(songs []models.Song, broad *catalog.BroadResult, page, limit int) searchData {
	data := searchData{
		Songs:                 pageWindow(songs, page, limit),
		Albums:                []catalog.AlbumInfo{},
		Artists:               []catalog.ArtistInfo{},
		RelatedLanguages:      []string{},
		AlbumLanguageSections: []albumSection{},
		Sections:              []songSection{},
	}
	if len(songs) > 0 {
		top := songs[0]
		data.TopResult = &top
	}

	seenLang := make(map[string]int) // language -> section index
	for i, song := range songs {
		lang := normalize.Language(song.Language)
		if lang == "" {
			continue
		}
		at, ok := seenLang[lang]
		if !ok {
			at = len(data.Sections)
			seenLang[lang] = at
			data.Sections = append(data.Sections, songSection{Language: lang})
			data.RelatedLanguages = append(data.RelatedLanguages, lang)
		}
		sec := &data.Sections[at]
		sec.Songs = append(sec.Songs, song)
		if song.Ranking != nil {
			sec.weight += song.Ranking.FinalScore
		} else {
			sec.weight += 1 / float64(i+1)
		}
	}
	sortSectionsByWeight(data.Sections)

	if broad != nil {
		if broad.Albums != nil {
			data.Albums = broad.Albums
		}
		if broad.Artists != nil {
			data.Artists = broad.Artists
		}
		albumLangs := make(map[string]int)
		for _, album := range broad.Albums {
			lang := normalize.Language(album.Language)
			if lang == "" {
				continue
			}
			at, ok := albumLangs[lang]
			if !ok {
				at = len(data.AlbumLanguageSections)
				albumLangs[lang] = at
				data.AlbumLanguageSections = append(data.AlbumLanguageSections, albumSection{Language: lang})
			}
			data.AlbumLanguageSections[at].Albums = append(data.AlbumLanguageSections[at].Albums, album)
		}
	}
	return data
}

func sortSectionsByWeight(sections []songSection) {
	// Insertion sort keeps equal-weight sections in first-seen order;
	// the slice is never longer than the language count.
	for i := 1; i < len(sections); i++ {
		for j := i; j > 0 && sections[j].weight > sections[j-1].weight; j-- {
			sections[j], sections[j-1] = sections[j-1], sections[j]
		}
	}
}

func pageWindow(songs []models.Song, page, limit int) []models.Song {
	start := (page - 1) * limit
	if start >= len(songs) {
		return []models.Song{}
	}
	end := start + limit
	if end > len(songs) {
		end = len(songs)
	}
	out := make([]models.Song, end-start)
	copy(out, songs[start:end])
	return out
}
