// Package rerank reorders candidate songs with a blended
// personalization score: a rule blend over eight features plus a small
// fixed-weight neural head, both computed against the user's realtime
// profile.
package rerank

import (
	"hash/fnv"
	"io"
	"math"
	"sort"
	"strconv"

	"musichub/internal/models"
	"musichub/internal/normalize"
	"musichub/internal/profile"
)

const (
	embeddingDim = 16

	// embedding contribution weights
	favoriteArtistWeight = 2.4
	songArtistWeight     = 1.0
	songLanguageWeight   = 1.0
	songIDWeight         = 0.6

	maxEmbeddingTerms        = 20
	maxEmbeddingInteractions = 200
)

type vector [embeddingDim]float64

// signedHash maps a token to a stable value in [-96, 96]. Division by
// 97 at the call sites lands each component just inside (-1, 1).
func signedHash(s string) float64 {
	h := fnv.New32a()
	io.WriteString(h, s)
	return float64(int32(h.Sum32()%193) - 96)
}

// accumulate spreads one weighted token across all dimensions. The
// per-dimension salt keeps a token from exciting every axis equally.
func (v *vector) accumulate(token string, w float64) {
	if w == 0 {
		return
	}
	for i := 0; i < embeddingDim; i++ {
		v[i] += signedHash(token+"#"+strconv.Itoa(i)) / 97 * w
	}
}

func (v *vector) l2normalize() {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	if sum == 0 {
		return
	}
	norm := math.Sqrt(sum)
	for i := range v {
		v[i] /= norm
	}
}

// similarity maps the dot product of two normalized vectors to [0, 1].
func similarity(a, b vector) float64 {
	var dot float64
	for i := 0; i < embeddingDim; i++ {
		dot += a[i] * b[i]
	}
	return clamp01((dot + 1) / 2)
}

func clamp01(x float64) float64 {
	return math.Min(1, math.Max(0, x))
}

func clampRange(x, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, x))
}

// userVector projects the profile into the shared embedding space.
// Favorite artists hash to the same artist:<name> tokens songs use, so
// a favorite and that artist's songs land on the same axes.
func userVector(p *profile.RealtimeProfile) vector {
	var v vector
	for _, a := range p.FavoriteArtists {
		if name := normalize.Normalize(a.Name); name != "" {
			v.accumulate("artist:"+name, favoriteArtistWeight)
		}
	}
	for lang, aff := range p.LanguageAffinity {
		v.accumulate("language:"+lang, 0.9+clampRange(aff, -2, 8)*0.08)
	}
	for name, aff := range p.ArtistAffinity {
		v.accumulate("artist:"+name, clampRange(aff, -4, 10)*0.25)
	}

	terms := p.SearchTerms
	if len(terms) > maxEmbeddingTerms {
		terms = terms[:maxEmbeddingTerms]
	}
	for i, term := range terms {
		w := 1 / (1 + float64(i)*0.45)
		for _, tok := range normalize.Tokens(term) {
			v.accumulate(tok, w)
		}
	}

	for _, it := range recentInteractions(p.SongInteractions, maxEmbeddingInteractions) {
		v.accumulate("song:"+it.id, it.inter.Affinity*0.15)
		if name := normalize.Normalize(it.inter.Artist); name != "" {
			v.accumulate("artist:"+name, it.inter.Affinity*0.08)
		}
		if it.inter.Language != "" {
			v.accumulate("language:"+it.inter.Language, it.inter.Affinity*0.06)
		}
	}

	v.l2normalize()
	return v
}

type keyedInteraction struct {
	id    string
	inter profile.Interaction
}

// recentInteractions orders a profile's interaction map newest first so
// the cap keeps what the user touched most recently. The id tie-break
// keeps map iteration order out of the result.
func recentInteractions(m map[string]profile.Interaction, max int) []keyedInteraction {
	items := make([]keyedInteraction, 0, len(m))
	for id, inter := range m {
		items = append(items, keyedInteraction{id: id, inter: inter})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].inter.LastPlayed != items[j].inter.LastPlayed {
			return items[i].inter.LastPlayed > items[j].inter.LastPlayed
		}
		return items[i].id < items[j].id
	})
	if len(items) > max {
		items = items[:max]
	}
	return items
}

// songVector projects a song's extracted fields the same way.
func songVector(song *models.Song) vector {
	var v vector
	for _, name := range song.PrimaryArtistNames() {
		if n := normalize.Normalize(name); n != "" {
			v.accumulate("artist:"+n, songArtistWeight)
		}
	}
	if lang := normalize.Language(song.Language); lang != "" {
		v.accumulate("language:"+lang, songLanguageWeight)
	}
	if song.ID != "" {
		v.accumulate("song:"+song.ID, songIDWeight)
	}
	for i, tok := range normalize.Tokens(song.Name) {
		v.accumulate(tok, 1/(1+float64(i)*0.45))
	}
	v.l2normalize()
	return v
}
