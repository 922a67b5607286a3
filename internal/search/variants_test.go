package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildVariants(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{
			name:  "noise stripped then truncated",
			query: "tum hi ho hindi song",
			want:  []string{"tum hi ho hindi song", "tum hi ho", "tum hi ho hindi", "tum hi"},
		},
		{
			name:  "noise only query keeps original",
			query: "hindi songs",
			want:  []string{"hindi songs", "hindi"},
		},
		{
			name:  "single long token gets shortened",
			query: "believer",
			want:  []string{"believer", "believe"},
		},
		{
			name:  "typo recovery for long tokens",
			query: "immagine dragonz",
			want:  []string{"immagine dragonz", "immagine", "immagin dragonz", "immagine dragon"},
		},
		{
			name:  "short single token has no rewrites",
			query: "ho",
			want:  []string{"ho"},
		},
		{
			name:  "empty query",
			query: "",
			want:  nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, buildVariants(tt.query))
		})
	}
}

func TestBuildVariantsNeverExceedsCap(t *testing.T) {
	got := buildVariants("some very long winded query about an obscure soundtrack")
	assert.LessOrEqual(t, len(got), maxVariants)
	assert.Equal(t, "some very long winded query about an obscure soundtrack", got[0])

	seen := make(map[string]bool)
	for _, v := range got {
		assert.False(t, seen[v], "variant %q repeated", v)
		seen[v] = true
	}
}
