package search

import (
	"musichub/internal/index"
)

// localPass scores what the index already holds before any upstream
// call. Admitted entries are bumped afterwards so repeat queries keep
// them resident.
func (e *Engine) localPass(set *rankedSet, qc queryContext) {
	limit := e.tuning.LocalResultCap
	admitted := 0
	var hits []string

	e.index.Each(func(entry *index.Entry) bool {
		if tier, score, ok := scoreEntry(entry, qc, sourceLocal, 0); ok {
			set.add(entry.Song, tier, score)
			hits = append(hits, entry.Song.ID)
			admitted++
		}
		return admitted < limit
	})

	// Touch takes the write lock, so it has to happen after the walk.
	for _, id := range hits {
		e.index.Touch(id)
	}
}
