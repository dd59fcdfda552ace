package retrieval

import (
	"fmt"
	"sort"

	"github.com/LukeBaker08/velosight/model"
)

// PickTopUnique returns the best-scoring unique chunks, at most limit of
// them. Chunks are ordered by score descending with a stable sort, so ties
// keep the relative order the index returned them in. Duplicate IDs collapse
// to their best-scoring occurrence. A negative limit is a programming error
// and panics.
func PickTopUnique(chunks []*model.RetrievedChunk, limit int) []*model.RetrievedChunk {
	if limit < 0 {
		panic(fmt.Sprintf("retrieval: negative limit %d", limit))
	}
	if limit == 0 || len(chunks) == 0 {
		return []*model.RetrievedChunk{}
	}

	sorted := make([]*model.RetrievedChunk, len(chunks))
	copy(sorted, chunks)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Score > sorted[j].Score
	})

	seen := make(map[string]bool, limit)
	picked := make([]*model.RetrievedChunk, 0, limit)
	for _, chunk := range sorted {
		if seen[chunk.ID] {
			continue
		}
		seen[chunk.ID] = true
		picked = append(picked, chunk)
		if len(picked) == limit {
			break
		}
	}

	return picked
}
