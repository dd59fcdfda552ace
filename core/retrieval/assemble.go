package retrieval

import (
	"fmt"
	"strings"

	"github.com/LukeBaker08/velosight/model"
)

// chunkSeparator delimits chunk blocks in the assembled context so the
// generation model can distinguish chunk boundaries.
const chunkSeparator = "\n\n---\n\n"

// AssembleContext selects the top unique chunks per source and renders them
// into one context string. Sources are always emitted in the canonical order
// project, context, sentiment, framework, regardless of retrieval completion
// order. When the rendered text exceeds plan.MaxChars it is truncated to
// exactly MaxChars characters; truncation may cut a chunk mid-content.
func AssembleContext(buckets model.Buckets, plan *model.RetrievalPlan) *model.AssembledContext {
	if plan == nil {
		plan = model.DefaultRetrievalPlan()
	}

	var used []*model.RetrievedChunk
	for _, source := range model.Sources {
		used = append(used, PickTopUnique(buckets[source], plan.K(source))...)
	}

	blocks := make([]string, 0, len(used))
	for _, chunk := range used {
		blocks = append(blocks, fmt.Sprintf("[#%s:%s | score=%.3f]\n%s", chunk.Source, chunk.ID, chunk.Score, chunk.Content))
	}

	contextText := strings.Join(blocks, chunkSeparator)
	if plan.MaxChars > 0 {
		runes := []rune(contextText)
		if len(runes) > plan.MaxChars {
			contextText = string(runes[:plan.MaxChars])
		}
	}

	return &model.AssembledContext{
		ContextText: contextText,
		UsedChunks:  used,
	}
}
