package model

import (
	"fmt"

	"github.com/google/uuid"
)

// RetrievalFilters narrows the vector searches with equality constraints.
// A zero ProjectID means no project scoping; an empty MaterialType means
// framework materials of every type are searched.
type RetrievalFilters struct {
	ProjectID    uuid.UUID `json:"project_id,omitempty"`
	MaterialType string    `json:"material_type,omitempty"`
}

// RetrievalPlan is the per-call retrieval and assembly configuration.
type RetrievalPlan struct {
	// PerSourceK caps the number of chunks kept per source.
	PerSourceK map[Source]int `json:"per_source_k"`
	// MaxChars caps the length of the assembled context string.
	// Zero means unbounded.
	MaxChars int `json:"max_chars,omitempty"`
	// Filters are applied as equality constraints on the vector searches.
	Filters RetrievalFilters `json:"filters,omitempty"`
}

// DefaultRetrievalPlan returns the canonical retrieval defaults.
// The per-source table {project:4, context:3, sentiment:2, framework:6} is
// the single default used everywhere; the flat 5-per-category table that
// existed in earlier revisions is retired.
func DefaultRetrievalPlan() *RetrievalPlan {
	return &RetrievalPlan{
		PerSourceK: map[Source]int{
			SourceProject:   4,
			SourceContext:   3,
			SourceSentiment: 2,
			SourceFramework: 6,
		},
		MaxChars: 12000,
	}
}

// K returns the configured cap for a source, falling back to the canonical
// default when the plan has no entry for it.
func (p *RetrievalPlan) K(source Source) int {
	if p != nil && p.PerSourceK != nil {
		if k, ok := p.PerSourceK[source]; ok {
			return k
		}
	}
	return DefaultRetrievalPlan().PerSourceK[source]
}

// Validate checks the plan invariants: no negative per-source cap and a
// positive character budget when one is set.
func (p *RetrievalPlan) Validate() error {
	if p == nil {
		return nil
	}
	for source, k := range p.PerSourceK {
		if !source.Valid() {
			return fmt.Errorf("unknown source %q in retrieval plan", source)
		}
		if k < 0 {
			return fmt.Errorf("negative chunk cap %d for source %q", k, source)
		}
	}
	if p.MaxChars < 0 {
		return fmt.Errorf("negative max chars %d", p.MaxChars)
	}
	return nil
}

// AssembledContext is the output of context assembly.
type AssembledContext struct {
	// ContextText is the single joined string handed to the LLM.
	ContextText string `json:"context_text"`
	// UsedChunks lists the chunks included, in the order they appear in
	// ContextText. Truncation shortens the text only, never this list.
	UsedChunks []*RetrievedChunk `json:"used_chunks"`
}

// Counts returns the number of used chunks per source.
func (a *AssembledContext) Counts() ContextCounts {
	var counts ContextCounts
	for _, chunk := range a.UsedChunks {
		switch chunk.Source {
		case SourceProject:
			counts.Project++
		case SourceContext:
			counts.Context++
		case SourceSentiment:
			counts.Sentiment++
		case SourceFramework:
			counts.Framework++
		}
	}
	return counts
}
