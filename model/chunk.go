package model

import (
	"time"

	"github.com/google/uuid"
)

// Source identifies which logical retrieval bucket a chunk came from.
type Source string

const (
	SourceProject   Source = "project"
	SourceContext   Source = "context"
	SourceSentiment Source = "sentiment"
	SourceFramework Source = "framework"
)

// Sources lists all sources in the canonical assembly order:
// project, context, sentiment, framework.
var Sources = []Source{SourceProject, SourceContext, SourceSentiment, SourceFramework}

// Valid reports whether s is one of the four known sources.
func (s Source) Valid() bool {
	switch s {
	case SourceProject, SourceContext, SourceSentiment, SourceFramework:
		return true
	}
	return false
}

// RetrievedChunk is one scored unit of retrieved text. It exists only for the
// duration of one orchestration pass and is never persisted directly.
type RetrievedChunk struct {
	ID       string   `json:"id"`
	Content  string   `json:"content"`
	Score    float64  `json:"score"`
	Source   Source   `json:"source"`
	Metadata Metadata `json:"metadata,omitempty"`
}

// Buckets holds the retrieval results per source for a single query.
type Buckets map[Source][]*RetrievedChunk

// Count returns the total number of chunks across all sources.
func (b Buckets) Count() int {
	n := 0
	for _, chunks := range b {
		n += len(chunks)
	}
	return n
}

// IndexedChunk is a chunk as stored in one of the two vector indexes.
// For framework chunks ProjectID is uuid.Nil and Category is SourceFramework.
type IndexedChunk struct {
	ID           string    `json:"id"`
	DocumentID   uuid.UUID `json:"document_id"`
	ProjectID    uuid.UUID `json:"project_id,omitempty"`
	Category     Source    `json:"category"`
	MaterialType string    `json:"material_type,omitempty"`
	Content      string    `json:"content"`
	Embedding    []float32 `json:"embedding,omitempty"`
	ChunkIndex   int       `json:"chunk_index"`
	ChunkCount   int       `json:"chunk_count"`
	Metadata     Metadata  `json:"metadata,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
