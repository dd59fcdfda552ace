package pipeline

import (
	"fmt"

	"github.com/LukeBaker08/velosight/model"
)

// ChunkFunc is a function that splits text into ordered chunks.
type ChunkFunc func(text string) ([]TextChunk, error)

// EmbedFunc is a function that generates embeddings for text
type EmbedFunc func(text string) ([]float32, error)

// TextChunk represents one chunk of a split document before embedding.
type TextChunk struct {
	Content  string
	Index    int
	Count    int
	Metadata map[string]interface{}
}

// Pipeline combines chunking and embedding functions
type Pipeline struct {
	Chunker  ChunkFunc
	Embedder EmbedFunc
}

// NewPipeline creates a new processing pipeline
func NewPipeline(chunker ChunkFunc, embedder EmbedFunc) *Pipeline {
	return &Pipeline{
		Chunker:  chunker,
		Embedder: embedder,
	}
}

// Process splits a document into chunks and embeds each of them. Chunk IDs
// are derived from the document RID and the chunk index, so re-processing the
// same document overwrites its previous chunks on insert.
func (p *Pipeline) Process(doc *model.Document) ([]*model.IndexedChunk, error) {
	if doc == nil {
		return nil, fmt.Errorf("document is nil")
	}

	textChunks, err := p.Chunker(doc.Content)
	if err != nil {
		return nil, err
	}

	chunks := make([]*model.IndexedChunk, 0, len(textChunks))
	for _, tc := range textChunks {
		embedding, err := p.Embedder(tc.Content)
		if err != nil {
			return nil, err
		}

		metadata := model.Metadata{"document_name": doc.Name}
		for k, v := range doc.Metadata {
			metadata[k] = v
		}
		for k, v := range tc.Metadata {
			metadata[k] = v
		}

		chunk := &model.IndexedChunk{
			ID:           fmt.Sprintf("%s-%d", doc.RID, tc.Index),
			DocumentID:   doc.RID,
			ProjectID:    doc.ProjectID,
			Category:     doc.Category,
			MaterialType: doc.MaterialType,
			Content:      tc.Content,
			Embedding:    embedding,
			ChunkIndex:   tc.Index,
			ChunkCount:   tc.Count,
			Metadata:     metadata,
		}
		chunks = append(chunks, chunk)
	}

	return chunks, nil
}
