package model

import (
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Document represents a source document before indexing. Category decides
// which vector index its chunks land in: project, context and sentiment
// documents go to the project index scoped by ProjectID, framework documents
// go to the shared framework index tagged with MaterialType.
type Document struct {
	RID          uuid.UUID `json:"rid"`
	ProjectID    uuid.UUID `json:"project_id,omitempty"`
	Name         string    `json:"name"`
	Category     Source    `json:"category"`
	MaterialType string    `json:"material_type,omitempty"`
	Content      string    `json:"content,omitempty" db:"-"` // Temporary field for processing, not stored
	Metadata     Metadata  `json:"metadata,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewDocumentFromFile reads a file and creates a Document with the file content.
// The name defaults to the filename without extension.
func NewDocumentFromFile(filePath string, category Source, metadata Metadata) (*Document, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	filename := filepath.Base(filePath)
	name := filename[:len(filename)-len(filepath.Ext(filename))]
	if name == "" {
		name = filename
	}

	return &Document{
		RID:      uuid.New(),
		Name:     name,
		Category: category,
		Content:  string(content),
		Metadata: metadata,
	}, nil
}
