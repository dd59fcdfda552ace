package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/LukeBaker08/velosight/helper"
	"github.com/LukeBaker08/velosight/model"
	loadSql "github.com/LukeBaker08/velosight/sql"
	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

// FrameworkChunksDBHandlerFunctions defines the interface for framework chunk database operations.
type FrameworkChunksDBHandlerFunctions interface {
	InsertChunk(chunk *model.IndexedChunk) error
	DeleteChunksByDocument(documentID uuid.UUID) error
	SearchBySimilarity(embedding []float32, limit int, materialType string) ([]*model.RetrievedChunk, error)
}

// FrameworkChunksDBHandler handles framework chunk related database operations.
// Framework chunks hold organisation-wide assurance material shared across
// all projects, keyed by material type instead of project.
type FrameworkChunksDBHandler struct {
	db *helper.Database
}

// NewFrameworkChunksDBHandler creates a new framework chunks database handler.
// It initializes the database connection and loads chunk-related SQL functions.
// If force is true, it will reload the SQL functions even if they already exist.
func NewFrameworkChunksDBHandler(db *helper.Database, embeddingDim int, force bool) (*FrameworkChunksDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	handler := &FrameworkChunksDBHandler{
		db: db,
	}

	err := loadSql.LoadFrameworkChunksSql(handler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load framework chunks sql", err)
	}

	err = handler.CreateTable(embeddingDim)
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized FrameworkChunksDBHandler")

	return handler, nil
}

// CreateTable creates the 'framework_chunks' table in the database.
// If the table already exists, it does not create it again.
// It also creates all necessary indexes.
func (h *FrameworkChunksDBHandler) CreateTable(embeddingDim int) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_framework_chunks($1);`, embeddingDim)
	if err != nil {
		log.Panicf("error initializing framework_chunks table: %#v", err)
	}

	h.db.Logger.Info("Checked/created table framework_chunks")

	return nil
}

// InsertChunk inserts a new framework chunk. Inserting the same chunk ID
// again overwrites content, embedding and metadata.
func (h *FrameworkChunksDBHandler) InsertChunk(chunk *model.IndexedChunk) error {
	embeddingVector := pgvector.NewVector(chunk.Embedding)
	row := h.db.Instance.QueryRow(
		`SELECT * FROM insert_framework_chunk($1, $2, $3, $4, $5, $6, $7, $8)`,
		chunk.ID,
		chunk.DocumentID,
		chunk.MaterialType,
		chunk.Content,
		embeddingVector,
		chunk.ChunkIndex,
		chunk.ChunkCount,
		chunk.Metadata,
	)

	err := row.Scan(
		&chunk.ID,
		&chunk.DocumentID,
		&chunk.MaterialType,
		&chunk.Content,
		&chunk.ChunkIndex,
		&chunk.ChunkCount,
		&chunk.Metadata,
		&chunk.CreatedAt,
	)
	if err != nil {
		return helper.NewError("scan", err)
	}

	return nil
}

// DeleteChunksByDocument deletes all chunks belonging to a document.
func (h *FrameworkChunksDBHandler) DeleteChunksByDocument(documentID uuid.UUID) error {
	_, err := h.db.Instance.Exec(
		`SELECT delete_framework_chunks_by_document($1)`,
		documentID,
	)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}

// SearchBySimilarity performs vector similarity search over framework chunks.
// An empty materialType searches across all material types. Results are
// ordered by descending cosine similarity.
func (h *FrameworkChunksDBHandler) SearchBySimilarity(embedding []float32, limit int, materialType string) ([]*model.RetrievedChunk, error) {
	embeddingVector := pgvector.NewVector(embedding)

	var materialParam interface{}
	if materialType != "" {
		materialParam = materialType
	}

	rows, err := h.db.Instance.Query(
		`SELECT * FROM match_framework_chunks($1, $2, $3)`,
		embeddingVector,
		limit,
		materialParam,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var results []*model.RetrievedChunk
	for rows.Next() {
		chunk := &model.RetrievedChunk{Source: model.SourceFramework}
		err := rows.Scan(
			&chunk.ID,
			&chunk.Content,
			&chunk.Metadata,
			&chunk.Score,
		)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		results = append(results, chunk)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return results, nil
}
