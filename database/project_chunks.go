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

// ProjectChunksDBHandlerFunctions defines the interface for project chunk database operations.
type ProjectChunksDBHandlerFunctions interface {
	InsertChunk(chunk *model.IndexedChunk) error
	DeleteChunksByDocument(documentID uuid.UUID) error
	SearchBySimilarity(embedding []float32, limit int, category model.Source, projectID uuid.UUID) ([]*model.RetrievedChunk, error)
}

// ProjectChunksDBHandler handles project chunk related database operations.
// Project chunks carry the per-project material split into the project,
// context and sentiment categories.
type ProjectChunksDBHandler struct {
	db *helper.Database
}

// NewProjectChunksDBHandler creates a new project chunks database handler.
// It initializes the database connection and loads chunk-related SQL functions.
// If force is true, it will reload the SQL functions even if they already exist.
func NewProjectChunksDBHandler(db *helper.Database, embeddingDim int, force bool) (*ProjectChunksDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	handler := &ProjectChunksDBHandler{
		db: db,
	}

	err := loadSql.LoadProjectChunksSql(handler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load project chunks sql", err)
	}

	err = handler.CreateTable(embeddingDim)
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized ProjectChunksDBHandler")

	return handler, nil
}

// CreateTable creates the 'project_chunks' table in the database.
// If the table already exists, it does not create it again.
// It also creates all necessary indexes.
func (h *ProjectChunksDBHandler) CreateTable(embeddingDim int) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_project_chunks($1);`, embeddingDim)
	if err != nil {
		log.Panicf("error initializing project_chunks table: %#v", err)
	}

	h.db.Logger.Info("Checked/created table project_chunks")

	return nil
}

// InsertChunk inserts a new project chunk. Inserting the same chunk ID again
// overwrites content, embedding and metadata.
func (h *ProjectChunksDBHandler) InsertChunk(chunk *model.IndexedChunk) error {
	embeddingVector := pgvector.NewVector(chunk.Embedding)
	row := h.db.Instance.QueryRow(
		`SELECT * FROM insert_project_chunk($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		chunk.ID,
		chunk.DocumentID,
		chunk.ProjectID,
		string(chunk.Category),
		chunk.Content,
		embeddingVector,
		chunk.ChunkIndex,
		chunk.ChunkCount,
		chunk.Metadata,
	)

	var category string
	err := row.Scan(
		&chunk.ID,
		&chunk.DocumentID,
		&chunk.ProjectID,
		&category,
		&chunk.Content,
		&chunk.ChunkIndex,
		&chunk.ChunkCount,
		&chunk.Metadata,
		&chunk.CreatedAt,
	)
	if err != nil {
		return helper.NewError("scan", err)
	}
	chunk.Category = model.Source(category)

	return nil
}

// DeleteChunksByDocument deletes all chunks belonging to a document.
func (h *ProjectChunksDBHandler) DeleteChunksByDocument(documentID uuid.UUID) error {
	_, err := h.db.Instance.Exec(
		`SELECT delete_project_chunks_by_document($1)`,
		documentID,
	)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}

// SearchBySimilarity performs vector similarity search over project chunks.
// Category and project filters are optional; the zero values (empty category,
// uuid.Nil) search across all categories respectively all projects.
// Results are ordered by descending cosine similarity.
func (h *ProjectChunksDBHandler) SearchBySimilarity(embedding []float32, limit int, category model.Source, projectID uuid.UUID) ([]*model.RetrievedChunk, error) {
	embeddingVector := pgvector.NewVector(embedding)

	var categoryParam interface{}
	if category != "" {
		categoryParam = string(category)
	}
	var projectParam interface{}
	if projectID != uuid.Nil {
		projectParam = projectID
	}

	rows, err := h.db.Instance.Query(
		`SELECT * FROM match_project_chunks($1, $2, $3, $4)`,
		embeddingVector,
		limit,
		categoryParam,
		projectParam,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var results []*model.RetrievedChunk
	for rows.Next() {
		chunk := &model.RetrievedChunk{Source: category}
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
