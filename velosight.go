package velosight

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/LukeBaker08/velosight/core/analysis"
	"github.com/LukeBaker08/velosight/core/llm"
	"github.com/LukeBaker08/velosight/core/pipeline"
	"github.com/LukeBaker08/velosight/core/retrieval"
	"github.com/LukeBaker08/velosight/database"
	"github.com/LukeBaker08/velosight/helper"
	"github.com/LukeBaker08/velosight/model"
	loadSql "github.com/LukeBaker08/velosight/sql"
)

// VeloSight provides a unified interface to the ingestion pipeline, the
// retrieval engine and the analysis orchestrator
type VeloSight struct {
	DB              *helper.Database
	ProjectChunks   *database.ProjectChunksDBHandler
	FrameworkChunks *database.FrameworkChunksDBHandler
	AnalysisTypes   *database.AnalysisTypesDBHandler
	AnalysisResults *database.AnalysisResultsDBHandler
	Pipeline        *pipeline.Pipeline // Optional chunking pipeline
	Engine          *retrieval.Engine  // Four-source retrieval engine
	Orchestrator    *analysis.Orchestrator
	// Logging
	log *slog.Logger
}

// New creates a new VeloSight instance with all handlers initialized
func New(config *helper.DatabaseConfiguration, embeddingDim int) (*VeloSight, error) {
	// Logger
	opts := helper.PrettyHandlerOptions{
		SlogOpts: slog.HandlerOptions{
			Level: slog.LevelInfo,
		},
	}
	logger := slog.New(helper.NewPrettyHandler(os.Stdout, opts))

	// Initialize database
	db := helper.NewDatabase("velosight", config, logger)
	err := loadSql.Init(db.Instance)
	if err != nil {
		return nil, helper.NewError("initialize database extensions", err)
	}

	// force=false to not reload if functions already exist
	projectChunks, err := database.NewProjectChunksDBHandler(db, embeddingDim, false)
	if err != nil {
		return nil, helper.NewError("create project chunks handler", err)
	}

	frameworkChunks, err := database.NewFrameworkChunksDBHandler(db, embeddingDim, false)
	if err != nil {
		return nil, helper.NewError("create framework chunks handler", err)
	}

	analysisTypes, err := database.NewAnalysisTypesDBHandler(db, false)
	if err != nil {
		return nil, helper.NewError("create analysis types handler", err)
	}

	analysisResults, err := database.NewAnalysisResultsDBHandler(db, false)
	if err != nil {
		return nil, helper.NewError("create analysis results handler", err)
	}

	v := &VeloSight{
		DB:              db,
		ProjectChunks:   projectChunks,
		FrameworkChunks: frameworkChunks,
		AnalysisTypes:   analysisTypes,
		AnalysisResults: analysisResults,
		log:             logger,
	}

	// The engine resolves its embedder through the instance so the pipeline
	// can be set after construction
	v.Engine = retrieval.NewEngine(projectChunks, frameworkChunks, v.embed, logger)

	return v, nil
}

// Close closes the database connection
func (v *VeloSight) Close() error {
	if v.DB != nil && v.DB.Instance != nil {
		return v.DB.Instance.Close()
	}
	return nil
}

// SetPipeline sets the chunking pipeline for document processing
func (v *VeloSight) SetPipeline(pipeline *pipeline.Pipeline) {
	v.Pipeline = pipeline
}

// UseDefaultPipeline sets up the default chunking and embedding pipeline.
// This uses the windowed chunker with 1000 char windows and 150 char overlap,
// and DefaultEmbedder with the all-MiniLM-L6-v2 model (384 dimensions)
func (v *VeloSight) UseDefaultPipeline() error {
	chunker := pipeline.DefaultChunker()
	embedder, err := pipeline.DefaultEmbedder()
	if err != nil {
		return helper.NewError("create default embedder", err)
	}

	v.Pipeline = pipeline.NewPipeline(chunker, embedder)
	return nil
}

// SetGenerator wires a generation client and builds the analysis
// orchestrator on top of the retrieval engine
func (v *VeloSight) SetGenerator(generator llm.Generator) {
	v.Orchestrator = analysis.NewOrchestrator(v.AnalysisTypes, v.Engine, generator, v.AnalysisResults, v.log)
}

// UseOpenAIGenerator builds a generation client from the OPENAI_* environment
// variables and wires it through SetGenerator
func (v *VeloSight) UseOpenAIGenerator() error {
	generator, err := llm.NewOpenAIGenerator()
	if err != nil {
		return helper.NewError("create generation client", err)
	}
	v.SetGenerator(generator)
	return nil
}

// ProcessAndIndexDocument processes a document by:
// 1. Chunking and embedding the content through the pipeline
// 2. Deleting any previously indexed chunks of the same document
// 3. Inserting all chunks into the index its category maps to
// Project, context and sentiment documents go to the project index scoped by
// ProjectID, framework documents go to the shared framework index.
// Returns the number of chunks inserted and any error encountered.
func (v *VeloSight) ProcessAndIndexDocument(doc *model.Document) (int, error) {
	if v.Pipeline == nil {
		return 0, helper.NewError("process document", fmt.Errorf("pipeline not set, use SetPipeline() first"))
	}

	if doc == nil || doc.Content == "" {
		return 0, helper.NewError("process document", fmt.Errorf("document content is empty"))
	}

	if !doc.Category.Valid() {
		return 0, helper.NewError("process document", fmt.Errorf("invalid document category %q", doc.Category))
	}

	chunks, err := v.Pipeline.Process(doc)
	if err != nil {
		return 0, helper.NewError("process chunks", err)
	}

	v.log.Info("Processed document into chunks", slog.Int("num_chunks", len(chunks)), slog.String("document", doc.Name))

	if doc.Category == model.SourceFramework {
		if err := v.FrameworkChunks.DeleteChunksByDocument(doc.RID); err != nil {
			return 0, helper.NewError("delete previous chunks", err)
		}
		for i, chunk := range chunks {
			if err := v.FrameworkChunks.InsertChunk(chunk); err != nil {
				return i, helper.NewError(fmt.Sprintf("insert chunk %d", i), err)
			}
		}
		return len(chunks), nil
	}

	if err := v.ProjectChunks.DeleteChunksByDocument(doc.RID); err != nil {
		return 0, helper.NewError("delete previous chunks", err)
	}
	for i, chunk := range chunks {
		if err := v.ProjectChunks.InsertChunk(chunk); err != nil {
			return i, helper.NewError(fmt.Sprintf("insert chunk %d", i), err)
		}
	}
	return len(chunks), nil
}

// Search runs the four-source retrieval fan-out for a query
func (v *VeloSight) Search(ctx context.Context, query string, plan *model.RetrievalPlan) (model.Buckets, error) {
	if v.Engine == nil {
		return nil, helper.NewError("search", fmt.Errorf("retrieval engine not initialized"))
	}
	return v.Engine.RetrieveAll(ctx, query, plan)
}

// RunAnalysis executes one analysis end to end. Pipeline failures are
// reported inside the result, not as a returned error.
func (v *VeloSight) RunAnalysis(ctx context.Context, req *model.AnalysisRequest) (*model.AnalysisResult, error) {
	if v.Orchestrator == nil {
		return nil, helper.NewError("run analysis", fmt.Errorf("generator not set, use SetGenerator() first"))
	}
	return v.Orchestrator.Run(ctx, req), nil
}

// ChangeIndexType changes the vector index type between HNSW and IVFFlat on
// both chunk tables
func (v *VeloSight) ChangeIndexType(ctx context.Context, indexType string, params map[string]interface{}) error {
	if err := v.ProjectChunks.ChangeIndexType(ctx, indexType, params); err != nil {
		return err
	}
	return v.FrameworkChunks.ChangeIndexType(ctx, indexType, params)
}

// embed resolves the query embedder from the configured pipeline
func (v *VeloSight) embed(text string) ([]float32, error) {
	if v.Pipeline == nil || v.Pipeline.Embedder == nil {
		return nil, fmt.Errorf("pipeline with embedder not set, use SetPipeline() first")
	}
	return v.Pipeline.Embedder(text)
}
