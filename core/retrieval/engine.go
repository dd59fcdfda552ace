package retrieval

import (
	"context"
	"log/slog"
	"sync"

	"github.com/LukeBaker08/velosight/helper"
	"github.com/LukeBaker08/velosight/model"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// ProjectSearcher searches the project-scoped vector index by category.
type ProjectSearcher interface {
	SearchBySimilarity(embedding []float32, limit int, category model.Source, projectID uuid.UUID) ([]*model.RetrievedChunk, error)
}

// FrameworkSearcher searches the shared framework vector index.
type FrameworkSearcher interface {
	SearchBySimilarity(embedding []float32, limit int, materialType string) ([]*model.RetrievedChunk, error)
}

// EmbedFunc embeds a query string for similarity search.
type EmbedFunc func(text string) ([]float32, error)

// Engine fans a query out to the four retrieval sources: the project,
// context and sentiment categories of the project index plus the shared
// framework index.
type Engine struct {
	project   ProjectSearcher
	framework FrameworkSearcher
	embedder  EmbedFunc
	logger    *slog.Logger
}

// NewEngine creates a new retrieval engine.
func NewEngine(project ProjectSearcher, framework FrameworkSearcher, embedder EmbedFunc, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		project:   project,
		framework: framework,
		embedder:  embedder,
		logger:    logger,
	}
}

// RetrieveAll embeds the query once and runs the four similarity searches
// concurrently against the shared embedding. Any failing search fails the
// whole retrieval; there are no partial results.
func (e *Engine) RetrieveAll(ctx context.Context, query string, plan *model.RetrievalPlan) (model.Buckets, error) {
	if plan == nil {
		plan = model.DefaultRetrievalPlan()
	}
	if err := plan.Validate(); err != nil {
		return nil, helper.NewError("validate retrieval plan", err)
	}

	embedding, err := e.embedder(query)
	if err != nil {
		return nil, helper.NewError("embed query", err)
	}

	results := make(map[model.Source][]*model.RetrievedChunk, len(model.Sources))
	var mu sync.Mutex
	group, ctx := errgroup.WithContext(ctx)

	for _, source := range []model.Source{model.SourceProject, model.SourceContext, model.SourceSentiment} {
		group.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			chunks, err := e.project.SearchBySimilarity(embedding, plan.K(source), source, plan.Filters.ProjectID)
			if err != nil {
				return helper.NewError("search "+string(source)+" chunks", err)
			}
			mu.Lock()
			results[source] = chunks
			mu.Unlock()
			return nil
		})
	}

	group.Go(func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		chunks, err := e.framework.SearchBySimilarity(embedding, plan.K(model.SourceFramework), plan.Filters.MaterialType)
		if err != nil {
			return helper.NewError("search framework chunks", err)
		}
		mu.Lock()
		results[model.SourceFramework] = chunks
		mu.Unlock()
		return nil
	})

	if err := group.Wait(); err != nil {
		return nil, err
	}

	buckets := model.Buckets(results)

	e.logger.Debug("Retrieved chunks",
		slog.Int("project", len(buckets[model.SourceProject])),
		slog.Int("context", len(buckets[model.SourceContext])),
		slog.Int("sentiment", len(buckets[model.SourceSentiment])),
		slog.Int("framework", len(buckets[model.SourceFramework])),
	)

	return buckets, nil
}
