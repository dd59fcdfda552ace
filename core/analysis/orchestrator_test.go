package analysis

import (
	"context"
	"fmt"
	"testing"

	"github.com/LukeBaker08/velosight/core/llm"
	"github.com/LukeBaker08/velosight/model"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTypeStore struct {
	calls int
	types map[string]*model.AnalysisType
	err   error
}

func (s *stubTypeStore) SelectAnalysisType(key string) (*model.AnalysisType, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.types[key], nil
}

type stubRetriever struct {
	calls   int
	queries []string
	plans   []*model.RetrievalPlan
	buckets model.Buckets
	err     error
}

func (s *stubRetriever) RetrieveAll(ctx context.Context, query string, plan *model.RetrievalPlan) (model.Buckets, error) {
	s.calls++
	s.queries = append(s.queries, query)
	s.plans = append(s.plans, plan)
	if s.err != nil {
		return nil, s.err
	}
	return s.buckets, nil
}

type stubGenerator struct {
	calls   int
	systems []string
	users   []string
	opts    []*llm.Options
	outputs []string
	err     error
}

func (s *stubGenerator) Generate(ctx context.Context, system string, user string, opts *llm.Options) (string, error) {
	s.calls++
	s.systems = append(s.systems, system)
	s.users = append(s.users, user)
	s.opts = append(s.opts, opts)
	if s.err != nil {
		return "", s.err
	}
	if len(s.outputs) == 0 {
		return `{"overallRating":"Green"}`, nil
	}
	output := s.outputs[0]
	if len(s.outputs) > 1 {
		s.outputs = s.outputs[1:]
	}
	return output, nil
}

type stubResultStore struct {
	calls   int
	records []*model.AnalysisRecord
	err     error
}

func (s *stubResultStore) InsertAnalysisResult(record *model.AnalysisRecord) error {
	s.calls++
	s.records = append(s.records, record)
	return s.err
}

func riskAnalysisType() *model.AnalysisType {
	return &model.AnalysisType{
		ID:                 uuid.New(),
		Key:                "risk-analysis",
		Name:               "Risk Analysis",
		Description:        "Identify and rate delivery risks",
		SystemPrompt:       "You are a risk analyst.",
		UserPromptTemplate: "Context:\n{context}\n\nTask: {query}",
		Enabled:            true,
	}
}

func testBuckets() model.Buckets {
	return model.Buckets{
		model.SourceProject: {
			{ID: "p1", Content: "Schedule slipped.", Score: 0.9, Source: model.SourceProject},
		},
		model.SourceFramework: {
			{ID: "f1", Content: "Risk framework guidance.", Score: 0.8, Source: model.SourceFramework},
		},
	}
}

func newTestOrchestrator(types *stubTypeStore, retriever *stubRetriever, generator *stubGenerator, results *stubResultStore) *Orchestrator {
	var store ResultStore
	if results != nil {
		store = results
	}
	return NewOrchestrator(types, retriever, generator, store, nil)
}

func TestOrchestratorRun(t *testing.T) {
	ctx := context.Background()
	projectID := uuid.New()

	t.Run("Successful analysis end to end", func(t *testing.T) {
		types := &stubTypeStore{types: map[string]*model.AnalysisType{"risk-analysis": riskAnalysisType()}}
		retriever := &stubRetriever{buckets: testBuckets()}
		generator := &stubGenerator{outputs: []string{`{"OverallRating":{"riskRating":"High"},"SelfAwareness":{"ConfidenceLevelRating":{"rating":"Low"}}}`}}
		results := &stubResultStore{}
		orchestrator := newTestOrchestrator(types, retriever, generator, results)

		result := orchestrator.Run(ctx, &model.AnalysisRequest{
			ProjectID:       projectID,
			AnalysisTypeKey: "risk-analysis",
			Query:           "Assess schedule risk",
		})

		require.True(t, result.Success, "Expected success, got error: %s", result.Error)
		assert.Equal(t, "risk-analysis", result.AnalysisType)
		assert.Equal(t, "High", result.OverallRating)
		assert.Equal(t, "Low", result.Confidence)
		assert.Equal(t, 1, result.ContextCounts.Project)
		assert.Equal(t, 1, result.ContextCounts.Framework)
		assert.Equal(t, 0, result.ContextCounts.Sentiment)

		// Prompt carries the assembled context and the query
		require.Equal(t, 1, generator.calls)
		assert.Contains(t, generator.users[0], "Schedule slipped.")
		assert.Contains(t, generator.users[0], "Assess schedule risk")
		assert.Equal(t, "You are a risk analyst.", generator.systems[0])
		assert.Equal(t, float64(0), generator.opts[0].Temperature)

		// Persisted as draft with the project scope
		require.Equal(t, 1, results.calls)
		assert.Equal(t, projectID, results.records[0].ProjectID)
		assert.Equal(t, model.StatusDraft, results.records[0].Status)
		assert.Equal(t, "High", results.records[0].OverallRating)
	})

	t.Run("Unknown analysis type fails before any expensive call", func(t *testing.T) {
		types := &stubTypeStore{types: map[string]*model.AnalysisType{}}
		retriever := &stubRetriever{}
		generator := &stubGenerator{}
		orchestrator := newTestOrchestrator(types, retriever, generator, nil)

		result := orchestrator.Run(ctx, &model.AnalysisRequest{
			ProjectID:       projectID,
			AnalysisTypeKey: "nonexistent",
		})

		assert.False(t, result.Success)
		assert.Equal(t, "Analysis type 'nonexistent' not found or disabled", result.Error)
		assert.Equal(t, model.ContextCounts{}, result.ContextCounts)
		assert.Equal(t, 0, retriever.calls, "Expected no retrieval for unknown type")
		assert.Equal(t, 0, generator.calls, "Expected no generation for unknown type")
	})

	t.Run("Missing required subtype fails before retrieval", func(t *testing.T) {
		config := riskAnalysisType()
		config.Key = "gateway-review"
		config.RequiresSubtype = true
		types := &stubTypeStore{types: map[string]*model.AnalysisType{"gateway-review": config}}
		retriever := &stubRetriever{}
		generator := &stubGenerator{}
		orchestrator := newTestOrchestrator(types, retriever, generator, nil)

		result := orchestrator.Run(ctx, &model.AnalysisRequest{
			ProjectID:       projectID,
			AnalysisTypeKey: "gateway-review",
		})

		assert.False(t, result.Success)
		assert.Contains(t, result.Error, "requires a subtype")
		assert.Equal(t, 0, retriever.calls, "Expected no retrieval without the required subtype")
		assert.Equal(t, 0, generator.calls)
	})

	t.Run("Query falls back to description then synthesized default", func(t *testing.T) {
		config := riskAnalysisType()
		types := &stubTypeStore{types: map[string]*model.AnalysisType{"risk-analysis": config}}
		retriever := &stubRetriever{buckets: model.Buckets{}}
		generator := &stubGenerator{}
		orchestrator := newTestOrchestrator(types, retriever, generator, nil)

		orchestrator.Run(ctx, &model.AnalysisRequest{ProjectID: projectID, AnalysisTypeKey: "risk-analysis"})
		require.Equal(t, 1, retriever.calls)
		assert.Equal(t, "Identify and rate delivery risks", retriever.queries[0])

		config.Description = ""
		orchestrator.Run(ctx, &model.AnalysisRequest{ProjectID: projectID, AnalysisTypeKey: "risk-analysis"})
		require.Equal(t, 2, retriever.calls)
		assert.Equal(t, "Perform Risk Analysis", retriever.queries[1])
	})

	t.Run("Retrieval failure yields zero counts", func(t *testing.T) {
		types := &stubTypeStore{types: map[string]*model.AnalysisType{"risk-analysis": riskAnalysisType()}}
		retriever := &stubRetriever{err: fmt.Errorf("index down")}
		generator := &stubGenerator{}
		orchestrator := newTestOrchestrator(types, retriever, generator, nil)

		result := orchestrator.Run(ctx, &model.AnalysisRequest{ProjectID: projectID, AnalysisTypeKey: "risk-analysis"})

		assert.False(t, result.Success)
		assert.Contains(t, result.Error, "Retrieval failed")
		assert.Equal(t, model.ContextCounts{}, result.ContextCounts)
		assert.Equal(t, 0, generator.calls)
	})

	t.Run("Generation failure yields structured failure", func(t *testing.T) {
		types := &stubTypeStore{types: map[string]*model.AnalysisType{"risk-analysis": riskAnalysisType()}}
		retriever := &stubRetriever{buckets: testBuckets()}
		generator := &stubGenerator{err: fmt.Errorf("timeout")}
		orchestrator := newTestOrchestrator(types, retriever, generator, nil)

		result := orchestrator.Run(ctx, &model.AnalysisRequest{ProjectID: projectID, AnalysisTypeKey: "risk-analysis"})

		assert.False(t, result.Success)
		assert.Contains(t, result.Error, "Generation failed")
		assert.Equal(t, model.ContextCounts{}, result.ContextCounts)
	})

	t.Run("Malformed output is repaired through the generator", func(t *testing.T) {
		types := &stubTypeStore{types: map[string]*model.AnalysisType{"risk-analysis": riskAnalysisType()}}
		retriever := &stubRetriever{buckets: testBuckets()}
		generator := &stubGenerator{outputs: []string{
			`{"overallRating": broken`,
			`{"overallRating":"Amber"}`,
		}}
		orchestrator := newTestOrchestrator(types, retriever, generator, nil)

		result := orchestrator.Run(ctx, &model.AnalysisRequest{ProjectID: projectID, AnalysisTypeKey: "risk-analysis"})

		require.True(t, result.Success, "Expected repaired run to succeed, got: %s", result.Error)
		assert.Equal(t, "Amber", result.OverallRating)
		assert.Equal(t, 2, generator.calls, "Expected one generation plus one repair call")
	})

	t.Run("Unrepairable output becomes an analysis failure", func(t *testing.T) {
		types := &stubTypeStore{types: map[string]*model.AnalysisType{"risk-analysis": riskAnalysisType()}}
		retriever := &stubRetriever{buckets: testBuckets()}
		generator := &stubGenerator{outputs: []string{"not json"}}
		orchestrator := newTestOrchestrator(types, retriever, generator, nil)

		result := orchestrator.Run(ctx, &model.AnalysisRequest{ProjectID: projectID, AnalysisTypeKey: "risk-analysis"})

		assert.False(t, result.Success)
		assert.Contains(t, result.Error, "Output validation failed")
		assert.Equal(t, 3, generator.calls, "Expected one generation plus the full repair budget")
	})

	t.Run("Persistence failure does not fail the analysis", func(t *testing.T) {
		types := &stubTypeStore{types: map[string]*model.AnalysisType{"risk-analysis": riskAnalysisType()}}
		retriever := &stubRetriever{buckets: testBuckets()}
		generator := &stubGenerator{}
		results := &stubResultStore{err: fmt.Errorf("database down")}
		orchestrator := newTestOrchestrator(types, retriever, generator, results)

		result := orchestrator.Run(ctx, &model.AnalysisRequest{ProjectID: projectID, AnalysisTypeKey: "risk-analysis"})

		assert.True(t, result.Success, "Expected persistence failure to be swallowed")
		assert.Equal(t, 1, results.calls)
	})

	t.Run("Custom prompt output is wrapped in an envelope", func(t *testing.T) {
		config := riskAnalysisType()
		config.Key = CustomPromptKey
		config.Name = "Custom Prompt"
		config.Description = ""
		types := &stubTypeStore{types: map[string]*model.AnalysisType{CustomPromptKey: config}}
		retriever := &stubRetriever{buckets: testBuckets()}
		generator := &stubGenerator{outputs: []string{`{"finding":"ok"}`}}
		orchestrator := newTestOrchestrator(types, retriever, generator, nil)

		result := orchestrator.Run(ctx, &model.AnalysisRequest{
			ProjectID:       projectID,
			AnalysisTypeKey: CustomPromptKey,
			Query:           "Summarize the top risks",
		})

		require.True(t, result.Success)
		assert.Equal(t, "Summarize the top risks", result.Output["prompt"])
		assert.Equal(t, map[string]any{"finding": "ok"}, result.Output["output"])
	})

	t.Run("Non-object payload is wrapped under output", func(t *testing.T) {
		types := &stubTypeStore{types: map[string]*model.AnalysisType{"risk-analysis": riskAnalysisType()}}
		retriever := &stubRetriever{buckets: testBuckets()}
		generator := &stubGenerator{outputs: []string{`[1,2,3]`}}
		orchestrator := newTestOrchestrator(types, retriever, generator, nil)

		result := orchestrator.Run(ctx, &model.AnalysisRequest{ProjectID: projectID, AnalysisTypeKey: "risk-analysis"})

		require.True(t, result.Success)
		_, hasOutput := result.Output["output"]
		assert.True(t, hasOutput, "Expected non-object payload to be wrapped")
	})

	t.Run("Subtype is substituted into the template", func(t *testing.T) {
		config := riskAnalysisType()
		config.Key = "gateway-review"
		config.RequiresSubtype = true
		config.UserPromptTemplate = "Gate: {subtype}\n{context}\n{query}"
		types := &stubTypeStore{types: map[string]*model.AnalysisType{"gateway-review": config}}
		retriever := &stubRetriever{buckets: testBuckets()}
		generator := &stubGenerator{}
		orchestrator := newTestOrchestrator(types, retriever, generator, nil)

		result := orchestrator.Run(ctx, &model.AnalysisRequest{
			ProjectID:       projectID,
			AnalysisTypeKey: "gateway-review",
			Subtype:         "Gate 2",
		})

		require.True(t, result.Success)
		assert.Contains(t, generator.users[0], "Gate: Gate 2")
		assert.Equal(t, "Gate 2", result.AnalysisSubtype)
	})

	t.Run("Project scope flows into the retrieval plan", func(t *testing.T) {
		types := &stubTypeStore{types: map[string]*model.AnalysisType{"risk-analysis": riskAnalysisType()}}
		retriever := &stubRetriever{buckets: testBuckets()}
		generator := &stubGenerator{}
		orchestrator := newTestOrchestrator(types, retriever, generator, nil)

		orchestrator.Run(ctx, &model.AnalysisRequest{ProjectID: projectID, AnalysisTypeKey: "risk-analysis"})

		require.Equal(t, 1, retriever.calls)
		assert.Equal(t, projectID, retriever.plans[0].Filters.ProjectID)
	})

	t.Run("Caller-supplied plan is not mutated", func(t *testing.T) {
		types := &stubTypeStore{types: map[string]*model.AnalysisType{"risk-analysis": riskAnalysisType()}}
		retriever := &stubRetriever{buckets: testBuckets()}
		generator := &stubGenerator{}
		orchestrator := newTestOrchestrator(types, retriever, generator, nil)

		plan := model.DefaultRetrievalPlan()
		orchestrator.Run(ctx, &model.AnalysisRequest{
			ProjectID:       projectID,
			AnalysisTypeKey: "risk-analysis",
			Plan:            plan,
		})

		assert.Equal(t, uuid.Nil, plan.Filters.ProjectID, "Expected the caller's plan to keep its own scope")
		require.Equal(t, 1, retriever.calls)
		assert.Equal(t, projectID, retriever.plans[0].Filters.ProjectID)
	})

	t.Run("Nil request fails without panicking", func(t *testing.T) {
		orchestrator := newTestOrchestrator(&stubTypeStore{}, &stubRetriever{}, &stubGenerator{}, nil)

		result := orchestrator.Run(ctx, nil)

		assert.False(t, result.Success)
		assert.NotEmpty(t, result.Error)
	})
}
