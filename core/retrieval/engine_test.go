package retrieval

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/LukeBaker08/velosight/model"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProjectSearcher struct {
	mu         sync.Mutex
	calls      []model.Source
	limits     map[model.Source]int
	projectIDs []uuid.UUID
	failOn     model.Source
	chunks     map[model.Source][]*model.RetrievedChunk
}

func (s *stubProjectSearcher) SearchBySimilarity(embedding []float32, limit int, category model.Source, projectID uuid.UUID) ([]*model.RetrievedChunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, category)
	if s.limits == nil {
		s.limits = map[model.Source]int{}
	}
	s.limits[category] = limit
	s.projectIDs = append(s.projectIDs, projectID)
	if s.failOn == category {
		return nil, fmt.Errorf("index unavailable")
	}
	return s.chunks[category], nil
}

type stubFrameworkSearcher struct {
	mu            sync.Mutex
	calls         int
	limit         int
	materialTypes []string
	fail          bool
	chunks        []*model.RetrievedChunk
}

func (s *stubFrameworkSearcher) SearchBySimilarity(embedding []float32, limit int, materialType string) ([]*model.RetrievedChunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.limit = limit
	s.materialTypes = append(s.materialTypes, materialType)
	if s.fail {
		return nil, fmt.Errorf("index unavailable")
	}
	return s.chunks, nil
}

func countingEmbedder(calls *int) EmbedFunc {
	return func(text string) ([]float32, error) {
		*calls++
		return []float32{1, 0, 0, 0}, nil
	}
}

func TestEngineRetrieveAll(t *testing.T) {
	projectID := uuid.New()

	t.Run("Embeds once and fans out to all four sources", func(t *testing.T) {
		project := &stubProjectSearcher{
			chunks: map[model.Source][]*model.RetrievedChunk{
				model.SourceProject:   {{ID: "p1", Score: 0.9, Source: model.SourceProject}},
				model.SourceContext:   {{ID: "c1", Score: 0.8, Source: model.SourceContext}},
				model.SourceSentiment: {{ID: "s1", Score: 0.7, Source: model.SourceSentiment}},
			},
		}
		framework := &stubFrameworkSearcher{
			chunks: []*model.RetrievedChunk{{ID: "f1", Score: 0.6, Source: model.SourceFramework}},
		}
		embedCalls := 0
		engine := NewEngine(project, framework, countingEmbedder(&embedCalls), nil)

		plan := model.DefaultRetrievalPlan()
		plan.Filters.ProjectID = projectID
		plan.Filters.MaterialType = "gateway-review"

		buckets, err := engine.RetrieveAll(context.Background(), "assess delivery risk", plan)

		require.NoError(t, err)
		assert.Equal(t, 1, embedCalls, "Expected exactly one embedding call shared across searches")
		assert.ElementsMatch(t, []model.Source{model.SourceProject, model.SourceContext, model.SourceSentiment}, project.calls)
		assert.Equal(t, 1, framework.calls)
		assert.Equal(t, []string{"gateway-review"}, framework.materialTypes)
		for _, pid := range project.projectIDs {
			assert.Equal(t, projectID, pid)
		}

		assert.Equal(t, 4, buckets.Count())
		assert.Equal(t, "p1", buckets[model.SourceProject][0].ID)
		assert.Equal(t, "f1", buckets[model.SourceFramework][0].ID)
	})

	t.Run("Per-source limits come from the plan", func(t *testing.T) {
		project := &stubProjectSearcher{}
		framework := &stubFrameworkSearcher{}
		embedCalls := 0
		engine := NewEngine(project, framework, countingEmbedder(&embedCalls), nil)

		plan := model.DefaultRetrievalPlan()
		_, err := engine.RetrieveAll(context.Background(), "query", plan)

		require.NoError(t, err)
		assert.Equal(t, 4, project.limits[model.SourceProject])
		assert.Equal(t, 3, project.limits[model.SourceContext])
		assert.Equal(t, 2, project.limits[model.SourceSentiment])
		assert.Equal(t, 6, framework.limit)
	})

	t.Run("Embedding failure fails the whole retrieval", func(t *testing.T) {
		project := &stubProjectSearcher{}
		framework := &stubFrameworkSearcher{}
		failing := func(text string) ([]float32, error) {
			return nil, fmt.Errorf("embedding backend down")
		}
		engine := NewEngine(project, framework, failing, nil)

		_, err := engine.RetrieveAll(context.Background(), "query", nil)

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "embedding backend down")
		assert.Empty(t, project.calls, "Expected no searches after a failed embedding")
		assert.Equal(t, 0, framework.calls)
	})

	t.Run("A failing source search fails the whole retrieval", func(t *testing.T) {
		project := &stubProjectSearcher{failOn: model.SourceSentiment}
		framework := &stubFrameworkSearcher{}
		embedCalls := 0
		engine := NewEngine(project, framework, countingEmbedder(&embedCalls), nil)

		buckets, err := engine.RetrieveAll(context.Background(), "query", nil)

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "sentiment")
		assert.Nil(t, buckets, "Expected no partial buckets")
	})

	t.Run("Failing framework search fails the whole retrieval", func(t *testing.T) {
		project := &stubProjectSearcher{}
		framework := &stubFrameworkSearcher{fail: true}
		embedCalls := 0
		engine := NewEngine(project, framework, countingEmbedder(&embedCalls), nil)

		buckets, err := engine.RetrieveAll(context.Background(), "query", nil)

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "framework")
		assert.Nil(t, buckets)
	})

	t.Run("Invalid plan is rejected before embedding", func(t *testing.T) {
		project := &stubProjectSearcher{}
		framework := &stubFrameworkSearcher{}
		embedCalls := 0
		engine := NewEngine(project, framework, countingEmbedder(&embedCalls), nil)

		plan := &model.RetrievalPlan{PerSourceK: map[model.Source]int{model.SourceProject: -1}}
		_, err := engine.RetrieveAll(context.Background(), "query", plan)

		assert.Error(t, err)
		assert.Equal(t, 0, embedCalls, "Expected plan validation before the embedding call")
	})

	t.Run("Nil plan uses defaults", func(t *testing.T) {
		project := &stubProjectSearcher{}
		framework := &stubFrameworkSearcher{}
		embedCalls := 0
		engine := NewEngine(project, framework, countingEmbedder(&embedCalls), nil)

		buckets, err := engine.RetrieveAll(context.Background(), "query", nil)

		require.NoError(t, err)
		assert.NotNil(t, buckets)
		assert.Equal(t, 6, framework.limit)
	})
}
