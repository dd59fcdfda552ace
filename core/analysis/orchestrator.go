package analysis

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/LukeBaker08/velosight/core/llm"
	"github.com/LukeBaker08/velosight/core/prompt"
	"github.com/LukeBaker08/velosight/core/retrieval"
	"github.com/LukeBaker08/velosight/core/structured"
	"github.com/LukeBaker08/velosight/model"
	"github.com/google/uuid"
)

// CustomPromptKey is the analysis type for free-form user prompts. Its output
// is wrapped in a {prompt, output} envelope instead of being returned as-is.
const CustomPromptKey = "custom-prompt"

// TypeStore looks up analysis type configuration.
type TypeStore interface {
	SelectAnalysisType(key string) (*model.AnalysisType, error)
}

// Retriever runs the four-source retrieval fan-out.
type Retriever interface {
	RetrieveAll(ctx context.Context, query string, plan *model.RetrievalPlan) (model.Buckets, error)
}

// ResultStore persists completed analyses.
type ResultStore interface {
	InsertAnalysisResult(record *model.AnalysisRecord) error
}

// Orchestrator drives one analysis end to end: configuration lookup,
// retrieval, context assembly, prompt build, generation, validation and
// persistence.
type Orchestrator struct {
	types     TypeStore
	retriever Retriever
	generator llm.Generator
	results   ResultStore
	logger    *slog.Logger

	maxRepairAttempts int
}

// NewOrchestrator creates an orchestrator. The result store may be nil, in
// which case results are returned without being persisted.
func NewOrchestrator(types TypeStore, retriever Retriever, generator llm.Generator, results ResultStore, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		types:             types,
		retriever:         retriever,
		generator:         generator,
		results:           results,
		logger:            logger,
		maxRepairAttempts: structured.DefaultMaxAttempts,
	}
}

// Run executes one analysis. It never returns a Go error for pipeline
// failures: every failure is converted into a result with Success false, an
// error message and all-zero context counts. Only a persisted result carries
// non-zero counts.
func (o *Orchestrator) Run(ctx context.Context, req *model.AnalysisRequest) *model.AnalysisResult {
	if req == nil {
		return failure("", "", "missing analysis request")
	}

	config, err := o.types.SelectAnalysisType(req.AnalysisTypeKey)
	if err != nil {
		o.logger.Error("Analysis type lookup failed", slog.String("key", req.AnalysisTypeKey), slog.Any("error", err))
		return failure(req.AnalysisTypeKey, req.Subtype, fmt.Sprintf("Analysis type '%s' not found or disabled", req.AnalysisTypeKey))
	}
	if config == nil {
		return failure(req.AnalysisTypeKey, req.Subtype, fmt.Sprintf("Analysis type '%s' not found or disabled", req.AnalysisTypeKey))
	}

	if config.RequiresSubtype && req.Subtype == "" {
		return failure(req.AnalysisTypeKey, req.Subtype, fmt.Sprintf("Analysis type '%s' requires a subtype", req.AnalysisTypeKey))
	}

	query := req.Query
	if query == "" {
		query = config.Description
	}
	if query == "" {
		query = fmt.Sprintf("Perform %s", config.Name)
	}

	plan := model.DefaultRetrievalPlan()
	if req.Plan != nil {
		// Copy so the project scope below never leaks into a caller-owned
		// plan that may be reused for another project.
		planCopy := *req.Plan
		plan = &planCopy
	}
	plan.Filters.ProjectID = req.ProjectID

	buckets, err := o.retriever.RetrieveAll(ctx, query, plan)
	if err != nil {
		o.logger.Error("Retrieval failed", slog.String("key", req.AnalysisTypeKey), slog.Any("error", err))
		return failure(req.AnalysisTypeKey, req.Subtype, fmt.Sprintf("Retrieval failed: %v", err))
	}

	assembled := retrieval.AssembleContext(buckets, plan)
	counts := assembled.Counts()

	vars := prompt.Vars{
		Context: assembled.ContextText,
		Query:   query,
		Subtype: req.Subtype,
	}
	system := config.SystemPrompt
	if system == "" {
		system = prompt.GetSystem("")
	}
	userPrompt := prompt.Render(config.UserPromptTemplate, vars)
	if config.UserPromptTemplate == "" {
		template, templateErr := prompt.GetTemplate("analysis-default-v1")
		if templateErr != nil {
			return failure(req.AnalysisTypeKey, req.Subtype, fmt.Sprintf("Prompt build failed: %v", templateErr))
		}
		userPrompt = prompt.Render(template, vars)
	}

	raw, err := o.generator.Generate(ctx, system, userPrompt, &llm.Options{
		Temperature: 0,
		Schema:      config.OutputSchema,
	})
	if err != nil {
		o.logger.Error("Generation failed", slog.String("key", req.AnalysisTypeKey), slog.Any("error", err))
		return failure(req.AnalysisTypeKey, req.Subtype, fmt.Sprintf("Generation failed: %v", err))
	}

	validated, err := structured.ValidateAndRepair(ctx, raw, config.OutputSchema, o.repairFunc(), o.maxRepairAttempts)
	if err != nil {
		o.logger.Error("Output validation failed", slog.String("key", req.AnalysisTypeKey), slog.Any("error", err))
		return failure(req.AnalysisTypeKey, req.Subtype, fmt.Sprintf("Output validation failed: %v", err))
	}

	output := shapeOutput(config.Key, query, validated)

	result := &model.AnalysisResult{
		Success:         true,
		AnalysisType:    config.Key,
		AnalysisSubtype: req.Subtype,
		Output:          output,
		Confidence:      ExtractConfidence(output),
		OverallRating:   ExtractOverallRating(output),
		ContextCounts:   counts,
	}

	o.persist(req.ProjectID, result)

	return result
}

// repairFunc asks the generator to correct a malformed payload. Repair runs
// in plain JSON mode regardless of the analysis schema; the schema is
// re-checked by the validation loop afterwards.
func (o *Orchestrator) repairFunc() structured.RepairFunc {
	return func(ctx context.Context, badText string) (string, error) {
		system := "You fix malformed JSON. Return only the corrected JSON, nothing else."
		user := "Fix this JSON so it parses:\n\n" + badText
		return o.generator.Generate(ctx, system, user, &llm.Options{Temperature: 0})
	}
}

// persist writes the result as a draft row. A write failure is logged and
// swallowed: the caller still gets the completed analysis.
func (o *Orchestrator) persist(projectID uuid.UUID, result *model.AnalysisResult) {
	if o.results == nil {
		return
	}

	record := &model.AnalysisRecord{
		ProjectID:       projectID,
		AnalysisType:    result.AnalysisType,
		AnalysisSubtype: result.AnalysisSubtype,
		Confidence:      result.Confidence,
		OverallRating:   result.OverallRating,
		RawResult:       model.Metadata(result.Output),
		Status:          model.StatusDraft,
	}

	if err := o.results.InsertAnalysisResult(record); err != nil {
		o.logger.Error("Persisting analysis result failed",
			slog.String("analysis_type", result.AnalysisType),
			slog.Any("error", err),
		)
	}
}

// shapeOutput coerces the validated JSON value into the result map. Custom
// prompt runs are wrapped in a {prompt, output} envelope; non-object payloads
// from other types are wrapped under an "output" key.
func shapeOutput(key string, query string, validated any) map[string]any {
	if key == CustomPromptKey {
		return map[string]any{
			"prompt": query,
			"output": validated,
		}
	}
	if m, ok := validated.(map[string]any); ok {
		return m
	}
	return map[string]any{"output": validated}
}

func failure(analysisType string, subtype string, message string) *model.AnalysisResult {
	return &model.AnalysisResult{
		Success:         false,
		AnalysisType:    analysisType,
		AnalysisSubtype: subtype,
		Error:           message,
		ContextCounts:   model.ContextCounts{},
	}
}
