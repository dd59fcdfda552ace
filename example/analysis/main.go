package main

import (
	"context"
	"fmt"
	"log"

	velosight "github.com/LukeBaker08/velosight"
	"github.com/LukeBaker08/velosight/core/llm"
	"github.com/LukeBaker08/velosight/helper"
	"github.com/LukeBaker08/velosight/model"
	"github.com/google/uuid"
)

const statusReport = `Project Atlas status report.

The data migration finished two weeks late and the cutover rehearsal found
defects in the reconciliation job. Schedule risk is high for the go-live gate.
The sponsor has asked for a delivery confidence assessment before committing
to the new date.`

// cannedGenerator stands in for the OpenAI client so the example runs
// without an API key. Swap it for v.UseOpenAIGenerator() in real use.
type cannedGenerator struct{}

func (cannedGenerator) Generate(ctx context.Context, system string, user string, opts *llm.Options) (string, error) {
	return `{
		"DeliveryConfidenceAssessment": {"overallDeliveryConfidenceRating": "Amber"},
		"SelfAwareness": {"ConfidenceLevelRating": {"rating": "Medium"}},
		"summary": "Go-live is feasible but the reconciliation defects need management attention."
	}`, nil
}

func main() {
	teardown, dbPort, err := helper.MustStartPostgresContainer()
	if err != nil {
		log.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	defer teardown(context.Background())

	dbConfig := &helper.DatabaseConfiguration{
		Host:     "localhost",
		Port:     dbPort,
		Database: "database",
		Username: "user",
		Password: "password",
		Schema:   "public",
		SSLMode:  "disable",
	}

	v, err := velosight.New(dbConfig, 384)
	if err != nil {
		log.Fatalf("Failed to create instance: %v", err)
	}
	defer v.Close()

	if err := v.UseDefaultPipeline(); err != nil {
		log.Fatalf("Failed to set up pipeline: %v", err)
	}
	v.SetGenerator(cannedGenerator{})

	// Register the analysis configuration
	analysisType := &model.AnalysisType{
		Key:                "delivery-confidence",
		Name:               "Delivery Confidence Assessment",
		Description:        "Assess overall delivery confidence for the project",
		SystemPrompt:       "You are a delivery assurance analyst. Base your analysis strictly on the provided context.",
		UserPromptTemplate: "Context:\n{context}\n\nTask: {query}",
		Enabled:            true,
	}
	if err := v.AnalysisTypes.InsertAnalysisType(analysisType); err != nil {
		log.Fatalf("Failed to insert analysis type: %v", err)
	}

	// Index the project evidence the analysis will draw on
	projectID := uuid.New()
	doc := &model.Document{
		RID:       uuid.New(),
		ProjectID: projectID,
		Name:      "atlas-status",
		Category:  model.SourceProject,
		Content:   statusReport,
	}
	numChunks, err := v.ProcessAndIndexDocument(doc)
	if err != nil {
		log.Fatalf("Failed to index document: %v", err)
	}
	fmt.Printf("Indexed %q as %d chunks\n", doc.Name, numChunks)

	// Run the analysis end to end
	fmt.Println("\nRunning delivery confidence assessment...")
	result, err := v.RunAnalysis(context.Background(), &model.AnalysisRequest{
		ProjectID:       projectID,
		AnalysisTypeKey: "delivery-confidence",
	})
	if err != nil {
		log.Fatalf("Failed to run analysis: %v", err)
	}

	if !result.Success {
		log.Fatalf("Analysis failed: %s", result.Error)
	}

	fmt.Printf("\nOverall rating: %s\n", result.OverallRating)
	fmt.Printf("Confidence: %s\n", result.Confidence)
	fmt.Printf("Context chunks used: project=%d context=%d sentiment=%d framework=%d\n",
		result.ContextCounts.Project,
		result.ContextCounts.Context,
		result.ContextCounts.Sentiment,
		result.ContextCounts.Framework,
	)
	fmt.Printf("Summary: %v\n", result.Output["summary"])

	fmt.Println("\nAnalysis example completed successfully!")
}
