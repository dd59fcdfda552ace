package main

import (
	"context"
	"fmt"
	"log"

	velosight "github.com/LukeBaker08/velosight"
	"github.com/LukeBaker08/velosight/helper"
	"github.com/LukeBaker08/velosight/model"
	"github.com/google/uuid"
)

const statusReport = `Project Phoenix status report, week 34.

The vendor integration slipped by three weeks after the API contract changed.
Schedule risk is now rated high and the milestone review has been moved.

Budget remains within tolerance, though the contingency draw-down has started.
Stakeholder engagement is steady and the sponsor has been briefed on the delay.`

const frameworkGuide = `Delivery confidence assessment guidance.

Rate overall delivery confidence as Green, Amber or Red. An Amber rating means
successful delivery appears feasible but significant issues already exist,
requiring management attention.`

func main() {
	// Start a test PostgreSQL container
	teardown, dbPort, err := helper.MustStartPostgresContainer()
	if err != nil {
		log.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	defer teardown(context.Background())

	// Create database configuration using the container port
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

	// Set up the default pipeline (windowed chunking + embeddings)
	if err := v.UseDefaultPipeline(); err != nil {
		log.Fatalf("Failed to set up pipeline: %v", err)
	}

	projectID := uuid.New()

	// Index a project document and a shared framework document
	docs := []*model.Document{
		{
			RID:       uuid.New(),
			ProjectID: projectID,
			Name:      "phoenix-status-week-34",
			Category:  model.SourceProject,
			Content:   statusReport,
			Metadata:  model.Metadata{"author": "PMO"},
		},
		{
			RID:          uuid.New(),
			Name:         "delivery-confidence-guide",
			Category:     model.SourceFramework,
			MaterialType: "guidance",
			Content:      frameworkGuide,
		},
	}

	fmt.Println("Ingesting documents...")
	for _, doc := range docs {
		numChunks, err := v.ProcessAndIndexDocument(doc)
		if err != nil {
			log.Fatalf("Failed to process and index document: %v", err)
		}
		fmt.Printf("Indexed %q as %d chunks\n", doc.Name, numChunks)
	}

	// Fan the query out to all four retrieval sources
	queryText := "What is the schedule risk?"
	fmt.Printf("\nQuerying: %s\n", queryText)

	plan := model.DefaultRetrievalPlan()
	plan.Filters.ProjectID = projectID

	buckets, err := v.Search(context.Background(), queryText, plan)
	if err != nil {
		log.Fatalf("Failed to search: %v", err)
	}

	for _, source := range model.Sources {
		fmt.Printf("\n--- %s (%d results) ---\n", source, len(buckets[source]))
		for _, chunk := range buckets[source] {
			fmt.Printf("Score: %.4f\n", chunk.Score)
			fmt.Printf("Content: %.120s\n", chunk.Content)
		}
	}

	fmt.Println("\nBasic example completed successfully!")
}
