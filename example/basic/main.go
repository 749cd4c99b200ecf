package main

import (
	"context"
	"fmt"
	"log"

	"github.com/siherrmann/knograph"
	"github.com/siherrmann/knograph/core/extract"
	"github.com/siherrmann/knograph/helper"
)

const sampleContent = `Grace Hopper worked for the United States Navy and pioneered compiler technology.
She developed the first compiler while working on the UNIVAC project.
Grace Hopper later joined the team that created COBOL.
COBOL was created by a committee influenced by her earlier work.
The programming language became widely used by organizations like IBM.`

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

	k, err := knograph.NewKnograph(dbConfig, nil, extract.DefaultEmbeddingDimension)
	if err != nil {
		log.Fatalf("Failed to create knograph: %v", err)
	}
	defer k.Close()

	// Set up the default NER extractor and embedder (models are downloaded
	// on first use)
	k.UseDefaultExtractor()
	k.UseDefaultEmbedder()

	// Extract entities and relationships from the document and write them
	// into the graph
	fmt.Println("Processing document...")
	result, err := k.ProcessDocument(context.Background(), sampleContent, "basic_example")
	if err != nil {
		log.Fatalf("Failed to process document: %v", err)
	}

	fmt.Printf("Processed %d of %d chunks in %s\n", result.ProcessedChunks, result.TotalChunks, result.ProcessingTime)
	fmt.Printf("Entities created: %d, merged: %d\n", result.EntitiesCreated, result.EntitiesUpdated)
	fmt.Printf("Relationships created: %d, merged: %d\n", result.RelationshipsCreated, result.RelationshipsUpdated)

	// Look up one of the extracted entities
	entity, err := k.Entities.SelectEntityByExactName(context.Background(), "Grace Hopper")
	if err != nil {
		log.Fatalf("Failed to select entity: %v", err)
	}
	if entity != nil {
		fmt.Printf("\nEntity: %s (%s)\n", entity.Name, entity.Type)
		fmt.Printf("Confidence: %.2f, occurrences: %d\n", entity.Confidence, entity.OccurrenceCount)

		relationships, err := k.Relationships.SelectRelationshipsByEntity(context.Background(), entity.ID, 10)
		if err != nil {
			log.Fatalf("Failed to select relationships: %v", err)
		}
		fmt.Printf("Relationships: %d\n", len(relationships))
	}

	fmt.Println("\nBasic example completed successfully!")
}
