package main

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/siherrmann/knograph"
	"github.com/siherrmann/knograph/core/extract"
	"github.com/siherrmann/knograph/helper"
	"github.com/siherrmann/knograph/model"
)

const documentOne = `Ada Lovelace collaborates with Charles Babbage on the Analytical Engine.
The Analytical Engine was created by Charles Babbage in London.
Ada Lovelace wrote the first published algorithm for the machine.`

const documentTwo = `Charles Babbage designed the Difference Engine before the Analytical Engine.
The Difference Engine depends on precision manufacturing techniques.
Ada Lovelace documented the capabilities of the Analytical Engine in her notes.`

// keywordExtractor is a minimal hand-written extractor that matches a fixed
// vocabulary. It shows how to plug custom extraction logic into the pipeline
// without loading any ML model.
func keywordExtractor() extract.ExtractorFunc {
	known := map[string]model.EntityType{
		"Ada Lovelace":      model.EntityTypePerson,
		"Charles Babbage":   model.EntityTypePerson,
		"Analytical Engine": model.EntityTypeTechnology,
		"Difference Engine": model.EntityTypeTechnology,
		"London":            model.EntityTypeLocation,
	}

	return func(ctx context.Context, chunk *model.Chunk) (*model.ExtractionResult, error) {
		result := &model.ExtractionResult{}
		for name, entityType := range known {
			start := strings.Index(chunk.Text, name)
			if start < 0 {
				continue
			}
			result.Entities = append(result.Entities, &model.EntityCandidate{
				Name:       name,
				Type:       entityType,
				Confidence: 0.85,
				StartPos:   start,
				EndPos:     start + len(name),
				Method:     "keyword",
			})
		}
		return result, nil
	}
}

func main() {
	// Start a test PostgreSQL container
	teardown, dbPort, err := helper.MustStartPostgresContainer()
	if err != nil {
		log.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	defer teardown(context.Background())

	// Create database configuration
	dbConfig := &helper.DatabaseConfiguration{
		Host:     "localhost",
		Port:     dbPort,
		Database: "database",
		Username: "user",
		Password: "password",
		Schema:   "public",
		SSLMode:  "disable",
	}

	// Tighten resolution and widen concurrency compared to the defaults
	pipelineConfig := &model.PipelineConfig{
		SimilarityThreshold:       0.9,
		MinRelationshipConfidence: 0.3,
		BatchSize:                 5,
		MaxConcurrentExtractions:  8,
		MinChunkLength:            10,
	}

	k, err := knograph.NewKnograph(dbConfig, pipelineConfig, extract.DefaultEmbeddingDimension)
	if err != nil {
		log.Fatalf("Failed to create knograph: %v", err)
	}
	defer k.Close()

	// Custom extractor, no embedder: resolution falls back to name matching
	k.SetExtractor(keywordExtractor())

	ctx := context.Background()

	// Process both documents; shared entities are merged, and entities that
	// co-occur in multiple sentences get inferred relationships
	for i, text := range []string{documentOne, documentTwo} {
		result, err := k.ProcessDocument(ctx, text, fmt.Sprintf("advanced_example_%d", i+1))
		if err != nil {
			log.Fatalf("Failed to process document %d: %v", i+1, err)
		}
		fmt.Printf("Document %d: %d chunks, %d entities created, %d merged, %d relationships\n",
			i+1, result.ProcessedChunks, result.EntitiesCreated, result.EntitiesUpdated,
			result.RelationshipsCreated+result.RelationshipsUpdated)
	}

	// Inspect a merged entity and its mention contexts
	entity, err := k.Entities.SelectEntityByExactName(ctx, "Ada Lovelace")
	if err != nil {
		log.Fatalf("Failed to select entity: %v", err)
	}
	if entity != nil {
		fmt.Printf("\n%s appears %d times across %d documents\n", entity.Name, entity.OccurrenceCount, entity.DocumentFrequency)

		mentions, err := k.Mentions.SelectMentionsByEntity(ctx, entity.ID, 5)
		if err != nil {
			log.Fatalf("Failed to select mentions: %v", err)
		}
		for _, mention := range mentions {
			fmt.Printf("  mention at [%d:%d] in chunk %s\n", mention.StartPos, mention.EndPos, mention.ChunkRID)
		}

		relationships, err := k.Relationships.SelectRelationshipsByEntity(ctx, entity.ID, 10)
		if err != nil {
			log.Fatalf("Failed to select relationships: %v", err)
		}
		fmt.Printf("Relationships involving %s:\n", entity.Name)
		for _, relationship := range relationships {
			fmt.Printf("  %s (strength %.2f, co-occurrences %d)\n", relationship.Type, relationship.Strength, relationship.CooccurrenceCount)
		}
	}

	// Aggregate statistics over the whole graph
	statistics, err := k.Statistics(ctx)
	if err != nil {
		log.Fatalf("Failed to compute statistics: %v", err)
	}
	fmt.Printf("\nGraph: %d entities, %d relationships, average connectivity %.2f\n",
		statistics.EntityCount, statistics.RelationshipCount, statistics.AverageConnectivity)
	for entityType, count := range statistics.EntityTypeDistribution {
		fmt.Printf("  %s: %d\n", entityType, count)
	}

	// Consistency check
	report, err := k.Validate(ctx)
	if err != nil {
		log.Fatalf("Failed to validate graph: %v", err)
	}
	fmt.Printf("\nGraph valid: %v (%d errors, %d warnings)\n", report.IsValid, len(report.Errors), len(report.Warnings))
	for _, warning := range report.Warnings {
		fmt.Printf("  warning [%s]: %s\n", warning.Code, warning.Message)
	}

	fmt.Println("\nAdvanced example completed successfully!")
}
