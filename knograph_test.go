package knograph

import (
	"context"
	"testing"

	"github.com/siherrmann/knograph/core/extract"
	"github.com/siherrmann/knograph/helper"
	"github.com/siherrmann/knograph/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testEmbedder creates a simple deterministic embedder for testing
func testEmbedder(dimension int) extract.EmbedderFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		embedding := make([]float32, dimension)
		for i := 0; i < dimension; i++ {
			embedding[i] = float32((len(text)+i)%100) / 100.0
		}
		return embedding, nil
	}
}

// candidateExtractor returns a fixed extraction result for every chunk
func candidateExtractor(entities []*model.EntityCandidate, relationships []*model.RelationshipCandidate) extract.ExtractorFunc {
	return func(ctx context.Context, chunk *model.Chunk) (*model.ExtractionResult, error) {
		return &model.ExtractionResult{
			Entities:      entities,
			Relationships: relationships,
		}, nil
	}
}

func TestNewKnograph(t *testing.T) {
	helper.SetTestDatabaseConfigEnvs(t, dbPort)
	dbConfig, err := helper.NewDatabaseConfiguration()
	require.NoError(t, err)

	t.Run("Valid call NewKnograph", func(t *testing.T) {
		k, err := NewKnograph(dbConfig, nil, testEmbeddingDim)
		require.NoError(t, err, "Expected NewKnograph to not return an error")
		require.NotNil(t, k, "Expected NewKnograph to return a non-nil instance")
		assert.NotNil(t, k.DB, "Expected knograph to have a database instance")
		assert.NotNil(t, k.Entities, "Expected knograph to have entities handler")
		assert.NotNil(t, k.Relationships, "Expected knograph to have relationships handler")
		assert.NotNil(t, k.Mentions, "Expected knograph to have mentions handler")
		assert.NotNil(t, k.Stats, "Expected knograph to have stats handler")
		assert.Nil(t, k.extractor, "Expected extractor to be nil initially")

		// Cleanup
		err = k.Close()
		assert.NoError(t, err, "Expected Close to not return an error")
	})

	t.Run("Invalid pipeline config returns error", func(t *testing.T) {
		k, err := NewKnograph(dbConfig, &model.PipelineConfig{SimilarityThreshold: 2}, testEmbeddingDim)
		assert.Error(t, err, "Expected error for out-of-range similarity threshold")
		assert.Nil(t, k, "Expected no instance on error")
	})

	t.Run("Knograph with nil database handles Close gracefully", func(t *testing.T) {
		k := &Knograph{}

		err := k.Close()
		assert.NoError(t, err, "Expected Close to handle nil DB gracefully")
	})
}

func TestSetters(t *testing.T) {
	k := initKnograph(t, nil)

	t.Run("SetExtractor resets the lazily built pipeline", func(t *testing.T) {
		k.SetExtractor(candidateExtractor(nil, nil))
		require.NoError(t, k.ensurePipeline())
		assert.NotNil(t, k.pipeline, "Expected pipeline to be built")

		k.SetExtractor(candidateExtractor(nil, nil))
		assert.Nil(t, k.pipeline, "Expected pipeline to be invalidated")
	})

	t.Run("SetEmbedder resets pipeline and mutator", func(t *testing.T) {
		k.SetExtractor(candidateExtractor(nil, nil))
		require.NoError(t, k.ensurePipeline())

		k.SetEmbedder(testEmbedder(testEmbeddingDim))
		assert.Nil(t, k.pipeline, "Expected pipeline to be invalidated")
		assert.Nil(t, k.mutator, "Expected mutator to be invalidated")
		assert.NotNil(t, k.embedder, "Expected embedder to be set")
	})
}

func TestProcessChunks(t *testing.T) {
	k := initKnograph(t, nil)

	t.Run("Error when extractor not set", func(t *testing.T) {
		chunks := []*model.Chunk{model.NewChunk("Some text that is long enough.", "facade_test", 0)}

		result, err := k.ProcessChunks(context.Background(), chunks)

		assert.Error(t, err, "Expected error when extractor not set")
		assert.Nil(t, result, "Expected no result when error occurs")
		assert.Contains(t, err.Error(), "extractor not set", "Expected specific error message")
	})

	t.Run("Process chunks creates entities and relationships", func(t *testing.T) {
		k.SetExtractor(candidateExtractor(
			[]*model.EntityCandidate{
				{Name: "Facade Person", Type: model.EntityTypePerson, Confidence: 0.9, StartPos: 0, EndPos: 13, Method: "test"},
				{Name: "Facade Org", Type: model.EntityTypeOrganization, Confidence: 0.8, StartPos: 24, EndPos: 34, Method: "test"},
			},
			[]*model.RelationshipCandidate{
				{SourceName: "Facade Person", TargetName: "Facade Org", Type: model.RelationshipTypeWorksFor, Confidence: 0.7},
			},
		))

		chunks := []*model.Chunk{model.NewChunk("Facade Person works for Facade Org.", "facade_test", 0)}

		result, err := k.ProcessChunks(context.Background(), chunks)

		require.NoError(t, err, "Expected ProcessChunks to not return an error")
		require.NotNil(t, result, "Expected a processing result")
		assert.Equal(t, 1, result.TotalChunks, "Expected one chunk total")
		assert.Equal(t, 1, result.ProcessedChunks, "Expected one chunk processed")
		assert.Equal(t, 2, result.EntitiesCreated, "Expected both entities created")
		assert.Equal(t, 1, result.RelationshipsCreated, "Expected one relationship created")

		entity, err := k.Entities.SelectEntityByExactName(context.Background(), "Facade Person")
		require.NoError(t, err)
		require.NotNil(t, entity, "Expected created entity to be selectable")
		assert.Equal(t, model.EntityTypePerson, entity.Type, "Expected entity type to persist")
	})

	t.Run("Reprocessing the same chunk merges instead of duplicating", func(t *testing.T) {
		chunks := []*model.Chunk{model.NewChunk("Facade Person works for Facade Org.", "facade_test_2", 0)}

		result, err := k.ProcessChunks(context.Background(), chunks)

		require.NoError(t, err)
		assert.Equal(t, 0, result.EntitiesCreated, "Expected no new entities")
		assert.Equal(t, 2, result.EntitiesUpdated, "Expected both entities merged")
		assert.Equal(t, 2, result.DuplicatesFound, "Expected both candidates flagged as duplicates")
		assert.Equal(t, 1, result.RelationshipsUpdated, "Expected relationship merged")

		entity, err := k.Entities.SelectEntityByExactName(context.Background(), "Facade Person")
		require.NoError(t, err)
		require.NotNil(t, entity)
		assert.Equal(t, 2, entity.OccurrenceCount, "Expected occurrence count to grow")
	})
}

func TestProcessDocument(t *testing.T) {
	k := initKnograph(t, nil)
	k.SetExtractor(candidateExtractor(
		[]*model.EntityCandidate{
			{Name: "Document Topic", Type: model.EntityTypeConcept, Confidence: 0.8, StartPos: 0, EndPos: 5, Method: "test"},
		},
		nil,
	))

	t.Run("Splits document and processes all chunks", func(t *testing.T) {
		text := "First sentence about the topic. Second sentence with more detail. " +
			"Third sentence keeps going. Fourth sentence adds context. Fifth sentence wraps up. " +
			"Sixth sentence starts a new chunk. Seventh sentence continues it."

		result, err := k.ProcessDocument(context.Background(), text, "facade_doc")

		require.NoError(t, err, "Expected ProcessDocument to not return an error")
		require.NotNil(t, result)
		assert.Equal(t, 2, result.TotalChunks, "Expected seven sentences to split into two chunks")
		assert.Equal(t, 2, result.ProcessedChunks, "Expected all chunks processed")

		entity, err := k.Entities.SelectEntityByExactName(context.Background(), "Document Topic")
		require.NoError(t, err)
		require.NotNil(t, entity)
		assert.Equal(t, 2, entity.OccurrenceCount, "Expected one occurrence per chunk")
	})

	t.Run("Empty document yields empty result", func(t *testing.T) {
		result, err := k.ProcessDocument(context.Background(), "", "facade_doc_empty")

		require.NoError(t, err)
		require.NotNil(t, result)
		assert.Equal(t, 0, result.TotalChunks, "Expected no chunks for empty text")
	})
}

func TestStatisticsAndValidate(t *testing.T) {
	k := initKnograph(t, nil)
	k.SetExtractor(candidateExtractor(
		[]*model.EntityCandidate{
			{Name: "Graph Engine", Type: model.EntityTypeTechnology, Confidence: 0.9, StartPos: 0, EndPos: 5, Method: "test"},
			{Name: "Acme Analytics", Type: model.EntityTypeOrganization, Confidence: 0.9, StartPos: 10, EndPos: 15, Method: "test"},
		},
		[]*model.RelationshipCandidate{
			{SourceName: "Graph Engine", TargetName: "Acme Analytics", Type: model.RelationshipTypeUsedBy, Confidence: 0.8},
		},
	))

	chunks := []*model.Chunk{model.NewChunk("Graph Engine is used by Acme Analytics.", "facade_stats", 0)}
	_, err := k.ProcessChunks(context.Background(), chunks)
	require.NoError(t, err)

	t.Run("Statistics reflects stored graph", func(t *testing.T) {
		statistics, err := k.Statistics(context.Background())

		require.NoError(t, err, "Expected Statistics to not return an error")
		require.NotNil(t, statistics)
		assert.GreaterOrEqual(t, statistics.EntityCount, 2, "Expected at least the two processed entities")
		assert.GreaterOrEqual(t, statistics.RelationshipCount, 1, "Expected at least one relationship")
		assert.GreaterOrEqual(t, statistics.EntityTypeDistribution[model.EntityTypeTechnology], 1, "Expected technology entity in distribution")
	})

	t.Run("Validate reports a consistent graph", func(t *testing.T) {
		report, err := k.Validate(context.Background())

		require.NoError(t, err, "Expected Validate to not return an error")
		require.NotNil(t, report)
		assert.True(t, report.IsValid, "Expected no integrity errors")
		assert.Empty(t, report.Errors, "Expected no error findings")
	})
}
