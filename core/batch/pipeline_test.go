package batch

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/siherrmann/knograph/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeExtractor returns one entity candidate per chunk and fails for chunks
// whose text contains a marker.
type fakeExtractor struct {
	calls atomic.Int32
}

func (f *fakeExtractor) Extract(ctx context.Context, chunk *model.Chunk) (*model.ExtractionResult, error) {
	f.calls.Add(1)
	if strings.Contains(chunk.Text, "EXTRACT_FAIL") {
		return nil, fmt.Errorf("extractor broke on chunk %d", chunk.Index)
	}
	return &model.ExtractionResult{
		Entities: []*model.EntityCandidate{
			{Name: fmt.Sprintf("Entity %d", chunk.Index), Type: model.EntityTypeConcept, Confidence: 0.9},
		},
	}, nil
}

// fakeMutator counts simultaneously open chunk transactions and records the
// maximum it ever observed.
type fakeMutator struct {
	mu          sync.Mutex
	current     int
	maxOpen     int
	delay       time.Duration
	failOnText  string
	applied     []*model.Chunk
	perMutation model.MutationResult
}

func (f *fakeMutator) Apply(ctx context.Context, chunk *model.Chunk, extraction *model.ExtractionResult) (*model.MutationResult, error) {
	f.mu.Lock()
	f.current++
	if f.current > f.maxOpen {
		f.maxOpen = f.current
	}
	f.mu.Unlock()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	f.current--
	f.applied = append(f.applied, chunk)
	f.mu.Unlock()

	if f.failOnText != "" && strings.Contains(chunk.Text, f.failOnText) {
		return nil, fmt.Errorf("mutation broke on chunk %d", chunk.Index)
	}

	mutation := f.perMutation
	return &mutation, nil
}

func testChunks(count int) []*model.Chunk {
	chunks := make([]*model.Chunk, 0, count)
	for i := 0; i < count; i++ {
		chunks = append(chunks, model.NewChunk(fmt.Sprintf("This is chunk number %d with enough text.", i), "test.txt", i))
	}
	return chunks
}

func TestNewPipelineValidation(t *testing.T) {
	extractor := &fakeExtractor{}
	mutator := &fakeMutator{}

	t.Run("Valid call NewPipeline", func(t *testing.T) {
		pipeline, err := NewPipeline(extractor, mutator, nil, nil)
		assert.NoError(t, err)
		require.NotNil(t, pipeline)
	})

	t.Run("Invalid call NewPipeline with nil extractor", func(t *testing.T) {
		_, err := NewPipeline(nil, mutator, nil, nil)
		assert.Error(t, err)
	})

	t.Run("Invalid call NewPipeline with nil mutator", func(t *testing.T) {
		_, err := NewPipeline(extractor, nil, nil, nil)
		assert.Error(t, err)
	})

	t.Run("Invalid configuration fails fast", func(t *testing.T) {
		config := model.DefaultPipelineConfig()
		config.MaxConcurrentExtractions = 0
		_, err := NewPipeline(extractor, mutator, config, nil)
		assert.Error(t, err)
	})
}

func TestProcessChunksAggregation(t *testing.T) {
	mutator := &fakeMutator{
		perMutation: model.MutationResult{EntitiesCreated: 2, RelationshipsCreated: 1, DuplicatesFound: 1},
	}
	config := model.DefaultPipelineConfig()
	config.BatchSize = 3

	pipeline, err := NewPipeline(&fakeExtractor{}, mutator, config, nil)
	require.NoError(t, err)

	result, err := pipeline.ProcessChunks(context.Background(), testChunks(7))
	require.NoError(t, err)

	assert.Equal(t, 7, result.TotalChunks)
	assert.Equal(t, 7, result.ProcessedChunks)
	assert.Equal(t, 0, result.SkippedChunks)
	assert.Equal(t, 0, result.FailedChunks)
	assert.Equal(t, 14, result.EntitiesCreated)
	assert.Equal(t, 7, result.RelationshipsCreated)
	assert.Equal(t, 7, result.DuplicatesFound)
	assert.Empty(t, result.Errors)
	assert.Greater(t, result.ProcessingTime, time.Duration(0))
}

func TestProcessChunksSkipsShortChunks(t *testing.T) {
	mutator := &fakeMutator{}
	pipeline, err := NewPipeline(&fakeExtractor{}, mutator, nil, nil)
	require.NoError(t, err)

	chunks := []*model.Chunk{
		model.NewChunk("hi", "test.txt", 0),
		model.NewChunk("         ", "test.txt", 1),
		model.NewChunk("This chunk is long enough to process.", "test.txt", 2),
	}

	result, err := pipeline.ProcessChunks(context.Background(), chunks)
	require.NoError(t, err)

	assert.Equal(t, 2, result.SkippedChunks)
	assert.Equal(t, 1, result.ProcessedChunks)
	assert.Len(t, mutator.applied, 1, "Expected skipped chunks to never reach mutation")
}

func TestProcessChunksFailureIsolation(t *testing.T) {
	extractor := &fakeExtractor{}
	mutator := &fakeMutator{failOnText: "MUTATE_FAIL"}
	pipeline, err := NewPipeline(extractor, mutator, nil, nil)
	require.NoError(t, err)

	chunks := []*model.Chunk{
		model.NewChunk("A perfectly fine chunk of text.", "test.txt", 0),
		model.NewChunk("This chunk will EXTRACT_FAIL during extraction.", "test.txt", 1),
		model.NewChunk("This chunk will MUTATE_FAIL during mutation.", "test.txt", 2),
		model.NewChunk("Another perfectly fine chunk of text.", "test.txt", 3),
	}

	result, err := pipeline.ProcessChunks(context.Background(), chunks)
	require.NoError(t, err, "Expected per-chunk failures to not fail the whole call")

	assert.Equal(t, 2, result.ProcessedChunks)
	assert.Equal(t, 2, result.FailedChunks)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "extraction")
	assert.Contains(t, result.Errors[1], "mutation")
}

func TestProcessChunksConcurrencyBound(t *testing.T) {
	mutator := &fakeMutator{delay: 20 * time.Millisecond}
	config := model.DefaultPipelineConfig()
	config.MaxConcurrentExtractions = 3
	config.BatchSize = 10

	pipeline, err := NewPipeline(&fakeExtractor{}, mutator, config, nil)
	require.NoError(t, err)

	result, err := pipeline.ProcessChunks(context.Background(), testChunks(10))
	require.NoError(t, err)

	assert.Equal(t, 10, result.ProcessedChunks)
	assert.LessOrEqual(t, mutator.maxOpen, 3, "Expected no more than 3 simultaneously open chunk transactions")
	assert.Greater(t, mutator.maxOpen, 1, "Expected chunks to actually run concurrently")
}

func TestProcessChunksEmptyInput(t *testing.T) {
	pipeline, err := NewPipeline(&fakeExtractor{}, &fakeMutator{}, nil, nil)
	require.NoError(t, err)

	result, err := pipeline.ProcessChunks(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, result.TotalChunks)
	assert.Equal(t, 0, result.ProcessedChunks)
}

func TestProcessChunksCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pipeline, err := NewPipeline(&fakeExtractor{}, &fakeMutator{}, nil, nil)
	require.NoError(t, err)

	_, err = pipeline.ProcessChunks(ctx, testChunks(4))
	assert.Error(t, err)
}
