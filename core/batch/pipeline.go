package batch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/siherrmann/knograph/core/extract"
	"github.com/siherrmann/knograph/helper"
	"github.com/siherrmann/knograph/model"
)

// Mutator applies one chunk's extraction result atomically.
// Implemented by mutate.GraphMutator.
type Mutator interface {
	Apply(ctx context.Context, chunk *model.Chunk, extraction *model.ExtractionResult) (*model.MutationResult, error)
}

// Pipeline runs chunks through extraction and mutation in batches with a
// bounded number of concurrent chunk transactions.
type Pipeline struct {
	extractor extract.Extractor
	mutator   Mutator
	config    *model.PipelineConfig
	logger    *slog.Logger
}

// NewPipeline creates a batch pipeline. Configuration errors fail fast here,
// not at processing time.
func NewPipeline(extractor extract.Extractor, mutator Mutator, config *model.PipelineConfig, logger *slog.Logger) (*Pipeline, error) {
	if extractor == nil {
		return nil, helper.NewError("pipeline validation", fmt.Errorf("extractor is nil"))
	}
	if mutator == nil {
		return nil, helper.NewError("pipeline validation", fmt.Errorf("mutator is nil"))
	}
	if config == nil {
		config = model.DefaultPipelineConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Pipeline{
		extractor: extractor,
		mutator:   mutator,
		config:    config,
		logger:    logger,
	}, nil
}

// ProcessChunks runs all chunks and always returns an aggregate result, even
// under partial failure. Per-chunk extraction and mutation errors are
// recorded on the result; only context cancellation propagates as an error.
func (p *Pipeline) ProcessChunks(ctx context.Context, chunks []*model.Chunk) (*model.PipelineProcessingResult, error) {
	started := time.Now()

	result := &model.PipelineProcessingResult{TotalChunks: len(chunks)}

	for batchIndex, batch := range p.batches(chunks) {
		batchResult, err := p.processBatch(ctx, batchIndex, batch)
		if err != nil {
			result.ProcessingTime = time.Since(started)
			return result, err
		}

		result.ProcessedChunks += batchResult.ProcessedChunks
		result.SkippedChunks += batchResult.SkippedChunks
		result.FailedChunks += batchResult.FailedChunks
		result.EntitiesCreated += batchResult.Mutation.EntitiesCreated
		result.EntitiesUpdated += batchResult.Mutation.EntitiesUpdated
		result.RelationshipsCreated += batchResult.Mutation.RelationshipsCreated
		result.RelationshipsUpdated += batchResult.Mutation.RelationshipsUpdated
		result.DuplicatesFound += batchResult.Mutation.DuplicatesFound
		result.Errors = append(result.Errors, batchResult.Errors...)
	}

	result.ProcessingTime = time.Since(started)

	p.logger.Info(
		"Processed chunks",
		"total", result.TotalChunks,
		"processed", result.ProcessedChunks,
		"skipped", result.SkippedChunks,
		"failed", result.FailedChunks,
		"duration", result.ProcessingTime,
	)

	return result, nil
}

// processBatch runs one batch of chunks concurrently, bounded to the
// configured number of simultaneous chunk transactions. Chunk results are
// collected per slot so aggregation stays in declaration order.
func (p *Pipeline) processBatch(ctx context.Context, batchIndex int, chunks []*model.Chunk) (*model.BatchResult, error) {
	chunkResults := make([]*model.ChunkResult, len(chunks))
	var mu sync.Mutex

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(p.config.MaxConcurrentExtractions)

	for index, chunk := range chunks {
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}

			chunkResult := p.processChunk(groupCtx, chunk)

			mu.Lock()
			chunkResults[index] = chunkResult
			mu.Unlock()
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, helper.NewError("processing batch", err)
	}

	batchResult := &model.BatchResult{BatchIndex: batchIndex}
	for _, chunkResult := range chunkResults {
		switch chunkResult.Status {
		case model.ChunkStatusProcessed:
			batchResult.ProcessedChunks++
			batchResult.Mutation.Add(chunkResult.Mutation)
		case model.ChunkStatusSkipped:
			batchResult.SkippedChunks++
		case model.ChunkStatusFailed:
			batchResult.FailedChunks++
			batchResult.Errors = append(batchResult.Errors, chunkResult.Error)
		}
	}

	return batchResult, nil
}

// processChunk runs one chunk through extraction and mutation. Failures are
// captured in the result, never returned, so one bad chunk cannot take down
// its batch.
func (p *Pipeline) processChunk(ctx context.Context, chunk *model.Chunk) *model.ChunkResult {
	if len(strings.TrimSpace(chunk.Text)) < p.config.MinChunkLength {
		return &model.ChunkResult{ChunkRID: chunk.RID, Status: model.ChunkStatusSkipped}
	}

	extraction, err := p.extractor.Extract(ctx, chunk)
	if err != nil {
		p.logger.Warn("Extraction failed", "chunk", chunk.RID, "error", err)
		return &model.ChunkResult{
			ChunkRID: chunk.RID,
			Status:   model.ChunkStatusFailed,
			Error:    fmt.Sprintf("chunk %v: extraction: %v", chunk.RID, err),
		}
	}

	mutation, err := p.mutator.Apply(ctx, chunk, extraction)
	if err != nil {
		p.logger.Warn("Mutation failed", "chunk", chunk.RID, "error", err)
		return &model.ChunkResult{
			ChunkRID: chunk.RID,
			Status:   model.ChunkStatusFailed,
			Error:    fmt.Sprintf("chunk %v: mutation: %v", chunk.RID, err),
		}
	}

	return &model.ChunkResult{
		ChunkRID: chunk.RID,
		Status:   model.ChunkStatusProcessed,
		Mutation: mutation,
	}
}

// batches groups chunks into slices of the configured batch size
func (p *Pipeline) batches(chunks []*model.Chunk) [][]*model.Chunk {
	var batches [][]*model.Chunk
	for start := 0; start < len(chunks); start += p.config.BatchSize {
		end := start + p.config.BatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batches = append(batches, chunks[start:end])
	}
	return batches
}
