package knograph

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/siherrmann/knograph/core/batch"
	"github.com/siherrmann/knograph/core/extract"
	"github.com/siherrmann/knograph/core/mutate"
	"github.com/siherrmann/knograph/core/stats"
	"github.com/siherrmann/knograph/database"
	"github.com/siherrmann/knograph/helper"
	"github.com/siherrmann/knograph/model"
	loadSql "github.com/siherrmann/knograph/sql"
)

// Knograph provides a unified interface to the extraction pipeline and all
// database handlers
type Knograph struct {
	DB            *helper.Database
	Entities      *database.EntitiesDBHandler
	Relationships *database.RelationshipsDBHandler
	Mentions      *database.MentionsDBHandler
	Stats         *database.StatsDBHandler

	extractor extract.Extractor
	embedder  extract.Embedder
	mutator   *mutate.GraphMutator
	pipeline  *batch.Pipeline
	config    *model.PipelineConfig

	// Logging
	log *slog.Logger
}

// NewKnograph creates a new Knograph instance with all handlers initialized.
// No extractor or embedder is set yet; call SetExtractor/SetEmbedder or the
// UseDefault variants before processing chunks.
func NewKnograph(config *helper.DatabaseConfiguration, pipelineConfig *model.PipelineConfig, embeddingDim int) (*Knograph, error) {
	// Logger
	opts := helper.PrettyHandlerOptions{
		SlogOpts: slog.HandlerOptions{
			Level: slog.LevelInfo,
		},
	}
	logger := slog.New(helper.NewPrettyHandler(os.Stdout, opts))

	if pipelineConfig == nil {
		pipelineConfig = model.DefaultPipelineConfig()
	}
	if err := pipelineConfig.Validate(); err != nil {
		return nil, err
	}

	// Initialize database
	db := helper.NewDatabase("knograph", config, logger)
	err := loadSql.Init(db.Instance)
	if err != nil {
		return nil, helper.NewError("initialize database extensions", err)
	}

	// Create all handlers
	// force=false to not reload if functions already exist
	entities, err := database.NewEntitiesDBHandler(db, embeddingDim, false)
	if err != nil {
		return nil, helper.NewError("create entities handler", err)
	}

	relationships, err := database.NewRelationshipsDBHandler(db, false)
	if err != nil {
		return nil, helper.NewError("create relationships handler", err)
	}

	mentions, err := database.NewMentionsDBHandler(db, false)
	if err != nil {
		return nil, helper.NewError("create mentions handler", err)
	}

	statsHandler, err := database.NewStatsDBHandler(db, false)
	if err != nil {
		return nil, helper.NewError("create stats handler", err)
	}

	return &Knograph{
		DB:            db,
		Entities:      entities,
		Relationships: relationships,
		Mentions:      mentions,
		Stats:         statsHandler,
		config:        pipelineConfig,
		log:           logger,
	}, nil
}

// SetExtractor sets the extractor used for chunk processing. Passing an
// extractor invalidates the current pipeline so it is rebuilt on next use.
func (k *Knograph) SetExtractor(extractor extract.Extractor) {
	k.extractor = extractor
	k.pipeline = nil
}

// SetEmbedder sets the embedder used for vector matching during entity
// resolution. A nil embedder disables the vector strategy.
func (k *Knograph) SetEmbedder(embedder extract.Embedder) {
	k.embedder = embedder
	k.mutator = nil
	k.pipeline = nil
}

// UseDefaultExtractor sets up the default NER extractor with the
// distilbert-NER model. The model is downloaded on first use.
func (k *Knograph) UseDefaultExtractor() {
	k.SetExtractor(extract.NewNERExtractor(""))
}

// UseDefaultEmbedder sets up the default ONNX embedder with the
// all-MiniLM-L6-v2 model (384 dimensions)
func (k *Knograph) UseDefaultEmbedder() {
	k.SetEmbedder(extract.NewONNXEmbedder(""))
}

// ensurePipeline lazily builds the mutator and batch pipeline from the
// currently configured extractor and embedder.
func (k *Knograph) ensurePipeline() error {
	if k.pipeline != nil {
		return nil
	}
	if k.extractor == nil {
		return helper.NewError("build pipeline", fmt.Errorf("extractor not set, use SetExtractor() or UseDefaultExtractor() first"))
	}

	if k.mutator == nil {
		mutator, err := mutate.NewGraphMutator(k.DB, k.Entities, k.Relationships, k.Mentions, k.embedder, k.config)
		if err != nil {
			return err
		}
		k.mutator = mutator
	}

	pipeline, err := batch.NewPipeline(k.extractor, k.mutator, k.config, k.log)
	if err != nil {
		return err
	}
	k.pipeline = pipeline
	return nil
}

// ProcessChunks runs extraction, resolution and graph mutation for all given
// chunks with bounded concurrency. Per-chunk failures are recorded in the
// result; only context cancellation aborts the run.
func (k *Knograph) ProcessChunks(ctx context.Context, chunks []*model.Chunk) (*model.PipelineProcessingResult, error) {
	if err := k.ensurePipeline(); err != nil {
		return nil, err
	}
	if err := k.initializeCollaborators(ctx); err != nil {
		return nil, err
	}
	return k.pipeline.ProcessChunks(ctx, chunks)
}

// ProcessDocument splits a document into sentence-grouped chunks and
// processes them. Returns the pipeline result for all chunks of the document.
func (k *Knograph) ProcessDocument(ctx context.Context, text string, source string) (*model.PipelineProcessingResult, error) {
	chunks, err := extract.SplitDocument(text, source, extract.DefaultMaxSentencesPerChunk)
	if err != nil {
		return nil, err
	}

	k.log.Info("Split document into chunks", slog.Int("num_chunks", len(chunks)), slog.String("source", source))
	return k.ProcessChunks(ctx, chunks)
}

// Statistics returns aggregate counts and distributions of the current graph
func (k *Knograph) Statistics(ctx context.Context) (*model.GraphStatistics, error) {
	aggregator, err := stats.NewAggregator(k.Stats)
	if err != nil {
		return nil, err
	}
	return aggregator.Statistics(ctx)
}

// Validate checks the graph for orphaned relationships, low-confidence
// entities and duplicate canonical names
func (k *Knograph) Validate(ctx context.Context) (*model.ValidationReport, error) {
	validator, err := stats.NewValidator(k.Stats)
	if err != nil {
		return nil, err
	}
	return validator.Validate(ctx)
}

// initializeCollaborators runs one-time setup on the extractor and embedder
// if they support it
func (k *Knograph) initializeCollaborators(ctx context.Context) error {
	if initializer, ok := k.extractor.(extract.Initializer); ok {
		if err := initializer.Initialize(ctx); err != nil {
			return helper.NewError("initialize extractor", err)
		}
	}
	if initializer, ok := k.embedder.(extract.Initializer); ok {
		if err := initializer.Initialize(ctx); err != nil {
			return helper.NewError("initialize embedder", err)
		}
	}
	return nil
}

// Close releases the extractor and embedder sessions if they hold any, then
// closes the database connection
func (k *Knograph) Close() error {
	var firstErr error
	if closer, ok := k.extractor.(io.Closer); ok {
		if err := closer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if closer, ok := k.embedder.(io.Closer); ok {
		if err := closer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if k.DB != nil && k.DB.Instance != nil {
		if err := k.DB.Instance.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
