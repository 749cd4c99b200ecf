package extract

import (
	"context"

	"github.com/siherrmann/knograph/model"
)

// Extractor produces candidate entities and relationships from a chunk of
// text. Implementations are treated as black boxes by the pipeline.
type Extractor interface {
	Extract(ctx context.Context, chunk *model.Chunk) (*model.ExtractionResult, error)
}

// Embedder generates a fixed-dimensionality embedding for a text
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Initializer is an optional capability of extractors and embedders that
// need expensive setup (model download, session creation) before first use.
// Callers check for it with a type assertion.
type Initializer interface {
	Initialize(ctx context.Context) error
}

// ExtractorFunc adapts a plain function to the Extractor interface
type ExtractorFunc func(ctx context.Context, chunk *model.Chunk) (*model.ExtractionResult, error)

func (f ExtractorFunc) Extract(ctx context.Context, chunk *model.Chunk) (*model.ExtractionResult, error) {
	return f(ctx, chunk)
}

// EmbedderFunc adapts a plain function to the Embedder interface
type EmbedderFunc func(ctx context.Context, text string) ([]float32, error)

func (f EmbedderFunc) Embed(ctx context.Context, text string) ([]float32, error) {
	return f(ctx, text)
}
