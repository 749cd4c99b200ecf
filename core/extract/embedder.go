package extract

import (
	"context"
	"fmt"
	"sync"

	"github.com/knights-analytics/hugot"
	"github.com/knights-analytics/hugot/pipelines"
	"github.com/siherrmann/knograph/helper"
)

// defaultEmbeddingModel produces 384-dimensional sentence embeddings
const defaultEmbeddingModel = "sentence-transformers/all-MiniLM-L6-v2"

// DefaultEmbeddingDimension is the output dimensionality of the default
// embedding model.
const DefaultEmbeddingDimension = 384

// ONNXEmbedder generates embeddings with a sentence transformer model run
// through hugot's feature extraction pipeline.
type ONNXEmbedder struct {
	modelName string
	session   *hugot.Session
	pipeline  *pipelines.FeatureExtractionPipeline
	initOnce  sync.Once
	initErr   error
}

// NewONNXEmbedder creates an embedder for the given model name; an empty
// name selects all-MiniLM-L6-v2.
func NewONNXEmbedder(modelName string) *ONNXEmbedder {
	if modelName == "" {
		modelName = defaultEmbeddingModel
	}
	return &ONNXEmbedder{modelName: modelName}
}

// Initialize downloads the model if needed and builds the hugot pipeline
func (e *ONNXEmbedder) Initialize(ctx context.Context) error {
	e.initOnce.Do(func() {
		modelPath, err := helper.PrepareModel(e.modelName, "")
		if err != nil {
			e.initErr = err
			return
		}

		session, err := hugot.NewGoSession()
		if err != nil {
			e.initErr = helper.NewError("creating hugot session", err)
			return
		}

		config := hugot.FeatureExtractionConfig{
			ModelPath: modelPath,
			Name:      "embedder-pipeline",
		}
		sentencePipeline, err := hugot.NewPipeline(session, config)
		if err != nil {
			if destroyErr := session.Destroy(); destroyErr != nil {
				e.initErr = helper.NewError("creating embedding pipeline", fmt.Errorf("%w (cleanup error: %v)", err, destroyErr))
				return
			}
			e.initErr = helper.NewError("creating embedding pipeline", err)
			return
		}

		e.session = session
		e.pipeline = sentencePipeline
	})
	return e.initErr
}

// Embed generates the embedding for one text
func (e *ONNXEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := e.Initialize(ctx); err != nil {
		return nil, err
	}

	result, err := e.pipeline.RunPipeline([]string{text})
	if err != nil {
		return nil, helper.NewError("generating embedding", err)
	}
	if len(result.Embeddings) == 0 {
		return nil, helper.NewError("generating embedding", fmt.Errorf("no embedding generated"))
	}

	return result.Embeddings[0], nil
}

// Close destroys the hugot session and releases the loaded model
func (e *ONNXEmbedder) Close() error {
	if e.session == nil {
		return nil
	}
	err := e.session.Destroy()
	e.session = nil
	e.pipeline = nil
	return err
}
