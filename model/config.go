package model

import "fmt"

// PipelineConfig configures resolution thresholds and batch scheduling
type PipelineConfig struct {
	// Resolution parameters
	SimilarityThreshold       float64 `json:"similarity_threshold"`        // Minimum fuzzy/vector similarity for a merge
	MinRelationshipConfidence float64 `json:"min_relationship_confidence"` // Inferred relationships below this are dropped

	// Batch scheduling parameters
	BatchSize                int `json:"batch_size"`
	MaxConcurrentExtractions int `json:"max_concurrent_extractions"`

	// Chunks shorter than this (after trimming) are skipped without extraction
	MinChunkLength int `json:"min_chunk_length"`
}

// DefaultPipelineConfig returns a sensible default configuration
func DefaultPipelineConfig() *PipelineConfig {
	return &PipelineConfig{
		SimilarityThreshold:       0.8,
		MinRelationshipConfidence: 0.3,
		BatchSize:                 10,
		MaxConcurrentExtractions:  4,
		MinChunkLength:            10,
	}
}

// Validate checks the configuration and returns an error on the first
// out-of-range value. Called at pipeline construction.
func (c *PipelineConfig) Validate() error {
	if c.SimilarityThreshold < 0 || c.SimilarityThreshold > 1 {
		return fmt.Errorf("similarity threshold must be in [0,1], got %v", c.SimilarityThreshold)
	}
	if c.MinRelationshipConfidence < 0 || c.MinRelationshipConfidence > 1 {
		return fmt.Errorf("min relationship confidence must be in [0,1], got %v", c.MinRelationshipConfidence)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive, got %v", c.BatchSize)
	}
	if c.MaxConcurrentExtractions <= 0 {
		return fmt.Errorf("max concurrent extractions must be positive, got %v", c.MaxConcurrentExtractions)
	}
	if c.MinChunkLength < 0 {
		return fmt.Errorf("min chunk length must not be negative, got %v", c.MinChunkLength)
	}
	return nil
}
