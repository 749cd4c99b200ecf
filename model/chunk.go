package model

import (
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Chunk is one unit of input text flowing through the pipeline.
// Each chunk owns exactly one store transaction during mutation.
type Chunk struct {
	RID      uuid.UUID `json:"rid"`
	Document string    `json:"document,omitempty"`
	Source   string    `json:"source,omitempty"`
	Index    int       `json:"index"`
	Text     string    `json:"text"`
}

// NewChunk creates a chunk with a fresh RID
func NewChunk(text string, source string, index int) *Chunk {
	return &Chunk{
		RID:    uuid.New(),
		Source: source,
		Index:  index,
		Text:   text,
	}
}

// NewChunkFromFile reads a file into a single chunk, using the filename
// as document title and the path as source.
func NewChunkFromFile(filePath string) (*Chunk, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	chunk := NewChunk(string(content), filePath, 0)
	chunk.Document = filepath.Base(filePath)
	return chunk, nil
}

// ExtractionResult holds the candidates an extractor produced for one chunk
type ExtractionResult struct {
	Entities      []*EntityCandidate       `json:"entities"`
	Relationships []*RelationshipCandidate `json:"relationships"`
}
