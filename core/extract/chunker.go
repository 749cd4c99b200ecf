package extract

import (
	"fmt"
	"strings"

	"github.com/siherrmann/knograph/helper"
	"github.com/siherrmann/knograph/model"
)

// DefaultMaxSentencesPerChunk keeps chunks small enough for token
// classification models while leaving enough context for co-occurrence
// inference.
const DefaultMaxSentencesPerChunk = 5

// SplitDocument splits document text into sentence-bounded chunks ready for
// the pipeline. Sentence boundaries are the usual terminators followed by a
// space; whitespace-only segments are dropped.
func SplitDocument(text string, source string, maxSentencesPerChunk int) ([]*model.Chunk, error) {
	if maxSentencesPerChunk <= 0 {
		return nil, helper.NewError("splitting document", fmt.Errorf("max sentences per chunk must be positive, got %v", maxSentencesPerChunk))
	}

	if strings.TrimSpace(text) == "" {
		return []*model.Chunk{}, nil
	}

	text = strings.ReplaceAll(text, "! ", "!|")
	text = strings.ReplaceAll(text, "? ", "?|")
	text = strings.ReplaceAll(text, ". ", ".|")

	var sentences []string
	for _, sentence := range strings.Split(text, "|") {
		sentence = strings.TrimSpace(sentence)
		if sentence != "" {
			sentences = append(sentences, sentence)
		}
	}

	var chunks []*model.Chunk
	var current []string
	for _, sentence := range sentences {
		current = append(current, sentence)
		if len(current) >= maxSentencesPerChunk {
			chunks = append(chunks, model.NewChunk(strings.Join(current, " "), source, len(chunks)))
			current = nil
		}
	}
	if len(current) > 0 {
		chunks = append(chunks, model.NewChunk(strings.Join(current, " "), source, len(chunks)))
	}

	return chunks, nil
}
