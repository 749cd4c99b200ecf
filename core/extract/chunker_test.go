package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitDocument(t *testing.T) {
	text := "First sentence. Second sentence. Third sentence. Fourth sentence. Fifth sentence."
	chunks, err := SplitDocument(text, "doc.txt", 2)
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	assert.Equal(t, "First sentence. Second sentence.", chunks[0].Text)
	assert.Equal(t, "Third sentence. Fourth sentence.", chunks[1].Text)
	assert.Equal(t, "Fifth sentence.", chunks[2].Text)

	for index, chunk := range chunks {
		assert.Equal(t, index, chunk.Index)
		assert.Equal(t, "doc.txt", chunk.Source)
		assert.NotEqual(t, chunk.RID.String(), "00000000-0000-0000-0000-000000000000")
	}
}

func TestSplitDocumentEmpty(t *testing.T) {
	chunks, err := SplitDocument("   ", "doc.txt", 3)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestSplitDocumentInvalidChunkSize(t *testing.T) {
	_, err := SplitDocument("Some text.", "doc.txt", 0)
	assert.Error(t, err)
}

func TestSplitDocumentMixedDelimiters(t *testing.T) {
	chunks, err := SplitDocument("Really? Yes! Good.", "doc.txt", 10)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "Really? Yes! Good.", chunks[0].Text)
}
