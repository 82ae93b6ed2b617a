package rag

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkerEmptyText(t *testing.T) {
	chunker, err := NewChunker(ChunkerConfig{})
	require.NoError(t, err)

	chunks, err := chunker.ChunkText("   \n\n  ", nil)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestChunkerShortTextSingleChunk(t *testing.T) {
	chunker, err := NewChunker(ChunkerConfig{})
	require.NoError(t, err)

	chunks, err := chunker.ChunkText("First paragraph.\n\nSecond paragraph.", map[string]string{"url": "https://x"})
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Contains(t, chunks[0].Text, "First paragraph.")
	assert.Contains(t, chunks[0].Text, "Second paragraph.")
	assert.Equal(t, "https://x", chunks[0].Metadata["url"])
}

func TestChunkerSplitsOnTokenBudget(t *testing.T) {
	chunker, err := NewChunker(ChunkerConfig{ChunkSize: 40, ChunkOverlap: 5})
	require.NoError(t, err)

	var sb strings.Builder
	for i := 0; i < 10; i++ {
		sb.WriteString("This paragraph talks about something mildly interesting at length.\n\n")
	}

	chunks, err := chunker.ChunkText(sb.String(), nil)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	for _, chunk := range chunks {
		tokens, err := chunker.CountTokens(chunk.Text)
		require.NoError(t, err)
		assert.LessOrEqual(t, tokens, 50, "chunks stay near the configured budget")
	}
}

func TestChunkerOversizedParagraph(t *testing.T) {
	chunker, err := NewChunker(ChunkerConfig{ChunkSize: 20})
	require.NoError(t, err)

	huge := strings.Repeat("abcdefghij ", 200)
	chunks, err := chunker.ChunkText(huge, nil)
	require.NoError(t, err)
	assert.Greater(t, len(chunks), 1)
	for _, chunk := range chunks {
		assert.NotEmpty(t, chunk.Text)
	}
}

func TestChunkerMetadataIsCopied(t *testing.T) {
	chunker, err := NewChunker(ChunkerConfig{})
	require.NoError(t, err)

	meta := map[string]string{"url": "https://x"}
	chunks, err := chunker.ChunkText("some text", meta)
	require.NoError(t, err)
	require.Len(t, chunks, 1)

	chunks[0].Metadata["url"] = "mutated"
	assert.Equal(t, "https://x", meta["url"])
}
