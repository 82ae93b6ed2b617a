package rag

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pageassist/internal/chat/ports"
)

// keywordEmbedder maps texts onto fixed unit vectors by keyword so
// similarity search is deterministic without a model.
type keywordEmbedder struct{}

func (keywordEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	switch {
	case strings.Contains(text, "cat"):
		return []float32{1, 0, 0}, nil
	case strings.Contains(text, "dog"):
		return []float32{0, 1, 0}, nil
	default:
		return []float32{0, 0, 1}, nil
	}
}

func (e keywordEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func TestVectorStoreAddAndSearch(t *testing.T) {
	store, err := NewVectorStore(StoreConfig{}, keywordEmbedder{})
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, []Document{
		{ID: "1", Content: "cats are independent", Metadata: map[string]string{"url": "https://cats"}},
		{ID: "2", Content: "dogs are loyal", Metadata: map[string]string{"url": "https://dogs"}},
	}))
	assert.Equal(t, 2, store.Count())

	results, err := store.SearchByText(ctx, "tell me about cats", 1, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "cats are independent", results[0].Document.Content)
	assert.Equal(t, "https://cats", results[0].Document.Metadata["url"])
}

func TestVectorStoreEmptyCollection(t *testing.T) {
	store, err := NewVectorStore(StoreConfig{}, keywordEmbedder{})
	require.NoError(t, err)

	results, err := store.SearchByText(context.Background(), "anything", 5, 0)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestVectorStorePersistence(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := NewVectorStore(StoreConfig{PersistPath: dir}, keywordEmbedder{})
	require.NoError(t, err)
	require.NoError(t, store.Add(ctx, []Document{
		{ID: "1", Content: "cats purr", Metadata: map[string]string{"url": "https://cats"}},
	}))

	reopened, err := NewVectorStore(StoreConfig{PersistPath: dir}, keywordEmbedder{})
	require.NoError(t, err)
	assert.Equal(t, 1, reopened.Count())
}

func TestRetrieverReturnsPassages(t *testing.T) {
	store, err := NewVectorStore(StoreConfig{}, keywordEmbedder{})
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, []Document{
		{ID: "1", Content: "cats purr", Metadata: map[string]string{"url": "https://cats"}},
	}))

	retriever := NewRetriever(RetrieverConfig{}, store)
	passages, err := retriever.Search(ctx, "cat sounds", 0)
	require.NoError(t, err)
	require.Len(t, passages, 1)
	assert.Equal(t, "cats purr", passages[0].Content)
	assert.Equal(t, "https://cats", passages[0].Source)
	assert.Greater(t, passages[0].Score, float32(0))
}

func TestRetrieverEmptyQuery(t *testing.T) {
	store, err := NewVectorStore(StoreConfig{}, keywordEmbedder{})
	require.NoError(t, err)

	retriever := NewRetriever(RetrieverConfig{}, store)
	_, err = retriever.Search(context.Background(), "   ", 3)
	require.Error(t, err)
}

func TestIndexerReplacesPageOnReindex(t *testing.T) {
	store, err := NewVectorStore(StoreConfig{}, keywordEmbedder{})
	require.NoError(t, err)
	chunker, err := NewChunker(ChunkerConfig{})
	require.NoError(t, err)
	indexer := NewIndexer(chunker, keywordEmbedder{}, store)
	ctx := context.Background()

	page := &ports.PageContent{URL: "https://pets", Title: "Pets", Text: "cats purr loudly", Type: "html"}
	stats, err := indexer.IndexPage(ctx, page)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Chunks)

	page.Text = "dogs bark loudly"
	stats, err = indexer.IndexPage(ctx, page)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Chunks)
	assert.Equal(t, 1, stats.TotalStored, "stale chunks for the page are dropped")
}

func TestIndexerEmptyPageIsNoop(t *testing.T) {
	store, err := NewVectorStore(StoreConfig{}, keywordEmbedder{})
	require.NoError(t, err)
	chunker, err := NewChunker(ChunkerConfig{})
	require.NoError(t, err)
	indexer := NewIndexer(chunker, keywordEmbedder{}, store)

	stats, err := indexer.IndexPage(context.Background(), &ports.PageContent{URL: "https://empty"})
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Chunks)
	assert.Equal(t, 0, stats.TotalStored)
}

func TestFormatPassages(t *testing.T) {
	got := FormatPassages([]ports.Passage{
		{Content: "alpha", Source: "https://a"},
		{Content: "beta"},
	})
	assert.Contains(t, got, "alpha")
	assert.Contains(t, got, "Source: https://a")
	assert.Contains(t, got, "beta")

	assert.Empty(t, FormatPassages(nil))
}
