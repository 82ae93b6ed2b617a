package rag

import (
	"context"
	"crypto/sha256"
	"fmt"

	"pageassist/internal/chat/ports"
	"pageassist/internal/logging"
)

// Indexer turns extracted page content into stored passages.
type Indexer struct {
	chunker  Chunker
	embedder Embedder
	store    VectorStore
	logger   logging.Logger
}

// IndexStats holds indexing statistics.
type IndexStats struct {
	Chunks      int
	TotalStored int
}

// NewIndexer creates an indexer.
func NewIndexer(chunker Chunker, embedder Embedder, store VectorStore) *Indexer {
	return &Indexer{
		chunker:  chunker,
		embedder: embedder,
		store:    store,
		logger:   logging.NewComponentLogger("indexer"),
	}
}

// IndexPage replaces any previously stored passages for the page's URL and
// stores fresh chunks.
func (idx *Indexer) IndexPage(ctx context.Context, page *ports.PageContent) (*IndexStats, error) {
	if page == nil || page.Text == "" {
		return &IndexStats{TotalStored: idx.store.Count()}, nil
	}

	metadata := map[string]string{
		"url":   page.URL,
		"title": page.Title,
		"type":  page.Type,
	}
	chunks, err := idx.chunker.ChunkText(page.Text, metadata)
	if err != nil {
		return nil, fmt.Errorf("chunk text: %w", err)
	}

	if page.URL != "" {
		if err := idx.store.DeleteByMetadata(ctx, map[string]string{"url": page.URL}); err != nil {
			return nil, fmt.Errorf("drop stale passages: %w", err)
		}
	}

	const batchSize = 50
	for i := 0; i < len(chunks); i += batchSize {
		end := i + batchSize
		if end > len(chunks) {
			end = len(chunks)
		}

		batch := chunks[i:end]
		texts := make([]string, len(batch))
		for j, chunk := range batch {
			texts[j] = chunk.Text
		}
		embeddings, err := idx.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("embed batch: %w", err)
		}

		docs := make([]Document, len(batch))
		for j, chunk := range batch {
			docID := fmt.Sprintf("%s#%d", page.URL, i+j)
			hashID := fmt.Sprintf("%x", sha256.Sum256([]byte(docID)))[:16]
			docs[j] = Document{
				ID:        hashID,
				Content:   chunk.Text,
				Embedding: embeddings[j],
				Metadata:  chunk.Metadata,
			}
		}
		if err := idx.store.Add(ctx, docs); err != nil {
			return nil, fmt.Errorf("store documents: %w", err)
		}
	}

	idx.logger.Info("indexed %s into %d chunks", page.URL, len(chunks))
	return &IndexStats{Chunks: len(chunks), TotalStored: idx.store.Count()}, nil
}
