package rag

import (
	"context"
	"fmt"
	"strings"

	"pageassist/internal/chat/ports"
)

// RetrieverConfig holds retrieval configuration.
type RetrieverConfig struct {
	TopK          int     // results to return when the caller passes k <= 0 (default: 4)
	MinSimilarity float32 // minimum similarity threshold, 0.0 to 1.0
}

// Retriever searches indexed page passages.
type Retriever struct {
	config RetrieverConfig
	store  VectorStore
}

var _ ports.Retriever = (*Retriever)(nil)

// NewRetriever creates a retriever over the given store.
func NewRetriever(config RetrieverConfig, store VectorStore) *Retriever {
	if config.TopK == 0 {
		config.TopK = 4
	}
	return &Retriever{
		config: config,
		store:  store,
	}
}

// Search returns the k most similar passages for query, ordered by
// similarity descending.
func (r *Retriever) Search(ctx context.Context, query string, k int) ([]ports.Passage, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("empty query")
	}
	if k <= 0 {
		k = r.config.TopK
	}

	searchResults, err := r.store.SearchByText(ctx, query, k, r.config.MinSimilarity)
	if err != nil {
		return nil, fmt.Errorf("search store: %w", err)
	}

	passages := make([]ports.Passage, 0, len(searchResults))
	for _, sr := range searchResults {
		source := sr.Document.Metadata["url"]
		if source == "" {
			source = sr.Document.Metadata["source"]
		}
		passages = append(passages, ports.Passage{
			Content: sr.Document.Content,
			Score:   sr.Similarity,
			Source:  source,
		})
	}
	return passages, nil
}

// FormatPassages renders passages into the context block of a grounded
// prompt.
func FormatPassages(passages []ports.Passage) string {
	if len(passages) == 0 {
		return ""
	}
	var sb strings.Builder
	for i, p := range passages {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(strings.TrimSpace(p.Content))
		if p.Source != "" {
			sb.WriteString("\nSource: " + p.Source)
		}
	}
	return sb.String()
}
