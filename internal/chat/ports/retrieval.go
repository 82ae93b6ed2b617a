package ports

import "context"

// Passage is one retrieved context snippet: text, similarity score, and the
// identifier of the source it came from. Produced transiently per query.
type Passage struct {
	Content string  `json:"content"`
	Score   float32 `json:"score"`
	Source  string  `json:"source"`
}

// Retriever performs similarity search over indexed content. Indexing and
// embedding internals live behind this boundary.
type Retriever interface {
	Search(ctx context.Context, query string, k int) ([]Passage, error)
}
