package ports

import "context"

// PageContent is the text extracted from a page or document.
type PageContent struct {
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`
	Text  string `json:"text"`
	Type  string `json:"type"` // "html" or "pdf"
}

// PageSource supplies the current page/tab content when a context-aware chat
// mode is active. Implementations that have nothing to offer return nil
// content with nil error.
type PageSource interface {
	Content(ctx context.Context) (*PageContent, error)
}

// SearchResult is one web search hit with fetched page text.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
}

// SearchProvider performs a web search and returns hits with enough text to
// ground an answer.
type SearchProvider interface {
	Search(ctx context.Context, query string, max int) ([]SearchResult, error)
}
