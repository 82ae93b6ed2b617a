package rag

import (
	"context"
	"fmt"

	"pageassist/internal/pagecontent"
)

// URLIndexer fetches a page and feeds it through the indexing pipeline.
type URLIndexer struct {
	indexer *Indexer
}

// NewURLIndexer wraps an indexer with page fetching.
func NewURLIndexer(indexer *Indexer) *URLIndexer {
	return &URLIndexer{indexer: indexer}
}

// IndexURL downloads, extracts, and indexes the page at url.
func (u *URLIndexer) IndexURL(ctx context.Context, url string) error {
	page, err := pagecontent.NewFetcher(url).Content(ctx)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", url, err)
	}
	_, err = u.indexer.IndexPage(ctx, page)
	return err
}
