package chat

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pageassist/internal/chat/ports"
	"pageassist/internal/llm"
)

type fakeIndexer struct {
	urls []string
}

func (f *fakeIndexer) IndexURL(ctx context.Context, url string) error {
	f.urls = append(f.urls, url)
	return nil
}

type fakeSearch struct {
	results []ports.SearchResult
	calls   int
	lastQ   string
}

func (f *fakeSearch) Search(ctx context.Context, query string, max int) ([]ports.SearchResult, error) {
	f.calls++
	f.lastQ = query
	return f.results, nil
}

type fakeFetcher struct {
	page *ports.PageContent
	urls []string
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (*ports.PageContent, error) {
	f.urls = append(f.urls, url)
	return f.page, nil
}

func TestNormalTurnWithPageIsPromotedToGrounding(t *testing.T) {
	client := &llm.MockClient{Chunks: []ports.ContentDelta{{Delta: "from the page"}}}
	orch, _ := newTestOrchestrator(t, client)
	retriever := &fakeRetriever{passages: []ports.Passage{
		{Content: "release adds streaming", Source: "https://x/notes"},
	}}
	indexer := &fakeIndexer{}
	orch.opts.Retriever = retriever
	orch.opts.Indexer = indexer

	outcome, err := orch.Submit(context.Background(), Turn{
		Model:   "m",
		Message: "what changed",
		PageURL: "https://x/notes",
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"https://x/notes"}, indexer.urls)
	require.Len(t, outcome.Sources, 1)

	human := client.LastRequest.Messages[len(client.LastRequest.Messages)-1]
	assert.Contains(t, human.Content, "release adds streaming")
	assert.Contains(t, human.Content, "what changed")
}

func TestNormalTurnWithoutRetrievalStaysPlain(t *testing.T) {
	client := &llm.MockClient{Chunks: []ports.ContentDelta{{Delta: "ok"}}}
	orch, _ := newTestOrchestrator(t, client)

	_, err := orch.Submit(context.Background(), Turn{
		Model:   "m",
		Message: "what changed",
		PageURL: "https://x/notes",
	}, nil)
	require.NoError(t, err)

	human := client.LastRequest.Messages[len(client.LastRequest.Messages)-1]
	assert.Equal(t, "what changed", human.Content)
}

func TestWebSearchGroundsInResults(t *testing.T) {
	client := &llm.MockClient{Chunks: []ports.ContentDelta{{Delta: "answer"}}}
	orch, _ := newTestOrchestrator(t, client)
	search := &fakeSearch{results: []ports.SearchResult{
		{Title: "Go docs", URL: "https://go.dev", Content: "go is a language"},
	}}
	orch.opts.Search = search

	outcome, err := orch.Submit(context.Background(), Turn{
		Model:   "m",
		Message: "what is go",
		Mode:    ModeWebSearch,
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, search.calls)
	assert.Equal(t, "what is go", search.lastQ)
	require.Len(t, outcome.Sources, 1)
	assert.Equal(t, "https://go.dev", outcome.Sources[0].Source)

	human := client.LastRequest.Messages[len(client.LastRequest.Messages)-1]
	assert.Contains(t, human.Content, "go is a language")
}

func TestWebSearchWithURLReadsPageDirectly(t *testing.T) {
	client := &llm.MockClient{Chunks: []ports.ContentDelta{{Delta: "summary"}}}
	orch, _ := newTestOrchestrator(t, client)
	search := &fakeSearch{}
	fetcher := &fakeFetcher{page: &ports.PageContent{
		URL:   "https://go.dev/doc",
		Title: "Docs",
		Text:  "all the documentation",
	}}
	orch.opts.Search = search
	orch.opts.Pages = fetcher

	outcome, err := orch.Submit(context.Background(), Turn{
		Model:   "m",
		Message: "summarize https://go.dev/doc please",
		Mode:    ModeWebSearch,
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, 0, search.calls, "a named URL bypasses the search engine")
	assert.Equal(t, []string{"https://go.dev/doc"}, fetcher.urls)
	require.Len(t, outcome.Sources, 1)
	assert.Equal(t, "https://go.dev/doc", outcome.Sources[0].Source)

	human := client.LastRequest.Messages[len(client.LastRequest.Messages)-1]
	assert.Contains(t, human.Content, "all the documentation")
}

func TestFirstURL(t *testing.T) {
	assert.Equal(t, "https://go.dev", firstURL("see https://go.dev."))
	assert.Equal(t, "http://a.b/c", firstURL("http://a.b/c and more"))
	assert.Equal(t, "", firstURL("no links here"))
}
