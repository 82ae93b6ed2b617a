// Package pagecontent extracts readable text from web pages so a chat turn
// can be grounded in the page the user is looking at.
package pagecontent

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"pageassist/internal/chat/ports"
	pkgerrors "pageassist/internal/errors"
	"pageassist/internal/httpclient"
	"pageassist/internal/logging"
)

const maxPageBytes = 4 << 20

// Fetcher downloads a URL and extracts its readable text.
type Fetcher struct {
	url        string
	httpClient *http.Client
	logger     logging.Logger
}

var _ ports.PageSource = (*Fetcher)(nil)

// NewFetcher builds a page source for url.
func NewFetcher(url string) *Fetcher {
	logger := logging.NewComponentLogger("pagecontent")
	return &Fetcher{
		url:        url,
		httpClient: httpclient.New(30*time.Second, logger),
		logger:     logger,
	}
}

// Content downloads and extracts the page.
func (f *Fetcher) Content(ctx context.Context) (*ports.PageContent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; pageassist/1.0)")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		if pkgerrors.IsCancellation(err) {
			return nil, err
		}
		return nil, pkgerrors.NewNetworkError("fetch", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, pkgerrors.NewNetworkError("fetch",
			fmt.Errorf("page returned %d for %s", resp.StatusCode, f.url))
	}

	contentType := resp.Header.Get("Content-Type")
	if strings.Contains(contentType, "text/plain") {
		body, err := httpclient.ReadAllWithLimit(resp.Body, maxPageBytes)
		if err != nil {
			return nil, fmt.Errorf("read page: %w", err)
		}
		return &ports.PageContent{URL: f.url, Text: string(body), Type: "text"}, nil
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}
	return ExtractDocument(f.url, doc), nil
}

// Client fetches arbitrary URLs on demand.
type Client struct{}

// NewClient builds an on-demand page fetcher.
func NewClient() *Client { return &Client{} }

// Fetch downloads and extracts the page at url.
func (c *Client) Fetch(ctx context.Context, url string) (*ports.PageContent, error) {
	return NewFetcher(url).Content(ctx)
}

// ExtractDocument pulls the title and readable text out of parsed HTML.
// Script, style, and navigation chrome are dropped before text extraction.
func ExtractDocument(url string, doc *goquery.Document) *ports.PageContent {
	title := strings.TrimSpace(doc.Find("title").First().Text())

	doc.Find("script, style, noscript, nav, footer, header, iframe, svg").Remove()

	root := doc.Find("main")
	if root.Length() == 0 {
		root = doc.Find("article")
	}
	if root.Length() == 0 {
		root = doc.Find("body")
	}

	var sb strings.Builder
	root.Find("h1, h2, h3, h4, h5, h6, p, li, td, th, pre, blockquote").Each(func(_ int, sel *goquery.Selection) {
		text := strings.TrimSpace(sel.Text())
		if text == "" {
			return
		}
		sb.WriteString(text)
		sb.WriteString("\n\n")
	})
	text := strings.TrimSpace(sb.String())
	if text == "" {
		text = strings.TrimSpace(root.Text())
	}

	return &ports.PageContent{
		URL:   url,
		Title: title,
		Text:  text,
		Type:  "html",
	}
}
