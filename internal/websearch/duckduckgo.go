// Package websearch fetches live search results used to ground an answer.
package websearch

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"pageassist/internal/chat/ports"
	pkgerrors "pageassist/internal/errors"
	"pageassist/internal/httpclient"
	"pageassist/internal/logging"
)

const (
	duckduckgoHTMLURL = "https://html.duckduckgo.com/html/"
	userAgent         = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
	defaultMaxResults = 5
)

// DuckDuckGo scrapes the HTML results page; no API key required.
type DuckDuckGo struct {
	httpClient *http.Client
	baseURL    string
	logger     logging.Logger
}

var _ ports.SearchProvider = (*DuckDuckGo)(nil)

// NewDuckDuckGo builds the provider.
func NewDuckDuckGo() *DuckDuckGo {
	logger := logging.NewComponentLogger("websearch")
	return &DuckDuckGo{
		httpClient: httpclient.New(20*time.Second, logger),
		baseURL:    duckduckgoHTMLURL,
		logger:     logger,
	}
}

// Search returns up to max results for query.
func (d *DuckDuckGo) Search(ctx context.Context, query string, max int) ([]ports.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("empty query")
	}
	if max <= 0 {
		max = defaultMaxResults
	}

	form := url.Values{"q": {query}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", userAgent)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		if pkgerrors.IsCancellation(err) {
			return nil, err
		}
		return nil, pkgerrors.NewNetworkError("search", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, pkgerrors.NewNetworkError("search",
			fmt.Errorf("search endpoint returned %d", resp.StatusCode))
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse search page: %w", err)
	}

	var results []ports.SearchResult
	doc.Find("div.result").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		link := sel.Find("a.result__a")
		href, ok := link.Attr("href")
		if !ok {
			return true
		}
		results = append(results, ports.SearchResult{
			Title:   strings.TrimSpace(link.Text()),
			URL:     cleanResultURL(href),
			Content: strings.TrimSpace(sel.Find(".result__snippet").Text()),
		})
		return len(results) < max
	})

	d.logger.Debug("search %q returned %d results", query, len(results))
	return results, nil
}

// cleanResultURL unwraps the redirect links DuckDuckGo wraps results in.
func cleanResultURL(href string) string {
	parsed, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := parsed.Query().Get("uddg"); target != "" {
		return target
	}
	if parsed.Scheme == "" {
		parsed.Scheme = "https"
		return parsed.String()
	}
	return href
}

// FormatResults renders results into the search block of a grounded prompt.
func FormatResults(results []ports.SearchResult) string {
	var sb strings.Builder
	for i, r := range results {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "<result source=\"%s\" id=\"%d\">%s</result>", r.URL, i+1, r.Content)
	}
	return sb.String()
}
