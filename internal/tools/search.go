package tools

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
)

const defaultSearchMaxResults = 5

// SearchResult represents a single web search result.
type SearchResult struct {
	Title   string
	URL     string
	Snippet string
}

// SearchTool performs web searches via the DuckDuckGo HTML endpoint. It
// needs no API key and is safe-mode independent.
type SearchTool struct {
	httpClient *http.Client
	endpoint   string
	maxResults int
}

// NewSearchTool creates a search tool. maxResults <= 0 uses the default.
func NewSearchTool(maxResults int) *SearchTool {
	if maxResults <= 0 {
		maxResults = defaultSearchMaxResults
	}
	return &SearchTool{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		endpoint:   "https://html.duckduckgo.com/html/",
		maxResults: maxResults,
	}
}

func (t *SearchTool) Name() string { return "search" }

func (t *SearchTool) Description() string {
	return "Search the web for information on any topic."
}

func (t *SearchTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "Search query",
			},
		},
		"required": []string{"query"},
	}
}

// Invoke performs the search and formats the top results.
func (t *SearchTool) Invoke(ctx context.Context, args map[string]any) Outcome {
	query := GetString(args, "query", "")
	if query == "" {
		return Failure("query is required")
	}

	results, err := t.search(ctx, query)
	if err != nil {
		return Failure(fmt.Sprintf("error performing search: %v", err))
	}
	if len(results) == 0 {
		return Success("No search results found for: " + query)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Search results for: %s\n\n", query))
	for i, r := range results {
		sb.WriteString(fmt.Sprintf("%d. **%s**\n", i+1, r.Title))
		if r.Snippet != "" {
			sb.WriteString(fmt.Sprintf("   %s\n", r.Snippet))
		}
		sb.WriteString(fmt.Sprintf("   URL: %s\n\n", r.URL))
	}
	return Success(strings.TrimSpace(sb.String()))
}

func (t *SearchTool) search(ctx context.Context, query string) ([]SearchResult, error) {
	searchURL := fmt.Sprintf("%s?q=%s", t.endpoint, url.QueryEscape(query))
	req, err := http.NewRequestWithContext(ctx, "GET", searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	return parseSearchResults(string(body), t.maxResults)
}

// parseSearchResults extracts results from the DuckDuckGo HTML page. Result
// blocks are divs with class "result"; the link carries class "result__a"
// and the snippet "result__snippet".
func parseSearchResults(page string, maxResults int) ([]SearchResult, error) {
	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("parse HTML: %w", err)
	}

	var results []SearchResult
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if len(results) >= maxResults {
			return
		}
		if n.Type == html.ElementNode && n.Data == "div" && hasClass(n, "result") {
			if r := extractSearchResult(n); r.Title != "" && r.URL != "" {
				results = append(results, r)
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return results, nil
}

func extractSearchResult(n *html.Node) SearchResult {
	var result SearchResult
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			if hasClass(n, "result__a") {
				result.URL = cleanRedirectURL(attrValue(n, "href"))
				result.Title = textContent(n)
			} else if hasClass(n, "result__snippet") {
				result.Snippet = textContent(n)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return result
}

// cleanRedirectURL unwraps DuckDuckGo's redirect links.
func cleanRedirectURL(raw string) string {
	if idx := strings.Index(raw, "uddg="); idx >= 0 {
		encoded := raw[idx+len("uddg="):]
		if amp := strings.Index(encoded, "&"); amp >= 0 {
			encoded = encoded[:amp]
		}
		if decoded, err := url.QueryUnescape(encoded); err == nil {
			return decoded
		}
	}
	return raw
}

func hasClass(n *html.Node, class string) bool {
	for _, attr := range n.Attr {
		if attr.Key == "class" {
			for _, c := range strings.Fields(attr.Val) {
				if c == class {
					return true
				}
			}
		}
	}
	return false
}

func attrValue(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(sb.String())
}
