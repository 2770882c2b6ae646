package tools

import (
	"context"
	"fmt"
	"strings"
)

// PageFetcher navigates to a URL and extracts content. Implemented by the
// browser package's rod-backed driver.
type PageFetcher interface {
	Fetch(ctx context.Context, url, selector string) (title, text string, err error)
}

// BrowserTool drives a real browser to read page content. Safe-mode
// independent.
type BrowserTool struct {
	fetcher PageFetcher
}

// NewBrowserTool creates a browser tool backed by the given fetcher.
func NewBrowserTool(fetcher PageFetcher) *BrowserTool {
	return &BrowserTool{fetcher: fetcher}
}

func (t *BrowserTool) Name() string { return "browser" }

func (t *BrowserTool) Description() string {
	return "Open a web page in a browser and read its content. Use for pages that need rendering."
}

func (t *BrowserTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url": map[string]any{
				"type":        "string",
				"description": "The URL to open",
			},
			"selector": map[string]any{
				"type":        "string",
				"description": "Optional CSS selector; defaults to the page body",
			},
		},
		"required": []string{"url"},
	}
}

// Invoke navigates and extracts text from the page.
func (t *BrowserTool) Invoke(ctx context.Context, args map[string]any) Outcome {
	pageURL := GetString(args, "url", "")
	if pageURL == "" {
		return Failure("url is required")
	}
	selector := GetString(args, "selector", "")

	title, text, err := t.fetcher.Fetch(ctx, pageURL, selector)
	if err != nil {
		return Failure(fmt.Sprintf("browser error: %v", err))
	}

	const maxText = 8000
	if len(text) > maxText {
		text = text[:maxText] + "\n... (truncated)"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Page: %s\n", pageURL))
	if title != "" {
		sb.WriteString(fmt.Sprintf("Title: %s\n", title))
	}
	sb.WriteString("\n")
	sb.WriteString(text)
	return Success(sb.String())
}
