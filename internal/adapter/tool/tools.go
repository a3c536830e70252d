package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"retrieval-agent/internal/application/port/output"
	"retrieval-agent/internal/domain/entity"
	"retrieval-agent/internal/infrastructure/webpage"
	"retrieval-agent/internal/infrastructure/websearch"
)

var (
	_ output.ToolPort = (*WebSearchTool)(nil)
	_ output.ToolPort = (*FetchPageTool)(nil)
)

type WebSearchTool struct {
	searcher websearch.Searcher
	logger   output.LoggerPort
}

func NewWebSearchTool(searcher websearch.Searcher, logger output.LoggerPort) *WebSearchTool {
	return &WebSearchTool{searcher: searcher, logger: logger}
}

func (t *WebSearchTool) Name() string { return entity.ToolWebSearch.String() }
func (t *WebSearchTool) Description() string {
	return "Searches the web and returns the top results with title, URL and snippet"
}
func (t *WebSearchTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "Search query",
			},
			"count": map[string]any{
				"type":        "integer",
				"description": "Number of results, 1-10 (default 5)",
			},
		},
		"required": []string{"query"},
	}
}

func (t *WebSearchTool) Execute(ctx context.Context, args string) (string, error) {
	var input struct {
		Query string `json:"query"`
		Count int    `json:"count"`
	}
	if err := json.Unmarshal([]byte(args), &input); err != nil {
		return "", err
	}
	if strings.TrimSpace(input.Query) == "" {
		return "", fmt.Errorf("query must not be empty")
	}

	t.logger.Debug("Searching the web", "backend", t.searcher.Name(), "query", input.Query)
	results, err := t.searcher.Search(ctx, input.Query, input.Count)
	if err != nil {
		return "", fmt.Errorf("web search: %w", err)
	}
	if len(results) == 0 {
		return fmt.Sprintf("No results for %q", input.Query), nil
	}

	var sb strings.Builder
	for i, r := range results {
		fmt.Fprintf(&sb, "%d. %s\n   %s\n", i+1, r.Title, r.URL)
		if r.Snippet != "" {
			fmt.Fprintf(&sb, "   %s\n", r.Snippet)
		}
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}

// PageReader is satisfied by webpage.Reader.
type PageReader interface {
	Read(ctx context.Context, url string) (*webpage.Document, error)
}

type FetchPageTool struct {
	reader PageReader
	logger output.LoggerPort
}

func NewFetchPageTool(reader PageReader, logger output.LoggerPort) *FetchPageTool {
	return &FetchPageTool{reader: reader, logger: logger}
}

func (t *FetchPageTool) Name() string { return entity.ToolFetchPage.String() }
func (t *FetchPageTool) Description() string {
	return "Fetches a web page and returns its readable text"
}
func (t *FetchPageTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url": map[string]any{
				"type":        "string",
				"description": "Absolute http(s) URL to fetch",
			},
		},
		"required": []string{"url"},
	}
}

func (t *FetchPageTool) Execute(ctx context.Context, args string) (string, error) {
	var input struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal([]byte(args), &input); err != nil {
		return "", err
	}

	doc, err := t.reader.Read(ctx, strings.TrimSpace(input.URL))
	if err != nil {
		return "", err
	}
	t.logger.Debug("Fetched page", "url", doc.URL, "chunks", doc.Chunks, "truncated", doc.Truncated)

	var sb strings.Builder
	if doc.Title != "" {
		fmt.Fprintf(&sb, "Title: %s\n", doc.Title)
	}
	fmt.Fprintf(&sb, "URL: %s\n\n%s", doc.URL, doc.Text)
	if doc.Truncated {
		sb.WriteString("\n\n[page truncated]")
	}
	return sb.String(), nil
}
