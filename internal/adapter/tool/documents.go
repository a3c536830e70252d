package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"retrieval-agent/internal/application/port/output"
	"retrieval-agent/internal/domain/entity"
	"retrieval-agent/internal/infrastructure/searchindex"
)

var _ output.ToolPort = (*DocumentSearchTool)(nil)

const maxDocumentChars = 1500

type DocumentIndex interface {
	Index() string
	Search(ctx context.Context, q searchindex.Query) ([]searchindex.Document, error)
}

type DocumentSearchTool struct {
	index  DocumentIndex
	logger output.LoggerPort
}

func NewDocumentSearchTool(index DocumentIndex, logger output.LoggerPort) *DocumentSearchTool {
	return &DocumentSearchTool{index: index, logger: logger}
}

func (t *DocumentSearchTool) Name() string { return entity.ToolDocumentSearch.String() }
func (t *DocumentSearchTool) Description() string {
	return fmt.Sprintf("Full-text search over the %q document index", t.index.Index())
}
func (t *DocumentSearchTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "Search text",
			},
			"filter": map[string]any{
				"type":        "string",
				"description": "Optional OData filter expression",
			},
			"top": map[string]any{
				"type":        "integer",
				"description": "Maximum number of documents (default 5)",
			},
		},
		"required": []string{"query"},
	}
}

func (t *DocumentSearchTool) Execute(ctx context.Context, args string) (string, error) {
	var input struct {
		Query  string `json:"query"`
		Filter string `json:"filter"`
		Top    int    `json:"top"`
	}
	if err := json.Unmarshal([]byte(args), &input); err != nil {
		return "", err
	}

	docs, err := t.index.Search(ctx, searchindex.Query{Text: input.Query, Filter: input.Filter, Top: input.Top})
	if err != nil {
		return "", fmt.Errorf("document search: %w", err)
	}
	t.logger.Debug("Document search finished", "index", t.index.Index(), "hits", len(docs))
	if len(docs) == 0 {
		return fmt.Sprintf("No documents match %q", input.Query), nil
	}

	var sb strings.Builder
	for i, d := range docs {
		title := d.Title
		if title == "" {
			title = d.ID
		}
		fmt.Fprintf(&sb, "[%d] %s (score %.2f)\n", i+1, title, d.Score)
		content := d.Content
		if r := []rune(content); len(r) > maxDocumentChars {
			content = string(r[:maxDocumentChars]) + "..."
		}
		sb.WriteString(content)
		sb.WriteString("\n\n")
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}
