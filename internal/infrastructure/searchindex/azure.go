package searchindex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultAPIVersion = "2023-11-01"
	defaultTop        = 5
	maxTop            = 20
)

type Config struct {
	Endpoint   string
	APIKey     string
	Index      string
	APIVersion string
	// ContentField names the field holding the document text. Other fields
	// are returned as metadata.
	ContentField string
	TitleField   string
	Client       *http.Client
}

// Document is one search hit.
type Document struct {
	ID       string         `json:"id,omitempty"`
	Title    string         `json:"title,omitempty"`
	Content  string         `json:"content"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type Query struct {
	Text   string
	Filter string
	Top    int
}

// AzureClient queries an Azure AI Search index through its REST API.
type AzureClient struct {
	cfg    Config
	client *http.Client
}

func NewAzureClient(cfg Config) *AzureClient {
	if cfg.APIVersion == "" {
		cfg.APIVersion = defaultAPIVersion
	}
	if cfg.ContentField == "" {
		cfg.ContentField = "content"
	}
	if cfg.TitleField == "" {
		cfg.TitleField = "title"
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &AzureClient{cfg: cfg, client: client}
}

func (c *AzureClient) Index() string { return c.cfg.Index }

func (c *AzureClient) Search(ctx context.Context, q Query) ([]Document, error) {
	top := q.Top
	if top <= 0 {
		top = defaultTop
	}
	if top > maxTop {
		top = maxTop
	}

	payload := map[string]any{
		"search":     q.Text,
		"top":        top,
		"queryType":  "simple",
		"searchMode": "any",
	}
	if q.Filter != "" {
		payload["filter"] = q.Filter
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	url := fmt.Sprintf("%s/indexes/%s/docs/search?api-version=%s",
		strings.TrimRight(c.cfg.Endpoint, "/"), c.cfg.Index, c.cfg.APIVersion)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search index returned %d: %s", resp.StatusCode, truncate(string(raw), 300))
	}

	var searchResp struct {
		Value []map[string]any `json:"value"`
	}
	if err := json.Unmarshal(raw, &searchResp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	docs := make([]Document, 0, len(searchResp.Value))
	for _, hit := range searchResp.Value {
		docs = append(docs, c.toDocument(hit))
	}
	return docs, nil
}

func (c *AzureClient) toDocument(hit map[string]any) Document {
	doc := Document{Metadata: map[string]any{}}
	for k, v := range hit {
		switch {
		case k == "@search.score":
			doc.Score, _ = v.(float64)
		case strings.HasPrefix(k, "@search."):
		case k == c.cfg.ContentField:
			doc.Content = fmt.Sprint(v)
		case k == c.cfg.TitleField:
			doc.Title = fmt.Sprint(v)
		case k == "id":
			doc.ID = fmt.Sprint(v)
		default:
			doc.Metadata[k] = v
		}
	}
	if len(doc.Metadata) == 0 {
		doc.Metadata = nil
	}
	return doc
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
