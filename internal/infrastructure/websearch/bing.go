package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"golang.org/x/time/rate"
)

const bingEndpoint = "https://api.bing.microsoft.com/v7.0/search"

var _ Searcher = (*BingClient)(nil)

type BingConfig struct {
	APIKey   string
	Endpoint string
	Market   string
	Limiter  *rate.Limiter
	Client   *http.Client
}

// BingClient queries the Bing Web Search v7 API.
type BingClient struct {
	apiKey   string
	endpoint string
	market   string
	limiter  *rate.Limiter
	client   *http.Client
}

func NewBingClient(cfg BingConfig) *BingClient {
	c := &BingClient{
		apiKey:   cfg.APIKey,
		endpoint: cfg.Endpoint,
		market:   cfg.Market,
		limiter:  cfg.Limiter,
		client:   cfg.Client,
	}
	if c.endpoint == "" {
		c.endpoint = bingEndpoint
	}
	if c.client == nil {
		c.client = &http.Client{Timeout: requestTimeout}
	}
	return c
}

func (c *BingClient) Name() string { return "bing" }

func (c *BingClient) Search(ctx context.Context, query string, count int) ([]Result, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("count", strconv.Itoa(clampCount(count)))
	q.Set("textFormat", "Raw")
	if c.market != "" {
		q.Set("mkt", c.market)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Ocp-Apim-Subscription-Key", c.apiKey)

	body, err := do(ctx, c.client, c.limiter, req)
	if err != nil {
		return nil, err
	}

	var bingResp struct {
		WebPages struct {
			Value []struct {
				Name    string `json:"name"`
				URL     string `json:"url"`
				Snippet string `json:"snippet"`
			} `json:"value"`
		} `json:"webPages"`
	}
	if err := json.Unmarshal(body, &bingResp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	results := make([]Result, 0, len(bingResp.WebPages.Value))
	for _, v := range bingResp.WebPages.Value {
		results = append(results, Result{Title: v.Name, URL: v.URL, Snippet: v.Snippet})
	}
	return results, nil
}
