package websearch

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"
)

const duckDuckGoEndpoint = "https://html.duckduckgo.com/html/"

var _ Searcher = (*DuckDuckGoClient)(nil)

// DuckDuckGoClient scrapes the DuckDuckGo HTML endpoint. It needs no key and
// serves as the fallback backend.
type DuckDuckGoClient struct {
	endpoint string
	limiter  *rate.Limiter
	client   *http.Client
}

func NewDuckDuckGoClient(endpoint string, limiter *rate.Limiter, client *http.Client) *DuckDuckGoClient {
	if endpoint == "" {
		endpoint = duckDuckGoEndpoint
	}
	if client == nil {
		client = &http.Client{Timeout: requestTimeout}
	}
	return &DuckDuckGoClient{endpoint: endpoint, limiter: limiter, client: client}
}

func (c *DuckDuckGoClient) Name() string { return "duckduckgo" }

func (c *DuckDuckGoClient) Search(ctx context.Context, query string, count int) ([]Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?q="+url.QueryEscape(query), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	body, err := do(ctx, c.client, c.limiter, req)
	if err != nil {
		return nil, err
	}
	return parseDuckDuckGo(body, clampCount(count))
}

func parseDuckDuckGo(body []byte, count int) ([]Result, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var results []Result
	doc.Find(".result").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		link := s.Find("a.result__a").First()
		href, ok := link.Attr("href")
		if !ok {
			return true
		}
		results = append(results, Result{
			Title:   strings.TrimSpace(link.Text()),
			URL:     unwrapRedirect(href),
			Snippet: strings.TrimSpace(s.Find(".result__snippet").First().Text()),
		})
		return len(results) < count
	})
	return results, nil
}

// unwrapRedirect extracts the target of DuckDuckGo's /l/?uddg= redirect links.
func unwrapRedirect(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	if u.Scheme == "" && strings.HasPrefix(href, "//") {
		return "https:" + href
	}
	return href
}
