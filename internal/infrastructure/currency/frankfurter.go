package currency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

const DefaultEndpoint = "https://api.frankfurter.app"

var (
	ErrUnknownCurrency = errors.New("unknown currency")
	codePattern        = regexp.MustCompile(`^[A-Z]{3}$`)
)

// Quote is an exchange rate observed on a given day.
type Quote struct {
	From string
	To   string
	Rate float64
	Date string
}

type Converter interface {
	Rate(ctx context.Context, from, to string) (Quote, error)
}

// FrankfurterClient reads ECB reference rates from a Frankfurter-compatible
// API. Rates are published once a day so quotes are cached per pair.
type FrankfurterClient struct {
	endpoint string
	client   *http.Client
	cache    *lru.Cache[string, cachedQuote]
	ttl      time.Duration
	now      func() time.Time
}

type cachedQuote struct {
	quote   Quote
	fetched time.Time
}

func NewFrankfurterClient(endpoint string, client *http.Client) *FrankfurterClient {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	cache, _ := lru.New[string, cachedQuote](256)
	return &FrankfurterClient{
		endpoint: strings.TrimRight(endpoint, "/"),
		client:   client,
		cache:    cache,
		ttl:      time.Hour,
		now:      time.Now,
	}
}

// NormalizeCode upper-cases and validates an ISO 4217 code.
func NormalizeCode(code string) (string, error) {
	c := strings.ToUpper(strings.TrimSpace(code))
	if !codePattern.MatchString(c) {
		return "", fmt.Errorf("%w: %q", ErrUnknownCurrency, code)
	}
	return c, nil
}

func (c *FrankfurterClient) Rate(ctx context.Context, from, to string) (Quote, error) {
	from, err := NormalizeCode(from)
	if err != nil {
		return Quote{}, err
	}
	to, err = NormalizeCode(to)
	if err != nil {
		return Quote{}, err
	}
	if from == to {
		return Quote{From: from, To: to, Rate: 1, Date: c.now().Format("2006-01-02")}, nil
	}

	key := from + "/" + to
	if cached, ok := c.cache.Get(key); ok && c.now().Sub(cached.fetched) < c.ttl {
		return cached.quote, nil
	}

	q := url.Values{}
	q.Set("from", from)
	q.Set("to", to)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/latest?"+q.Encode(), nil)
	if err != nil {
		return Quote{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return Quote{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Quote{}, fmt.Errorf("read response: %w", err)
	}
	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusUnprocessableEntity:
		return Quote{}, fmt.Errorf("%w: %s or %s", ErrUnknownCurrency, from, to)
	case resp.StatusCode != http.StatusOK:
		return Quote{}, fmt.Errorf("rates service returned %d", resp.StatusCode)
	}

	var payload struct {
		Base  string             `json:"base"`
		Date  string             `json:"date"`
		Rates map[string]float64 `json:"rates"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return Quote{}, fmt.Errorf("parse response: %w", err)
	}
	rate, ok := payload.Rates[to]
	if !ok {
		return Quote{}, fmt.Errorf("%w: %s", ErrUnknownCurrency, to)
	}

	quote := Quote{From: from, To: to, Rate: rate, Date: payload.Date}
	c.cache.Add(key, cachedQuote{quote: quote, fetched: c.now()})
	return quote, nil
}
