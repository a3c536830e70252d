package service

import (
	"context"
	"fmt"
	"time"

	"retrieval-agent/internal/application/port/output"

	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	defaultCacheMaxSize = 256
	defaultCacheTTL     = 5 * time.Minute
)

type CacheConfig struct {
	MaxSize int
	TTL     time.Duration
}

func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		MaxSize: defaultCacheMaxSize,
		TTL:     defaultCacheTTL,
	}
}

type cacheEntry struct {
	content  string
	storedAt time.Time
}

// CachedTool memoises successful results of a read-only tool, keyed by the
// normalised arguments. Errors are never cached.
type CachedTool struct {
	output.ToolPort
	cache *lru.Cache[string, cacheEntry]
	ttl   time.Duration
	now   func() time.Time
}

// WithCache wraps tool with an LRU result cache. Side-effecting tools are
// returned unwrapped.
func WithCache(tool output.ToolPort, cfg CacheConfig) output.ToolPort {
	if output.HasSideEffects(tool) {
		return tool
	}
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = defaultCacheMaxSize
	}
	if cfg.TTL <= 0 {
		cfg.TTL = defaultCacheTTL
	}
	cache, err := lru.New[string, cacheEntry](cfg.MaxSize)
	if err != nil {
		return tool
	}
	return &CachedTool{
		ToolPort: tool,
		cache:    cache,
		ttl:      cfg.TTL,
		now:      time.Now,
	}
}

func (c *CachedTool) Execute(ctx context.Context, arguments string) (string, error) {
	key := c.cacheKey(arguments)

	if entry, ok := c.cache.Get(key); ok {
		if c.now().Sub(entry.storedAt) < c.ttl {
			return entry.content, nil
		}
		c.cache.Remove(key)
	}

	result, err := c.ToolPort.Execute(ctx, arguments)
	if err != nil {
		return result, err
	}
	c.cache.Add(key, cacheEntry{content: result, storedAt: c.now()})
	return result, nil
}

func (c *CachedTool) cacheKey(arguments string) string {
	return fmt.Sprintf("%s:%s", c.Name(), normalizeArguments(arguments))
}
