package webpage

import (
	"context"
	"strings"
)

const (
	DefaultChunkSize = 4000
	DefaultMaxChunks = 3
)

// Document is the readable text of a page.
type Document struct {
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`
	Text  string `json:"text"`
	// Chunks is the total number of chunks; Text holds the first ones.
	Chunks    int  `json:"chunks"`
	Truncated bool `json:"truncated"`
}

type ReaderConfig struct {
	ChunkSize    int
	ChunkOverlap int
	MaxChunks    int
}

// Reader turns a URL into readable text.
type Reader struct {
	fetcher Fetcher
	cfg     ReaderConfig
}

func NewReader(fetcher Fetcher, cfg ReaderConfig) *Reader {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.ChunkOverlap < 0 || cfg.ChunkOverlap >= cfg.ChunkSize {
		cfg.ChunkOverlap = 0
	}
	if cfg.MaxChunks <= 0 {
		cfg.MaxChunks = DefaultMaxChunks
	}
	return &Reader{fetcher: fetcher, cfg: cfg}
}

func (r *Reader) Read(ctx context.Context, rawURL string) (*Document, error) {
	page, err := r.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	doc := &Document{URL: page.URL}
	text := page.Body
	if page.IsHTML() {
		doc.Title = Title(page.Body)
		if text, err = ExtractText(page.Body); err != nil {
			return nil, err
		}
	}

	chunks, err := Split(text, r.cfg.ChunkSize, r.cfg.ChunkOverlap)
	if err != nil {
		return nil, err
	}

	doc.Chunks = len(chunks)
	keep := chunks
	if len(keep) > r.cfg.MaxChunks {
		keep = keep[:r.cfg.MaxChunks]
		doc.Truncated = true
	}
	doc.Text = strings.Join(keep, "\n\n")
	return doc, nil
}
