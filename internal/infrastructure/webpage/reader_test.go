package webpage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-rod/rod/lib/launcher"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const articleHTML = `<!DOCTYPE html>
<html>
<head><title>Madrid travel costs</title><script>track()</script></head>
<body>
  <nav><a href="/">Home</a> <a href="/deals">Deals</a></nav>
  <article>
    <h1>Hotels in Madrid</h1>
    <p>A budget hotel   room costs
       around <b>40 EUR</b> per night.</p>
    <ul><li>Hostels: 20 EUR</li><li>Hotels: 40 EUR</li></ul>
    <table><tr><th>City</th><th>Price</th></tr><tr><td>Madrid</td><td>40</td></tr></table>
  </article>
  <footer>Copyright 2024</footer>
</body>
</html>`

func TestExtractText(t *testing.T) {
	text, err := ExtractText(articleHTML)
	require.NoError(t, err)

	assert.Equal(t, strings.Join([]string{
		"Hotels in Madrid",
		"A budget hotel room costs around 40 EUR per night.",
		"- Hostels: 20 EUR",
		"- Hotels: 40 EUR",
		"City | Price",
		"Madrid | 40",
	}, "\n"), text)
}

func TestTitle(t *testing.T) {
	assert.Equal(t, "Madrid travel costs", Title(articleHTML))
	assert.Equal(t, "Heading", Title(`<body><h1> Heading </h1></body>`))
	assert.Empty(t, Title(`<body><p>none</p></body>`))
}

func TestSplit(t *testing.T) {
	text := strings.Repeat("word ", 200)

	chunks, err := Split(text, 100, 0)

	require.NoError(t, err)
	assert.Greater(t, len(chunks), 5)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c), 100)
	}

	empty, err := Split("   ", 100, 0)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestReader_ReadsHTMLPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, articleHTML)
	}))
	defer srv.Close()

	reader := NewReader(NewHTTPFetcher(nil), ReaderConfig{})

	doc, err := reader.Read(context.Background(), srv.URL+"/madrid")

	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/madrid", doc.URL)
	assert.Equal(t, "Madrid travel costs", doc.Title)
	assert.Contains(t, doc.Text, "40 EUR per night")
	assert.NotContains(t, doc.Text, "Copyright")
	assert.NotContains(t, doc.Text, "track()")
	assert.Equal(t, 1, doc.Chunks)
	assert.False(t, doc.Truncated)
}

func TestReader_TruncatesToMaxChunks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprint(w, strings.Repeat("Lorem ipsum dolor sit amet.\n\n", 100))
	}))
	defer srv.Close()

	reader := NewReader(NewHTTPFetcher(nil), ReaderConfig{ChunkSize: 200, MaxChunks: 2})

	doc, err := reader.Read(context.Background(), srv.URL)

	require.NoError(t, err)
	assert.Empty(t, doc.Title)
	assert.True(t, doc.Truncated)
	assert.Greater(t, doc.Chunks, 2)
	assert.LessOrEqual(t, len(doc.Text), 2*200+2)
}

func TestHTTPFetcher_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/missing":
			http.NotFound(w, r)
		case "/image":
			w.Header().Set("Content-Type", "image/png")
			w.Write([]byte{0x89, 'P', 'N', 'G'})
		}
	}))
	defer srv.Close()

	f := NewHTTPFetcher(nil)
	ctx := context.Background()

	_, err := f.Fetch(ctx, srv.URL+"/missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")

	_, err = f.Fetch(ctx, srv.URL+"/image")
	assert.True(t, errors.Is(err, ErrUnsupportedContent))

	_, err = f.Fetch(ctx, "file:///etc/passwd")
	assert.Error(t, err)

	_, err = f.Fetch(ctx, "https://")
	assert.Error(t, err)
}

func TestRodFetcher_RendersPage(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping browser test in short mode")
	}
	bin, ok := launcher.LookPath()
	if !ok {
		t.Skip("No Chromium found")
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head><title>Rendered</title></head><body><div id="out"></div>
			<script>document.getElementById('out').textContent = 'built by script';</script></body></html>`)
	}))
	defer srv.Close()

	cfg := DefaultRodConfig()
	cfg.Bin = bin
	cfg.NoSandbox = true
	fetcher := NewRodFetcher(cfg)
	defer fetcher.Close()

	doc, err := NewReader(fetcher, ReaderConfig{}).Read(context.Background(), srv.URL)

	require.NoError(t, err)
	assert.Equal(t, "Rendered", doc.Title)
	assert.Contains(t, doc.Text, "built by script")
}
