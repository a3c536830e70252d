package webpage

import (
	"strings"
	"testing"
)

func mustExtract(t *testing.T, raw string) string {
	t.Helper()
	out, err := ExtractText(raw)
	if err != nil {
		t.Fatalf("ExtractText failed: %v", err)
	}
	return out
}

func TestExtractText_DropsScriptStyle(t *testing.T) {
	html := `
<body>
    <div id="main">Hello</div>
    <script>alert("hi")</script>
    <style>.x { color: red }</style>
    <noscript>Enable JavaScript</noscript>
</body>`

	out := mustExtract(t, html)

	if strings.Contains(out, "alert") || strings.Contains(out, "color") || strings.Contains(out, "JavaScript") {
		t.Errorf("script/style/noscript content must be dropped, output: %q", out)
	}
	if out != "Hello" {
		t.Errorf("expected only the body text, got %q", out)
	}
}

func TestExtractText_DropsComments(t *testing.T) {
	out := mustExtract(t, `<body><!-- comment --><div>Text</div></body>`)

	if out != "Text" {
		t.Errorf("comments must not reach the text, got %q", out)
	}
}

func TestExtractText_DropsNavigationChrome(t *testing.T) {
	html := `
<body>
    <nav><a href="/">Home</a></nav>
    <aside>Related posts</aside>
    <article><p>Paris is the capital of France.</p></article>
    <form><button>Subscribe</button></form>
    <footer>Copyright</footer>
</body>`

	out := mustExtract(t, html)

	for _, noise := range []string{"Home", "Related", "Subscribe", "Copyright"} {
		if strings.Contains(out, noise) {
			t.Errorf("%q must be dropped, output: %q", noise, out)
		}
	}
	if out != "Paris is the capital of France." {
		t.Errorf("article content must remain, got %q", out)
	}
}

func TestExtractText_IgnoresHead(t *testing.T) {
	html := `
<html>
<head>
    <title>Page title</title>
    <meta charset="utf-8">
</head>
<body>
    <p>Hi</p>
</body>
</html>`

	out := mustExtract(t, html)

	if out != "Hi" {
		t.Errorf("head content must not be part of the text, got %q", out)
	}
}

func TestExtractText_KeepsPreformattedLines(t *testing.T) {
	out := mustExtract(t, "<body><p>one\ntwo</p><pre>a\nb</pre></body>")

	if out != "one two\na\nb" {
		t.Errorf("unexpected text %q", out)
	}
}
