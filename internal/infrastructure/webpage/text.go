package webpage

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/tmc/langchaingo/textsplitter"
	"golang.org/x/net/html"
)

var blockTags = map[string]bool{
	"p": true, "div": true, "section": true, "article": true, "main": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"ul": true, "ol": true, "li": true, "table": true, "tr": true,
	"pre": true, "blockquote": true, "dl": true, "dt": true, "dd": true,
	"header": true, "figure": true, "figcaption": true, "hr": true,
}

// noiseSelector matches elements that never hold page content.
const noiseSelector = "script, style, noscript, template, svg, canvas, iframe, " +
	"nav, footer, aside, form, button"

// Title returns the document title, or the first <h1> when it has none.
func Title(rawHTML string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return ""
	}
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		return title
	}
	return strings.TrimSpace(doc.Find("h1").First().Text())
}

// ExtractText renders the readable part of a page as plain text, one line per
// block element. Navigation, forms and embedded code are dropped.
func ExtractText(rawHTML string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	doc.Find(noiseSelector).Remove()

	root := doc.Find("body")
	if root.Length() == 0 {
		root = doc.Selection
	}

	var b strings.Builder
	writeText(&b, root, false)
	return collapseWhitespace(b.String()), nil
}

// writeText keeps line breaks only inside <pre>; elsewhere they are layout.
func writeText(b *strings.Builder, s *goquery.Selection, pre bool) {
	s.Contents().Each(func(_ int, c *goquery.Selection) {
		node := c.Get(0)
		switch node.Type {
		case html.TextNode:
			if pre {
				b.WriteString(node.Data)
			} else {
				b.WriteString(strings.ReplaceAll(node.Data, "\n", " "))
			}
		case html.ElementNode:
			if node.Data == "br" {
				b.WriteString("\n")
				return
			}
			block := blockTags[node.Data]
			if block {
				b.WriteString("\n")
			}
			if node.Data == "li" {
				b.WriteString("- ")
			}
			if node.Data == "td" || node.Data == "th" {
				b.WriteString(" | ")
			}
			writeText(b, c, pre || node.Data == "pre")
			if block {
				b.WriteString("\n")
			}
		}
	})
}

func collapseWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		line = strings.TrimPrefix(line, "| ")
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

// Split cuts text into overlapping chunks of at most chunkSize characters.
func Split(text string, chunkSize, overlap int) ([]string, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(chunkSize),
		textsplitter.WithChunkOverlap(overlap),
	)
	chunks, err := splitter.SplitText(text)
	if err != nil {
		return nil, fmt.Errorf("split text: %w", err)
	}
	return chunks, nil
}
