package reconstruct

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Tags whose text content is never translated.
var ignoredHTMLTags = map[string]bool{
	"script":   true,
	"style":    true,
	"code":     true,
	"pre":      true,
	"noscript": true,
	"iframe":   true,
	"svg":      true,
	"textarea": true,
}

// ExtractHTMLBlocks returns every translatable text node of an HTML document
// in document order. The walk is deterministic, so running it again on the
// same input yields the same blocks in the same order. ReinsertHTML relies
// on that to match translations back by index.
func ExtractHTMLBlocks(content string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	var blocks []string
	walkTextNodes(doc, func(n *html.Node) {
		blocks = append(blocks, strings.TrimSpace(n.Data))
	})
	return blocks, nil
}

// ReinsertHTML replaces the document's translatable text nodes with the
// given translations, in the same order ExtractHTMLBlocks emits them.
// Surrounding whitespace of each text node is preserved.
func ReinsertHTML(content string, translations []string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	idx := 0
	walkTextNodes(doc, func(n *html.Node) {
		if idx < len(translations) {
			n.Data = preserveWhitespace(n.Data, translations[idx])
		}
		idx++
	})
	if idx != len(translations) {
		return "", fmt.Errorf("translation count mismatch: document has %d text blocks, got %d translations", idx, len(translations))
	}

	out, err := doc.Html()
	if err != nil {
		return "", fmt.Errorf("failed to serialize HTML: %w", err)
	}
	return out, nil
}

// walkTextNodes visits every non-empty text node outside ignored tags, in
// document order.
func walkTextNodes(doc *goquery.Document, visit func(*html.Node)) {
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && ignoredHTMLTags[strings.ToLower(n.Data)] {
			return
		}
		if n.Type == html.TextNode && strings.TrimSpace(n.Data) != "" {
			visit(n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	doc.Each(func(i int, s *goquery.Selection) {
		for _, n := range s.Nodes {
			walk(n)
		}
	})
}

// preserveWhitespace keeps the original node's leading and trailing
// whitespace around the translated text.
func preserveWhitespace(original, translated string) string {
	leading := original[:len(original)-len(strings.TrimLeft(original, " \t\n\r"))]
	trailing := original[len(strings.TrimRight(original, " \t\n\r")):]
	return leading + translated + trailing
}
