// Package textproc implements the shared text normalization applied to both
// document content at index time and query strings at search time. The two
// paths MUST agree token for token, otherwise queries can never match.
package textproc

import (
	"strings"

	"golang.org/x/net/html"
)

// Normalize turns raw text into the token stream the index and the query
// pipeline operate on: lowercase, hyphens split, everything outside [a-z0-9]
// stripped, empty tokens and stopwords dropped. Order and multiplicity of
// the surviving tokens are preserved. The result is never nil.
func Normalize(text string) []string {
	text = strings.ToLower(text)
	text = strings.ReplaceAll(text, "-", " ")

	fields := strings.Fields(text)
	tokens := make([]string, 0, len(fields))
	for _, field := range fields {
		token := cleanToken(field)
		if token == "" {
			continue
		}
		if IsStopword(token) {
			continue
		}
		tokens = append(tokens, token)
	}
	return tokens
}

// NormalizeHTML strips markup first, then normalizes the visible text.
func NormalizeHTML(markup string) []string {
	return Normalize(StripTags(markup))
}

// cleanToken removes every byte outside [a-z0-9]. Input is already
// lowercased, so uppercase ASCII and all non-ASCII are stripped alike.
func cleanToken(token string) string {
	var b strings.Builder
	b.Grow(len(token))
	for i := 0; i < len(token); i++ {
		c := token[i]
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') {
			b.WriteByte(c)
		}
	}
	return b.String()
}

// StripTags extracts the visible text of an HTML document. Script, style,
// and noscript subtrees are skipped entirely; text nodes elsewhere are
// joined with spaces. Malformed markup is consumed best-effort.
func StripTags(markup string) string {
	doc, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return markup
	}

	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript":
				return
			}
		}
		if n.Type == html.TextNode {
			text := strings.TrimSpace(n.Data)
			if text != "" {
				if b.Len() > 0 {
					b.WriteByte(' ')
				}
				b.WriteString(text)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return strings.Join(strings.Fields(b.String()), " ")
}

// ExtractTitle returns the trimmed text of the document's <title> element,
// or "" when there is none.
func ExtractTitle(markup string) string {
	doc, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return ""
	}

	var title string
	var walk func(*html.Node) bool
	walk = func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.Data == "title" {
			var b strings.Builder
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.TextNode {
					b.WriteString(c.Data)
				}
			}
			title = strings.Join(strings.Fields(b.String()), " ")
			return true
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if walk(c) {
				return true
			}
		}
		return false
	}
	walk(doc)

	return title
}
