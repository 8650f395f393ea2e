package crawler

import (
	"net/url"
	"path"
	"strings"

	"golang.org/x/net/html"
)

// skipExtensions are link targets that are never HTML pages.
var skipExtensions = map[string]struct{}{
	".jpg": {}, ".jpeg": {}, ".png": {}, ".gif": {}, ".svg": {}, ".ico": {},
	".css": {}, ".js": {}, ".pdf": {}, ".zip": {}, ".gz": {}, ".tar": {},
	".mp3": {}, ".mp4": {}, ".webm": {}, ".woff": {}, ".woff2": {}, ".ttf": {},
	".xml": {}, ".json": {}, ".rss": {},
}

// NormalizeURL canonicalizes a page address for deduplication: fragment and
// query are dropped and trailing slashes removed (the root path normalizes
// to none at all), so example.com/docs/ and example.com/docs collapse to one
// document.
func NormalizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.Fragment = ""
	u.RawQuery = ""
	if u.Path == "/" {
		u.Path = ""
	} else if strings.HasSuffix(u.Path, "/") {
		u.Path = strings.TrimRight(u.Path, "/")
	}
	return u.String()
}

// IsValidLink accepts absolute http/https URLs with a host.
func IsValidLink(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return u.Host != ""
}

// ExtractLinks returns the absolute form of every followable <a href> in the
// page: valid scheme and host, same host as base, and not an obvious binary
// or asset extension. Malformed markup is parsed best-effort.
func ExtractLinks(markup string, base *url.URL) []string {
	doc, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return nil
	}

	var links []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, attr := range n.Attr {
				if attr.Key != "href" {
					continue
				}
				if link, ok := resolveLink(attr.Val, base); ok {
					links = append(links, link)
				}
				break
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return links
}

func resolveLink(href string, base *url.URL) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" {
		return "", false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	resolved := base.ResolveReference(ref)

	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return "", false
	}
	if resolved.Host == "" || resolved.Host != base.Host {
		return "", false
	}
	ext := strings.ToLower(path.Ext(resolved.Path))
	if _, skip := skipExtensions[ext]; skip {
		return "", false
	}
	return resolved.String(), true
}
