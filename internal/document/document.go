// Package document defines the document and metadata model shared by the
// crawler, the index builder, and the search pipeline.
package document

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
)

// Document is one crawled page ready for indexing. Content may carry HTML
// markup; HTML tells the normalizer whether to strip it first.
type Document struct {
	ID      string
	Content string
	HTML    bool
	Meta    Metadata
}

// Metadata describes a stored document. Known fields are kept typed; Extra
// preserves any additional keys found in a metadata record so they survive a
// load/save round trip and reappear on search results.
type Metadata struct {
	Title         string
	URL           string
	StatusCode    int
	ContentLength int
	FetchedAt     time.Time
	Extra         map[string]any
}

// IDForURL derives the stable document ID for a page address.
func IDForURL(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:16])
}

// Flatten returns the metadata as a flat key/value map, the shape it takes
// both in the persisted metadata record and merged into search results.
// Zero-valued known fields are omitted.
func (m Metadata) Flatten() map[string]any {
	out := make(map[string]any, len(m.Extra)+5)
	for k, v := range m.Extra {
		out[k] = v
	}
	if m.Title != "" {
		out["title"] = m.Title
	}
	if m.URL != "" {
		out["url"] = m.URL
	}
	if m.StatusCode != 0 {
		out["status_code"] = m.StatusCode
	}
	if m.ContentLength != 0 {
		out["content_length"] = m.ContentLength
	}
	if !m.FetchedAt.IsZero() {
		out["timestamp"] = m.FetchedAt.UTC().Format(time.RFC3339)
	}
	return out
}

func (m Metadata) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Flatten())
}

func (m *Metadata) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*m = Metadata{}
	for key, val := range raw {
		switch key {
		case "title":
			if s, ok := val.(string); ok {
				m.Title = s
				continue
			}
		case "url":
			if s, ok := val.(string); ok {
				m.URL = s
				continue
			}
		case "status_code":
			if f, ok := val.(float64); ok {
				m.StatusCode = int(f)
				continue
			}
		case "content_length":
			if f, ok := val.(float64); ok {
				m.ContentLength = int(f)
				continue
			}
		case "timestamp":
			if t, ok := parseTimestamp(val); ok {
				m.FetchedAt = t
				continue
			}
		}
		if m.Extra == nil {
			m.Extra = make(map[string]any)
		}
		m.Extra[key] = val
	}
	return nil
}

// parseTimestamp accepts RFC3339 strings and Unix epoch seconds, the two
// timestamp encodings found in metadata records.
func parseTimestamp(val any) (time.Time, bool) {
	switch v := val.(type) {
	case string:
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return t, true
		}
	case float64:
		sec := int64(v)
		nsec := int64((v - float64(sec)) * 1e9)
		return time.Unix(sec, nsec).UTC(), true
	}
	return time.Time{}, false
}
