package document

import (
	"encoding/json"
	"testing"
	"time"
)

func TestIDForURL(t *testing.T) {
	a := IDForURL("https://example.com/page")
	b := IDForURL("https://example.com/page")
	c := IDForURL("https://example.com/other")

	if a != b {
		t.Errorf("same URL produced different IDs: %s vs %s", a, b)
	}
	if a == c {
		t.Error("different URLs produced the same ID")
	}
	if len(a) != 32 {
		t.Errorf("ID length = %d, want 32 hex chars", len(a))
	}
}

func TestFlattenOmitsZeroFields(t *testing.T) {
	flat := Metadata{Title: "Only Title"}.Flatten()
	if flat["title"] != "Only Title" {
		t.Errorf("title = %v", flat["title"])
	}
	for _, key := range []string{"url", "status_code", "content_length", "timestamp"} {
		if _, ok := flat[key]; ok {
			t.Errorf("zero field %q present in %v", key, flat)
		}
	}
}

func TestFlattenIncludesExtra(t *testing.T) {
	m := Metadata{
		Title: "Page",
		Extra: map[string]any{"language": "en", "word_count": 120},
	}
	flat := m.Flatten()
	if flat["language"] != "en" || flat["word_count"] != 120 {
		t.Errorf("extra keys lost: %v", flat)
	}
	// Typed fields win over a colliding extra key.
	m.Extra["title"] = "shadowed"
	if got := m.Flatten()["title"]; got != "Page" {
		t.Errorf("title = %v, want typed field value", got)
	}
}

func TestMetadataJSONRoundTrip(t *testing.T) {
	in := Metadata{
		Title:         "Go Blog",
		URL:           "https://go.dev/blog/",
		StatusCode:    200,
		ContentLength: 2048,
		FetchedAt:     time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC),
		Extra:         map[string]any{"language": "en"},
	}

	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var out Metadata
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if out.Title != in.Title || out.URL != in.URL {
		t.Errorf("strings = %q, %q", out.Title, out.URL)
	}
	if out.StatusCode != in.StatusCode || out.ContentLength != in.ContentLength {
		t.Errorf("ints = %d, %d", out.StatusCode, out.ContentLength)
	}
	if !out.FetchedAt.Equal(in.FetchedAt) {
		t.Errorf("FetchedAt = %v, want %v", out.FetchedAt, in.FetchedAt)
	}
	if out.Extra["language"] != "en" {
		t.Errorf("Extra = %v", out.Extra)
	}
}

func TestUnmarshalEpochTimestamp(t *testing.T) {
	var m Metadata
	if err := json.Unmarshal([]byte(`{"timestamp": 1747736826.5, "title": "Old Record"}`), &m); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if m.FetchedAt.IsZero() {
		t.Error("epoch timestamp not parsed")
	}
	if m.FetchedAt.Unix() != 1747736826 {
		t.Errorf("FetchedAt = %v", m.FetchedAt)
	}
	if _, ok := m.Extra["timestamp"]; ok {
		t.Error("parsed timestamp leaked into Extra")
	}
}

func TestUnmarshalUnknownKeysGoToExtra(t *testing.T) {
	var m Metadata
	if err := json.Unmarshal([]byte(`{"title": "T", "crawler_version": "1.2", "depth": 3}`), &m); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if m.Extra["crawler_version"] != "1.2" {
		t.Errorf("Extra = %v", m.Extra)
	}
	if m.Extra["depth"] != 3.0 {
		t.Errorf("depth = %v (%T)", m.Extra["depth"], m.Extra["depth"])
	}
}
