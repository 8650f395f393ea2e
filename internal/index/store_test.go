package index

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/xxxxxxxx15339/TechScope-SearchEngine/internal/document"
	apperrors "github.com/xxxxxxxx15339/TechScope-SearchEngine/pkg/errors"
)

func testIndex() *Index {
	return Build(map[string]map[string]float64{
		"doc1": {"go": 0.8, "channels": 0.6},
		"doc2": {"go": 0.5},
	})
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)

	meta := map[string]document.Metadata{
		"doc1": {
			Title:         "Go Concurrency Patterns",
			URL:           "https://go.dev/blog/pipelines",
			StatusCode:    200,
			ContentLength: 4096,
			FetchedAt:     time.Date(2026, 5, 1, 10, 30, 0, 0, time.UTC),
		},
	}
	if err := store.Save(testIndex(), meta); err != nil {
		t.Fatalf("Save: %v", err)
	}

	for _, name := range []string{IndexFile, MetadataFile} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("record %s not written: %v", name, err)
		}
	}

	ix, gotMeta, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if w, ok := ix.Weight("go", "doc1"); !ok || w != 0.8 {
		t.Errorf("Weight(go, doc1) = %v, %v after reload; want 0.8, true", w, ok)
	}
	if ix.DocumentCount() != 2 || ix.TermCount() != 2 || ix.PostingCount() != 3 {
		t.Errorf("reloaded stats = %+v", ix.Stats())
	}

	m := gotMeta["doc1"]
	if m.Title != "Go Concurrency Patterns" {
		t.Errorf("Title = %q", m.Title)
	}
	if m.URL != "https://go.dev/blog/pipelines" {
		t.Errorf("URL = %q", m.URL)
	}
	if m.StatusCode != 200 || m.ContentLength != 4096 {
		t.Errorf("StatusCode=%d ContentLength=%d", m.StatusCode, m.ContentLength)
	}
	if !m.FetchedAt.Equal(time.Date(2026, 5, 1, 10, 30, 0, 0, time.UTC)) {
		t.Errorf("FetchedAt = %v", m.FetchedAt)
	}
}

func TestLoadMissingIndex(t *testing.T) {
	store := NewStore(t.TempDir())
	_, _, err := store.Load()
	if !errors.Is(err, apperrors.ErrIndexNotFound) {
		t.Errorf("Load on empty dir = %v, want ErrIndexNotFound", err)
	}
}

func TestLoadCorruptIndex(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, IndexFile), []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	_, _, err := NewStore(dir).Load()
	if !errors.Is(err, apperrors.ErrIndexCorrupt) {
		t.Errorf("Load with corrupt record = %v, want ErrIndexCorrupt", err)
	}
}

func TestLoadMissingMetadataTolerated(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)
	if err := store.Save(testIndex(), nil); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := os.Remove(filepath.Join(dir, MetadataFile)); err != nil {
		t.Fatal(err)
	}

	ix, meta, err := store.Load()
	if err != nil {
		t.Fatalf("Load without metadata: %v", err)
	}
	if ix.TermCount() != 2 {
		t.Errorf("TermCount = %d, want 2", ix.TermCount())
	}
	if len(meta) != 0 {
		t.Errorf("meta = %v, want empty", meta)
	}
}

func TestLoadCorruptMetadataTolerated(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)
	if err := store.Save(testIndex(), nil); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, MetadataFile), []byte("[1,2"), 0644); err != nil {
		t.Fatal(err)
	}

	_, meta, err := store.Load()
	if err != nil {
		t.Fatalf("Load with corrupt metadata: %v", err)
	}
	if len(meta) != 0 {
		t.Errorf("meta = %v, want empty", meta)
	}
}

func TestSaveOverwritesAtomically(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)

	if err := store.Save(testIndex(), nil); err != nil {
		t.Fatalf("first Save: %v", err)
	}
	second := Build(map[string]map[string]float64{"only": {"term": 1.0}})
	if err := store.Save(second, nil); err != nil {
		t.Fatalf("second Save: %v", err)
	}

	ix, _, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if ix.DocumentCount() != 1 || ix.TermCount() != 1 {
		t.Errorf("second index not in place: %+v", ix.Stats())
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".tmp" {
			t.Errorf("temp file %s left behind", e.Name())
		}
	}
}
