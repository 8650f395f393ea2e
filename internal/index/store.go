package index

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/xxxxxxxx15339/TechScope-SearchEngine/internal/document"
	apperrors "github.com/xxxxxxxx15339/TechScope-SearchEngine/pkg/errors"
	"github.com/xxxxxxxx15339/TechScope-SearchEngine/pkg/logger"
)

// The index is persisted as two keyed JSON records in one directory: the
// postings table and the document metadata table.
const (
	IndexFile    = "inverted_index.json"
	MetadataFile = "document_metadata.json"
)

// Store reads and writes the two index records under a fixed directory.
type Store struct {
	dir    string
	logger *slog.Logger
}

func NewStore(dir string) *Store {
	return &Store{
		dir:    dir,
		logger: logger.WithComponent("index-store"),
	}
}

func (s *Store) Dir() string {
	return s.dir
}

// Save writes both records atomically: each is written to a temp file and
// renamed into place, so a crash mid-write never leaves a truncated record.
func (s *Store) Save(ix *Index, meta map[string]document.Metadata) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("creating index directory: %w", err)
	}

	indexData, err := json.MarshalIndent(ix.postings, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling index record: %w", err)
	}
	if err := writeAtomic(filepath.Join(s.dir, IndexFile), indexData); err != nil {
		return fmt.Errorf("writing index record: %w", err)
	}

	if meta == nil {
		meta = map[string]document.Metadata{}
	}
	metaData, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling metadata record: %w", err)
	}
	if err := writeAtomic(filepath.Join(s.dir, MetadataFile), metaData); err != nil {
		return fmt.Errorf("writing metadata record: %w", err)
	}

	s.logger.Info("index saved",
		"dir", s.dir,
		"documents", ix.DocumentCount(),
		"terms", ix.TermCount(),
		"postings", ix.PostingCount(),
	)
	return nil
}

// Load reads both records back. A missing or unreadable index record is an
// error; a missing or unreadable metadata record degrades to an empty
// metadata table so the index stays searchable.
func (s *Store) Load() (*Index, map[string]document.Metadata, error) {
	indexPath := filepath.Join(s.dir, IndexFile)
	indexData, err := os.ReadFile(indexPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, fmt.Errorf("%w: %s", apperrors.ErrIndexNotFound, indexPath)
		}
		return nil, nil, fmt.Errorf("reading index record: %w", err)
	}

	var postings map[string]map[string]float64
	if err := json.Unmarshal(indexData, &postings); err != nil {
		return nil, nil, fmt.Errorf("%w: %s: %v", apperrors.ErrIndexCorrupt, indexPath, err)
	}

	meta := map[string]document.Metadata{}
	metaPath := filepath.Join(s.dir, MetadataFile)
	metaData, err := os.ReadFile(metaPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		s.logger.Warn("metadata record missing, serving bare results", "path", metaPath)
	case err != nil:
		s.logger.Warn("metadata record unreadable, serving bare results", "path", metaPath, "error", err)
	default:
		if err := json.Unmarshal(metaData, &meta); err != nil {
			s.logger.Warn("metadata record corrupt, serving bare results", "path", metaPath, "error", err)
			meta = map[string]document.Metadata{}
		}
	}

	ix := fromPostings(postings)
	s.logger.Info("index loaded",
		"dir", s.dir,
		"documents", ix.DocumentCount(),
		"terms", ix.TermCount(),
		"postings", ix.PostingCount(),
	)
	return ix, meta, nil
}

// writeAtomic writes data to a temp file beside path, fsyncs, and renames.
func writeAtomic(path string, data []byte) error {
	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming into place: %w", err)
	}
	return nil
}
