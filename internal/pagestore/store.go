// Package pagestore persists crawled pages on disk as one body file plus one
// JSON metadata record per page, keyed by document ID. Bodies are optionally
// zstd-compressed.
package pagestore

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/xxxxxxxx15339/TechScope-SearchEngine/internal/document"
	"github.com/xxxxxxxx15339/TechScope-SearchEngine/pkg/logger"
)

const (
	pageExt       = ".html"
	compressedExt = ".html.zst"
	metaExt       = ".meta"
)

// Store reads and writes pages under a single directory.
type Store struct {
	dir      string
	compress bool
	encoder  *zstd.Encoder
	decoder  *zstd.Decoder
	logger   *slog.Logger
}

// New creates a Store rooted at dir. compression is "zstd" or "none".
// The decoder is always available so a store can read pages written with
// either setting.
func New(dir string, compression string) (*Store, error) {
	s := &Store{
		dir:      dir,
		compress: compression == "zstd",
		logger:   logger.WithComponent("pagestore"),
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("creating zstd decoder: %w", err)
	}
	s.decoder = decoder

	if s.compress {
		encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, fmt.Errorf("creating zstd encoder: %w", err)
		}
		s.encoder = encoder
	}
	return s, nil
}

func (s *Store) Dir() string {
	return s.dir
}

// Put stores one page body and its metadata record, returning the document
// ID derived from the page URL. Both files are written atomically. A body
// left behind under the other compression setting is removed so List never
// sees the same page twice.
func (s *Store) Put(url string, body []byte, meta document.Metadata) (string, error) {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return "", fmt.Errorf("creating pages directory: %w", err)
	}

	id := document.IDForURL(url)
	data := body
	bodyPath := filepath.Join(s.dir, id+pageExt)
	stalePath := filepath.Join(s.dir, id+compressedExt)
	if s.compress {
		data = s.encoder.EncodeAll(body, nil)
		bodyPath, stalePath = stalePath, bodyPath
	}

	if err := writeAtomic(bodyPath, data); err != nil {
		return "", fmt.Errorf("writing page body: %w", err)
	}
	os.Remove(stalePath)

	metaData, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling page metadata: %w", err)
	}
	if err := writeAtomic(filepath.Join(s.dir, id+metaExt), metaData); err != nil {
		return "", fmt.Errorf("writing page metadata: %w", err)
	}
	return id, nil
}

// List loads every stored page. Pages with a missing or corrupt metadata
// record are returned with empty metadata; an unreadable body skips the
// page with a warning.
func (s *Store) List() ([]document.Document, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []document.Document{}, nil
		}
		return nil, fmt.Errorf("reading pages directory: %w", err)
	}

	docs := make([]document.Document, 0, len(entries)/2)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		var id string
		compressed := false
		switch {
		case strings.HasSuffix(name, compressedExt):
			id = strings.TrimSuffix(name, compressedExt)
			compressed = true
		case strings.HasSuffix(name, pageExt):
			id = strings.TrimSuffix(name, pageExt)
		default:
			continue
		}

		body, err := os.ReadFile(filepath.Join(s.dir, name))
		if err != nil {
			s.logger.Warn("skipping unreadable page body", "file", name, "error", err)
			continue
		}
		if compressed {
			body, err = s.decoder.DecodeAll(body, nil)
			if err != nil {
				s.logger.Warn("skipping undecodable page body", "file", name, "error", err)
				continue
			}
		}

		docs = append(docs, document.Document{
			ID:      id,
			Content: string(body),
			HTML:    true,
			Meta:    s.readMeta(id),
		})
	}
	return docs, nil
}

// Count returns the number of stored page bodies.
func (s *Store) Count() (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("reading pages directory: %w", err)
	}
	n := 0
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, pageExt) || strings.HasSuffix(name, compressedExt) {
			n++
		}
	}
	return n, nil
}

func (s *Store) readMeta(id string) document.Metadata {
	var meta document.Metadata
	path := filepath.Join(s.dir, id+metaExt)
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("page metadata unreadable", "file", path, "error", err)
		}
		return meta
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		s.logger.Warn("page metadata corrupt", "file", path, "error", err)
		return document.Metadata{}
	}
	return meta
}

func writeAtomic(path string, data []byte) error {
	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}
