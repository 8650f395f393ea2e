// Package registry tracks crawled pages in Postgres so operators can see
// what the crawler fetched and which pages made it into the index. The
// registry is optional: a nil Registry is a no-op, and the engine is fully
// functional without one.
package registry

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"github.com/xxxxxxxx15339/TechScope-SearchEngine/pkg/logger"
	"github.com/xxxxxxxx15339/TechScope-SearchEngine/pkg/postgres"
)

// Page lifecycle states.
const (
	StatusPending = "PENDING"
	StatusIndexed = "INDEXED"
)

type Registry struct {
	client *postgres.Client
	logger *slog.Logger
}

func New(client *postgres.Client) *Registry {
	return &Registry{
		client: client,
		logger: logger.WithComponent("registry"),
	}
}

// EnsureSchema creates the crawled_pages table when it does not exist yet.
func (r *Registry) EnsureSchema(ctx context.Context) error {
	if r == nil || r.client == nil {
		return nil
	}
	_, err := r.client.DB.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS crawled_pages (
			id           TEXT PRIMARY KEY,
			url          TEXT NOT NULL,
			content_hash TEXT NOT NULL,
			content_size BIGINT NOT NULL,
			status_code  INT NOT NULL,
			status       TEXT NOT NULL DEFAULT 'PENDING',
			fetched_at   TIMESTAMPTZ NOT NULL,
			indexed_at   TIMESTAMPTZ
		)`)
	if err != nil {
		return fmt.Errorf("creating crawled_pages table: %w", err)
	}
	return nil
}

// UpsertPending records a freshly crawled page as PENDING. Re-crawling a
// page resets its status; the next index build flips it back to INDEXED.
func (r *Registry) UpsertPending(ctx context.Context, id, url string, body []byte, statusCode int, fetchedAt time.Time) error {
	if r == nil || r.client == nil {
		return nil
	}
	hash := sha256.Sum256(body)
	_, err := r.client.DB.ExecContext(ctx, `
		INSERT INTO crawled_pages (id, url, content_hash, content_size, status_code, status, fetched_at, indexed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULL)
		ON CONFLICT (id) DO UPDATE SET
			url          = EXCLUDED.url,
			content_hash = EXCLUDED.content_hash,
			content_size = EXCLUDED.content_size,
			status_code  = EXCLUDED.status_code,
			status       = EXCLUDED.status,
			fetched_at   = EXCLUDED.fetched_at,
			indexed_at   = NULL`,
		id, url, hex.EncodeToString(hash[:]), len(body), statusCode, StatusPending, fetchedAt,
	)
	if err != nil {
		return fmt.Errorf("upserting page %s: %w", id, err)
	}
	return nil
}

// MarkIndexed flips the given pages to INDEXED in one transaction.
func (r *Registry) MarkIndexed(ctx context.Context, ids []string) error {
	if r == nil || r.client == nil || len(ids) == 0 {
		return nil
	}
	err := r.client.InTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE crawled_pages
			SET status = $1, indexed_at = NOW()
			WHERE id = ANY($2)`,
			StatusIndexed, pq.Array(ids),
		)
		if err != nil {
			return fmt.Errorf("marking pages indexed: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && int(n) != len(ids) {
			r.logger.Warn("some indexed pages were missing from the registry",
				"marked", n, "expected", len(ids))
		}
		return nil
	})
	return err
}

// Close releases the underlying connection pool.
func (r *Registry) Close() error {
	if r == nil || r.client == nil {
		return nil
	}
	return r.client.Close()
}
