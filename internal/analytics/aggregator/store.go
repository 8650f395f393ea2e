// Package aggregator persists periodic snapshots of the aggregated search
// statistics to Postgres, so the rollup survives restarts and dashboards can
// chart it over time.
package aggregator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/xxxxxxxx15339/TechScope-SearchEngine/internal/analytics"
	"github.com/xxxxxxxx15339/TechScope-SearchEngine/pkg/logger"
	"github.com/xxxxxxxx15339/TechScope-SearchEngine/pkg/postgres"
)

// finalSnapshotTimeout bounds the last write during shutdown, after the
// service context is already cancelled.
const finalSnapshotTimeout = 5 * time.Second

const (
	createSnapshotsTable = `
		CREATE TABLE IF NOT EXISTS analytics_snapshots (
			id          BIGSERIAL PRIMARY KEY,
			data        JSONB NOT NULL,
			captured_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`
	insertSnapshot = `INSERT INTO analytics_snapshots (data, captured_at) VALUES ($1, $2)`
	selectNewest   = `SELECT data FROM analytics_snapshots ORDER BY captured_at DESC LIMIT $1`
)

// Store writes stats snapshots into the analytics_snapshots table.
type Store struct {
	db     *postgres.Client
	logger *slog.Logger
}

func NewStore(db *postgres.Client) *Store {
	return &Store{
		db:     db,
		logger: logger.WithComponent("analytics-store"),
	}
}

// EnsureSchema creates the analytics_snapshots table when it does not exist
// yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.DB.ExecContext(ctx, createSnapshotsTable); err != nil {
		return fmt.Errorf("creating analytics_snapshots table: %w", err)
	}
	return nil
}

// SaveSnapshot persists one stats snapshot.
func (s *Store) SaveSnapshot(ctx context.Context, stats analytics.AggregatedStats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("marshaling stats snapshot: %w", err)
	}
	if _, err := s.db.DB.ExecContext(ctx, insertSnapshot, data, time.Now().UTC()); err != nil {
		return fmt.Errorf("saving stats snapshot: %w", err)
	}
	s.logger.Info("stats snapshot saved",
		"total_searches", stats.TotalSearches,
		"index_builds", stats.IndexBuilds,
	)
	return nil
}

// LatestSnapshot loads the most recent snapshot, or nil when none exist.
func (s *Store) LatestSnapshot(ctx context.Context) (*analytics.AggregatedStats, error) {
	snapshots, err := s.ListSnapshots(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(snapshots) == 0 {
		return nil, nil
	}
	return &snapshots[0], nil
}

// ListSnapshots returns up to limit snapshots, newest first. Corrupt rows are
// skipped with a warning.
func (s *Store) ListSnapshots(ctx context.Context, limit int) ([]analytics.AggregatedStats, error) {
	rows, err := s.db.DB.QueryContext(ctx, selectNewest, limit)
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []analytics.AggregatedStats
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scanning snapshot row: %w", err)
		}
		var stats analytics.AggregatedStats
		if err := json.Unmarshal(data, &stats); err != nil {
			s.logger.Warn("skipping corrupt snapshot row", "error", err)
			continue
		}
		snapshots = append(snapshots, stats)
	}
	return snapshots, rows.Err()
}

// StartPeriodicSave snapshots the aggregator on the given interval until ctx
// is cancelled, then writes one final snapshot on the way out.
func (s *Store) StartPeriodicSave(ctx context.Context, agg *analytics.Aggregator, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := s.SaveSnapshot(ctx, agg.Stats()); err != nil {
					s.logger.Error("periodic snapshot failed", "error", err)
				}
			case <-ctx.Done():
				s.saveFinal(agg)
				return
			}
		}
	}()
	s.logger.Info("periodic snapshots started", "interval", interval)
}

func (s *Store) saveFinal(agg *analytics.Aggregator) {
	ctx, cancel := context.WithTimeout(context.Background(), finalSnapshotTimeout)
	defer cancel()
	if err := s.SaveSnapshot(ctx, agg.Stats()); err != nil {
		s.logger.Error("final snapshot failed", "error", err)
	}
}
