package searchd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xxxxxxxx15339/TechScope-SearchEngine/internal/analytics"
	"github.com/xxxxxxxx15339/TechScope-SearchEngine/internal/search"
	"github.com/xxxxxxxx15339/TechScope-SearchEngine/pkg/kafka"
	"github.com/xxxxxxxx15339/TechScope-SearchEngine/pkg/logger"
	"github.com/xxxxxxxx15339/TechScope-SearchEngine/pkg/metrics"
)

// ReloadListener consumes index.complete events and swaps the serving
// snapshot, so a finished build goes live without a restart.
type ReloadListener struct {
	consumer *kafka.Consumer
	logger   *slog.Logger
}

func NewReloadListener(consumer *kafka.Consumer) *ReloadListener {
	return &ReloadListener{
		consumer: consumer,
		logger:   logger.WithComponent("reload-listener"),
	}
}

// Start blocks consuming until ctx is cancelled.
func (l *ReloadListener) Start(ctx context.Context) error {
	l.logger.Info("reload listener starting")
	return l.consumer.Start(ctx)
}

// HandleIndexComplete returns the Kafka handler that performs the reload.
// Undecodable events are logged and skipped; a failed reload is returned so
// the message is not committed and the swap is retried.
func HandleIndexComplete(pipeline *search.Pipeline, cache *QueryCache, m *metrics.Metrics) kafka.MessageHandler {
	log := logger.WithComponent("reload-listener")
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[analytics.IndexCompleteEvent](value)
		if err != nil {
			log.Error("failed to decode index.complete event",
				"error", err,
				"key", string(key),
			)
			return nil
		}

		if err := pipeline.Reload(); err != nil {
			if m != nil {
				m.IndexReloadsTotal.WithLabelValues("failure").Inc()
			}
			return fmt.Errorf("reloading index: %w", err)
		}
		if m != nil {
			m.IndexReloadsTotal.WithLabelValues("success").Inc()
		}

		if cache != nil {
			if err := cache.Invalidate(ctx); err != nil {
				log.Warn("cache invalidation after reload failed", "error", err)
			}
		}

		log.Info("index reloaded",
			"documents", event.Documents,
			"terms", event.Terms,
			"postings", event.Postings,
		)
		return nil
	}
}
