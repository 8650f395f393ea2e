package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/xxxxxxxx15339/TechScope-SearchEngine/internal/index"
	"github.com/xxxxxxxx15339/TechScope-SearchEngine/internal/indexer"
	"github.com/xxxxxxxx15339/TechScope-SearchEngine/internal/pagestore"
	"github.com/xxxxxxxx15339/TechScope-SearchEngine/internal/registry"
	"github.com/xxxxxxxx15339/TechScope-SearchEngine/pkg/config"
	"github.com/xxxxxxxx15339/TechScope-SearchEngine/pkg/kafka"
	"github.com/xxxxxxxx15339/TechScope-SearchEngine/pkg/logger"
	"github.com/xxxxxxxx15339/TechScope-SearchEngine/pkg/metrics"
	"github.com/xxxxxxxx15339/TechScope-SearchEngine/pkg/postgres"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting index build",
		"pages_dir", cfg.Storage.PagesDir,
		"index_dir", cfg.Index.Dir,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	var metricsShutdown func(context.Context) error
	if cfg.Metrics.Enabled {
		metricsShutdown = metrics.StartServer(cfg.Metrics.Port)
	}

	pages, err := pagestore.New(cfg.Storage.PagesDir, cfg.Storage.Compression)
	if err != nil {
		slog.Error("failed to open page store", "error", err)
		os.Exit(1)
	}

	var reg *registry.Registry
	if cfg.Postgres.Enabled {
		client, err := postgres.New(cfg.Postgres)
		if err != nil {
			slog.Warn("postgres unavailable, page registry disabled", "error", err)
		} else {
			defer client.Close()
			reg = registry.New(client)
		}
	}

	var producer *kafka.Producer
	if cfg.Kafka.Enabled {
		producer = kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.IndexComplete)
		defer producer.Close()
	}

	docs, err := pages.List()
	if err != nil {
		slog.Error("failed to list stored pages", "error", err)
		os.Exit(1)
	}

	store := index.NewStore(cfg.Index.Dir)
	builder := indexer.NewBuilder(store, reg, producer, m)
	stats, err := builder.Build(ctx, docs)
	if err != nil {
		slog.Error("index build failed", "error", err)
		os.Exit(1)
	}

	slog.Info("index build finished",
		"documents", stats.Documents,
		"terms", stats.Terms,
		"postings", stats.Postings,
		"elapsed", stats.Elapsed,
	)

	if metricsShutdown != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := metricsShutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown error", "error", err)
		}
	}
}
