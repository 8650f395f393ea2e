package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/xxxxxxxx15339/TechScope-SearchEngine/internal/crawler"
	"github.com/xxxxxxxx15339/TechScope-SearchEngine/internal/pagestore"
	"github.com/xxxxxxxx15339/TechScope-SearchEngine/internal/registry"
	"github.com/xxxxxxxx15339/TechScope-SearchEngine/pkg/config"
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
	slog.Info("starting crawler",
		"seeds", len(cfg.Crawler.SeedURLs),
		"max_pages", cfg.Crawler.MaxPages,
		"workers", cfg.Crawler.Workers,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	var metricsShutdown func(context.Context) error
	if cfg.Metrics.Enabled {
		metricsShutdown = metrics.StartServer(cfg.Metrics.Port)
	}

	store, err := pagestore.New(cfg.Storage.PagesDir, cfg.Storage.Compression)
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
			if err := reg.EnsureSchema(ctx); err != nil {
				slog.Warn("registry schema setup failed, page registry disabled", "error", err)
				reg = nil
			}
		}
	}

	c := crawler.New(cfg.Crawler, store, reg, m)
	stats, err := c.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("crawl failed", "error", err)
		os.Exit(1)
	}

	slog.Info("crawl finished",
		"pages", stats.Pages,
		"stored", stats.Stored,
		"skipped", stats.Skipped,
		"failed", stats.Failed,
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
