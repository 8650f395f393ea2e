package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/xxxxxxxx15339/TechScope-SearchEngine/internal/analytics"
	"github.com/xxxxxxxx15339/TechScope-SearchEngine/internal/analytics/aggregator"
	"github.com/xxxxxxxx15339/TechScope-SearchEngine/pkg/config"
	"github.com/xxxxxxxx15339/TechScope-SearchEngine/pkg/health"
	"github.com/xxxxxxxx15339/TechScope-SearchEngine/pkg/kafka"
	"github.com/xxxxxxxx15339/TechScope-SearchEngine/pkg/logger"
	"github.com/xxxxxxxx15339/TechScope-SearchEngine/pkg/middleware"
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
	slog.Info("starting analytics service", "port", cfg.Analytics.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	agg := analytics.NewAggregator(cfg.Analytics.TopQueries)

	if cfg.Kafka.Enabled {
		// Distinct consumer group so this service does not share partitions
		// with the search service's reload listener.
		kcfg := cfg.Kafka
		kcfg.ConsumerGroup = cfg.Kafka.ConsumerGroup + "-analytics"

		handler := analytics.HandleEvent(agg)
		for _, topic := range []string{cfg.Kafka.Topics.SearchEvents, cfg.Kafka.Topics.IndexComplete} {
			consumer := kafka.NewConsumer(kcfg, topic, handler)
			go func(topic string) {
				if err := consumer.Start(ctx); err != nil {
					slog.Error("consumer error", "topic", topic, "error", err)
				}
			}(topic)
		}
		slog.Info("event consumers started",
			"topics", []string{cfg.Kafka.Topics.SearchEvents, cfg.Kafka.Topics.IndexComplete},
			"group", kcfg.ConsumerGroup,
		)
	} else {
		slog.Warn("kafka disabled, serving an empty rollup")
	}

	var snapshots analytics.SnapshotLister
	var db *postgres.Client
	if cfg.Postgres.Enabled {
		db, err = postgres.New(cfg.Postgres)
		if err != nil {
			slog.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		store := aggregator.NewStore(db)
		if err := store.EnsureSchema(ctx); err != nil {
			slog.Error("failed to ensure snapshot schema", "error", err)
			os.Exit(1)
		}
		if prev, err := store.LatestSnapshot(ctx); err != nil {
			slog.Warn("could not load previous snapshot", "error", err)
		} else if prev != nil {
			slog.Info("previous rollup found",
				"total_searches", prev.TotalSearches,
				"index_builds", prev.IndexBuilds,
			)
		}
		store.StartPeriodicSave(ctx, agg, cfg.Analytics.SnapshotInterval)
		snapshots = store
	} else {
		slog.Warn("postgres disabled, snapshot persistence off")
	}

	checker := health.NewChecker()
	checker.Register("kafka", func(ctx context.Context) health.ComponentHealth {
		if !cfg.Kafka.Enabled {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not configured"}
		}
		return health.ComponentHealth{Status: health.StatusUp, Message: "consumers active"}
	})
	checker.Register("postgres", func(ctx context.Context) health.ComponentHealth {
		if db == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not configured"}
		}
		if err := db.Ping(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})

	h := analytics.NewHandler(agg, snapshots)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/analytics", h.Stats)
	mux.HandleFunc("GET /api/v1/analytics/history", h.History)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Analytics.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("analytics service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("analytics service stopped")
}
