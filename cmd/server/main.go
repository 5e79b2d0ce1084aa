// The stackseek server: serves ranked search and synthesized answers over
// HTTP, backed by an in-memory index built from the stored Q&A corpus.
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

	"github.com/stackseek/stackseek/internal/analytics"
	"github.com/stackseek/stackseek/internal/api"
	"github.com/stackseek/stackseek/internal/crawl"
	"github.com/stackseek/stackseek/internal/search"
	"github.com/stackseek/stackseek/internal/stackx"
	"github.com/stackseek/stackseek/internal/storage"
	"github.com/stackseek/stackseek/pkg/config"
	"github.com/stackseek/stackseek/pkg/health"
	"github.com/stackseek/stackseek/pkg/logger"
	"github.com/stackseek/stackseek/pkg/metrics"
	"github.com/stackseek/stackseek/pkg/postgres"
	"github.com/stackseek/stackseek/pkg/redis"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	rebuild := flag.Bool("rebuild", false, "rebuild the index from storage on startup")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	if err := run(cfg, *rebuild); err != nil {
		slog.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, rebuild bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	pg, err := postgres.New(cfg.Postgres)
	if err != nil {
		return fmt.Errorf("connecting to postgres: %w", err)
	}
	defer pg.Close()

	store, err := storage.New(ctx, pg)
	if err != nil {
		return fmt.Errorf("initializing storage: %w", err)
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = redis.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, query cache disabled", "error", err)
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	collector := analytics.NewCollector(cfg.Kafka)
	defer collector.Close()

	live := stackx.New(cfg.StackExchange, m)
	svc := search.New(cfg, store, live, redisClient, collector, m)

	if err := svc.Restore(ctx); err != nil {
		slog.Warn("snapshot restore failed, starting cold", "error", err)
	}
	if rebuild || !svc.Ready() {
		if _, err := svc.Reindex(ctx); err != nil {
			slog.Warn("initial index build failed, serving unready", "error", err)
		}
	}

	checker := health.NewChecker()
	checker.Register("postgres", func(ctx context.Context) health.ComponentHealth {
		if err := store.Ping(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})
	checker.Register("index", func(ctx context.Context) health.ComponentHealth {
		if !svc.Ready() {
			return health.ComponentHealth{Status: health.StatusDown, Message: "no snapshot published"}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})
	if redisClient != nil {
		checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
			if err := redisClient.Ping(ctx); err != nil {
				return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
			}
			return health.ComponentHealth{Status: health.StatusUp}
		})
	}

	var stopMetrics func(context.Context) error
	if cfg.Metrics.Enabled {
		stopMetrics = metrics.StartServer(cfg.Metrics.Port)
	}

	handler := api.NewHandler(svc, crawl.New(live, store))
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      api.Router(handler, checker, m, cfg.Server),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errc := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	if stopMetrics != nil {
		if err := stopMetrics(shutdownCtx); err != nil {
			slog.Warn("metrics server shutdown failed", "error", err)
		}
	}
	return nil
}
