// The stackseek crawler: downloads questions and answers for a set of tags
// into PostgreSQL, then optionally writes a fresh index snapshot the server
// restores on startup.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/stackseek/stackseek/internal/crawl"
	"github.com/stackseek/stackseek/internal/search"
	"github.com/stackseek/stackseek/internal/stackx"
	"github.com/stackseek/stackseek/internal/storage"
	"github.com/stackseek/stackseek/pkg/config"
	"github.com/stackseek/stackseek/pkg/logger"
	"github.com/stackseek/stackseek/pkg/metrics"
	"github.com/stackseek/stackseek/pkg/postgres"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	tags := flag.String("tags", "", "comma-separated tags to crawl")
	pages := flag.Int("pages", 1, "pages of questions per tag")
	snapshot := flag.Bool("snapshot", true, "write an index snapshot after crawling")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	tagList := splitTags(*tags)
	if len(tagList) == 0 {
		fmt.Fprintln(os.Stderr, "at least one tag is required (-tags)")
		os.Exit(1)
	}

	if err := run(cfg, tagList, *pages, *snapshot); err != nil {
		slog.Error("crawl failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, tags []string, pages int, snapshot bool) error {
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

	crawler := crawl.New(stackx.New(cfg.StackExchange, m), store)
	for _, tag := range tags {
		res, err := crawler.CrawlTag(ctx, tag, pages)
		if err != nil {
			return err
		}
		slog.Info("tag crawled", "tag", tag, "questions", res.Questions, "answers", res.Answers)
	}

	if snapshot {
		// Reuse the service's reindex path so the snapshot lands where the
		// server looks for it. No live client, cache, or analytics needed.
		svc := search.New(cfg, store, nil, nil, nil, m)
		snap, err := svc.Reindex(ctx)
		if err != nil {
			return fmt.Errorf("building snapshot: %w", err)
		}
		slog.Info("snapshot written", "generation", snap.Generation(), "docs", snap.DocCount())
	}
	return nil
}

func splitTags(s string) []string {
	var tags []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}
