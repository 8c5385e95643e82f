package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"strings"

	"github.com/LJTian/InsightHub/internal/collector"
	"github.com/LJTian/InsightHub/internal/config"
	"github.com/LJTian/InsightHub/internal/domain"
	"github.com/LJTian/InsightHub/internal/ingest"
	"github.com/LJTian/InsightHub/internal/logging"
	"github.com/LJTian/InsightHub/internal/storage"
)

// 一个仅执行一次采集任务的命令行入口：适合手动触发或交给外部 cron
func main() {
	dryRun := flag.Bool("dry-run", false, "fetch, normalize and score without writing")
	only := flag.String("sources", "", "comma separated source ids, empty means all active sources")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logging.New("info").Error("load config failed", "error", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel)

	store, err := storage.NewStore(cfg.PostgresDSN, cfg.RedisAddr, logger.With("component", "storage"))
	if err != nil {
		logger.Error("init store failed", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	// 与 cmd/api 保持一致
	seed := make([]domain.Source, 0, len(cfg.Sources))
	for _, s := range cfg.Sources {
		seed = append(seed, s.Domain())
	}
	if err := store.SeedSources(context.Background(), seed); err != nil {
		logger.Error("seed sources failed", "error", err)
		os.Exit(1)
	}

	var cache ingest.ReportCache
	if store.Redis != nil {
		cache = store
	}
	coord := ingest.NewCoordinator(ingest.Config{
		FetchTimeout: cfg.FetchTimeout,
		Workers:      cfg.Workers,
	}, ingest.Deps{
		Registry: store,
		Fetcher:  collector.NewFeedFetcher(cfg.UserAgent, cfg.MaxFeedBytes, logger.With("component", "collector")),
		Store:    store,
		Audit:    store,
		Cache:    cache,
		Logger:   logger,
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.RunTimeout)
	defer cancel()

	opts := ingest.RunOptions{DryRun: *dryRun}
	if *only != "" {
		opts.SourceIDs = strings.Split(*only, ",")
	}

	// 只执行一轮后退出
	report, err := coord.Execute(ctx, opts)
	if err != nil {
		logger.Error("ingest run failed", "error", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		logger.Error("encode report failed", "error", err)
		os.Exit(1)
	}
	if report.Failed() > 0 {
		os.Exit(2)
	}
}
