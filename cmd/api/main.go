package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/LJTian/InsightHub/internal/api"
	"github.com/LJTian/InsightHub/internal/collector"
	"github.com/LJTian/InsightHub/internal/config"
	"github.com/LJTian/InsightHub/internal/domain"
	"github.com/LJTian/InsightHub/internal/ingest"
	"github.com/LJTian/InsightHub/internal/logging"
	"github.com/LJTian/InsightHub/internal/scheduler"
	"github.com/LJTian/InsightHub/internal/storage"
)

func main() {
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

	// 确保配置文件里的数据源存在
	if err := store.SeedSources(context.Background(), seedList(cfg)); err != nil {
		logger.Error("seed sources failed", "error", err)
		os.Exit(1)
	}

	var cache ingest.ReportCache
	if store.Redis != nil {
		cache = store
	}
	coord := ingest.NewCoordinator(ingest.Config{
		CronSecret:   cfg.CronSecret,
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

	// 未配置 CRON_SPEC 时由外部调度器调用 /api/v1/ingest/run
	if cfg.CronSpec != "" {
		s, err := scheduler.New(cfg.CronSpec, coord, cfg.RunTimeout, logger)
		if err != nil {
			logger.Error("init scheduler failed", "spec", cfg.CronSpec, "error", err)
			os.Exit(1)
		}
		s.Start()
		defer s.Stop()
		logger.Info("in-process cron enabled", "spec", cfg.CronSpec, "next", s.Next())
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), api.RequestLogger(logger))
	api.NewServer(coord, store, cfg.RunTimeout).RegisterRoutes(r)

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("starting api server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server exit", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down api server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}
}

func seedList(cfg *config.Config) []domain.Source {
	out := make([]domain.Source, 0, len(cfg.Sources))
	for _, s := range cfg.Sources {
		out = append(out, s.Domain())
	}
	return out
}
