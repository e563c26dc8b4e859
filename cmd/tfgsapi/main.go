// Package main wires together the catalog crawler service.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"tfgsapi/internal/api"
	"tfgsapi/internal/config"
	"tfgsapi/internal/crawl"
	"tfgsapi/internal/fetch"
	"tfgsapi/internal/logging"
	"tfgsapi/internal/metrics"
	"tfgsapi/internal/scheduler"
	"tfgsapi/internal/scrape"
	"tfgsapi/internal/store"
	memorystore "tfgsapi/internal/store/memory"
	postgresstore "tfgsapi/internal/store/postgres"
	sqlitestore "tfgsapi/internal/store/sqlite"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.Init()

	catalogStore, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("catalog store init failed", zap.Error(err))
	}
	defer closeStore()

	client := fetch.New(fetch.Config{
		UserAgent:      cfg.Crawler.UserAgent,
		Timeout:        cfg.FetchTimeout(),
		InsecureTLS:    cfg.Crawler.InsecureTLS,
		MaxRetries:     cfg.HTTP.MaxRetries,
		BackoffInitial: cfg.BackoffInitial(),
		BackoffMax:     cfg.BackoffMax(),
	}, logger.Named("fetch"))

	orchestrator := crawl.New(
		crawl.Config{
			BaseURL:   cfg.Crawler.BaseURL,
			GameCap:   cfg.Crawler.GameCap,
			PoolLimit: cfg.Crawler.PoolLimit,
		},
		scrape.NewCategoryFetcher(client, cfg.Crawler.BaseURL, logger.Named("categories")),
		scrape.NewGameListFetcher(client, cfg.Crawler.BaseURL),
		crawl.NewPageFetcher(client, cfg.Crawler.BaseURL, cfg.Crawler.PoolLimit, logger.Named("pages")),
		catalogStore,
		logger.Named("crawl"),
	)

	apiServer := api.NewServer(orchestrator, logger.Named("api"))
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	if cfg.Scheduler.Enabled {
		sched := scheduler.New(orchestrator, cfg.SchedulerInterval(), logger.Named("scheduler"))
		go sched.Run(ctx)
	}

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

func openStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (store.Catalog, func(), error) {
	switch cfg.DB.Driver {
	case "memory":
		logger.Info("using in-memory catalog store")
		return memorystore.NewStore(), func() {}, nil
	case "sqlite":
		logger.Info("using sqlite catalog store", zap.String("path", cfg.DB.Path))
		s, err := sqlitestore.Open(ctx, cfg.DB.Path)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	case "postgres":
		logger.Info("using postgres catalog store")
		s, err := postgresstore.New(ctx, cfg.DB.DSN)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown db.driver %q", cfg.DB.Driver)
	}
}
