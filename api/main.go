package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DeafMist/topic-radar/backend/internal/cache"
	"github.com/DeafMist/topic-radar/backend/internal/config"
	"github.com/DeafMist/topic-radar/backend/internal/elasticsearch"
	"github.com/DeafMist/topic-radar/backend/internal/logger"
	"github.com/DeafMist/topic-radar/backend/internal/pipeline"
)

func main() {
	log := logger.New("api")
	if loaded, err := config.LoadDotEnv(); err != nil {
		log.Error("load env file", slog.Any("err", err))
		os.Exit(1)
	} else if len(loaded) > 0 {
		log.Info("loaded env files", slog.Any("files", loaded))
	}

	cfg, err := config.LoadAPI()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	esClient, err := elasticsearch.New(cfg.ElasticsearchAddr, cfg.ElasticsearchIndex, cfg.CorpusPageSize, log)
	if err != nil {
		log.Error("init elasticsearch", slog.Any("err", err))
		os.Exit(1)
	}

	startCtx, cancelStart := context.WithTimeout(context.Background(), 10*time.Second)
	store, closeStore, err := cache.Open(startCtx, cfg.Cache)
	cancelStart()
	if err != nil {
		log.Error("init cache", slog.Any("err", err))
		os.Exit(1)
	}
	defer func() {
		if err := closeStore(); err != nil {
			log.Warn("close cache", slog.Any("err", err))
		}
	}()

	svc := pipeline.New(esClient, cache.New(store, log), pipeline.Options{
		GraphSize:    cfg.GraphSize,
		GraphMaxSize: cfg.GraphMaxSize,
		Layout:       cfg.Layout,
		Partitions:   cfg.Partitions,
		MinMentions:  cfg.MinMentions,
	}, log)

	srv := &server{log: log, svc: svc, health: esClient.Health}

	httpServer := &http.Server{
		Addr:              cfg.BindAddr,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	go func() {
		log.Info("api server starting",
			slog.String("addr", cfg.BindAddr),
			slog.String("cache_backend", store.Name()),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped", slog.Any("err", err))
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	log.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", slog.Any("err", err))
	}
}
