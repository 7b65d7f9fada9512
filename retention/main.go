package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DeafMist/topic-radar/backend/internal/cache"
	"github.com/DeafMist/topic-radar/backend/internal/config"
	"github.com/DeafMist/topic-radar/backend/internal/elasticsearch"
	"github.com/DeafMist/topic-radar/backend/internal/logger"
)

type recordDeleter interface {
	DeleteOlderThan(ctx context.Context, cutoff, batchSize int) (int64, error)
}

type cachePurger interface {
	Purge(ctx context.Context) (int, error)
}

func main() {
	log := logger.New("retention")
	if _, err := config.LoadDotEnv(); err != nil {
		log.Error("load env file", slog.Any("err", err))
		os.Exit(1)
	}

	cfg, err := config.LoadRetention()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	var esClient *elasticsearch.Client
	maxRetries := 10
	retryDelay := 2 * time.Second
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	for i := 0; i < maxRetries; i++ {
		esClient, err = elasticsearch.New(cfg.ElasticsearchAddr, cfg.ElasticsearchIndex, 0, log)
		if err != nil {
			log.Warn("failed to create elasticsearch client, retrying",
				slog.Any("err", err),
				slog.Int("attempt", i+1),
				slog.Int("max_retries", maxRetries),
			)
		} else {
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			if pingErr := esClient.Ping(pingCtx); pingErr == nil {
				cancel()
				break
			} else {
				log.Warn("elasticsearch ping failed, retrying",
					slog.Any("err", pingErr),
					slog.Int("attempt", i+1),
					slog.Int("max_retries", maxRetries),
					slog.Duration("retry_in", retryDelay),
				)
			}
			cancel()
		}

		select {
		case <-time.After(retryDelay):
		case <-ctx.Done():
			log.Info("shutdown signal received during startup")
			os.Exit(0)
		}
		retryDelay *= 2
		if retryDelay > 30*time.Second {
			retryDelay = 30 * time.Second
		}
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if esClient == nil || esClient.Ping(pingCtx) != nil {
		log.Error("failed to connect to elasticsearch after retries")
		os.Exit(1)
	}

	log.Info("connected to elasticsearch")

	var purger cachePurger
	if cfg.PurgeCache {
		store, closeStore, err := cache.Open(ctx, cfg.Cache)
		if err != nil {
			log.Error("init cache", slog.Any("err", err))
			os.Exit(1)
		}
		defer closeStore()
		purger = store
	}

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	log.Info("retention job running",
		slog.Duration("interval", cfg.Interval),
		slog.Int("max_age_months", cfg.MaxAgeMonths),
		slog.Bool("purge_cache", cfg.PurgeCache),
	)

	runOnce(ctx, log, esClient, purger, cfg, time.Now())

	for {
		select {
		case <-ctx.Done():
			log.Info("shutdown signal received")
			return
		case now := <-ticker.C:
			runOnce(ctx, log, esClient, purger, cfg, now)
		}
	}
}

// cutoffMonth is the YYYYMM stamp months before now. Records stamped
// strictly before it are expired.
func cutoffMonth(now time.Time, months int) int {
	t := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -months, 0)
	return t.Year()*100 + int(t.Month())
}

// runOnce deletes expired records and, when any were removed, drops every
// cached aggregation since they were computed over the old corpus.
func runOnce(ctx context.Context, log *slog.Logger, es recordDeleter, purger cachePurger, cfg *config.Retention, now time.Time) (int64, int) {
	subCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	cutoff := cutoffMonth(now, cfg.MaxAgeMonths)
	deleted, err := es.DeleteOlderThan(subCtx, cutoff, cfg.BatchSize)
	if err != nil {
		log.Warn("retention run failed (will retry on next interval)", slog.Any("err", err))
		if deleted == 0 {
			return 0, 0
		}
	}

	if deleted == 0 {
		log.Debug("retention run completed, no old records found", slog.Int("cutoff", cutoff))
		return 0, 0
	}
	log.Info("retention run completed", slog.Int64("deleted", deleted), slog.Int("cutoff", cutoff))

	if purger == nil {
		return deleted, 0
	}
	purged, err := purger.Purge(subCtx)
	if err != nil {
		log.Warn("cache purge failed", slog.Any("err", err))
		return deleted, purged
	}
	log.Info("aggregation cache purged", slog.Int("entries", purged))
	return deleted, purged
}
