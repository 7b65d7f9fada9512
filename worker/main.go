package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/DeafMist/topic-radar/backend/internal/config"
	"github.com/DeafMist/topic-radar/backend/internal/dedupe"
	"github.com/DeafMist/topic-radar/backend/internal/elasticsearch"
	"github.com/DeafMist/topic-radar/backend/internal/logger"
	"github.com/DeafMist/topic-radar/backend/internal/metrics"
	"github.com/DeafMist/topic-radar/backend/internal/models"
	"github.com/DeafMist/topic-radar/backend/internal/processing"
)

const dlqAttempts = 5

type recordIndexer interface {
	IndexRecord(ctx context.Context, id string, rec models.NewsRecord) error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

func main() {
	log := logger.New("worker")
	if _, err := config.LoadDotEnv(); err != nil {
		log.Error("load env file", slog.Any("err", err))
		os.Exit(1)
	}

	cfg, err := config.LoadWorker()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	esClient, err := elasticsearch.New(cfg.ElasticsearchAddr, cfg.ElasticsearchIndex, 0, log)
	if err != nil {
		log.Error("init elasticsearch", slog.Any("err", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := esClient.EnsureIndex(ctx); err != nil {
		log.Error("ensure index", slog.Any("err", err))
		os.Exit(1)
	}

	seen := dedupe.NewSet(cfg.DedupeCapacity, cfg.DedupeTTL)

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.KafkaBrokers,
		Topic:          cfg.KafkaTopic,
		GroupID:        cfg.KafkaConsumer,
		QueueCapacity:  cfg.BatchSize,
		MinBytes:       1e3,
		MaxBytes:       10e6,
		CommitInterval: 0,
	})
	defer reader.Close()

	dlqTopic := cfg.KafkaTopic + "_dlq"
	dlqWriter := kafka.NewWriter(kafka.WriterConfig{
		Brokers:     cfg.KafkaBrokers,
		Topic:       dlqTopic,
		MaxAttempts: 3,
	})
	defer dlqWriter.Close()

	log.Info("worker started",
		slog.String("topic", cfg.KafkaTopic),
		slog.String("group", cfg.KafkaConsumer),
		slog.String("dlq_topic", dlqTopic),
	)

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				log.Info("context canceled, stopping")
				return
			}
			log.Error("fetch message", slog.Any("err", err))
			continue
		}

		if err := processMessage(ctx, log, esClient, seen, msg); err != nil {
			metrics.RecordIngest("failed")
			log.Warn("process message failed, sending to DLQ",
				slog.Any("err", err),
				slog.Int("partition", msg.Partition),
				slog.Int64("offset", msg.Offset),
			)

			delivered, dlqErr := sendToDLQ(ctx, log, dlqWriter, msg, err, time.Second)
			if dlqErr != nil {
				log.Info("context canceled during DLQ retry")
				return
			}
			// an uncommitted message is redelivered after restart
			if !delivered {
				log.Error("DLQ write exhausted retries, message may be lost if later messages commit",
					slog.Int("partition", msg.Partition),
					slog.Int64("offset", msg.Offset),
				)
				continue
			}
			metrics.RecordIngest("dead_lettered")
		}

		if err := reader.CommitMessages(ctx, msg); err != nil {
			log.Error("commit message", slog.Any("err", err))
		}
	}
}

// processMessage decodes, normalizes and indexes one corpus record.
// Records already indexed within the dedupe window are skipped.
func processMessage(ctx context.Context, log *slog.Logger, idx recordIndexer, seen *dedupe.Set, msg kafka.Message) error {
	var payload models.NewsRecord
	if err := json.Unmarshal(msg.Value, &payload); err != nil {
		return fmt.Errorf("decode record: %w", err)
	}

	rec, err := processing.NormalizeRecord(payload)
	if err != nil {
		return err
	}

	id := processing.BuildRecordID(rec.Archive, rec.Timestamp)
	if seen.Seen(id) {
		metrics.RecordIngest("duplicate")
		log.Debug("duplicate record", slog.String("id", id))
		return nil
	}

	if err := idx.IndexRecord(ctx, id, rec); err != nil {
		return err
	}

	seen.Mark(id)
	metrics.RecordIngest("indexed")
	log.Info("indexed record",
		slog.String("id", id),
		slog.Int("timestamp", rec.Timestamp),
		slog.Int("keywords", len(rec.Keywords)),
	)
	return nil
}

func dlqMessage(msg kafka.Message, cause error) kafka.Message {
	headers := make([]kafka.Header, 0, len(msg.Headers)+5)
	headers = append(headers, msg.Headers...)
	headers = append(headers,
		kafka.Header{Key: "dlq_id", Value: []byte(uuid.NewString())},
		kafka.Header{Key: "original_partition", Value: []byte(fmt.Sprintf("%d", msg.Partition))},
		kafka.Header{Key: "original_offset", Value: []byte(fmt.Sprintf("%d", msg.Offset))},
		kafka.Header{Key: "error", Value: []byte(cause.Error())},
		kafka.Header{Key: "timestamp", Value: []byte(time.Now().UTC().Format(time.RFC3339))},
	)
	return kafka.Message{Key: msg.Key, Value: msg.Value, Headers: headers}
}

// sendToDLQ writes msg to the dead-letter topic with exponential backoff
// starting at base. It returns ctx.Err() if canceled while waiting.
func sendToDLQ(ctx context.Context, log *slog.Logger, w messageWriter, msg kafka.Message, cause error, base time.Duration) (bool, error) {
	dlqMsg := dlqMessage(msg, cause)

	for attempt := range dlqAttempts {
		dlqErr := w.WriteMessages(ctx, dlqMsg)
		if dlqErr == nil {
			log.Info("message sent to DLQ",
				slog.Int("partition", msg.Partition),
				slog.Int64("offset", msg.Offset),
				slog.Int("attempt", attempt+1),
			)
			return true, nil
		}

		backoff := base * time.Duration(1<<uint(attempt))
		log.Warn("DLQ write failed, retrying",
			slog.Any("err", dlqErr),
			slog.Int("attempt", attempt+1),
			slog.Duration("backoff", backoff),
		)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
	return false, nil
}
