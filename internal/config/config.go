package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/DeafMist/topic-radar/backend/internal/layout"
)

// Common contains Elasticsearch parameters shared by every service.
type Common struct {
	ElasticsearchAddr  string
	ElasticsearchIndex string
}

// Cache selects and configures the aggregation cache backend.
type Cache struct {
	Backend       string
	Dir           string
	RedisAddrs    []string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
}

const (
	CacheBackendFile  = "file"
	CacheBackendRedis = "redis"
)

// API describes the HTTP service and the topic pipeline it runs.
type API struct {
	Common
	Cache          Cache
	BindAddr       string
	GraphSize      int
	GraphMaxSize   int
	Layout         layout.Config
	Partitions     int
	MinMentions    int
	CorpusPageSize int
}

// Worker holds configuration for the Kafka -> Elasticsearch record ingest.
type Worker struct {
	Common
	KafkaBrokers   []string
	KafkaTopic     string
	KafkaConsumer  string
	DedupeCapacity int
	DedupeTTL      time.Duration
	BatchSize      int
}

// Retention configures the corpus cleanup loop.
type Retention struct {
	Common
	Cache        Cache
	Interval     time.Duration
	MaxAgeMonths int
	BatchSize    int
	PurgeCache   bool
}

// LoadDotEnv loads the given env files (".env" when none are given) without
// overriding variables already set. Missing files are skipped.
func LoadDotEnv(files ...string) ([]string, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	loaded := make([]string, 0, len(files))
	for _, file := range files {
		if _, err := os.Stat(file); err != nil {
			continue
		}
		if err := godotenv.Load(file); err != nil {
			return loaded, fmt.Errorf("load %s: %w", file, err)
		}
		loaded = append(loaded, file)
	}
	return loaded, nil
}

func loadCommon() Common {
	return Common{
		ElasticsearchAddr:  getEnv("ELASTICSEARCH_ADDR", "http://elasticsearch:9200"),
		ElasticsearchIndex: getEnv("ELASTICSEARCH_INDEX", "news_records"),
	}
}

func loadCache() (Cache, error) {
	c := Cache{
		Backend:       strings.ToLower(getEnv("CACHE_BACKEND", CacheBackendFile)),
		Dir:           getEnv("CACHE_DIR", "cache"),
		RedisAddrs:    splitAndTrim(getEnv("REDIS_ADDR", "redis:6379")),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getInt("REDIS_DB", 0),
		RedisPrefix:   getEnv("REDIS_PREFIX", "topic-radar:agg:"),
	}

	switch c.Backend {
	case CacheBackendFile:
		if c.Dir == "" {
			return c, errors.New("CACHE_DIR must be set for the file cache")
		}
	case CacheBackendRedis:
		if len(c.RedisAddrs) == 0 {
			return c, errors.New("REDIS_ADDR must contain at least one address")
		}
	default:
		return c, fmt.Errorf("CACHE_BACKEND %q is not one of file, redis", c.Backend)
	}
	return c, nil
}

// LoadAPI builds an API config from environment variables.
func LoadAPI() (*API, error) {
	cache, err := loadCache()
	if err != nil {
		return nil, err
	}

	def := layout.DefaultConfig()
	c := &API{
		Common:       loadCommon(),
		Cache:        cache,
		BindAddr:     getEnv("API_BIND_ADDR", "0.0.0.0:8080"),
		GraphSize:    getInt("GRAPH_SIZE", 125),
		GraphMaxSize: getInt("GRAPH_MAX_SIZE", 500),
		Layout: layout.Config{
			SpreadX:     getFloat("LAYOUT_SPREAD_X", def.SpreadX),
			SpreadY:     getFloat("LAYOUT_SPREAD_Y", def.SpreadY),
			MinDistance: getFloat("LAYOUT_MIN_DISTANCE", def.MinDistance),
			K:           getFloat("LAYOUT_K", def.K),
			Iterations:  getInt("LAYOUT_ITERATIONS", def.Iterations),
			Scale:       getFloat("LAYOUT_SCALE", def.Scale),
			Seed:        getUint64("LAYOUT_SEED", def.Seed),
		},
		Partitions:     getInt("AGGREGATE_PARTITIONS", 4),
		MinMentions:    getInt("TOPIC_MIN_COUNT", 5),
		CorpusPageSize: getInt("CORPUS_PAGE_SIZE", 500),
	}

	if c.GraphSize <= 0 {
		return nil, fmt.Errorf("GRAPH_SIZE must be positive")
	}
	if c.GraphMaxSize <= 0 {
		return nil, fmt.Errorf("GRAPH_MAX_SIZE must be positive")
	}
	if c.GraphSize > c.GraphMaxSize {
		return nil, fmt.Errorf("GRAPH_SIZE cannot exceed GRAPH_MAX_SIZE")
	}
	if c.Partitions <= 0 {
		return nil, fmt.Errorf("AGGREGATE_PARTITIONS must be positive")
	}
	if c.MinMentions <= 0 {
		return nil, fmt.Errorf("TOPIC_MIN_COUNT must be positive")
	}
	if c.CorpusPageSize <= 0 {
		return nil, fmt.Errorf("CORPUS_PAGE_SIZE must be positive")
	}
	if err := c.Layout.Validate(); err != nil {
		return nil, fmt.Errorf("LAYOUT_*: %w", err)
	}

	return c, nil
}

// LoadWorker builds a Worker config from environment variables.
func LoadWorker() (*Worker, error) {
	c := &Worker{
		Common:         loadCommon(),
		KafkaBrokers:   splitAndTrim(getEnv("KAFKA_BROKERS", "kafka:9092")),
		KafkaTopic:     getEnv("KAFKA_TOPIC", "news_records"),
		KafkaConsumer:  getEnv("KAFKA_CONSUMER_GROUP", "topic-radar-ingest"),
		DedupeCapacity: getInt("WORKER_DEDUPE_CAPACITY", 20000),
		DedupeTTL:      getDuration("WORKER_DEDUPE_TTL", "24h"),
		BatchSize:      getInt("WORKER_BATCH_SIZE", 10),
	}

	if len(c.KafkaBrokers) == 0 {
		return nil, fmt.Errorf("KAFKA_BROKERS must contain at least one broker")
	}
	if c.BatchSize <= 0 {
		return nil, fmt.Errorf("WORKER_BATCH_SIZE must be positive")
	}
	if c.DedupeCapacity <= 0 {
		return nil, fmt.Errorf("WORKER_DEDUPE_CAPACITY must be positive")
	}

	return c, nil
}

// LoadRetention builds a Retention config from environment variables.
func LoadRetention() (*Retention, error) {
	cache, err := loadCache()
	if err != nil {
		return nil, err
	}

	c := &Retention{
		Common:       loadCommon(),
		Cache:        cache,
		Interval:     getDuration("RETENTION_CRON", "24h"),
		MaxAgeMonths: getInt("RETENTION_MAX_AGE_MONTHS", 0),
		BatchSize:    getInt("RETENTION_BATCH_SIZE", 500),
		PurgeCache:   getBool("RETENTION_PURGE_CACHE", true),
	}

	if c.MaxAgeMonths <= 0 {
		return nil, fmt.Errorf("RETENTION_MAX_AGE_MONTHS must be positive")
	}
	if c.Interval <= 0 {
		return nil, fmt.Errorf("RETENTION_CRON must be positive")
	}
	if c.BatchSize <= 0 {
		return nil, fmt.Errorf("RETENTION_BATCH_SIZE must be positive")
	}

	return c, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func getUint64(key string, fallback uint64) uint64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.ParseUint(v, 10, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getFloat(key string, fallback float64) float64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func getDuration(key, fallback string) time.Duration {
	raw := getEnv(key, fallback)
	d, err := time.ParseDuration(raw)
	if err != nil {
		fd, ferr := time.ParseDuration(fallback)
		if ferr != nil {
			panic(fmt.Sprintf("invalid fallback duration %q: %v", fallback, ferr))
		}
		return fd
	}
	return d
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
