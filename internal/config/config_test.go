package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/DeafMist/topic-radar/backend/internal/config"
	"github.com/DeafMist/topic-radar/backend/internal/layout"
)

func TestLoadWorkerDefaults(t *testing.T) {
	t.Setenv("ELASTICSEARCH_ADDR", "")
	t.Setenv("ELASTICSEARCH_INDEX", "")
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("KAFKA_TOPIC", "")
	t.Setenv("KAFKA_CONSUMER_GROUP", "")

	cfg, err := config.LoadWorker()
	require.NoError(t, err)

	require.Equal(t, "http://elasticsearch:9200", cfg.ElasticsearchAddr)
	require.Equal(t, "news_records", cfg.ElasticsearchIndex)
	require.Equal(t, []string{"kafka:9092"}, cfg.KafkaBrokers)
	require.Equal(t, "news_records", cfg.KafkaTopic)
	require.Equal(t, "topic-radar-ingest", cfg.KafkaConsumer)
}

func TestLoadWorkerOverrides(t *testing.T) {
	t.Setenv("ELASTICSEARCH_ADDR", "http://localhost:9999")
	t.Setenv("ELASTICSEARCH_INDEX", "custom")
	t.Setenv("KAFKA_BROKERS", "broker-a:29092, broker-b:29093,")
	t.Setenv("KAFKA_TOPIC", "custom_topic")
	t.Setenv("KAFKA_CONSUMER_GROUP", "custom-group")
	t.Setenv("WORKER_DEDUPE_CAPACITY", "5")
	t.Setenv("WORKER_DEDUPE_TTL", "48h")
	t.Setenv("WORKER_BATCH_SIZE", "3")

	cfg, err := config.LoadWorker()
	require.NoError(t, err)

	require.Equal(t, "http://localhost:9999", cfg.ElasticsearchAddr)
	require.Equal(t, "custom", cfg.ElasticsearchIndex)
	require.Equal(t, []string{"broker-a:29092", "broker-b:29093"}, cfg.KafkaBrokers)
	require.Equal(t, "custom_topic", cfg.KafkaTopic)
	require.Equal(t, "custom-group", cfg.KafkaConsumer)
	require.Equal(t, 5, cfg.DedupeCapacity)
	require.Equal(t, 48*time.Hour, cfg.DedupeTTL)
	require.Equal(t, 3, cfg.BatchSize)
}

func TestLoadAPIDefaults(t *testing.T) {
	t.Setenv("CACHE_BACKEND", "")
	t.Setenv("GRAPH_SIZE", "")

	cfg, err := config.LoadAPI()
	require.NoError(t, err)
	require.Equal(t, 125, cfg.GraphSize)
	require.Equal(t, 500, cfg.GraphMaxSize)
	require.Equal(t, layout.DefaultConfig(), cfg.Layout)
	require.Equal(t, config.CacheBackendFile, cfg.Cache.Backend)
	require.Equal(t, "cache", cfg.Cache.Dir)
	require.Equal(t, 4, cfg.Partitions)
	require.Equal(t, 5, cfg.MinMentions)
}

func TestLoadAPIOverrides(t *testing.T) {
	t.Setenv("API_BIND_ADDR", ":9090")
	t.Setenv("GRAPH_SIZE", "50")
	t.Setenv("GRAPH_MAX_SIZE", "200")
	t.Setenv("LAYOUT_SEED", "7")
	t.Setenv("LAYOUT_K", "0.5")
	t.Setenv("LAYOUT_ITERATIONS", "0")
	t.Setenv("CACHE_BACKEND", "Redis")
	t.Setenv("REDIS_ADDR", "r1:6379,r2:6379")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("ELASTICSEARCH_INDEX", "api-index")

	cfg, err := config.LoadAPI()
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.BindAddr)
	require.Equal(t, 50, cfg.GraphSize)
	require.Equal(t, 200, cfg.GraphMaxSize)
	require.Equal(t, uint64(7), cfg.Layout.Seed)
	require.Equal(t, 0.5, cfg.Layout.K)
	require.Equal(t, 0, cfg.Layout.Iterations)
	require.Equal(t, config.CacheBackendRedis, cfg.Cache.Backend)
	require.Equal(t, []string{"r1:6379", "r2:6379"}, cfg.Cache.RedisAddrs)
	require.Equal(t, 2, cfg.Cache.RedisDB)
	require.Equal(t, "api-index", cfg.ElasticsearchIndex)
}

func TestLoadAPIRejects(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"graph size over max", "GRAPH_SIZE", "900"},
		{"zero partitions", "AGGREGATE_PARTITIONS", "0"},
		{"unknown backend", "CACHE_BACKEND", "memcached"},
		{"min distance outside ellipse", "LAYOUT_MIN_DISTANCE", "400"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			_, err := config.LoadAPI()
			require.Error(t, err)
		})
	}
}

func TestLoadRetention(t *testing.T) {
	t.Setenv("ELASTICSEARCH_ADDR", "http://ret-es:9200")
	t.Setenv("ELASTICSEARCH_INDEX", "ret-index")
	t.Setenv("RETENTION_CRON", "12h")
	t.Setenv("RETENTION_MAX_AGE_MONTHS", "36")
	t.Setenv("RETENTION_BATCH_SIZE", "123")
	t.Setenv("RETENTION_PURGE_CACHE", "false")

	cfg, err := config.LoadRetention()
	require.NoError(t, err)

	require.Equal(t, 12*time.Hour, cfg.Interval)
	require.Equal(t, 36, cfg.MaxAgeMonths)
	require.Equal(t, 123, cfg.BatchSize)
	require.False(t, cfg.PurgeCache)
	require.Equal(t, "http://ret-es:9200", cfg.ElasticsearchAddr)
	require.Equal(t, "ret-index", cfg.ElasticsearchIndex)
}

func TestLoadRetentionRequiresMaxAge(t *testing.T) {
	t.Setenv("RETENTION_MAX_AGE_MONTHS", "")
	_, err := config.LoadRetention()
	require.Error(t, err)
}

func TestLoadDotEnvKeepsExisting(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("TOPIC_RADAR_TEST_A=from-file\nTOPIC_RADAR_TEST_B=from-file\n"), 0o644))

	t.Setenv("TOPIC_RADAR_TEST_A", "from-env")
	t.Setenv("TOPIC_RADAR_TEST_B", "")
	require.NoError(t, os.Unsetenv("TOPIC_RADAR_TEST_B"))

	loaded, err := config.LoadDotEnv(path, filepath.Join(dir, "missing.env"))
	require.NoError(t, err)
	require.Equal(t, []string{path}, loaded)
	require.Equal(t, "from-env", os.Getenv("TOPIC_RADAR_TEST_A"))
	require.Equal(t, "from-file", os.Getenv("TOPIC_RADAR_TEST_B"))
}
