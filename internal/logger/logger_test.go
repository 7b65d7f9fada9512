package logger_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/DeafMist/topic-radar/backend/internal/logger"
)

func TestJSONFormatCarriesService(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithWriter(&buf, "api", "info", "json")
	log.Info("hello", "query", "tech")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "api", line["service"])
	require.Equal(t, "tech", line["query"])
	require.Equal(t, "hello", line["msg"])
}

func TestLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithWriter(&buf, "worker", "warn", "")
	log.Info("dropped")
	require.Zero(t, buf.Len())

	log.Warn("kept")
	require.Contains(t, buf.String(), "msg=kept")
	require.Contains(t, buf.String(), "service=worker")
}

func TestDebugEnabled(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithWriter(&buf, "retention", "DEBUG", "text")
	log.Debug("visible")
	require.Contains(t, buf.String(), "visible")
}
