package util

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMetricsLogger_WritesToFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "log")
	CheckAndCreateLogFolder(dir)
	SetLoggerPath(dir)
	SetCommonLoggerAttributes(LOG_LEVEL_INFO)

	var logger MetricsLogger
	require.NoError(t, logger.Init("test.log", true, false))

	assert.NoError(t, logger.LogEvent(LOG_LEVEL_WARN, "sensor missing"))
	assert.NoError(t, logger.LogFields(LOG_LEVEL_INFO, "reading stored", zap.String("category", "cpu_temperature")))
	assert.NoError(t, logger.LogEvent(LOG_LEVEL_DEBUG, "filtered out"))
	logger.DeInit()

	content, err := os.ReadFile(filepath.Join(dir, "test.log"))
	require.NoError(t, err)
	assert.Contains(t, string(content), "WARN")
	assert.Contains(t, string(content), "sensor missing")
	assert.Contains(t, string(content), "cpu_temperature")
	assert.NotContains(t, string(content), "filtered out")

	assert.ErrorIs(t, logger.LogEvent("after deinit"), ErrLogNotInitialized)
	logger.DeInit()
}

func TestMetricsLogger_Uninitialized(t *testing.T) {
	var logger MetricsLogger
	assert.ErrorIs(t, logger.LogEvent(LOG_LEVEL_INFO, "ignored"), ErrLogNotInitialized)

	var nilLogger *MetricsLogger
	assert.ErrorIs(t, nilLogger.LogFields(LOG_LEVEL_INFO, "ignored"), ErrLogNotInitialized)
}

func TestParseLogLevel(t *testing.T) {
	cases := map[string]int{
		"error":   LOG_LEVEL_ERROR,
		"WARN":    LOG_LEVEL_WARN,
		"warning": LOG_LEVEL_WARN,
		"":        LOG_LEVEL_INFO,
		"Debug":   LOG_LEVEL_DEBUG,
	}
	for name, want := range cases {
		got, err := ParseLogLevel(name)
		assert.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}

	_, err := ParseLogLevel("verbose")
	assert.Error(t, err)
}
