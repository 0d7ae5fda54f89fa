package services_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/iyunix/go-rigadvisor/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProductionLogger_StructuredFields(t *testing.T) {
	var buf bytes.Buffer
	logger := services.NewProductionLoggerWithWriter("rigadvisor", &buf, services.LogLevelInfo, true)

	logger.Warn("attempt failed, retrying", "attempt", 1, "error", errors.New("503"), "dangling")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "rigadvisor", entry["service"])
	assert.Equal(t, "attempt failed, retrying", entry["message"])
	assert.Equal(t, float64(1), entry["attempt"])
	assert.Equal(t, "503", entry["error"])
	assert.NotContains(t, entry, "dangling")
}

func TestProductionLogger_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	logger := services.NewProductionLoggerWithWriter("rigadvisor", &buf, services.LogLevelWarn, true)

	logger.Debug("hidden")
	logger.Info("hidden")
	assert.Zero(t, buf.Len())

	logger.Error("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, services.LogLevelDebug, services.ParseLogLevel("debug"))
	assert.Equal(t, services.LogLevelWarn, services.ParseLogLevel(" WARN "))
	assert.Equal(t, services.LogLevelError, services.ParseLogLevel("ERROR"))
	assert.Equal(t, services.LogLevelInfo, services.ParseLogLevel(""))
	assert.Equal(t, services.LogLevelInfo, services.ParseLogLevel("verbose"))
}
