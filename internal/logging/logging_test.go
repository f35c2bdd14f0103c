package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_WritesJSONToConsole(t *testing.T) {
	var buf bytes.Buffer
	logger, err := Init(Options{Level: "debug", Console: &buf})
	require.NoError(t, err)
	defer logger.Close()

	logger.Info().Str("component", "test").Msg("hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "hello", entry["message"])
	assert.Equal(t, "test", entry["component"])
	assert.NotEmpty(t, entry["time"])
}

func TestInit_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	logger, err := Init(Options{Level: "warn", Console: &buf})
	require.NoError(t, err)
	defer logger.Close()

	logger.Info().Msg("dropped")
	logger.Warn().Msg("kept")

	assert.NotContains(t, buf.String(), "dropped")
	assert.Contains(t, buf.String(), "kept")
}

func TestInit_InvalidLevel(t *testing.T) {
	_, err := Init(Options{Level: "loud"})
	require.Error(t, err)
}

func TestInit_FileOutput(t *testing.T) {
	dir := t.TempDir()
	var buf bytes.Buffer
	logger, err := Init(Options{Level: "info", Dir: dir, Console: &buf})
	require.NoError(t, err)

	logger.Info().Msg("to both sinks")
	logger.Close()

	data, err := os.ReadFile(filepath.Join(dir, logFileName))
	require.NoError(t, err)
	assert.Contains(t, string(data), "to both sinks")
	assert.Contains(t, buf.String(), "to both sinks")
}

func TestClose_Idempotent(t *testing.T) {
	logger, err := Init(Options{Level: "info", Dir: t.TempDir(), Console: &bytes.Buffer{}})
	require.NoError(t, err)
	logger.Close()
	logger.Close()
}
