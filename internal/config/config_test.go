package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	taskctlerrors "github.com/taskctl/taskctl/internal/errors"
)

func TestLoadFromPath_Defaults(t *testing.T) {
	cfg, err := LoadFromPath(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err, "missing config file falls back to defaults")
	assert.NotEmpty(t, cfg.DBPath)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.NotEmpty(t, cfg.LogDir)
}

func TestLoadFromPath_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path,
		[]byte(`{"db_path": "/tmp/custom.db", "log_level": "debug"}`), 0o600))

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/custom.db", cfg.DBPath)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadFromPath_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"db_path": "/tmp/from-file.db"}`), 0o600))
	t.Setenv("TASKCTL_DB_PATH", "/tmp/from-env.db")
	t.Setenv("TASKCTL_LOG_LEVEL", "warn")

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/from-env.db", cfg.DBPath)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestLoadFromPath_InvalidLevel(t *testing.T) {
	t.Setenv("TASKCTL_LOG_LEVEL", "loud")

	_, err := LoadFromPath(filepath.Join(t.TempDir(), "missing.json"))
	require.ErrorIs(t, err, taskctlerrors.ErrInvalidArgument)
}

func TestLoadFromPath_MalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0o600))

	_, err := LoadFromPath(path)
	require.Error(t, err)
}

func TestDefaultDBPath(t *testing.T) {
	path, err := DefaultDBPath()
	require.NoError(t, err)
	assert.Equal(t, "taskctl.db", filepath.Base(path))
	assert.Contains(t, path, "taskctl")
}
