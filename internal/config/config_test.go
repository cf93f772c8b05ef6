package config

import (
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CRUDFLOW_DATA_DIR", dir)
	t.Setenv("CRUDFLOW_LOG_LEVEL", "debug")

	c, err := New()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "crudflow.db"), c.DBPath)
	assert.Equal(t, filepath.Join(dir, "apps.db"), c.StorePath)
	assert.Equal(t, GeneratorOpenAI, c.Generator)
	assert.Equal(t, "gpt-4o-mini", c.Model)
	assert.Equal(t, LogFormatText, c.LogFormat)
	assert.Equal(t, slog.LevelDebug, c.LogLevel)

	require.NoError(t, c.EnsureDataDir())
	assert.DirExists(t, dir)
}

func TestNewOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CRUDFLOW_DATA_DIR", dir)
	t.Setenv("CRUDFLOW_STORE_PATH", filepath.Join(dir, "shop", "data.db"))
	t.Setenv("CRUDFLOW_GENERATOR", "LUA")
	t.Setenv("CRUDFLOW_LOG_FORMAT", "json")
	t.Setenv("CRUDFLOW_LOG_LEVEL", "warn")

	c, err := New()
	require.NoError(t, err)

	assert.Equal(t, GeneratorLua, c.Generator)
	assert.Equal(t, LogFormatJSON, c.LogFormat)
	assert.Equal(t, slog.LevelWarn, c.LogLevel)

	require.NoError(t, c.EnsureDataDir())
	assert.DirExists(t, filepath.Join(dir, "shop"))
}

func TestNewRejectsBadValues(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"CRUDFLOW_GENERATOR", "llama"},
		{"CRUDFLOW_LOG_FORMAT", "xml"},
		{"CRUDFLOW_LOG_LEVEL", "loud"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Setenv("CRUDFLOW_DATA_DIR", t.TempDir())
			t.Setenv(tt.key, tt.value)

			_, err := New()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestSetLogging(t *testing.T) {
	t.Setenv("CRUDFLOW_DATA_DIR", t.TempDir())
	t.Setenv("CRUDFLOW_LOG_LEVEL", "info")
	t.Setenv("CRUDFLOW_LOG_FORMAT", "text")

	c, err := New()
	require.NoError(t, err)

	require.NoError(t, c.SetLogging("", ""))
	assert.Equal(t, slog.LevelInfo, c.LogLevel)
	assert.Equal(t, LogFormatText, c.LogFormat)

	require.NoError(t, c.SetLogging("error", "JSON"))
	assert.Equal(t, slog.LevelError, c.LogLevel)
	assert.Equal(t, LogFormatJSON, c.LogFormat)

	assert.Error(t, c.SetLogging("loud", ""))
	assert.Error(t, c.SetLogging("", "xml"))
}
