package logging

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mpataki/crudflow/internal/config"
)

func TestNewJSON(t *testing.T) {
	var out bytes.Buffer
	logger := New(&out, slog.LevelInfo, config.LogFormatJSON)
	logger.Info("json log test", slog.String("key", "value"))
	logger.Debug("hidden")

	line := out.String()
	assert.Contains(t, line, `"msg":"json log test"`)
	assert.Contains(t, line, `"key":"value"`)
	assert.NotContains(t, line, "hidden")
}

func TestNewText(t *testing.T) {
	var out bytes.Buffer
	logger := New(&out, slog.LevelDebug, config.LogFormatText)
	logger.Debug("text log test", slog.String("key", "value"), slog.Any("error", errors.New("boom")))

	line := out.String()
	assert.Contains(t, line, "text log test")
	assert.Contains(t, line, "key=value")
	assert.Contains(t, line, "boom")
}
