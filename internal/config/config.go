package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

const (
	GeneratorOpenAI = "openai"
	GeneratorLua    = "lua"

	LogFormatText = "text"
	LogFormatJSON = "json"
)

type Config struct {
	DataDir     string
	DBPath      string // run history
	StorePath   string // application data the requests operate on
	PromptsPath string

	Generator string
	LuaScript string
	APIKey    string
	Model     string
	BaseURL   string

	HTTPAddr  string
	LogLevel  slog.Level
	LogFormat string
}

func New() (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	dataDir := getEnv("CRUDFLOW_DATA_DIR", filepath.Join(homeDir, ".crudflow"))

	c := &Config{
		DataDir:     dataDir,
		DBPath:      filepath.Join(dataDir, "crudflow.db"),
		StorePath:   getEnv("CRUDFLOW_STORE_PATH", filepath.Join(dataDir, "apps.db")),
		PromptsPath: getEnv("CRUDFLOW_PROMPTS", ""),
		Generator:   strings.ToLower(getEnv("CRUDFLOW_GENERATOR", GeneratorOpenAI)),
		LuaScript:   getEnv("CRUDFLOW_LUA_SCRIPT", ""),
		APIKey:      getEnv("OPENAI_API_KEY", ""),
		Model:       getEnv("CRUDFLOW_MODEL", "gpt-4o-mini"),
		BaseURL:     getEnv("CRUDFLOW_BASE_URL", "https://api.openai.com/v1"),
		HTTPAddr:    getEnv("CRUDFLOW_HTTP_ADDR", "127.0.0.1:8000"),
		LogFormat:   strings.ToLower(getEnv("CRUDFLOW_LOG_FORMAT", LogFormatText)),
	}

	level, err := parseLevel(getEnv("CRUDFLOW_LOG_LEVEL", "info"))
	if err != nil {
		return nil, err
	}
	c.LogLevel = level

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) Validate() error {
	switch c.Generator {
	case GeneratorOpenAI, GeneratorLua:
	default:
		return fmt.Errorf("CRUDFLOW_GENERATOR must be %q or %q, got %q", GeneratorOpenAI, GeneratorLua, c.Generator)
	}
	switch c.LogFormat {
	case LogFormatText, LogFormatJSON:
	default:
		return fmt.Errorf("CRUDFLOW_LOG_FORMAT must be %q or %q, got %q", LogFormatText, LogFormatJSON, c.LogFormat)
	}
	return nil
}

// SetLogging applies command-line log settings over the environment. Empty
// values leave the current setting alone.
func (c *Config) SetLogging(level, format string) error {
	if level != "" {
		parsed, err := parseLevel(level)
		if err != nil {
			return err
		}
		c.LogLevel = parsed
	}
	if format != "" {
		c.LogFormat = strings.ToLower(format)
	}
	return c.Validate()
}

func (c *Config) EnsureDataDir() error {
	if err := os.MkdirAll(c.DataDir, 0755); err != nil {
		return err
	}
	return os.MkdirAll(filepath.Dir(c.StorePath), 0755)
}

func parseLevel(raw string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(raw)); err != nil {
		return 0, fmt.Errorf("CRUDFLOW_LOG_LEVEL: %w", err)
	}
	return level, nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
