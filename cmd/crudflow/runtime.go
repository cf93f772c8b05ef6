package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mpataki/crudflow/internal/config"
	"github.com/mpataki/crudflow/internal/datastore"
	"github.com/mpataki/crudflow/internal/generator"
	"github.com/mpataki/crudflow/internal/logging"
	"github.com/mpataki/crudflow/internal/orchestrator"
	"github.com/mpataki/crudflow/internal/prompts"
	"github.com/mpataki/crudflow/internal/storage"
	"github.com/mpataki/crudflow/internal/workflow"
)

// runtime holds everything a command needs. Commands that only read history
// skip the engine.
type runtime struct {
	cfg     *config.Config
	logger  *slog.Logger
	history *storage.Storage
	store   *datastore.Store
	orch    *orchestrator.Orchestrator
	closers []func() error
}

func (r *runtime) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			r.logger.Warn("close failed", "error", err)
		}
	}
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.New()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	level, _ := cmd.Flags().GetString("log-level")
	format, _ := cmd.Flags().GetString("log-format")
	if err := cfg.SetLogging(level, format); err != nil {
		return nil, err
	}
	if err := cfg.EnsureDataDir(); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return cfg, nil
}

func openRuntime(ctx context.Context, cfg *config.Config, logOutput io.Writer, withEngine bool) (*runtime, error) {
	r := &runtime{
		cfg:    cfg,
		logger: logging.New(logOutput, cfg.LogLevel, cfg.LogFormat),
	}

	history, err := storage.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	r.history = history
	r.closers = append(r.closers, history.Close)

	var engine *workflow.Engine
	if withEngine {
		if engine, err = r.openEngine(ctx); err != nil {
			r.Close()
			return nil, err
		}
	}

	r.orch = orchestrator.New(history, engine, r.logger)
	return r, nil
}

func (r *runtime) openEngine(ctx context.Context) (*workflow.Engine, error) {
	store, err := r.openStore(ctx)
	if err != nil {
		return nil, err
	}

	catalogue, err := prompts.Load(r.cfg.PromptsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load prompts: %w", err)
	}
	if catalogue.Schema == "" {
		if catalogue.Schema, err = store.Schema(ctx); err != nil {
			return nil, fmt.Errorf("failed to read schema: %w", err)
		}
	}

	src, err := r.openGenerator()
	if err != nil {
		return nil, err
	}

	engine, err := workflow.New(generator.Normalize(src), store, catalogue, r.logger)
	if err != nil {
		return nil, err
	}
	return engine, nil
}

// openStore opens the application database, loading the demo data the
// first time it is used.
func (r *runtime) openStore(ctx context.Context) (*datastore.Store, error) {
	store, err := datastore.Open(r.cfg.StorePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open data store: %w", err)
	}
	r.store = store
	r.closers = append(r.closers, store.Close)

	schema, err := store.Schema(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema: %w", err)
	}
	if schema == "" {
		r.logger.Info("empty data store, loading demo data", "path", r.cfg.StorePath)
		if err := store.Seed(ctx, false); err != nil {
			return nil, fmt.Errorf("failed to seed data store: %w", err)
		}
	}
	return store, nil
}

func (r *runtime) openGenerator() (generator.Source, error) {
	switch r.cfg.Generator {
	case config.GeneratorLua:
		var src *generator.Lua
		var err error
		if r.cfg.LuaScript == "" {
			src, err = generator.NewDemo(r.logger)
		} else {
			src, err = generator.LoadLua(r.cfg.LuaScript, r.logger)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load lua generator: %w", err)
		}
		r.closers = append(r.closers, func() error { src.Close(); return nil })
		return src, nil

	default:
		src, err := generator.NewOpenAI(generator.OpenAIConfig{
			APIKey:  r.cfg.APIKey,
			Model:   r.cfg.Model,
			BaseURL: r.cfg.BaseURL,
		})
		if err != nil {
			return nil, fmt.Errorf("%w (set OPENAI_API_KEY, or CRUDFLOW_GENERATOR=lua for offline use)", err)
		}
		return src, nil
	}
}

// tuiLogFile keeps log output off the terminal while the TUI owns it.
func tuiLogFile(cfg *config.Config) (*os.File, error) {
	return os.OpenFile(filepath.Join(cfg.DataDir, "crudflow.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
}
