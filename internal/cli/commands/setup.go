package commands

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/lumen/internal/agent"
	"github.com/leapstack-labs/lumen/internal/cli/config"
	"github.com/leapstack-labs/lumen/internal/llm"
	"github.com/leapstack-labs/lumen/internal/schema"
	"github.com/leapstack-labs/lumen/internal/state"
	"github.com/leapstack-labs/lumen/internal/suggest"
	"github.com/leapstack-labs/lumen/pkg/adapter"

	// Register database adapters via init()
	_ "github.com/leapstack-labs/lumen/pkg/adapters/duckdb"
	_ "github.com/leapstack-labs/lumen/pkg/adapters/postgres"
	_ "github.com/leapstack-labs/lumen/pkg/adapters/sqlite"
)

// Needs selects the dependencies a command opens.
type Needs uint8

// Dependencies a command can ask for.
const (
	NeedStore Needs = 1 << iota
	NeedDatabase
	NeedLLM

	// NeedAll opens everything required to answer questions.
	NeedAll = NeedStore | NeedDatabase | NeedLLM
)

// CommandContext holds common dependencies for CLI commands. Fields not
// requested through Needs are nil.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Renderer *Renderer

	Store   *state.SQLiteStore
	Adapter adapter.Adapter
	Schema  *schema.Service
	LLM     llm.Provider
	Agent   *agent.Orchestrator
	Suggest *suggest.Service
}

// NewCommandContext opens what needs asks for. The cleanup function must be
// called (typically via defer) once the command is done.
func NewCommandContext(cmd *cobra.Command, needs Needs) (*CommandContext, func(), error) {
	cfg, err := getConfig()
	if err != nil {
		return nil, nil, err
	}
	logger := config.GetLogger(cmd.Context())
	cc := &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Renderer: NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), cfg.OutputFormat),
	}

	var closers []func() error
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i]()
		}
	}
	fail := func(err error) (*CommandContext, func(), error) {
		cleanup()
		return nil, nil, err
	}

	if needs&NeedStore != 0 {
		store, err := openStore(cfg.StatePath)
		if err != nil {
			return fail(err)
		}
		cc.Store = store
		closers = append(closers, store.Close)
	}

	if needs&NeedDatabase != 0 {
		a, err := adapter.NewAdapter(cfg.Target.AdapterConfig(), logger)
		if err != nil {
			return fail(err)
		}
		if err := a.Connect(cmd.Context(), cfg.Target.AdapterConfig()); err != nil {
			return fail(fmt.Errorf("failed to connect to %s target: %w", cfg.Target.Type, err))
		}
		cc.Adapter = a
		closers = append(closers, a.Close)

		cc.Schema = schema.NewService(schema.ServiceConfig{
			Source:   a,
			DocsPath: cfg.DocsPath,
			Logger:   logger,
		})
	}

	if needs&NeedLLM != 0 {
		llmCfg := cfg.LLM.ProviderConfig()
		llmCfg.Logger = logger
		provider, err := llm.New(cmd.Context(), llmCfg)
		if err != nil {
			return fail(err)
		}
		cc.LLM = provider
	}

	if cc.Schema != nil && cc.LLM != nil {
		orch, err := newOrchestrator(cc)
		if err != nil {
			return fail(err)
		}
		cc.Agent = orch
	}
	if cc.LLM != nil && cc.Store != nil {
		cc.Suggest = suggest.New(cc.LLM, cc.Store, logger)
	}

	return cc, cleanup, nil
}

func newOrchestrator(cc *CommandContext) (*agent.Orchestrator, error) {
	timeout, err := cc.Cfg.Settings.Timeout()
	if err != nil {
		return nil, err
	}
	orchCfg := agent.Config{
		Schema:   cc.Schema,
		Executor: cc.Adapter,
		LLM:      cc.LLM,
		Dialect:  cc.Adapter.Name(),
		Settings: agent.Settings{
			MaxAttempts:       cc.Cfg.Settings.MaxAttempts,
			StatementTimeout:  timeout,
			RowCap:            cc.Cfg.Settings.MaxResultRows,
			HistoryTurns:      cc.Cfg.Settings.HistoryTurns,
			NarrateSampleRows: cc.Cfg.Settings.NarrateSampleRows,
			Theme:             cc.Cfg.Settings.Theme,
		},
		Logger: cc.Logger,
	}
	// A nil *SQLiteStore must not become a non-nil interface.
	if cc.Store != nil {
		orchCfg.Store = cc.Store
	}
	return agent.New(orchCfg)
}

// openStore opens the state database, creating its directory.
func openStore(path string) (*state.SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create state directory: %w", err)
		}
	}
	store, err := state.OpenStore(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open state store %s: %w", path, err)
	}
	return store, nil
}

// getConfig returns the configuration loaded by the root command, loading
// it from the working directory when the command runs standalone.
func getConfig() (*config.Config, error) {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg, nil
	}
	return config.LoadConfig("", nil)
}
