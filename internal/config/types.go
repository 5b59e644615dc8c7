// Package config provides the shared configuration types for lumen.
// It is decoupled from CLI concerns so the HTTP server and tests can build
// the same configuration without cobra.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/leapstack-labs/lumen/internal/llm"
	"github.com/leapstack-labs/lumen/internal/viz"
	"github.com/leapstack-labs/lumen/pkg/adapter"
)

// TargetConfig holds database target configuration.
type TargetConfig struct {
	Type string `koanf:"type"` // postgres, duckdb, sqlite

	// File-based databases (DuckDB, SQLite)
	Database string `koanf:"database"` // file path or database name

	// Network databases
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`

	Schema string `koanf:"schema"`

	// Additional driver-specific options
	Options map[string]string `koanf:"options"`

	// Params holds adapter-specific configuration (e.g., DuckDB extensions, settings)
	Params map[string]any `koanf:"params"`
}

// Validate checks if the target configuration is valid.
// It uses the adapter registry to determine which adapter types are available.
func (t *TargetConfig) Validate() error {
	if t.Type == "" {
		return fmt.Errorf("target type is required")
	}
	if !adapter.IsRegistered(strings.ToLower(t.Type)) {
		return &adapter.UnknownAdapterError{
			Type:      t.Type,
			Available: adapter.ListAdapters(),
		}
	}
	return nil
}

// ApplyDefaults fills the schema and port for the target type.
func (t *TargetConfig) ApplyDefaults() {
	t.Type = strings.ToLower(t.Type)
	if t.Schema == "" {
		t.Schema = DefaultSchemaForType(t.Type)
	}
	if t.Type == "postgres" && t.Port == 0 {
		t.Port = 5432
	}
}

// AdapterConfig converts the target to the adapter connection config.
func (t *TargetConfig) AdapterConfig() adapter.Config {
	return adapter.Config{
		Type:     t.Type,
		Path:     t.Database,
		Host:     t.Host,
		Port:     t.Port,
		Database: t.Database,
		Username: t.User,
		Password: t.Password,
		Schema:   t.Schema,
		Options:  t.Options,
		Params:   t.Params,
	}
}

// DefaultSchemaForType returns the default schema for a database type.
func DefaultSchemaForType(dbType string) string {
	switch dbType {
	case "postgres":
		return "public"
	case "duckdb":
		return "main"
	}
	return ""
}

// LLMConfig selects the language model provider.
type LLMConfig struct {
	Provider    string  `koanf:"provider"` // gemini, openai, ollama
	Model       string  `koanf:"model"`
	APIKeyEnv   string  `koanf:"api_key_env"`
	BaseURL     string  `koanf:"base_url"`
	Temperature float32 `koanf:"temperature"`
	Timeout     string  `koanf:"timeout"`
}

// ApplyDefaults fills the model and API key variable for the provider.
func (c *LLMConfig) ApplyDefaults() {
	c.Provider = strings.ToLower(c.Provider)
	if c.Provider == "" {
		c.Provider = DefaultLLMProvider
	}
	if c.Model == "" {
		c.Model = llm.DefaultModels[c.Provider]
	}
	if c.APIKeyEnv == "" {
		c.APIKeyEnv = defaultAPIKeyEnv[c.Provider]
	}
}

// Validate rejects unknown providers and bad timeouts.
func (c *LLMConfig) Validate() error {
	if _, ok := llm.DefaultModels[c.Provider]; !ok {
		return fmt.Errorf("unknown llm provider %q\nHint: set llm.provider to one of: %s",
			c.Provider, strings.Join(llm.Providers(), ", "))
	}
	if c.Timeout != "" {
		if _, err := time.ParseDuration(c.Timeout); err != nil {
			return fmt.Errorf("invalid llm.timeout %q: %w", c.Timeout, err)
		}
	}
	return nil
}

// APIKey reads the provider key from the configured environment variable.
func (c *LLMConfig) APIKey() string {
	if c.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(c.APIKeyEnv)
}

// ProviderConfig converts the section to the llm factory config.
func (c *LLMConfig) ProviderConfig() llm.Config {
	timeout, _ := time.ParseDuration(c.Timeout)
	return llm.Config{
		Provider:    c.Provider,
		Model:       c.Model,
		APIKey:      c.APIKey(),
		BaseURL:     c.BaseURL,
		Temperature: c.Temperature,
		Timeout:     timeout,
	}
}

var defaultAPIKeyEnv = map[string]string{
	llm.ProviderGemini: "GEMINI_API_KEY",
	llm.ProviderOpenAI: "OPENAI_API_KEY",
}

// Settings bounds pipeline runs.
type Settings struct {
	MaxResultRows     int    `koanf:"max_result_rows"`
	StatementTimeout  string `koanf:"statement_timeout"`
	// MaxAttempts is the total number of query executions per question,
	// the first one included.
	MaxAttempts       int    `koanf:"max_attempts"`
	HistoryTurns      int    `koanf:"history_turns"`
	NarrateSampleRows int    `koanf:"narrate_sample_rows"`
	Theme             string `koanf:"theme"`
}

// Validate checks bounds, the timeout and the theme name.
func (s *Settings) Validate() error {
	if s.MaxResultRows < 1 {
		return fmt.Errorf("settings.max_result_rows must be positive, got %d", s.MaxResultRows)
	}
	if s.MaxAttempts < 1 {
		return fmt.Errorf("settings.max_attempts must be at least 1, got %d", s.MaxAttempts)
	}
	if _, err := s.Timeout(); err != nil {
		return err
	}
	return viz.ValidateTheme(s.Theme)
}

// Timeout parses StatementTimeout.
func (s *Settings) Timeout() (time.Duration, error) {
	d, err := time.ParseDuration(s.StatementTimeout)
	if err != nil {
		return 0, fmt.Errorf("invalid settings.statement_timeout %q: %w", s.StatementTimeout, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("settings.statement_timeout must be positive, got %s", s.StatementTimeout)
	}
	return d, nil
}

// UIConfig holds configuration for the HTTP server.
type UIConfig struct {
	Port          int    `koanf:"port"`
	Watch         bool   `koanf:"watch"`
	SessionSecret string `koanf:"session_secret"`
}
