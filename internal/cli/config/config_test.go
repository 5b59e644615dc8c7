package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	// Register adapters via init()
	_ "github.com/leapstack-labs/lumen/pkg/adapters/sqlite"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "lumen.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func testFlags() *pflag.FlagSet {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("config", "", "config file")
	flags.String("database", "", "database")
	flags.String("state", "", "state file")
	flags.String("docs", "", "docs file")
	flags.String("provider", "", "llm provider")
	flags.String("model", "", "llm model")
	flags.BoolP("verbose", "v", false, "verbose")
	flags.StringP("output", "o", "", "output format")
	return flags
}

func TestLoadConfig_FileAndDefaults(t *testing.T) {
	ResetConfig()
	cfgPath := writeConfig(t, `target:
  type: sqlite
  database: data/shop.db
llm:
  provider: openai
settings:
  max_attempts: 2
`)
	root := filepath.Dir(cfgPath)

	cfg, err := LoadConfig(cfgPath, nil)
	require.NoError(t, err)

	assert.Equal(t, root, cfg.ProjectRoot)
	assert.Equal(t, "sqlite", cfg.Target.Type)
	assert.Equal(t, filepath.Join(root, "data/shop.db"), cfg.Target.Database)
	assert.Equal(t, filepath.Join(root, DefaultStateFile), cfg.StatePath)
	assert.Equal(t, filepath.Join(root, DefaultDocsFile), cfg.DocsPath)

	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "OPENAI_API_KEY", cfg.LLM.APIKeyEnv)
	assert.NotEmpty(t, cfg.LLM.Model)

	assert.Equal(t, 2, cfg.Settings.MaxAttempts)
	assert.Equal(t, 1000, cfg.Settings.MaxResultRows)
	assert.Equal(t, "30s", cfg.Settings.StatementTimeout)
	assert.Equal(t, DefaultOutput, cfg.OutputFormat)

	assert.Equal(t, cfgPath, GetConfigFileUsed())
	assert.Same(t, cfg, GetCurrentConfig())
}

func TestLoadConfig_Precedence(t *testing.T) {
	cfgPath := writeConfig(t, `target:
  type: sqlite
  database: shop.db
llm:
  model: from_file
`)

	t.Run("env overrides file", func(t *testing.T) {
		ResetConfig()
		t.Setenv("LUMEN_LLM__MODEL", "from_env")
		t.Setenv("LUMEN_SETTINGS__HISTORY_TURNS", "7")

		cfg, err := LoadConfig(cfgPath, nil)
		require.NoError(t, err)
		assert.Equal(t, "from_env", cfg.LLM.Model)
		assert.Equal(t, 7, cfg.Settings.HistoryTurns)
	})

	t.Run("flag overrides env", func(t *testing.T) {
		ResetConfig()
		t.Setenv("LUMEN_LLM__MODEL", "from_env")
		flags := testFlags()
		require.NoError(t, flags.Set("model", "from_flag"))

		cfg, err := LoadConfig(cfgPath, flags)
		require.NoError(t, err)
		assert.Equal(t, "from_flag", cfg.LLM.Model)
	})

	t.Run("unset flag falls back", func(t *testing.T) {
		ResetConfig()
		cfg, err := LoadConfig(cfgPath, testFlags())
		require.NoError(t, err)
		assert.Equal(t, "from_file", cfg.LLM.Model)
	})
}

func TestLoadConfig_FlagPathsRelativeToCWD(t *testing.T) {
	ResetConfig()
	cfgPath := writeConfig(t, "target:\n  type: sqlite\n  database: shop.db\n")
	flags := testFlags()
	require.NoError(t, flags.Set("state", "custom/state.db"))

	cfg, err := LoadConfig(cfgPath, flags)
	require.NoError(t, err)

	want, err := filepath.Abs("custom/state.db")
	require.NoError(t, err)
	assert.Equal(t, want, cfg.StatePath)
}

func TestLoadConfig_DatabaseFlagInfersType(t *testing.T) {
	ResetConfig()
	cfgPath := writeConfig(t, "llm:\n  provider: ollama\n")
	flags := testFlags()
	require.NoError(t, flags.Set("database", "shop.sqlite"))

	cfg, err := LoadConfig(cfgPath, flags)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Target.Type)
	assert.True(t, filepath.IsAbs(cfg.Target.Database))
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		errSub  string
	}{
		{"no target", "llm:\n  provider: gemini\n", "target type is required"},
		{"unknown adapter", "target:\n  type: oracle\n", "oracle"},
		{"unknown provider", "target:\n  type: sqlite\nllm:\n  provider: acme\n", "Hint: set llm.provider"},
		{"bad timeout", "target:\n  type: sqlite\nsettings:\n  statement_timeout: soon\n", "statement_timeout"},
		{"bad output", "target:\n  type: sqlite\noutput: xml\n", "unknown output format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ResetConfig()
			_, err := LoadConfig(writeConfig(t, tt.content), nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errSub)
		})
	}
}

func TestLoadConfig_ExpandsTargetEnvVars(t *testing.T) {
	ResetConfig()
	t.Setenv("LUMEN_TEST_DB_PASSWORD", "s3cret")
	cfgPath := writeConfig(t, `target:
  type: sqlite
  database: shop.db
  password: ${LUMEN_TEST_DB_PASSWORD}
  user: ${LUMEN_TEST_UNSET_USER}
`)

	cfg, err := LoadConfig(cfgPath, nil)
	require.NoError(t, err)
	assert.Equal(t, "s3cret", cfg.Target.Password)
	assert.Equal(t, "${LUMEN_TEST_UNSET_USER}", cfg.Target.User)
}

func TestInferTargetType(t *testing.T) {
	tests := map[string]string{
		"shop.db":                     "sqlite",
		"shop.SQLITE3":                "sqlite",
		"warehouse.duckdb":            "duckdb",
		"postgres://localhost/shop":   "postgres",
		"postgresql://u@host:5432/db": "postgres",
		"data.csv":                    "",
		"":                            "",
	}
	for in, want := range tests {
		assert.Equal(t, want, InferTargetType(in), in)
	}
}

func TestResolvePathRelativeTo(t *testing.T) {
	assert.Equal(t, "", resolvePathRelativeTo("", "/base"))
	assert.Equal(t, ":memory:", resolvePathRelativeTo(":memory:", "/base"))
	assert.Equal(t, "/abs/x.db", resolvePathRelativeTo("/abs/x.db", "/base"))
	assert.Equal(t, filepath.Join("/base", "x.db"), resolvePathRelativeTo("x.db", "/base"))
}

func TestGetLogger_Fallback(t *testing.T) {
	logger := GetLogger(context.Background())
	require.NotNil(t, logger)
	logger.Info("discarded")
}
