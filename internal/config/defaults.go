package config

import (
	"os"
	"path/filepath"

	"github.com/leapstack-labs/lumen/internal/llm"
	"github.com/leapstack-labs/lumen/internal/viz"
)

// Default configuration values.
const (
	DefaultStateFile   = ".lumen/state.db"
	DefaultDocsFile    = "lumen-docs.yaml"
	DefaultLLMProvider = llm.ProviderGemini
	DefaultUIPort      = 8765
	DefaultOutput      = "auto" // TTY=text, non-TTY=json
)

// Config file names, searched in this order.
const (
	ConfigFileName    = "lumen.yaml"
	ConfigFileNameAlt = "lumen.yml"
)

// Defaults returns the flat key/value defaults loaded before any file.
func Defaults() map[string]any {
	return map[string]any{
		"state_path":                   DefaultStateFile,
		"docs_path":                    DefaultDocsFile,
		"verbose":                      false,
		"output":                       DefaultOutput,
		"llm.provider":                 DefaultLLMProvider,
		"llm.temperature":              0.0,
		"settings.max_result_rows":     1000,
		"settings.statement_timeout":   "30s",
		"settings.max_attempts":        3,
		"settings.history_turns":       5,
		"settings.narrate_sample_rows": 50,
		"settings.theme":               viz.ThemeDefault,
		"ui.port":                      DefaultUIPort,
		"ui.watch":                     true,
	}
}

// FindConfigFile returns the config file in dir, or "".
func FindConfigFile(dir string) string {
	for _, name := range []string{ConfigFileName, ConfigFileNameAlt} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// FindProjectRoot walks up from startDir to the first directory holding a
// config file, giving up after maxLevels directories. It returns "" when
// none is found.
func FindProjectRoot(startDir string, maxLevels int) string {
	dir := startDir
	for i := 0; i < maxLevels; i++ {
		if FindConfigFile(dir) != "" {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
	return ""
}
