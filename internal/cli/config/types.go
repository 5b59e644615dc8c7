// Package config provides configuration management for the lumen CLI.
//
// This package extends the shared configuration types from internal/config
// with CLI-specific fields and functionality. The shared types are
// re-exported here via type aliases for convenience.
package config

import (
	sharedcfg "github.com/leapstack-labs/lumen/internal/config"
)

// TargetConfig is an alias for the shared target configuration.
type TargetConfig = sharedcfg.TargetConfig

// LLMConfig is an alias for the shared llm configuration.
type LLMConfig = sharedcfg.LLMConfig

// Settings is an alias for the shared pipeline settings.
type Settings = sharedcfg.Settings

// UIConfig is an alias for the shared server configuration.
type UIConfig = sharedcfg.UIConfig

// Config holds all CLI configuration options.
type Config struct {
	Target       *TargetConfig `koanf:"target"`
	LLM          LLMConfig     `koanf:"llm"`
	Settings     Settings      `koanf:"settings"`
	StatePath    string        `koanf:"state_path"`
	DocsPath     string        `koanf:"docs_path"`
	UI           UIConfig      `koanf:"ui"`
	Verbose      bool          `koanf:"verbose"`
	OutputFormat string        `koanf:"output"`

	// ProjectRoot is the directory relative paths are resolved against.
	ProjectRoot string `koanf:"-"`
}

// Default configuration values - uses shared defaults from internal/config
const (
	DefaultStateFile = sharedcfg.DefaultStateFile
	DefaultDocsFile  = sharedcfg.DefaultDocsFile
	DefaultOutput    = sharedcfg.DefaultOutput
)
