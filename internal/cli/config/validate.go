package config

import "fmt"

// Validate checks the loaded configuration. Target errors carry a hint
// naming the available adapters.
func (c *Config) Validate() error {
	if c.Target == nil {
		return fmt.Errorf("no target configured\nHint: add a target section to lumen.yaml or pass --database")
	}
	if err := c.Target.Validate(); err != nil {
		return fmt.Errorf("invalid target configuration: %w", err)
	}
	if err := c.LLM.Validate(); err != nil {
		return err
	}
	if err := c.Settings.Validate(); err != nil {
		return err
	}
	switch c.OutputFormat {
	case "", "auto", "text", "json":
	default:
		return fmt.Errorf("unknown output format %q (auto|text|json)", c.OutputFormat)
	}
	return nil
}
