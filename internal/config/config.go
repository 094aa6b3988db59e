// Package config provides configuration structures and loading for modlens.
package config

import (
	"fmt"
	"sort"
	"strings"
)

// Config represents the complete application configuration.
type Config struct {
	Schema     SchemaConfig      `yaml:"schema" mapstructure:"schema"`
	Variants   map[string]string `yaml:"variants" mapstructure:"variants"`
	Simulation SimulationConfig  `yaml:"simulation" mapstructure:"simulation"`
	Logging    LoggingConfig     `yaml:"logging" mapstructure:"logging"`
}

// SchemaConfig controls schema introspection against the sample database.
type SchemaConfig struct {
	Sample        string `yaml:"sample" mapstructure:"sample"`                 // path to the representative SQLite file
	SentinelTable string `yaml:"sentinel_table" mapstructure:"sentinel_table"` // never an FK candidate target
	InferBooleans bool   `yaml:"infer_booleans" mapstructure:"infer_booleans"`
}

// SimulationConfig controls how UPDATE/DELETE statements are simulated.
type SimulationConfig struct {
	VerifyRollback bool   `yaml:"verify_rollback" mapstructure:"verify_rollback"`
	VerifyMethod   string `yaml:"verify_method" mapstructure:"verify_method"` // count or sha256
	BusyTimeoutMS  int    `yaml:"busy_timeout_ms" mapstructure:"busy_timeout_ms"`
}

// LoggingConfig represents logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`   // debug, info, warn, error
	Format string `yaml:"format" mapstructure:"format"` // json or text
	Output string `yaml:"output" mapstructure:"output"` // stdout, stderr, or file path
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		Schema: SchemaConfig{
			SentinelTable: "Types",
			InferBooleans: true,
		},
		Variants: map[string]string{},
		Simulation: SimulationConfig{
			VerifyRollback: false,
			VerifyMethod:   "sha256",
			BusyTimeoutMS:  5000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// VariantPath returns the database path of a variant. Variant keys are
// case-insensitive because viper lower-cases map keys.
func (c *Config) VariantPath(name string) (string, error) {
	path, ok := c.Variants[strings.ToLower(name)]
	if !ok {
		return "", fmt.Errorf("variant %q not found in configuration", name)
	}
	return path, nil
}

// ListVariants returns all variant names in sorted order.
func (c *Config) ListVariants() []string {
	names := make([]string, 0, len(c.Variants))
	for name := range c.Variants {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ApplyOverrides applies CLI flag overrides to the configuration.
// Only non-zero/non-empty values are applied.
func (c *Config) ApplyOverrides(logLevel, logFormat, sample string, verifyRollback bool) {
	if logLevel != "" {
		c.Logging.Level = logLevel
	}
	if logFormat != "" {
		c.Logging.Format = logFormat
	}
	if sample != "" {
		c.Schema.Sample = sample
	}
	if verifyRollback {
		c.Simulation.VerifyRollback = true
	}
}
