// Package config loads the searchql YAML configuration.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Catalog sources.
const (
	SourceCUE    = "cue"
	SourceSQLite = "sqlite"
)

// DefaultChannel is the pub/sub channel carrying attribute change events.
const DefaultChannel = "searchql:attributes"

// Config holds the searchql configuration.
type Config struct {
	Logging  LoggingConfig  `yaml:"logging"`
	Catalog  CatalogConfig  `yaml:"catalog"`
	Parser   ParserConfig   `yaml:"parser"`
	Registry RegistryConfig `yaml:"registry"`
	Notify   NotifyConfig   `yaml:"notify"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Env   string `yaml:"env"`   // prod, local, dev, test (default: local)
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// CatalogConfig selects where attribute definitions come from.
type CatalogConfig struct {
	Source string `yaml:"source"` // cue, sqlite (default: cue)
	Path   string `yaml:"path"`   // CUE file or directory, or SQLite database file
}

// ParserConfig holds query parser settings.
type ParserConfig struct {
	DefaultField string `yaml:"default_field"` // field for terms written without one
}

// RegistryConfig holds attribute registry settings.
type RegistryConfig struct {
	EagerRefresh bool `yaml:"eager_refresh"` // rebuild on change events instead of on next use
}

// NotifyConfig holds the change-event transport settings.
type NotifyConfig struct {
	Addrs    []string `yaml:"addrs"`
	Channel  string   `yaml:"channel"`
	Username string   `yaml:"username"`
	Password string   `yaml:"password"`
}

// MetricsConfig holds Prometheus settings.
type MetricsConfig struct {
	Namespace string `yaml:"namespace"`
}

// Load reads configuration from a YAML file. An empty path yields the
// defaults.
func Load(path string) (Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
		}

		// Substitute env variables of the form ${VAR}
		data = expandEnvVars(data)

		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return Config{}, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.Logging.Env == "" {
		c.Logging.Env = "local"
	}
	if c.Catalog.Source == "" {
		c.Catalog.Source = SourceCUE
	}
	if c.Notify.Channel == "" {
		c.Notify.Channel = DefaultChannel
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = "searchql"
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	switch c.Logging.Env {
	case "prod", "local", "dev", "test":
	default:
		return fmt.Errorf("logging.env must be one of prod, local, dev, test, got %q", c.Logging.Env)
	}
	switch c.Catalog.Source {
	case SourceCUE, SourceSQLite:
	default:
		return fmt.Errorf("catalog.source must be %q or %q, got %q", SourceCUE, SourceSQLite, c.Catalog.Source)
	}
	if strings.ContainsAny(c.Parser.DefaultField, " :") {
		return fmt.Errorf("parser.default_field %q must be a single field name", c.Parser.DefaultField)
	}
	for i, addr := range c.Notify.Addrs {
		if strings.TrimSpace(addr) == "" {
			return fmt.Errorf("notify.addrs[%d] is empty", i)
		}
	}
	return nil
}

// NotifyEnabled reports whether a change-event transport is configured.
func (c *Config) NotifyEnabled() bool {
	return len(c.Notify.Addrs) > 0
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
