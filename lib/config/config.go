// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/profiledir/lib/compress"
)

// EnvVar names the environment variable Load reads the config path
// from.
const EnvVar = "PROFILEDIR_CONFIG"

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local development machines.
	Development Environment = "development"
	// Staging is for pre-production testing.
	Staging Environment = "staging"
	// Production is for production deployments.
	Production Environment = "production"
)

// Store backends.
const (
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Config is the master configuration for profiledir.
type Config struct {
	// Environment identifies the deployment type (development, staging, production).
	Environment Environment `yaml:"environment"`

	// Store configures the record log.
	Store StoreConfig `yaml:"store"`

	// Signals configures signal delivery to subscribers.
	Signals SignalsConfig `yaml:"signals"`

	// Log configures the process logger.
	Log LogConfig `yaml:"log"`

	// Per-environment overrides, applied after the base config is
	// loaded.
	Development *ConfigOverrides `yaml:"development,omitempty"`
	Staging     *ConfigOverrides `yaml:"staging,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides contains fields that can be overridden per environment.
type ConfigOverrides struct {
	Store   *StoreConfig   `yaml:"store,omitempty"`
	Signals *SignalsConfig `yaml:"signals,omitempty"`
	Log     *LogConfig     `yaml:"log,omitempty"`
}

// StoreConfig configures the record log.
type StoreConfig struct {
	// Backend is "sqlite" or "memory". A memory store lives only as
	// long as the process.
	// Default: sqlite
	Backend string `yaml:"backend"`

	// Path is the SQLite database file.
	// Default: ${PROFILEDIR_ROOT:-${HOME}/.local/share/profiledir}/records.db
	Path string `yaml:"path"`

	// PoolSize is the number of SQLite connections. Zero picks a
	// size from the CPU count.
	PoolSize int `yaml:"pool_size"`

	// Compression is the entry payload codec: none, lz4, or zstd.
	// Default: zstd
	Compression string `yaml:"compression"`

	// CompressionThreshold is the smallest payload, in bytes, that is
	// compressed.
	// Default: 256
	CompressionThreshold int `yaml:"compression_threshold"`
}

// SignalsConfig configures signal delivery.
type SignalsConfig struct {
	// BufferSize is the per-subscriber channel capacity.
	// Default: 64
	BufferSize int `yaml:"buffer_size"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is debug, info, warn, or error.
	// Default: info
	Level string `yaml:"level"`

	// Format is text or json.
	// Default: text (development), json (production)
	Format string `yaml:"format"`
}

// Default returns the default configuration. These defaults are the
// base the config file is loaded over.
func Default() *Config {
	return &Config{
		Environment: Development,
		Store: StoreConfig{
			Backend:              BackendSQLite,
			Path:                 "${PROFILEDIR_ROOT:-${HOME}/.local/share/profiledir}/records.db",
			Compression:          compress.Zstd.String(),
			CompressionThreshold: 256,
		},
		Signals: SignalsConfig{
			BufferSize: 64,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from the PROFILEDIR_CONFIG environment
// variable. If it is not set, Load fails.
func Load() (*Config, error) {
	configPath := os.Getenv(EnvVar)
	if configPath == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your profiledir.yaml config file, or use --config flag", EnvVar)
	}

	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}

	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()

	return cfg, nil
}

// loadFile loads a single configuration file, merging into the current config.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// applyEnvironmentOverrides applies the environment-specific overrides.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides

	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
		if overrides == nil {
			overrides = &ConfigOverrides{
				Log: &LogConfig{Format: "json"},
			}
		}
	}

	if overrides == nil {
		return
	}

	if overrides.Store != nil {
		if overrides.Store.Backend != "" {
			c.Store.Backend = overrides.Store.Backend
		}
		if overrides.Store.Path != "" {
			c.Store.Path = overrides.Store.Path
		}
		if overrides.Store.PoolSize != 0 {
			c.Store.PoolSize = overrides.Store.PoolSize
		}
		if overrides.Store.Compression != "" {
			c.Store.Compression = overrides.Store.Compression
		}
		if overrides.Store.CompressionThreshold != 0 {
			c.Store.CompressionThreshold = overrides.Store.CompressionThreshold
		}
	}

	if overrides.Signals != nil && overrides.Signals.BufferSize != 0 {
		c.Signals.BufferSize = overrides.Signals.BufferSize
	}

	if overrides.Log != nil {
		if overrides.Log.Level != "" {
			c.Log.Level = overrides.Log.Level
		}
		if overrides.Log.Format != "" {
			c.Log.Format = overrides.Log.Format
		}
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}
	c.Store.Path = expandVars(c.Store.Path, vars)
}

// varPattern matches ${VAR} and ${VAR:-default}. A default may itself
// contain one level of ${VAR}.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-((?:[^}$]|\$\{[^}]*\})*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return expandVars(defaultValue, vars)
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Staging && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	switch c.Store.Backend {
	case BackendSQLite:
		if c.Store.Path == "" {
			errs = append(errs, errors.New("store.path is required for the sqlite backend"))
		}
	case BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("store.backend must be one of: %v", []string{BackendSQLite, BackendMemory}))
	}
	if c.Store.PoolSize < 0 {
		errs = append(errs, errors.New("store.pool_size must not be negative"))
	}
	if _, err := compress.ParseTag(c.Store.Compression); err != nil {
		errs = append(errs, fmt.Errorf("store.compression: %w", err))
	}
	if c.Store.CompressionThreshold < 0 {
		errs = append(errs, errors.New("store.compression_threshold must not be negative"))
	}

	if c.Signals.BufferSize <= 0 {
		errs = append(errs, errors.New("signals.buffer_size must be positive"))
	}

	if _, err := c.LogLevel(); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("log.format must be one of: %v", []string{"text", "json"}))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// CompressionTag returns the parsed store.compression value.
func (c *Config) CompressionTag() (compress.Tag, error) {
	return compress.ParseTag(c.Store.Compression)
}

// LogLevel returns the parsed log.level value.
func (c *Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	err := level.UnmarshalText([]byte(c.Log.Level))
	return level, err
}

// EnsureStoreDir creates the directory holding the SQLite database.
func (c *Config) EnsureStoreDir() error {
	if c.Store.Backend != BackendSQLite {
		return nil
	}
	dir := filepath.Dir(c.Store.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	return nil
}
