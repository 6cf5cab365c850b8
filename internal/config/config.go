package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultInterval   = 10 * time.Second
	DefaultBufferSize = 1 << 20
	DefaultDebounce   = 250 * time.Millisecond

	DefaultLogMaxSizeMB  = 10
	DefaultLogMaxBackups = 3
	DefaultLogMaxAgeDays = 28
)

// Config represents the complete linewatch configuration
type Config struct {
	Watch   WatchConfig   `yaml:"watch"`
	Metrics MetricsConfig `yaml:"metrics"`
	Log     LogConfig     `yaml:"log"`
}

// WatchConfig configures scanning and line counting
type WatchConfig struct {
	Interval      time.Duration `yaml:"interval"`
	BufferSize    int           `yaml:"buffer_size"`
	MaxConcurrent int           `yaml:"max_concurrent"`
	Notify        bool          `yaml:"notify"`
	Debounce      time.Duration `yaml:"debounce"`
}

// MetricsConfig configures the Prometheus endpoint
type MetricsConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// LogConfig configures an optional rotating log file
type LogConfig struct {
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// Default returns the configuration used when no file is present
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	// Expand environment variables in path
	path = os.ExpandEnv(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// LoadOptional behaves like Load but returns defaults if the file is missing
func LoadOptional(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Parse decodes YAML configuration data
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.expandEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// expandEnv expands environment variables in all string fields
func (c *Config) expandEnv() {
	c.Metrics.ListenAddr = os.ExpandEnv(c.Metrics.ListenAddr)
	c.Log.File = os.ExpandEnv(c.Log.File)
}

// applyDefaults fills in zero-value fields with sensible defaults.
func (c *Config) applyDefaults() {
	if c.Watch.Interval == 0 {
		c.Watch.Interval = DefaultInterval
	}
	if c.Watch.BufferSize == 0 {
		c.Watch.BufferSize = DefaultBufferSize
	}
	if c.Watch.Debounce == 0 {
		c.Watch.Debounce = DefaultDebounce
	}
	if c.Log.MaxSizeMB == 0 {
		c.Log.MaxSizeMB = DefaultLogMaxSizeMB
	}
	if c.Log.MaxBackups == 0 {
		c.Log.MaxBackups = DefaultLogMaxBackups
	}
	if c.Log.MaxAgeDays == 0 {
		c.Log.MaxAgeDays = DefaultLogMaxAgeDays
	}
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if c.Watch.Interval < 0 {
		return fmt.Errorf("watch.interval must be positive: %s", c.Watch.Interval)
	}
	if c.Watch.BufferSize < 0 {
		return fmt.Errorf("watch.buffer_size must be positive: %d", c.Watch.BufferSize)
	}
	if c.Watch.MaxConcurrent < 0 {
		return fmt.Errorf("watch.max_concurrent must be zero (unbounded) or positive: %d", c.Watch.MaxConcurrent)
	}
	if c.Watch.Debounce < 0 {
		return fmt.Errorf("watch.debounce must be positive: %s", c.Watch.Debounce)
	}

	if c.Log.File != "" && !filepath.IsAbs(c.Log.File) {
		return fmt.Errorf("log.file must be an absolute path: %s", c.Log.File)
	}
	if c.Log.MaxSizeMB < 0 || c.Log.MaxBackups < 0 || c.Log.MaxAgeDays < 0 {
		return fmt.Errorf("log rotation limits must not be negative")
	}

	return nil
}

// DefaultPath returns $HOME/.config/linewatch/config.yaml
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(home, ".config", "linewatch", "config.yaml"), nil
}
