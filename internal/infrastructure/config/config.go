package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Default configuration values.
const (
	defaultStoragePath = "data/clinic.db"
	defaultPoolSize    = 2
	defaultBusyTimeout = 5 // seconds
	defaultPageSize    = 10
	maxPoolSize        = 8
)

// DurabilityMode selects how aggressively SQLite flushes to disk.
type DurabilityMode string

const (
	// DurabilityFull fsyncs on every commit. Safest; the default for
	// clinic records on commodity SD-card storage.
	DurabilityFull DurabilityMode = "full"

	// DurabilityNormal relies on WAL checkpointing. Faster, still
	// crash-safe at the last checkpoint boundary.
	DurabilityNormal DurabilityMode = "normal"
)

// Config is the root configuration structure for the clinic core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Storage StorageConfig `yaml:"storage"`
	Export  ExportConfig  `yaml:"export"`
	Logging LoggingConfig `yaml:"logging"`
}

// StorageConfig contains settings for the embedded SQLite store.
type StorageConfig struct {
	// Path is the filesystem path to the database file.
	Path string `yaml:"path"`

	// PoolSize bounds the connection pool. Small by design: pooling here
	// avoids reopen overhead, not multi-client concurrency.
	PoolSize int `yaml:"pool_size"`

	// BusyTimeout is the maximum time to wait for a database lock (seconds).
	BusyTimeout int `yaml:"busy_timeout"`

	// Durability selects the synchronous commit mode ("full" or "normal").
	Durability DurabilityMode `yaml:"durability"`
}

// ExportConfig contains settings for CSV/XLSX exports.
type ExportConfig struct {
	// DefaultPageSize is the page size used when streaming search results.
	DefaultPageSize int `yaml:"default_page_size"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
	Output string `yaml:"output"` // stdout, stderr
}

// Load reads configuration from a YAML file, applies defaults and
// environment overrides, and validates the result.
//
// Environment overrides use the CLINICCORE_ prefix:
//
//	CLINICCORE_STORAGE_PATH
//	CLINICCORE_STORAGE_POOL_SIZE
//	CLINICCORE_STORAGE_DURABILITY
//	CLINICCORE_LOG_LEVEL
//	CLINICCORE_LOG_FORMAT
func Load(path string) (*Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns the built-in configuration, used when no config file
// exists (first run on a fresh machine).
func Default() *Config {
	cfg := defaults()
	cfg.applyEnvOverrides()
	return cfg
}

func defaults() *Config {
	return &Config{
		Storage: StorageConfig{
			Path:        defaultStoragePath,
			PoolSize:    defaultPoolSize,
			BusyTimeout: defaultBusyTimeout,
			Durability:  DurabilityFull,
		},
		Export: ExportConfig{
			DefaultPageSize: defaultPageSize,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies CLINICCORE_* environment variables over the
// loaded configuration.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("CLINICCORE_STORAGE_PATH"); v != "" {
		c.Storage.Path = v
	}
	if v := os.Getenv("CLINICCORE_STORAGE_POOL_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Storage.PoolSize = n
		}
	}
	if v := os.Getenv("CLINICCORE_STORAGE_DURABILITY"); v != "" {
		c.Storage.Durability = DurabilityMode(strings.ToLower(v))
	}
	if v := os.Getenv("CLINICCORE_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("CLINICCORE_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.Storage.Path == "" {
		errs = append(errs, "storage.path is required")
	}
	if c.Storage.PoolSize < 1 || c.Storage.PoolSize > maxPoolSize {
		errs = append(errs, fmt.Sprintf("storage.pool_size must be between 1 and %d", maxPoolSize))
	}
	if c.Storage.BusyTimeout < 0 {
		errs = append(errs, "storage.busy_timeout must not be negative")
	}
	switch c.Storage.Durability {
	case DurabilityFull, DurabilityNormal:
	default:
		errs = append(errs, fmt.Sprintf("storage.durability must be %q or %q", DurabilityFull, DurabilityNormal))
	}
	if c.Export.DefaultPageSize < 1 {
		errs = append(errs, "export.default_page_size must be at least 1")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}
