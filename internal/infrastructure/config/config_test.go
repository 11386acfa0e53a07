package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, "storage:\n  path: \"/tmp/clinic.db\"\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Storage.Path != "/tmp/clinic.db" {
		t.Errorf("Path = %q, want /tmp/clinic.db", cfg.Storage.Path)
	}
	if cfg.Storage.PoolSize != defaultPoolSize {
		t.Errorf("PoolSize = %d, want default %d", cfg.Storage.PoolSize, defaultPoolSize)
	}
	if cfg.Storage.Durability != DurabilityFull {
		t.Errorf("Durability = %q, want %q", cfg.Storage.Durability, DurabilityFull)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Level = %q, want info", cfg.Logging.Level)
	}
}

func TestLoad_FullFile(t *testing.T) {
	path := writeConfig(t, `
storage:
  path: "data/geneva.db"
  pool_size: 4
  busy_timeout: 10
  durability: "normal"
export:
  default_page_size: 25
logging:
  level: "debug"
  format: "text"
  output: "stderr"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Storage.PoolSize != 4 {
		t.Errorf("PoolSize = %d, want 4", cfg.Storage.PoolSize)
	}
	if cfg.Storage.Durability != DurabilityNormal {
		t.Errorf("Durability = %q, want normal", cfg.Storage.Durability)
	}
	if cfg.Export.DefaultPageSize != 25 {
		t.Errorf("DefaultPageSize = %d, want 25", cfg.Export.DefaultPageSize)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Format = %q, want text", cfg.Logging.Format)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("Load() should fail for missing file")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("CLINICCORE_STORAGE_PATH", "/mnt/usb/clinic.db")
	t.Setenv("CLINICCORE_STORAGE_DURABILITY", "NORMAL")
	t.Setenv("CLINICCORE_LOG_LEVEL", "debug")

	path := writeConfig(t, "storage:\n  path: \"data/clinic.db\"\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Storage.Path != "/mnt/usb/clinic.db" {
		t.Errorf("Path = %q, want env override", cfg.Storage.Path)
	}
	if cfg.Storage.Durability != DurabilityNormal {
		t.Errorf("Durability = %q, want normal (lowercased)", cfg.Storage.Durability)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Level = %q, want debug", cfg.Logging.Level)
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"empty path", func(c *Config) { c.Storage.Path = "" }, "storage.path"},
		{"zero pool", func(c *Config) { c.Storage.PoolSize = 0 }, "pool_size"},
		{"huge pool", func(c *Config) { c.Storage.PoolSize = 100 }, "pool_size"},
		{"negative timeout", func(c *Config) { c.Storage.BusyTimeout = -1 }, "busy_timeout"},
		{"bad durability", func(c *Config) { c.Storage.Durability = "paranoid" }, "durability"},
		{"zero page size", func(c *Config) { c.Export.DefaultPageSize = 0 }, "default_page_size"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaults()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() should fail")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q should mention %q", err, tt.want)
			}
		})
	}
}

func TestDefault_IsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}
