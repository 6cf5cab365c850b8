package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	// Create a temporary config file
	tmpfile, err := os.CreateTemp("", "config-*.yaml")
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		_ = os.Remove(tmpfile.Name())
	}()

	content := `
watch:
  interval: 5s
  buffer_size: 65536
  max_concurrent: 8
  notify: true
  debounce: 100ms

metrics:
  listen_addr: "127.0.0.1:9120"

log:
  file: "/var/log/linewatch/linewatch.log"
  max_backups: 7
  compress: true
`

	if _, err := tmpfile.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := tmpfile.Close(); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(tmpfile.Name())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Watch.Interval != 5*time.Second {
		t.Errorf("expected interval 5s, got %s", cfg.Watch.Interval)
	}
	if cfg.Watch.BufferSize != 65536 {
		t.Errorf("expected buffer size 65536, got %d", cfg.Watch.BufferSize)
	}
	if cfg.Watch.MaxConcurrent != 8 {
		t.Errorf("expected max_concurrent 8, got %d", cfg.Watch.MaxConcurrent)
	}
	if !cfg.Watch.Notify {
		t.Error("expected notify to be enabled")
	}
	if cfg.Watch.Debounce != 100*time.Millisecond {
		t.Errorf("expected debounce 100ms, got %s", cfg.Watch.Debounce)
	}
	if cfg.Metrics.ListenAddr != "127.0.0.1:9120" {
		t.Errorf("expected listen addr 127.0.0.1:9120, got %s", cfg.Metrics.ListenAddr)
	}
	if cfg.Log.MaxBackups != 7 || !cfg.Log.Compress {
		t.Errorf("unexpected log config %+v", cfg.Log)
	}
	// Unset rotation fields get defaults
	if cfg.Log.MaxSizeMB != DefaultLogMaxSizeMB {
		t.Errorf("expected default max size, got %d", cfg.Log.MaxSizeMB)
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Watch.Interval != DefaultInterval {
		t.Errorf("expected interval %s, got %s", DefaultInterval, cfg.Watch.Interval)
	}
	if cfg.Watch.BufferSize != DefaultBufferSize {
		t.Errorf("expected buffer size %d, got %d", DefaultBufferSize, cfg.Watch.BufferSize)
	}
	if cfg.Watch.MaxConcurrent != 0 {
		t.Errorf("expected unbounded concurrency, got %d", cfg.Watch.MaxConcurrent)
	}
	if cfg.Watch.Notify {
		t.Error("notify should be off by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestLoadOptional(t *testing.T) {
	t.Run("missing file yields defaults", func(t *testing.T) {
		cfg, err := LoadOptional(filepath.Join(t.TempDir(), "absent.yaml"))
		if err != nil {
			t.Fatalf("LoadOptional failed: %v", err)
		}
		if cfg.Watch.Interval != DefaultInterval {
			t.Errorf("expected default interval, got %s", cfg.Watch.Interval)
		}
	})

	t.Run("broken file is still an error", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "broken.yaml")
		if err := os.WriteFile(path, []byte("watch: [not, a, map"), 0o600); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadOptional(path); err == nil {
			t.Fatal("expected parse error")
		}
	})
}

func TestLoad_ExpandEnv(t *testing.T) {
	t.Setenv("LINEWATCH_TEST_LOGDIR", "/tmp/lw")
	t.Setenv("LINEWATCH_TEST_PORT", "9999")

	cfg, err := Parse([]byte(`
metrics:
  listen_addr: ":${LINEWATCH_TEST_PORT}"
log:
  file: "${LINEWATCH_TEST_LOGDIR}/out.log"
`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if cfg.Metrics.ListenAddr != ":9999" {
		t.Errorf("expected :9999, got %s", cfg.Metrics.ListenAddr)
	}
	if cfg.Log.File != "/tmp/lw/out.log" {
		t.Errorf("expected /tmp/lw/out.log, got %s", cfg.Log.File)
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return *Default()
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{
			name:    "defaults",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "negative interval",
			mutate:  func(c *Config) { c.Watch.Interval = -time.Second },
			wantErr: true,
		},
		{
			name:    "negative buffer size",
			mutate:  func(c *Config) { c.Watch.BufferSize = -1 },
			wantErr: true,
		},
		{
			name:    "negative max concurrent",
			mutate:  func(c *Config) { c.Watch.MaxConcurrent = -2 },
			wantErr: true,
		},
		{
			name:    "negative debounce",
			mutate:  func(c *Config) { c.Watch.Debounce = -time.Millisecond },
			wantErr: true,
		},
		{
			name:    "relative log file",
			mutate:  func(c *Config) { c.Log.File = "logs/linewatch.log" },
			wantErr: true,
		},
		{
			name:    "absolute log file",
			mutate:  func(c *Config) { c.Log.File = "/var/log/linewatch.log" },
			wantErr: false,
		},
		{
			name:    "negative rotation",
			mutate:  func(c *Config) { c.Log.MaxBackups = -1 },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestParse_InvalidValues(t *testing.T) {
	if _, err := Parse([]byte("watch:\n  interval: -3s\n")); err == nil {
		t.Error("expected validation error for negative interval")
	}
	if _, err := Parse([]byte("watch:\n  interval: soon\n")); err == nil {
		t.Error("expected parse error for malformed duration")
	}
}

func TestDefaultPath(t *testing.T) {
	t.Setenv("HOME", "/home/tester")
	path, err := DefaultPath()
	if err != nil {
		t.Fatal(err)
	}
	if path != "/home/tester/.config/linewatch/config.yaml" {
		t.Errorf("unexpected default path %s", path)
	}
}
