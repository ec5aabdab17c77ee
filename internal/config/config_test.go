package config

import (
	"os"
	"path/filepath"
	"testing"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"PRIVACYCHECK_HISTORY_BACKEND", "PRIVACYCHECK_REDIS_ADDR", "PRIVACYCHECK_SQLITE_PATH",
		"PRIVACYCHECK_LISTEN_ADDR", "PRIVACYCHECK_SCAN_RATE_PER_MINUTE", "PRIVACYCHECK_DEDUPE_SIZE",
		"PRIVACYCHECK_NATS_URL", "PRIVACYCHECK_NATS_SUBJECT", "PRIVACYCHECK_REDIS_DB",
		"PRIVACYCHECK_ALERT_LEVEL",
	} {
		t.Setenv(k, "")
	}
}

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()
	if cfg.History.Backend != BackendSQLite {
		t.Errorf("Backend = %q, want sqlite", cfg.History.Backend)
	}
	if cfg.Scan.DedupeSize < 1 {
		t.Errorf("DedupeSize = %d", cfg.Scan.DedupeSize)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Daemon.ListenAddr != "127.0.0.1:8787" {
		t.Errorf("ListenAddr = %q", cfg.Daemon.ListenAddr)
	}
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "privacycheck.yaml")
	yamlDoc := `
history:
  backend: memory
daemon:
  listen_addr: 127.0.0.1:9000
scan:
  rate_per_minute: 10
  burst: 2
  dedupe_size: 16
`
	if err := os.WriteFile(path, []byte(yamlDoc), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PRIVACYCHECK_LISTEN_ADDR", "127.0.0.1:9100")
	t.Setenv("PRIVACYCHECK_SCAN_RATE_PER_MINUTE", "60")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.History.Backend != BackendMemory {
		t.Errorf("Backend = %q, want memory", cfg.History.Backend)
	}
	if cfg.Daemon.ListenAddr != "127.0.0.1:9100" {
		t.Errorf("ListenAddr = %q, env override not applied", cfg.Daemon.ListenAddr)
	}
	if cfg.Scan.RatePerMinute != 60 {
		t.Errorf("RatePerMinute = %d, want 60", cfg.Scan.RatePerMinute)
	}
	if cfg.Scan.Burst != 2 || cfg.Scan.DedupeSize != 16 {
		t.Errorf("Scan = %+v", cfg.Scan)
	}
	if cfg.Notify.Subject != "privacycheck.alerts" {
		t.Errorf("Subject = %q, default lost", cfg.Notify.Subject)
	}
}

func TestLoad_BadIntEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("PRIVACYCHECK_DEDUPE_SIZE", "lots")
	if _, err := Load(""); err == nil {
		t.Error("expected error for non-numeric PRIVACYCHECK_DEDUPE_SIZE")
	}
}

func TestLoad_BadYAML(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("history: [\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		valid  bool
	}{
		{"defaults", func(*Config) {}, true},
		{"unknown backend", func(c *Config) { c.History.Backend = "etcd" }, false},
		{"redis without addr", func(c *Config) { c.History.Backend = BackendRedis }, false},
		{"redis with addr", func(c *Config) {
			c.History.Backend = BackendRedis
			c.History.RedisAddr = "localhost:6379"
		}, true},
		{"bad listen addr", func(c *Config) { c.Daemon.ListenAddr = "nohostport" }, false},
		{"empty listen addr", func(c *Config) { c.Daemon.ListenAddr = "" }, true},
		{"nats without subject", func(c *Config) {
			c.Notify.NATSURL = "nats://localhost:4222"
			c.Notify.Subject = ""
		}, false},
		{"zero dedupe", func(c *Config) { c.Scan.DedupeSize = 0 }, false},
		{"medium alert level", func(c *Config) { c.Scan.AlertLevel = "medium" }, true},
		{"none alert level", func(c *Config) { c.Scan.AlertLevel = "None" }, false},
		{"bogus alert level", func(c *Config) { c.Scan.AlertLevel = "severe" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.valid && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tt.valid && err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestValidateHostPort(t *testing.T) {
	tests := []struct {
		input string
		valid bool
	}{
		{"localhost:8080", true},
		{"127.0.0.1:6379", true},
		{"[::1]:443", true},
		{"", false},
		{"localhost", false},
		{":8080", false},
	}
	for _, tt := range tests {
		err := ValidateHostPort(tt.input)
		if tt.valid && err != nil {
			t.Errorf("ValidateHostPort(%q) unexpected error: %v", tt.input, err)
		}
		if !tt.valid && err == nil {
			t.Errorf("ValidateHostPort(%q) expected error, got nil", tt.input)
		}
	}
}
