// Package config provides the configuration structure for privacycheck,
// matching the schema of configs/privacycheck.yaml.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// History backends.
const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Config represents the full privacycheck configuration file.
type Config struct {
	DataDir     string `yaml:"data_dir"`
	Profile     string `yaml:"profile"`
	CookieFile  string `yaml:"cookie_file,omitempty"`
	Preferences string `yaml:"preferences"`
	LogFile     string `yaml:"logfile,omitempty"`

	History HistoryConfig `yaml:"history"`
	Daemon  DaemonConfig  `yaml:"daemon"`
	Notify  NotifyConfig  `yaml:"notify"`
	Scan    ScanConfig    `yaml:"scan"`
}

// HistoryConfig selects and configures the report history store.
type HistoryConfig struct {
	Backend       string `yaml:"backend"` // "sqlite", "redis", "memory"
	SQLitePath    string `yaml:"sqlite_path"`
	RedisAddr     string `yaml:"redis_addr,omitempty"`
	RedisPassword string `yaml:"redis_password,omitempty"`
	RedisDB       int    `yaml:"redis_db,omitempty"`
	RedisKey      string `yaml:"redis_key,omitempty"`
}

// DaemonConfig holds the local daemon listeners.
type DaemonConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	SocketPath string `yaml:"socket_path"`
}

// NotifyConfig holds the alert bus settings. An empty NATSURL logs alerts instead.
type NotifyConfig struct {
	NATSURL string `yaml:"nats_url,omitempty"`
	Subject string `yaml:"subject"`
}

// ScanConfig throttles automatic scans.
type ScanConfig struct {
	RatePerMinute int `yaml:"rate_per_minute"`
	Burst         int `yaml:"burst"`
	DedupeSize    int `yaml:"dedupe_size"`

	// AlertLevel is the lowest risk level that raises a notification.
	AlertLevel string `yaml:"alert_level"`
}

// NewDefaultConfig returns a Config populated with safe defaults.
func NewDefaultConfig() *Config {
	dataDir := defaultDataDir()
	return &Config{
		DataDir:     dataDir,
		Profile:     filepath.Join(dataDir, "profile.yaml"),
		Preferences: filepath.Join(dataDir, "preferences.yaml"),
		History: HistoryConfig{
			Backend:    BackendSQLite,
			SQLitePath: filepath.Join(dataDir, "history.db"),
			RedisKey:   "privacycheck:reportHistory",
		},
		Daemon: DaemonConfig{
			ListenAddr: "127.0.0.1:8787",
			SocketPath: filepath.Join(dataDir, "privacyd.sock"),
		},
		Notify: NotifyConfig{
			Subject: "privacycheck.alerts",
		},
		Scan: ScanConfig{
			RatePerMinute: 30,
			Burst:         5,
			DedupeSize:    256,
			AlertLevel:    "High",
		},
	}
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "privacycheck")
	}
	return ".privacycheck"
}

// Load reads the YAML file at path over the defaults, then applies
// PRIVACYCHECK_* environment overrides. A .env file in the working
// directory is loaded first; a missing config file is not an error.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := NewDefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.DataDir = getEnv("PRIVACYCHECK_DATA_DIR", c.DataDir)
	c.Profile = getEnv("PRIVACYCHECK_PROFILE", c.Profile)
	c.CookieFile = getEnv("PRIVACYCHECK_COOKIE_FILE", c.CookieFile)
	c.Preferences = getEnv("PRIVACYCHECK_PREFERENCES", c.Preferences)
	c.LogFile = getEnv("PRIVACYCHECK_LOGFILE", c.LogFile)

	c.History.Backend = getEnv("PRIVACYCHECK_HISTORY_BACKEND", c.History.Backend)
	c.History.SQLitePath = getEnv("PRIVACYCHECK_SQLITE_PATH", c.History.SQLitePath)
	c.History.RedisAddr = getEnv("PRIVACYCHECK_REDIS_ADDR", c.History.RedisAddr)
	c.History.RedisPassword = getEnv("PRIVACYCHECK_REDIS_PASSWORD", c.History.RedisPassword)
	c.History.RedisKey = getEnv("PRIVACYCHECK_REDIS_KEY", c.History.RedisKey)

	c.Daemon.ListenAddr = getEnv("PRIVACYCHECK_LISTEN_ADDR", c.Daemon.ListenAddr)
	c.Daemon.SocketPath = getEnv("PRIVACYCHECK_SOCKET", c.Daemon.SocketPath)

	c.Notify.NATSURL = getEnv("PRIVACYCHECK_NATS_URL", c.Notify.NATSURL)
	c.Notify.Subject = getEnv("PRIVACYCHECK_NATS_SUBJECT", c.Notify.Subject)
	c.Scan.AlertLevel = getEnv("PRIVACYCHECK_ALERT_LEVEL", c.Scan.AlertLevel)

	ints := []struct {
		key string
		dst *int
	}{
		{"PRIVACYCHECK_REDIS_DB", &c.History.RedisDB},
		{"PRIVACYCHECK_SCAN_RATE_PER_MINUTE", &c.Scan.RatePerMinute},
		{"PRIVACYCHECK_SCAN_BURST", &c.Scan.Burst},
		{"PRIVACYCHECK_DEDUPE_SIZE", &c.Scan.DedupeSize},
	}
	for _, e := range ints {
		v, ok := os.LookupEnv(e.key)
		if !ok || v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", e.key, err)
		}
		*e.dst = n
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
