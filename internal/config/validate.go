package config

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/privacycheck/privacycheck/internal/severity"
)

// Validate checks the settings the daemon and CLI depend on.
func (c *Config) Validate() error {
	var errs []error

	switch c.History.Backend {
	case BackendSQLite:
		if err := ValidateNonEmpty(c.History.SQLitePath); err != nil {
			errs = append(errs, fmt.Errorf("history.sqlite_path: %w", err))
		}
	case BackendRedis:
		if err := ValidateHostPort(c.History.RedisAddr); err != nil {
			errs = append(errs, fmt.Errorf("history.redis_addr: %w", err))
		}
	case BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("history.backend: unknown backend %q", c.History.Backend))
	}

	if err := ValidateOptionalHostPort(c.Daemon.ListenAddr); err != nil {
		errs = append(errs, fmt.Errorf("daemon.listen_addr: %w", err))
	}
	if c.Notify.NATSURL != "" {
		if err := ValidateNonEmpty(c.Notify.Subject); err != nil {
			errs = append(errs, fmt.Errorf("notify.subject: %w", err))
		}
	}
	if c.Scan.RatePerMinute < 0 {
		errs = append(errs, fmt.Errorf("scan.rate_per_minute must not be negative"))
	}
	if c.Scan.DedupeSize < 1 {
		errs = append(errs, fmt.Errorf("scan.dedupe_size must be at least 1"))
	}
	if level, err := severity.Parse(c.Scan.AlertLevel); err != nil {
		errs = append(errs, fmt.Errorf("scan.alert_level: %w", err))
	} else if level == severity.None {
		errs = append(errs, fmt.Errorf("scan.alert_level: None would alert on every scan"))
	}
	return errors.Join(errs...)
}

// ValidateHostPort checks that s is a valid host:port address.
func ValidateHostPort(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return fmt.Errorf("address is required")
	}
	host, port, err := net.SplitHostPort(s)
	if err != nil {
		return fmt.Errorf("invalid address (expected host:port): %w", err)
	}
	if host == "" {
		return fmt.Errorf("host cannot be empty")
	}
	if port == "" {
		return fmt.Errorf("port cannot be empty")
	}
	return nil
}

// ValidateNonEmpty checks that s is not empty after trimming whitespace.
func ValidateNonEmpty(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("value is required")
	}
	return nil
}

// ValidateOptionalHostPort checks a host:port only if non-empty.
func ValidateOptionalHostPort(s string) error {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return ValidateHostPort(s)
}
