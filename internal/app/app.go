// Package app assembles a scanner.Service and its stores from a Config.
// The CLI and the daemon share this wiring.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/time/rate"

	"github.com/privacycheck/privacycheck/internal/config"
	"github.com/privacycheck/privacycheck/internal/history"
	"github.com/privacycheck/privacycheck/internal/host"
	"github.com/privacycheck/privacycheck/internal/metrics"
	"github.com/privacycheck/privacycheck/internal/notify"
	"github.com/privacycheck/privacycheck/internal/prefs"
	"github.com/privacycheck/privacycheck/internal/scanner"
	"github.com/privacycheck/privacycheck/internal/severity"
)

// Options carries the optional collaborators a caller adds on top of Config.
type Options struct {
	Notifier notify.Notifier
	Metrics  *metrics.Metrics
	Logger   *log.Logger
}

// Runtime is a wired service plus the resources it owns.
type Runtime struct {
	Service *scanner.Service
	History history.Store
	Profile *host.Profile

	closers []io.Closer
}

// Close releases the history store and any other owned resources.
func (r *Runtime) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Build wires a Runtime from cfg.
func Build(ctx context.Context, cfg *config.Config, opts Options) (*Runtime, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	store, err := OpenHistory(ctx, cfg.History)
	if err != nil {
		return nil, err
	}
	rt := &Runtime{History: store, closers: []io.Closer{store}}

	rt.Profile = host.NewProfile(cfg.Profile)
	alertLevel, err := severity.Parse(cfg.Scan.AlertLevel)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("alert level: %w", err)
	}

	svc, err := scanner.New(scanner.Config{
		Settings:   rt.Profile,
		Cookies:    CookieSource(cfg, rt.Profile),
		Prefs:      prefs.NewFileStore(cfg.Preferences),
		History:    store,
		Notifier:   opts.Notifier,
		Metrics:    opts.Metrics,
		Logger:     logger,
		ScanRate:   rate.Limit(float64(cfg.Scan.RatePerMinute) / 60.0),
		ScanBurst:  cfg.Scan.Burst,
		DedupeSize: cfg.Scan.DedupeSize,
		AlertLevel: alertLevel,
	})
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.Service = svc
	return rt, nil
}

// OpenHistory opens the configured history backend.
func OpenHistory(ctx context.Context, hc config.HistoryConfig) (history.Store, error) {
	switch hc.Backend {
	case config.BackendSQLite:
		if err := os.MkdirAll(filepath.Dir(hc.SQLitePath), 0o700); err != nil {
			return nil, fmt.Errorf("create history dir: %w", err)
		}
		return history.NewSQLiteStore(hc.SQLitePath)
	case config.BackendRedis:
		return history.NewRedisStore(ctx, history.RedisOptions{
			Addr:     hc.RedisAddr,
			Password: hc.RedisPassword,
			DB:       hc.RedisDB,
			Key:      hc.RedisKey,
		})
	case config.BackendMemory:
		return history.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown history backend %q", hc.Backend)
	}
}

// CookieSource picks the cookie jar: an exported cookie file when one is
// configured (".json" for extension exports, cookies.txt otherwise), else
// the cookies recorded in the profile.
func CookieSource(cfg *config.Config, profile *host.Profile) host.CookieSource {
	switch {
	case cfg.CookieFile == "":
		return profile
	case strings.EqualFold(filepath.Ext(cfg.CookieFile), ".json"):
		return host.JSONCookieFile{Path: cfg.CookieFile}
	default:
		return host.NetscapeCookieFile{Path: cfg.CookieFile}
	}
}
