// Command privacyd is the privacy checker daemon. It serves the HTTP API
// (with Prometheus metrics) on localhost and the JSON-RPC Unix socket used
// by browser helpers, and publishes auto-scan alerts to NATS when configured.
//
// Usage:
//
//	privacyd [--config configs/privacycheck.yaml] [--addr 127.0.0.1:8787] [--socket path]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/privacycheck/privacycheck/internal/api"
	"github.com/privacycheck/privacycheck/internal/app"
	"github.com/privacycheck/privacycheck/internal/config"
	"github.com/privacycheck/privacycheck/internal/ipc"
	"github.com/privacycheck/privacycheck/internal/metrics"
	"github.com/privacycheck/privacycheck/internal/notify"
	"github.com/privacycheck/privacycheck/pkg/buildinfo"
)

func main() {
	configPath := flag.String("config", os.Getenv("PRIVACYCHECK_CONFIG"), "path to privacycheck.yaml")
	addr := flag.String("addr", "", "HTTP listen address (default: daemon.listen_addr, localhost-only)")
	socket := flag.String("socket", "", "Unix socket path (default: daemon.socket_path)")
	version := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *version {
		fmt.Println(buildinfo.String())
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Daemon.ListenAddr = *addr
	}
	if *socket != "" {
		cfg.Daemon.SocketPath = *socket
	}

	logger, closeLog, err := newLogger(cfg.LogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logfile: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := serve(ctx, cfg, logger); err != nil {
		logger.Printf("fatal: %v", err)
		stop()
		closeLog()
		os.Exit(1)
	}
}

func newLogger(path string) (*log.Logger, func(), error) {
	if path == "" {
		return log.New(os.Stderr, "[privacyd] ", log.LstdFlags), func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, nil, err
	}
	return log.New(io.MultiWriter(os.Stderr, f), "[privacyd] ", log.LstdFlags), func() { f.Close() }, nil
}

// newNotifier publishes to NATS when a URL is configured and logs otherwise.
func newNotifier(cfg config.NotifyConfig, logger *log.Logger) (notify.Notifier, func(), error) {
	if cfg.NATSURL == "" {
		return notify.NewLogNotifier(logger), func() {}, nil
	}
	n, err := notify.NewNATSNotifier(cfg.NATSURL, cfg.Subject, logger)
	if err != nil {
		return nil, nil, err
	}
	logger.Printf("Publishing alerts to NATS subject %s", n.Subject())
	return n, func() { n.Close() }, nil
}

func serve(ctx context.Context, cfg *config.Config, logger *log.Logger) error {
	logger.Printf("%s", buildinfo.String())

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	notifier, closeNotifier, err := newNotifier(cfg.Notify, logger)
	if err != nil {
		return err
	}
	defer closeNotifier()

	rt, err := app.Build(ctx, cfg, app.Options{Notifier: notifier, Metrics: m, Logger: logger})
	if err != nil {
		return err
	}
	defer rt.Close()
	logger.Printf("History backend: %s", cfg.History.Backend)
	logger.Printf("Profile: %s", rt.Profile.Path())

	// First run: seed preferences so the file exists for editing.
	if _, err := os.Stat(cfg.Preferences); errors.Is(err, os.ErrNotExist) {
		if err := rt.Service.Install(ctx); err != nil {
			return err
		}
	}

	ipcServer := ipc.NewServer(cfg.Daemon.SocketPath, rt.Service, logger)
	ipcErr := make(chan error, 1)
	go func() { ipcErr <- ipcServer.Start(ctx) }()

	var server *http.Server
	httpErr := make(chan error, 1)
	if cfg.Daemon.ListenAddr != "" {
		handler := api.NewHandler(rt.Service, m, logger)
		server = &http.Server{
			Addr:              cfg.Daemon.ListenAddr,
			Handler:           handler.Router(),
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		}
		go func() {
			logger.Printf("HTTP API listening on %s", cfg.Daemon.ListenAddr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				httpErr <- err
			}
		}()
	}

	select {
	case <-ctx.Done():
		logger.Printf("Shutdown signal received")
	case err := <-ipcErr:
		if err != nil {
			return fmt.Errorf("ipc server: %w", err)
		}
	case err := <-httpErr:
		return fmt.Errorf("http server: %w", err)
	}

	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Printf("http shutdown: %v", err)
		}
	}
	os.Remove(cfg.Daemon.SocketPath)
	logger.Printf("privacyd stopped")
	return nil
}
