// Command privacycheck-tui is a live terminal viewer for the report history
// served by privacyd.
//
// Usage:
//
//	privacycheck-tui [--api 127.0.0.1:8787] [--interval 5s]
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/privacycheck/privacycheck/internal/tui/viewer"
)

func main() {
	apiAddr := flag.String("api", envOr("PRIVACYCHECK_LISTEN_ADDR", "127.0.0.1:8787"), "privacyd API address (host:port)")
	interval := flag.Duration("interval", 5*time.Second, "Poll interval")
	flag.Parse()

	m := viewer.New(*apiAddr, *interval)
	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
