// Package buildinfo provides build metadata injected via ldflags at compile time.
package buildinfo

import (
	"fmt"
	"runtime"
)

// These variables are set at build time via -ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Info is the build metadata as served by the daemon's health endpoint.
type Info struct {
	Version   string `json:"version"`
	GitCommit string `json:"gitCommit"`
	BuildDate string `json:"buildDate"`
	GoVersion string `json:"goVersion"`
}

// Get returns the current build metadata.
func Get() Info {
	return Info{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
	}
}

// String returns a formatted build info string.
func String() string {
	return fmt.Sprintf("privacycheck %s (commit: %s, built: %s, %s)",
		Version, GitCommit, BuildDate, runtime.Version())
}

// IsRelease reports whether the binary was built with a version stamp.
func IsRelease() bool {
	return Version != "dev"
}
