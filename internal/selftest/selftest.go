// Package selftest verifies a privacycheck installation.
//
// It runs Known Answer Tests against the scoring tables (severity bands,
// setting policies, cookie rules, report rendering) and checks that the
// configured profile, preferences and history store are usable.
package selftest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"runtime"
	"strings"
	"time"

	"github.com/privacycheck/privacycheck/internal/history"
	"github.com/privacycheck/privacycheck/internal/host"
	"github.com/privacycheck/privacycheck/internal/prefs"
	"github.com/privacycheck/privacycheck/internal/privacy"
)

// Severity indicates the impact level of a check result.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// Status indicates whether a check passed, failed, or produced a warning.
type Status string

const (
	StatusPass Status = "pass"
	StatusFail Status = "fail"
	StatusWarn Status = "warn"
	StatusSkip Status = "skip"
)

// CheckResult holds the outcome of a single self-test check.
type CheckResult struct {
	Name        string   `json:"name"`
	Status      Status   `json:"status"`
	Severity    Severity `json:"severity"`
	Message     string   `json:"message"`
	Details     string   `json:"details,omitempty"`
	Remediation string   `json:"remediation,omitempty"`
	Timestamp   string   `json:"timestamp"`
}

// SelfTestReport holds the complete self-test output.
type SelfTestReport struct {
	Version   string        `json:"version"`
	Platform  string        `json:"platform"`
	Timestamp string        `json:"timestamp"`
	Results   []CheckResult `json:"results"`
	Summary   Summary       `json:"summary"`
}

// Summary aggregates check results.
type Summary struct {
	Total    int `json:"total"`
	Passed   int `json:"passed"`
	Failed   int `json:"failed"`
	Warnings int `json:"warnings"`
	Skipped  int `json:"skipped"`
}

// Environment is the installation under test. Nil fields skip their checks.
type Environment struct {
	Settings host.SettingReader
	Prefs    prefs.Store
	History  history.Store
}

// RunAllChecks executes the known-answer tests and the environment checks.
// Returns an error if any critical check fails.
func RunAllChecks(ctx context.Context, env Environment) ([]CheckResult, error) {
	results := runKnownAnswerTests()
	results = append(results,
		checkProfile(ctx, env.Settings),
		checkPreferences(ctx, env.Prefs),
		checkHistory(ctx, env.History),
	)

	var criticalFailures []string
	for _, r := range results {
		if r.Status == StatusFail && r.Severity == SeverityCritical {
			criticalFailures = append(criticalFailures, r.Name)
		}
	}

	if len(criticalFailures) > 0 {
		return results, fmt.Errorf("critical self-test failures: %s", strings.Join(criticalFailures, ", "))
	}

	return results, nil
}

// GenerateReport runs all checks and produces a full report.
func GenerateReport(ctx context.Context, version string, env Environment) (*SelfTestReport, error) {
	results, err := RunAllChecks(ctx, env)

	report := &SelfTestReport{
		Version:   version,
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Results:   results,
	}

	for _, r := range results {
		report.Summary.Total++
		switch r.Status {
		case StatusPass:
			report.Summary.Passed++
		case StatusFail:
			report.Summary.Failed++
		case StatusWarn:
			report.Summary.Warnings++
		case StatusSkip:
			report.Summary.Skipped++
		}
	}

	return report, err
}

// PrintReport outputs the self-test report as formatted JSON.
func PrintReport(w io.Writer, report *SelfTestReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

func newResult(name string, sev Severity) CheckResult {
	return CheckResult{
		Name:      name,
		Severity:  sev,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// checkProfile verifies the host reports every setting the analyzer reads.
func checkProfile(ctx context.Context, settings host.SettingReader) CheckResult {
	result := newResult("profile_settings", SeverityWarning)
	if settings == nil {
		result.Status = StatusSkip
		result.Message = "No settings source configured"
		return result
	}

	var missing, failed []string
	for _, d := range privacy.Settings {
		_, err := settings.GetSetting(ctx, d.ID)
		switch {
		case err == nil:
		case errors.Is(err, host.ErrSettingUnavailable):
			missing = append(missing, string(d.ID))
		default:
			failed = append(failed, fmt.Sprintf("%s: %v", d.ID, err))
		}
	}

	switch {
	case len(failed) > 0:
		result.Status = StatusFail
		result.Severity = SeverityCritical
		result.Message = "Profile could not be read"
		result.Details = strings.Join(failed, "; ")
		result.Remediation = "Check the profile path and YAML syntax"
	case len(missing) > 0:
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("%d of %d settings are not reported by the profile", len(missing), len(privacy.Settings))
		result.Details = strings.Join(missing, ", ")
		result.Remediation = "Add the missing keys under settings: in the profile so they are analyzed"
	default:
		result.Status = StatusPass
		result.Message = fmt.Sprintf("All %d settings are readable", len(privacy.Settings))
	}
	return result
}

// checkPreferences verifies the preferences file loads.
func checkPreferences(ctx context.Context, store prefs.Store) CheckResult {
	result := newResult("preferences", SeverityCritical)
	if store == nil {
		result.Status = StatusSkip
		result.Message = "No preferences store configured"
		return result
	}
	p, err := store.Load(ctx)
	if err != nil {
		result.Status = StatusFail
		result.Message = "Preferences could not be loaded"
		result.Details = err.Error()
		result.Remediation = "Fix or delete the preferences file; `privacycheck install` rewrites the defaults"
		return result
	}
	result.Status = StatusPass
	result.Message = "Preferences loaded"
	result.Details = fmt.Sprintf("analyzePrivacy=%t checkCookies=%t autoScan=%t notifications=%t",
		p.AnalyzePrivacy, p.CheckCookies, p.AutoScan, p.Notifications)
	return result
}

// checkHistory verifies the history store is reachable and within its cap.
func checkHistory(ctx context.Context, store history.Store) CheckResult {
	result := newResult("report_history", SeverityCritical)
	if store == nil {
		result.Status = StatusSkip
		result.Message = "No history store configured"
		return result
	}
	reports, err := store.Get(ctx)
	if err != nil {
		result.Status = StatusFail
		result.Message = "Report history is not readable"
		result.Details = err.Error()
		result.Remediation = "Check the history backend settings (history.backend, sqlite_path, redis_addr)"
		return result
	}
	if len(reports) > history.MaxEntries {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("History holds %d reports, more than the %d kept", len(reports), history.MaxEntries)
		result.Remediation = "The next saved report trims it"
		return result
	}
	result.Status = StatusPass
	result.Message = fmt.Sprintf("History readable (%d of %d reports)", len(reports), history.MaxEntries)
	return result
}
