package selftest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/privacycheck/privacycheck/internal/history"
	"github.com/privacycheck/privacycheck/internal/host"
	"github.com/privacycheck/privacycheck/internal/prefs"
	"github.com/privacycheck/privacycheck/internal/privacy"
	"github.com/privacycheck/privacycheck/internal/report"
)

func fullProfile() *host.Static {
	values := map[host.SettingID]bool{}
	for _, d := range privacy.Settings {
		values[d.ID] = d.Desired
	}
	return host.NewStatic(values)
}

func healthyEnv() Environment {
	return Environment{
		Settings: fullProfile(),
		Prefs:    prefs.NewMemoryStore(prefs.Defaults()),
		History:  history.NewMemoryStore(),
	}
}

func findResult(t *testing.T, results []CheckResult, name string) CheckResult {
	t.Helper()
	for _, r := range results {
		if r.Name == name {
			return r
		}
	}
	t.Fatalf("no result named %s", name)
	return CheckResult{}
}

func TestRunAllChecks(t *testing.T) {
	results, err := RunAllChecks(context.Background(), healthyEnv())
	if err != nil {
		t.Fatalf("RunAllChecks: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("expected at least one check result")
	}

	for _, r := range results {
		if r.Name == "" {
			t.Error("check result has empty name")
		}
		if r.Timestamp == "" {
			t.Error("check result has empty timestamp")
		}
		if r.Status != StatusPass {
			t.Errorf("check %s = %s: %s %s", r.Name, r.Status, r.Message, r.Details)
		}
	}
}

func TestKnownAnswerTests(t *testing.T) {
	for _, r := range runKnownAnswerTests() {
		if r.Status != StatusPass {
			t.Errorf("%s failed: %s", r.Name, r.Details)
		}
		if r.Severity != SeverityCritical {
			t.Errorf("%s severity = %s, want critical", r.Name, r.Severity)
		}
	}
}

func TestRunKAT_Failure(t *testing.T) {
	r := runKAT("kat_broken", func() error { return errors.New("mismatch") })
	if r.Status != StatusFail || r.Details != "mismatch" || r.Remediation == "" {
		t.Errorf("result = %+v", r)
	}
}

func TestGenerateReport(t *testing.T) {
	report, err := GenerateReport(context.Background(), "test-version", healthyEnv())
	if err != nil {
		t.Fatalf("GenerateReport: %v", err)
	}

	if report.Version != "test-version" {
		t.Errorf("expected version test-version, got %s", report.Version)
	}
	if report.Platform == "" {
		t.Error("expected non-empty platform")
	}
	if report.Timestamp == "" {
		t.Error("expected non-empty timestamp")
	}
	if report.Summary.Total == 0 {
		t.Error("expected at least one total check")
	}
	if report.Summary.Total != report.Summary.Passed+report.Summary.Failed+report.Summary.Warnings+report.Summary.Skipped {
		t.Error("summary counts do not add up to total")
	}
}

func TestGenerateReport_EmptyEnvironmentSkips(t *testing.T) {
	report, err := GenerateReport(context.Background(), "v", Environment{})
	if err != nil {
		t.Fatalf("GenerateReport: %v", err)
	}
	if report.Summary.Skipped != 3 {
		t.Errorf("Skipped = %d, want 3", report.Summary.Skipped)
	}
}

func TestCheckProfile_MissingSettingsWarn(t *testing.T) {
	h := host.NewStatic(map[host.SettingID]bool{privacy.SettingDoNotTrack: true})
	r := checkProfile(context.Background(), h)
	if r.Status != StatusWarn {
		t.Fatalf("Status = %s, want warn", r.Status)
	}
	if r.Message != "3 of 4 settings are not reported by the profile" {
		t.Errorf("Message = %q", r.Message)
	}
}

func TestCheckProfile_ReadFailureIsCritical(t *testing.T) {
	h := fullProfile()
	h.FailRead(privacy.SettingJavascript, errors.New("profile locked"))
	env := healthyEnv()
	env.Settings = h

	results, err := RunAllChecks(context.Background(), env)
	if err == nil {
		t.Fatal("expected critical failure error")
	}
	r := findResult(t, results, "profile_settings")
	if r.Status != StatusFail || r.Severity != SeverityCritical {
		t.Errorf("result = %+v", r)
	}
}

type brokenHistory struct{ history.MemoryStore }

func (*brokenHistory) Get(context.Context) ([]report.Report, error) {
	return nil, errors.New("connection refused")
}

func TestCheckHistory(t *testing.T) {
	r := checkHistory(context.Background(), &brokenHistory{})
	if r.Status != StatusFail || r.Details != "connection refused" {
		t.Errorf("broken store result = %+v", r)
	}

	store := history.NewMemoryStore()
	if _, err := history.Append(context.Background(), store, &report.Report{ID: "report_1"}); err != nil {
		t.Fatal(err)
	}
	r = checkHistory(context.Background(), store)
	if r.Status != StatusPass || r.Message != "History readable (1 of 10 reports)" {
		t.Errorf("result = %+v", r)
	}
}

func TestPrintReport(t *testing.T) {
	report, _ := GenerateReport(context.Background(), "v", healthyEnv())
	var buf bytes.Buffer
	if err := PrintReport(&buf, report); err != nil {
		t.Fatalf("PrintReport: %v", err)
	}
	var decoded SelfTestReport
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if decoded.Summary.Total != report.Summary.Total {
		t.Errorf("Total = %d, want %d", decoded.Summary.Total, report.Summary.Total)
	}
}
