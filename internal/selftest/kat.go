package selftest

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/privacycheck/privacycheck/internal/cookies"
	"github.com/privacycheck/privacycheck/internal/host"
	"github.com/privacycheck/privacycheck/internal/privacy"
	"github.com/privacycheck/privacycheck/internal/report"
	"github.com/privacycheck/privacycheck/internal/risk"
	"github.com/privacycheck/privacycheck/internal/severity"
)

// bandVector is a Known Answer Test vector for the severity classifier.
type bandVector struct {
	Score    float64
	Expected severity.Severity
}

// Band edges: each lower bound is inclusive.
var bandVectors = []bandVector{
	{0, severity.None},
	{0.1, severity.Low},
	{3.9, severity.Low},
	{4.0, severity.Medium},
	{6.9, severity.Medium},
	{7.0, severity.High},
	{8.9, severity.High},
	{9.0, severity.Critical},
	{10.0, severity.Critical},
}

// katEpoch is the fixed evaluation instant for the vectors below.
var katEpoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func runKnownAnswerTests() []CheckResult {
	return []CheckResult{
		runKAT("kat_severity_bands", verifyBands),
		runKAT("kat_privacy_policy", verifyPrivacyPolicy),
		runKAT("kat_cookie_rules", verifyCookieRules),
		runKAT("kat_risk_aggregate", verifyAggregate),
		runKAT("kat_html_render", verifyHTMLRender),
	}
}

func runKAT(name string, verify func() error) CheckResult {
	result := newResult(name, SeverityCritical)
	if err := verify(); err != nil {
		result.Status = StatusFail
		result.Message = "Known answer test failed"
		result.Details = err.Error()
		result.Remediation = "The binary's scoring tables are inconsistent; reinstall a released build"
		return result
	}
	result.Status = StatusPass
	result.Message = "Known answer test passed"
	return result
}

func verifyBands() error {
	for _, v := range bandVectors {
		if got := severity.Classify(v.Score); got != v.Expected {
			return fmt.Errorf("Classify(%v) = %s, want %s", v.Score, got, v.Expected)
		}
	}
	return nil
}

func verifyPrivacyPolicy() error {
	worst := map[host.SettingID]bool{}
	best := map[host.SettingID]bool{}
	for _, d := range privacy.Settings {
		worst[d.ID] = !d.Desired
		best[d.ID] = d.Desired
	}

	a := privacy.Evaluate(worst, katEpoch)
	if a.Summary.TotalIssues != len(privacy.Settings) {
		return fmt.Errorf("worst profile: %d issues, want %d", a.Summary.TotalIssues, len(privacy.Settings))
	}
	if a.Summary.MaxCVSS != 6.5 || a.Summary.RiskLevel != severity.Medium {
		return fmt.Errorf("worst profile: max %v %s, want 6.5 Medium", a.Summary.MaxCVSS, a.Summary.RiskLevel)
	}
	for i, d := range a.Details {
		if d.ID != privacy.Settings[i].ID {
			return fmt.Errorf("detail %d is %s, want %s", i, d.ID, privacy.Settings[i].ID)
		}
	}

	a = privacy.Evaluate(best, katEpoch)
	if a.Summary.TotalIssues != 0 || a.Summary.RiskLevel != severity.None {
		return fmt.Errorf("hardened profile: %d issues %s, want 0 None", a.Summary.TotalIssues, a.Summary.RiskLevel)
	}
	return nil
}

func verifyCookieRules() error {
	farExpiry := float64(katEpoch.Add(400 * 24 * time.Hour).Unix())
	records := []cookies.Record{
		{Name: "ad", Domain: ".ads.example", ExpirationDate: &farExpiry},
		{Name: "sid", Domain: "example.com", Secure: true, HTTPOnly: true, SameSite: "lax"},
	}
	a := cookies.Evaluate("https://example.com/", records, katEpoch)

	want := []cookies.IssueType{
		cookies.IssueInsecure,
		cookies.IssueNonHTTP,
		cookies.IssueThirdParty,
		cookies.IssueLongExpiry,
	}
	if len(a.Issues) != len(want) {
		return fmt.Errorf("%d cookie issues, want %d", len(a.Issues), len(want))
	}
	for i, typ := range want {
		if a.Issues[i].Type != typ || a.Issues[i].Count != 1 {
			return fmt.Errorf("issue %d = %s x%d, want %s x1", i, a.Issues[i].Type, a.Issues[i].Count, typ)
		}
	}
	if a.CVSSScore != 6.8 || a.Severity != severity.Medium || a.SameSite != 1 {
		return fmt.Errorf("cookie verdict %v %s sameSite=%d, want 6.8 Medium sameSite=1", a.CVSSScore, a.Severity, a.SameSite)
	}
	return nil
}

func verifyAggregate() error {
	p := &privacy.Analysis{Summary: privacy.Summary{RiskLevel: severity.Medium, MaxCVSS: 6.5}}
	c := &cookies.Analysis{CVSSScore: 6.8, Severity: severity.Medium}
	s := risk.Aggregate(p, c)
	if s.OverallRisk != severity.Medium || s.MaxScoreString() != "6.8" {
		return fmt.Errorf("aggregate = %s %s, want Medium 6.8", s.OverallRisk, s.MaxScoreString())
	}
	if s := risk.Aggregate(nil, cookies.Disabled()); s.OverallRisk != severity.None || s.MaxScoreString() != "0.0" {
		return fmt.Errorf("empty aggregate = %s %s, want None 0.0", s.OverallRisk, s.MaxScoreString())
	}
	return nil
}

func verifyHTMLRender() error {
	r := &report.Report{
		ID:               "report_selftest",
		Timestamp:        katEpoch,
		URL:              "https://example.com/",
		Title:            "<script>alert(1)</script>",
		OverallRiskLevel: severity.None,
		Summary:          report.Summary{MaxCVSS: "0.0"},
	}
	var first, second bytes.Buffer
	if err := report.RenderHTML(&first, r); err != nil {
		return err
	}
	if err := report.RenderHTML(&second, r); err != nil {
		return err
	}
	if !bytes.Equal(first.Bytes(), second.Bytes()) {
		return fmt.Errorf("rendering is not deterministic")
	}
	if strings.Contains(first.String(), "<script>alert(1)</script>") {
		return fmt.Errorf("page title is not escaped")
	}
	return nil
}
