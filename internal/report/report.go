// Package report assembles privacy and cookie analyses into an immutable
// report record and renders it for export.
package report

import (
	"time"

	"github.com/google/uuid"

	"github.com/privacycheck/privacycheck/internal/cookies"
	"github.com/privacycheck/privacycheck/internal/privacy"
	"github.com/privacycheck/privacycheck/internal/risk"
	"github.com/privacycheck/privacycheck/internal/severity"
)

const idPrefix = "report_"

// Summary holds the headline numbers of a report.
type Summary struct {
	PrivacyIssues int    `json:"privacyIssues"`
	CookieIssues  int    `json:"cookieIssues"`
	MaxCVSS       string `json:"maxCVSS"`
}

// TotalIssues is the sum of privacy and cookie issues.
func (s Summary) TotalIssues() int {
	return s.PrivacyIssues + s.CookieIssues
}

// Report is one generated privacy report. Reports are never modified after
// Build returns; the analyses they reference belong to the report.
type Report struct {
	ID               string            `json:"id"`
	Timestamp        time.Time         `json:"timestamp"`
	URL              string            `json:"url"`
	Title            string            `json:"title"`
	OverallRiskLevel severity.Severity `json:"overallRiskLevel"`
	Summary          Summary           `json:"summary"`
	PrivacyResults   *privacy.Analysis `json:"privacyResults,omitempty"`
	CookieResults    *cookies.Analysis `json:"cookieResults,omitempty"`
}

// Builder creates reports.
type Builder struct {
	now   func() time.Time
	newID func() string
}

// NewBuilder returns a Builder using the wall clock and time-ordered ids.
func NewBuilder() *Builder {
	return &Builder{now: time.Now, newID: newReportID}
}

// newReportID returns a UUIDv7 (millisecond timestamp plus random bits)
// with the report prefix.
func newReportID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return idPrefix + uuid.NewString()
	}
	return idPrefix + id.String()
}

// Build assembles a report. Either analysis may be nil. An empty title
// falls back to the URL.
func (b *Builder) Build(url, title string, p *privacy.Analysis, c *cookies.Analysis) *Report {
	if title == "" {
		title = url
	}
	agg := risk.Aggregate(p, c)

	r := &Report{
		ID:               b.newID(),
		Timestamp:        b.now().UTC(),
		URL:              url,
		Title:            title,
		OverallRiskLevel: agg.OverallRisk,
		Summary: Summary{
			MaxCVSS: agg.MaxScoreString(),
		},
		PrivacyResults: p,
		CookieResults:  c,
	}
	if p != nil {
		r.Summary.PrivacyIssues = p.Summary.TotalIssues
	}
	if c != nil {
		r.Summary.CookieIssues = len(c.Issues)
	}
	return r
}

// ExportFilename is the suggested download name for the HTML export.
func ExportFilename(r *Report) string {
	return "privacy-report-" + r.Timestamp.UTC().Format("2006-01-02") + ".html"
}
