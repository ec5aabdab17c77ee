package report

import (
	"fmt"
	"html/template"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/privacycheck/privacycheck/internal/cookies"
	"github.com/privacycheck/privacycheck/internal/privacy"
	"github.com/privacycheck/privacycheck/internal/risk"
	"github.com/privacycheck/privacycheck/internal/severity"
)

const (
	timestampLayout      = "2006-01-02 15:04:05 UTC"
	noPrivacyPlaceholder = "No privacy settings were analyzed."
	noCookiePlaceholder  = "Cookie analysis was not performed."
	noCookieIssues       = "No cookie issues were found."
	cookieFailurePrefix  = "Cookie analysis failed: "
)

var htmlFuncs = template.FuncMap{
	"stamp":   func(r *Report) string { return r.Timestamp.UTC().Format(timestampLayout) },
	"score":   risk.FormatScore,
	"onOff":   onOff,
	"hasPriv": func(p *privacy.Analysis) bool { return p != nil },
	"hasCook": func(c *cookies.Analysis) bool { return c.Performed() },
	"cookErr": func(c *cookies.Analysis) string { return c.FailureReason() },
}

var htmlTemplate = template.Must(template.New("report").Funcs(htmlFuncs).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>Privacy Report for {{.Title}}</title>
<style>
body { font-family: Arial, sans-serif; line-height: 1.6; margin: 0; padding: 20px; color: #333; }
.container { max-width: 900px; margin: 0 auto; }
.report-header { background-color: #f5f5f5; padding: 15px; border-radius: 5px; margin-bottom: 20px; }
.report-meta { color: #7f8c8d; font-size: 0.9em; }
.risk { display: inline-block; padding: 2px 8px; border-radius: 3px; color: #fff; font-weight: bold; }
.risk-None { background-color: #27ae60; }
.risk-Low { background-color: #2ecc71; }
.risk-Medium { background-color: #f39c12; }
.risk-High { background-color: #e74c3c; }
.risk-Critical { background-color: #c0392b; }
table { width: 100%; border-collapse: collapse; margin-bottom: 20px; }
th, td { border: 1px solid #ddd; padding: 8px; text-align: left; }
th { background-color: #f2f2f2; }
.error { color: #c0392b; }
</style>
</head>
<body>
<div class="container">
<div class="report-header">
<h1>Privacy Report</h1>
<p class="report-meta">Generated on {{stamp .}} &middot; {{.ID}}</p>
<p><strong>URL:</strong> {{.URL}}</p>
<p><strong>Risk Level:</strong> <span class="risk risk-{{.OverallRiskLevel}}">{{.OverallRiskLevel}}</span></p>
<p><strong>CVSS Score:</strong> {{.Summary.MaxCVSS}}</p>
</div>

<h2>Summary</h2>
<p>This report found {{.Summary.TotalIssues}} privacy issues:</p>
<ul>
<li>{{.Summary.PrivacyIssues}} browser privacy settings issues</li>
<li>{{.Summary.CookieIssues}} cookie-related issues</li>
</ul>

<h2>Browser Privacy Settings</h2>
{{- if hasPriv .PrivacyResults}}
<table>
<tr><th>Setting</th><th>Status</th><th>Risk</th><th>Recommendation</th></tr>
{{- range .PrivacyResults.Details}}
<tr><td>{{.Name}}</td><td>{{onOff .Setting}}</td><td><span class="risk risk-{{.Severity}}">{{.Severity}}</span></td><td>{{.Recommendation}}</td></tr>
{{- end}}
</table>
{{- else}}
<p>` + noPrivacyPlaceholder + `</p>
{{- end}}

<h2>Cookie Analysis</h2>
{{- if hasCook .CookieResults}}
{{- with .CookieResults}}
<p><strong>Total cookies:</strong> {{.TotalCount}}</p>
<p><strong>Secure cookies:</strong> {{.Secure}}/{{.TotalCount}}</p>
<p><strong>HttpOnly cookies:</strong> {{.HTTPOnly}}/{{.TotalCount}}</p>
<p><strong>Third-party cookies:</strong> {{.ThirdParty}}/{{.TotalCount}}</p>
<p><strong>SameSite cookies:</strong> {{.SameSite}}/{{.TotalCount}}</p>
<h3>Issues Found</h3>
{{- if .Issues}}
<table>
<tr><th>Issue</th><th>Severity</th><th>CVSS</th><th>Recommendation</th></tr>
{{- range .Issues}}
<tr><td>{{.Message}} ({{.Count}} cookies)</td><td><span class="risk risk-{{.Severity}}">{{.Severity}}</span></td><td>{{score .CVSS}}</td><td>{{.Recommendation}}</td></tr>
{{- end}}
</table>
{{- else}}
<p>` + noCookieIssues + `</p>
{{- end}}
{{- end}}
{{- else with cookErr .CookieResults}}
<p class="error">` + cookieFailurePrefix + `{{.}}</p>
{{- else}}
<p>` + noCookiePlaceholder + `</p>
{{- end}}
</div>
</body>
</html>
`))

func onOff(v bool) string {
	if v {
		return "Enabled"
	}
	return "Disabled"
}

// RenderHTML writes a self-contained HTML document for r. Output depends
// only on r, so repeated calls are byte-identical.
func RenderHTML(w io.Writer, r *Report) error {
	if err := htmlTemplate.Execute(w, r); err != nil {
		return fmt.Errorf("render html report: %w", err)
	}
	return nil
}

// RenderText writes a plain-text rendition of r.
func RenderText(w io.Writer, r *Report) error {
	var b strings.Builder

	fmt.Fprintf(&b, "Privacy Report: %s\n", r.Title)
	fmt.Fprintf(&b, "  ID:         %s\n", r.ID)
	fmt.Fprintf(&b, "  Generated:  %s\n", r.Timestamp.UTC().Format(timestampLayout))
	fmt.Fprintf(&b, "  URL:        %s\n", r.URL)
	fmt.Fprintf(&b, "  Risk level: %s\n", r.OverallRiskLevel)
	fmt.Fprintf(&b, "  CVSS score: %s\n", r.Summary.MaxCVSS)
	fmt.Fprintf(&b, "  Issues:     %d (%d settings, %d cookies)\n\n",
		r.Summary.TotalIssues(), r.Summary.PrivacyIssues, r.Summary.CookieIssues)

	b.WriteString("Browser Privacy Settings\n")
	if r.PrivacyResults == nil {
		b.WriteString("  " + noPrivacyPlaceholder + "\n")
	} else {
		tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
		for _, d := range r.PrivacyResults.Details {
			fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\n", d.Name, onOff(d.Setting), labelWithScore(d.Severity, d.CVSS), d.Recommendation)
		}
		tw.Flush()
	}
	b.WriteString("\nCookie Analysis\n")
	c := r.CookieResults
	switch {
	case c.FailureReason() != "":
		b.WriteString("  " + cookieFailurePrefix + c.FailureReason() + "\n")
	case !c.Performed():
		b.WriteString("  " + noCookiePlaceholder + "\n")
	default:
		fmt.Fprintf(&b, "  total %d, secure %d, httpOnly %d, third-party %d, sameSite %d, long-expiry %d\n",
			c.TotalCount, c.Secure, c.HTTPOnly, c.ThirdParty, c.SameSite, c.LongExpiry)
		if len(c.Issues) == 0 {
			b.WriteString("  " + noCookieIssues + "\n")
		}
		tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
		for _, i := range c.Issues {
			fmt.Fprintf(tw, "  %s (%d cookies)\t%s\t%s\n", i.Message, i.Count, labelWithScore(i.Severity, i.CVSS), i.Recommendation)
		}
		tw.Flush()
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func labelWithScore(s severity.Severity, score float64) string {
	if score <= 0 {
		return s.String()
	}
	return fmt.Sprintf("%s %s", s, risk.FormatScore(score))
}
