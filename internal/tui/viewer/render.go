package viewer

import (
	"fmt"
	"strings"

	"github.com/privacycheck/privacycheck/internal/cookies"
	"github.com/privacycheck/privacycheck/internal/privacy"
	"github.com/privacycheck/privacycheck/internal/report"
	"github.com/privacycheck/privacycheck/internal/risk"
	"github.com/privacycheck/privacycheck/internal/severity"
)

// severityIcon returns a colored icon for a severity band.
func severityIcon(s severity.Severity) string {
	switch s {
	case severity.Critical:
		return criticalStyle.Render("✖")
	case severity.High:
		return highStyle.Render("▲")
	case severity.Medium:
		return mediumStyle.Render("◆")
	case severity.Low:
		return lowStyle.Render("○")
	default:
		return noneStyle.Render("●")
	}
}

// severityLabel returns a colored, fixed-width severity label.
func severityLabel(s severity.Severity) string {
	return severityStyle(s).Render(fmt.Sprintf("%-8s", s.String()))
}

// renderHistoryList renders one line per saved report, marking the selection.
func renderHistoryList(reports []report.Report, selected int) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf(" %s  %s\n",
		sectionNameStyle.Render("History"),
		sectionCountStyle.Render(fmt.Sprintf("%d saved", len(reports)))))

	for i, r := range reports {
		marker := "  "
		title := r.Title
		if i == selected {
			marker = selectedStyle.Render("▸ ")
			title = selectedStyle.Render(title)
		}
		b.WriteString(fmt.Sprintf(" %s%s %s %s  %s\n",
			marker,
			severityIcon(r.OverallRiskLevel),
			dimStyle.Render(r.Timestamp.Local().Format("2006-01-02 15:04")),
			severityLabel(r.OverallRiskLevel),
			title))
	}
	return b.String()
}

// renderReport renders the detail of one report.
func renderReport(r report.Report, width int) string {
	var b strings.Builder
	b.WriteString(renderSummaryBar(r, width))
	b.WriteString("\n")
	b.WriteString(renderPrivacy(r.PrivacyResults))
	b.WriteString(renderCookies(r.CookieResults))
	return b.String()
}

// renderSummaryBar renders the headline risk, score and issue counts.
func renderSummaryBar(r report.Report, width int) string {
	level := severityStyle(r.OverallRiskLevel).Render(r.OverallRiskLevel.String())
	line := fmt.Sprintf("%s  Risk %s   CVSS %s   %d privacy   %d cookie",
		truncate(r.URL, width/2), level, r.Summary.MaxCVSS,
		r.Summary.PrivacyIssues, r.Summary.CookieIssues)
	return summaryBoxStyle.Render(line)
}

func renderPrivacy(a *privacy.Analysis) string {
	var b strings.Builder
	if a == nil || len(a.Details) == 0 {
		b.WriteString(fmt.Sprintf(" %s\n", sectionNameStyle.Render("Privacy Settings")))
		b.WriteString(dimStyle.Render("   No privacy settings were analyzed."))
		b.WriteString("\n")
		return b.String()
	}

	b.WriteString(fmt.Sprintf(" %s  %s\n",
		sectionNameStyle.Render("Privacy Settings"),
		sectionCountStyle.Render(fmt.Sprintf("%d/%d issues", a.Summary.TotalIssues, len(a.Details)))))
	for _, d := range a.Details {
		b.WriteString(renderSetting(d))
		b.WriteString("\n")
	}
	return b.String()
}

// renderSetting renders a single setting line. Compliant settings are dimmed.
func renderSetting(d privacy.SettingResult) string {
	name := d.Name
	if d.IsIssue() {
		name = severityStyle(d.Severity).Render(name)
	} else {
		name = dimStyle.Render(name)
	}
	return fmt.Sprintf("   %s %-32s %s %s\n     %s",
		severityIcon(d.Severity), name, severityLabel(d.Severity),
		risk.FormatScore(d.CVSS), dimStyle.Render(d.Recommendation))
}

func renderCookies(a *cookies.Analysis) string {
	var b strings.Builder
	if reason := a.FailureReason(); reason != "" {
		b.WriteString(fmt.Sprintf(" %s\n", sectionNameStyle.Render("Cookies")))
		b.WriteString(criticalStyle.Render("   Cookie analysis failed: " + reason))
		b.WriteString("\n")
		return b.String()
	}
	if !a.Performed() {
		b.WriteString(fmt.Sprintf(" %s\n", sectionNameStyle.Render("Cookies")))
		b.WriteString(dimStyle.Render("   Cookie analysis was not performed."))
		b.WriteString("\n")
		return b.String()
	}

	b.WriteString(fmt.Sprintf(" %s  %s\n",
		sectionNameStyle.Render("Cookies"),
		sectionCountStyle.Render(fmt.Sprintf("%d cookies, %d secure, %d httpOnly, %d third-party",
			a.TotalCount, a.Secure, a.HTTPOnly, a.ThirdParty))))
	if len(a.Issues) == 0 {
		b.WriteString(dimStyle.Render("   No cookie issues were found."))
		b.WriteString("\n")
		return b.String()
	}
	for _, issue := range a.Issues {
		b.WriteString(fmt.Sprintf("   %s %-32s %s %s\n     %s\n",
			severityIcon(issue.Severity),
			severityStyle(issue.Severity).Render(issue.Message),
			severityLabel(issue.Severity),
			risk.FormatScore(issue.CVSS),
			dimStyle.Render(issue.Recommendation)))
	}
	return b.String()
}

func truncate(s string, max int) string {
	if max < 10 {
		max = 10
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}
