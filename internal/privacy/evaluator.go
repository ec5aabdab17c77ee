package privacy

import (
	"context"
	"log"
	"time"

	"github.com/privacycheck/privacycheck/internal/host"
	"github.com/privacycheck/privacycheck/internal/severity"
)

// Settings is the ordered policy table. Evaluation and rendering iterate it
// in this order.
var Settings = []Descriptor{
	{
		ID:             SettingThirdPartyCookies,
		Name:           "Third-party cookies",
		Desired:        false,
		ViolationScore: 6.5,
		ViolationText:  "Consider disabling third-party cookies for better privacy",
		CompliantText:  "Good: Third-party cookies are disabled",
		Action:         ActionDisableThirdPartyCookies,
	},
	{
		ID:             SettingDoNotTrack,
		Name:           "Do Not Track",
		Desired:        true,
		ViolationScore: 2.8,
		ViolationText:  "Consider enabling Do Not Track for better privacy",
		CompliantText:  "Good: Do Not Track is enabled",
		Action:         ActionEnableDoNotTrack,
	},
	{
		ID:             SettingJavascript,
		Name:           "JavaScript",
		Desired:        false,
		ViolationScore: 3.4,
		ViolationText:  "Consider disabling JavaScript for untrusted sites",
		CompliantText:  "JavaScript is disabled. Note this may break functionality on many sites.",
		Action:         ActionDisableJavascript,
	},
	{
		ID:             SettingHyperlinkAuditing,
		Name:           "Hyperlink auditing",
		Desired:        false,
		ViolationScore: 2.1,
		ViolationText:  "Consider disabling hyperlink auditing for better privacy",
		CompliantText:  "Good: Hyperlink auditing is disabled",
		Action:         ActionDisableHyperlinkAuditing,
	},
}

// DescriptorFor returns the policy for id.
func DescriptorFor(id host.SettingID) (Descriptor, bool) {
	for _, d := range Settings {
		if d.ID == id {
			return d, true
		}
	}
	return Descriptor{}, false
}

// Check evaluates a single setting value against its policy.
func Check(d Descriptor, value bool) SettingResult {
	r := SettingResult{
		ID:          d.ID,
		Name:        d.Name,
		Setting:     value,
		CanApply:    d.Action != "",
		ApplyAction: d.Action,
	}
	if value != d.Desired {
		r.CVSS = d.ViolationScore
		r.Recommendation = d.ViolationText
	} else {
		r.Recommendation = d.CompliantText
	}
	r.Severity = severity.Classify(r.CVSS)
	return r
}

// Evaluate checks every monitored setting present in values.
func Evaluate(values map[host.SettingID]bool, now time.Time) *Analysis {
	a := &Analysis{
		Timestamp: now.UTC(),
		Details:   []SettingResult{},
	}
	for _, d := range Settings {
		v, ok := values[d.ID]
		if !ok {
			continue
		}
		a.Details = append(a.Details, Check(d, v))
	}
	a.Summary = Summarize(a.Details)
	return a
}

// Summarize folds setting results into counts per severity band.
func Summarize(results []SettingResult) Summary {
	var s Summary
	for _, r := range results {
		if !r.IsIssue() {
			continue
		}
		s.TotalIssues++
		switch severity.Classify(r.CVSS) {
		case severity.Critical:
			s.CriticalIssues++
		case severity.High:
			s.HighIssues++
		case severity.Medium:
			s.MediumIssues++
		default:
			s.LowIssues++
		}
		if r.CVSS > s.MaxCVSS {
			s.MaxCVSS = r.CVSS
		}
	}
	s.RiskLevel = severity.Classify(s.MaxCVSS)
	return s
}

// Analyzer reads settings from the host and evaluates them.
type Analyzer struct {
	reader host.SettingReader
	logger *log.Logger
	now    func() time.Time
}

// NewAnalyzer creates an Analyzer. A nil logger uses log.Default().
func NewAnalyzer(reader host.SettingReader, logger *log.Logger) *Analyzer {
	if logger == nil {
		logger = log.Default()
	}
	return &Analyzer{reader: reader, logger: logger, now: time.Now}
}

// Analyze reads every monitored setting and evaluates the ones the host
// could supply. A failed read omits that setting rather than failing the pass.
func (a *Analyzer) Analyze(ctx context.Context) *Analysis {
	values := make(map[host.SettingID]bool, len(Settings))
	for _, d := range Settings {
		v, err := a.reader.GetSetting(ctx, d.ID)
		if err != nil {
			a.logger.Printf("privacy: skipping %s: %v", d.ID, err)
			continue
		}
		values[d.ID] = v
	}
	return Evaluate(values, a.now())
}
