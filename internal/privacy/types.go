// Package privacy evaluates browser privacy settings against a fixed policy
// table and applies the recommended value when asked to.
package privacy

import (
	"time"

	"github.com/privacycheck/privacycheck/internal/host"
	"github.com/privacycheck/privacycheck/internal/severity"
)

// Action identifies a remediation that writes one setting to its
// recommended value.
type Action string

const (
	ActionDisableThirdPartyCookies Action = "disableThirdPartyCookies"
	ActionEnableDoNotTrack         Action = "enableDoNotTrack"
	ActionDisableJavascript        Action = "disableJavascript"
	ActionDisableHyperlinkAuditing Action = "disableHyperlinkAuditing"
)

// Monitored settings.
const (
	SettingThirdPartyCookies host.SettingID = "thirdPartyCookiesAllowed"
	SettingDoNotTrack        host.SettingID = "doNotTrackEnabled"
	SettingJavascript        host.SettingID = "javascriptEnabled"
	SettingHyperlinkAuditing host.SettingID = "hyperlinkAuditingEnabled"
)

// Descriptor is the static policy for one monitored setting. Desired holds
// the compliant value, so polarity is per setting.
type Descriptor struct {
	ID             host.SettingID
	Name           string
	Desired        bool
	ViolationScore float64
	ViolationText  string
	CompliantText  string
	Action         Action
}

// SettingResult is the verdict for one setting in one evaluation pass.
type SettingResult struct {
	ID             host.SettingID    `json:"id"`
	Name           string            `json:"name"`
	Setting        bool              `json:"setting"`
	Recommendation string            `json:"recommendation"`
	CVSS           float64           `json:"cvss"`
	Severity       severity.Severity `json:"severity"`
	CanApply       bool              `json:"canApply"`
	ApplyAction    Action            `json:"applyAction,omitempty"`
}

// IsIssue reports whether the setting violates its policy.
func (r SettingResult) IsIssue() bool {
	return r.CVSS > 0
}

// Summary holds the aggregate counts for an Analysis.
type Summary struct {
	RiskLevel      severity.Severity `json:"riskLevel"`
	TotalIssues    int               `json:"totalIssues"`
	CriticalIssues int               `json:"criticalIssues"`
	HighIssues     int               `json:"highIssues"`
	MediumIssues   int               `json:"mediumIssues"`
	LowIssues      int               `json:"lowIssues"`
	MaxCVSS        float64           `json:"maxCVSS"`
}

// Analysis is the result of one evaluation pass. Details follow the order
// of Settings; settings the host could not supply are absent.
type Analysis struct {
	Timestamp time.Time       `json:"timestamp"`
	Summary   Summary         `json:"summary"`
	Details   []SettingResult `json:"details"`
}

// Lookup returns the result for id, if it was evaluated.
func (a *Analysis) Lookup(id host.SettingID) (SettingResult, bool) {
	if a == nil {
		return SettingResult{}, false
	}
	for _, d := range a.Details {
		if d.ID == id {
			return d, true
		}
	}
	return SettingResult{}, false
}

// Result is the outcome of applying a remediation action.
type Result struct {
	Action  Action `json:"action"`
	Success bool   `json:"success"`
	Message string `json:"message"`
}
