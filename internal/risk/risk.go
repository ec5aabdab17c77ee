// Package risk folds a privacy analysis and a cookie analysis into one
// overall verdict.
package risk

import (
	"strconv"

	"github.com/privacycheck/privacycheck/internal/cookies"
	"github.com/privacycheck/privacycheck/internal/privacy"
	"github.com/privacycheck/privacycheck/internal/severity"
)

// Summary is the combined verdict.
type Summary struct {
	OverallRisk severity.Severity
	MaxScore    float64
}

// MaxScoreString formats MaxScore with one decimal digit.
func (s Summary) MaxScoreString() string {
	return FormatScore(s.MaxScore)
}

// FormatScore formats a CVSS-style score with one decimal digit.
func FormatScore(score float64) string {
	return strconv.FormatFloat(score, 'f', 1, 64)
}

// Aggregate combines the two analyses. Either may be nil, and a disabled
// cookie sentinel counts as absent. The cookie severity replaces the privacy
// one only when strictly greater, so ties keep the privacy value.
func Aggregate(p *privacy.Analysis, c *cookies.Analysis) Summary {
	var s Summary
	if p != nil {
		s.OverallRisk = p.Summary.RiskLevel
		s.MaxScore = p.Summary.MaxCVSS
	}
	if c.Performed() {
		if c.Severity > s.OverallRisk {
			s.OverallRisk = c.Severity
		}
		if c.CVSSScore > s.MaxScore {
			s.MaxScore = c.CVSSScore
		}
	}
	return s
}
