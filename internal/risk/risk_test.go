package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/privacycheck/privacycheck/internal/cookies"
	"github.com/privacycheck/privacycheck/internal/privacy"
	"github.com/privacycheck/privacycheck/internal/severity"
)

func privacyWith(level severity.Severity, max float64) *privacy.Analysis {
	return &privacy.Analysis{Summary: privacy.Summary{RiskLevel: level, MaxCVSS: max}}
}

func cookiesWith(level severity.Severity, max float64) *cookies.Analysis {
	return &cookies.Analysis{Severity: level, CVSSScore: max, Issues: []cookies.Issue{}}
}

func TestAggregate(t *testing.T) {
	tests := []struct {
		name      string
		p         *privacy.Analysis
		c         *cookies.Analysis
		wantRisk  severity.Severity
		wantScore string
	}{
		{"both absent", nil, nil, severity.None, "0.0"},
		{"tie keeps privacy", privacyWith(severity.Medium, 6.5), cookiesWith(severity.Medium, 5.4), severity.Medium, "6.5"},
		{"cookie strictly greater wins", privacyWith(severity.Low, 2.8), cookiesWith(severity.Critical, 9.1), severity.Critical, "9.1"},
		{"privacy greater stays", privacyWith(severity.High, 7.2), cookiesWith(severity.Low, 3.5), severity.High, "7.2"},
		{"privacy only", privacyWith(severity.Low, 3.4), nil, severity.Low, "3.4"},
		{"cookie only", nil, cookiesWith(severity.Medium, 6.8), severity.Medium, "6.8"},
		{"disabled cookie is ignored", privacyWith(severity.Low, 2.1), cookies.Disabled(), severity.Low, "2.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Aggregate(tt.p, tt.c)
			assert.Equal(t, tt.wantRisk, s.OverallRisk)
			assert.Equal(t, tt.wantScore, s.MaxScoreString())
		})
	}
}

func TestAggregate_ScoreIsNumericNotOrdinal(t *testing.T) {
	// Severity and max score are chosen independently.
	s := Aggregate(privacyWith(severity.Medium, 6.5), cookiesWith(severity.Medium, 6.8))
	assert.Equal(t, severity.Medium, s.OverallRisk)
	assert.Equal(t, 6.8, s.MaxScore)
}

func TestFormatScore(t *testing.T) {
	assert.Equal(t, "6.5", FormatScore(6.5))
	assert.Equal(t, "10.0", FormatScore(10))
	assert.Equal(t, "0.0", FormatScore(0))
}
