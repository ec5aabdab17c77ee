// Package severity maps CVSS-style scores onto ordinal severity labels.
//
// Every other package derives a Severity through Classify; the band
// thresholds live here and nowhere else.
package severity

import (
	"fmt"
	"strings"
)

// Severity is an ordinal risk category. Values compare with < and >.
type Severity int

const (
	None Severity = iota
	Low
	Medium
	High
	Critical
)

// Band thresholds. Each lower bound is inclusive.
const (
	MediumThreshold   = 4.0
	HighThreshold     = 7.0
	CriticalThreshold = 9.0
)

var labels = [...]string{
	None:     "None",
	Low:      "Low",
	Medium:   "Medium",
	High:     "High",
	Critical: "Critical",
}

// Classify returns the severity band for a score.
func Classify(score float64) Severity {
	switch {
	case score >= CriticalThreshold:
		return Critical
	case score >= HighThreshold:
		return High
	case score >= MediumThreshold:
		return Medium
	case score > 0:
		return Low
	default:
		return None
	}
}

// Max returns the more severe of a and b.
func Max(a, b Severity) Severity {
	if b > a {
		return b
	}
	return a
}

// AtLeast reports whether s is as severe as min or more.
func (s Severity) AtLeast(min Severity) bool {
	return s >= min
}

func (s Severity) String() string {
	if s < None || s > Critical {
		return fmt.Sprintf("Severity(%d)", int(s))
	}
	return labels[s]
}

// Parse converts a label back into a Severity. Matching is case-insensitive.
func Parse(label string) (Severity, error) {
	for i, l := range labels {
		if strings.EqualFold(l, label) {
			return Severity(i), nil
		}
	}
	return None, fmt.Errorf("unknown severity %q", label)
}

// MarshalText encodes the severity as its label.
func (s Severity) MarshalText() ([]byte, error) {
	if s < None || s > Critical {
		return nil, fmt.Errorf("invalid severity %d", int(s))
	}
	return []byte(labels[s]), nil
}

// UnmarshalText decodes a label produced by MarshalText.
func (s *Severity) UnmarshalText(text []byte) error {
	v, err := Parse(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}
