// Package cookies tallies the cookies a page sets and turns the tallies into
// scored issues.
package cookies

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/privacycheck/privacycheck/internal/host"
	"github.com/privacycheck/privacycheck/internal/severity"
)

// Record is one cookie as reported by the host.
type Record = host.Cookie

// IssueType tags the rule that produced an Issue.
type IssueType string

const (
	IssueExcessive  IssueType = "excessive_cookies"
	IssueInsecure   IssueType = "insecure_cookies"
	IssueNonHTTP    IssueType = "non_httponly_cookies"
	IssueThirdParty IssueType = "third_party_cookies"
	IssueLongExpiry IssueType = "long_expiry_cookies"
)

const (
	// ExcessiveThreshold is the cookie count above which a page is flagged.
	ExcessiveThreshold = 20
	// LongExpiryWindow is how far past evaluation time an expiry must be to
	// count as long-lived.
	LongExpiryWindow = 30 * 24 * time.Hour

	sameSiteNone = "no_restriction"
)

// Issue is a single cookie finding.
type Issue struct {
	Type           IssueType         `json:"type"`
	Message        string            `json:"message"`
	Count          int               `json:"count"`
	Recommendation string            `json:"recommendation"`
	CVSS           float64           `json:"cvss"`
	Severity       severity.Severity `json:"severity"`
}

// Analysis is the cookie assessment for one URL at one instant.
type Analysis struct {
	Timestamp  time.Time         `json:"timestamp"`
	URL        string            `json:"url"`
	TotalCount int               `json:"totalCount"`
	Secure     int               `json:"secure"`
	HTTPOnly   int               `json:"httpOnly"`
	ThirdParty int               `json:"thirdParty"`
	SameSite   int               `json:"sameSite"`
	LongExpiry int               `json:"longExpiry"`
	Issues     []Issue           `json:"issues"`
	CVSSScore  float64           `json:"cvssScore"`
	Severity   severity.Severity `json:"severity"`

	Disabled bool   `json:"disabled,omitempty"`
	Message  string `json:"message,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Disabled returns the sentinel used when cookie checking is turned off.
func Disabled() *Analysis {
	return &Analysis{
		Disabled: true,
		Message:  "Cookie checking is disabled in preferences",
		Issues:   []Issue{},
	}
}

// Failed returns the result recorded when the host could not enumerate
// cookies. It carries the host's reason and no tallies.
func Failed(url, reason string, now time.Time) *Analysis {
	return &Analysis{
		Timestamp: now.UTC(),
		URL:       url,
		Issues:    []Issue{},
		Error:     reason,
	}
}

// Performed reports whether a is a real analysis rather than absent, the
// disabled sentinel or a host failure.
func (a *Analysis) Performed() bool {
	return a != nil && !a.Disabled && a.Error == ""
}

// FailureReason is the host's error for a failed analysis, or "".
func (a *Analysis) FailureReason() string {
	if a == nil {
		return ""
	}
	return a.Error
}

type rule struct {
	typ            IssueType
	message        string
	recommendation string
	score          float64
	count          func(a *Analysis) int
}

// rules are evaluated unconditionally, in this order. A rule fires when its
// count is positive.
var rules = []rule{
	{
		typ:            IssueExcessive,
		message:        "High number of cookies detected",
		recommendation: "Consider reviewing and removing unnecessary cookies",
		score:          3.5,
		count: func(a *Analysis) int {
			if a.TotalCount > ExcessiveThreshold {
				return a.TotalCount
			}
			return 0
		},
	},
	{
		typ:            IssueInsecure,
		message:        "Not all cookies use secure flag",
		recommendation: "Use HTTPS to secure all cookies",
		score:          6.8,
		count:          func(a *Analysis) int { return a.TotalCount - a.Secure },
	},
	{
		typ:            IssueNonHTTP,
		message:        "Some cookies are accessible via JavaScript",
		recommendation: "Use HttpOnly flag for cookies that don't need JavaScript access",
		score:          5.4,
		count:          func(a *Analysis) int { return a.TotalCount - a.HTTPOnly },
	},
	{
		typ:            IssueThirdParty,
		message:        "Third-party cookies detected",
		recommendation: "Review third-party cookies for potential privacy concerns",
		score:          6.5,
		count:          func(a *Analysis) int { return a.ThirdParty },
	},
	{
		typ:            IssueLongExpiry,
		message:        "Cookies with long expiration detected",
		recommendation: "Consider using session cookies or shorter expiry times",
		score:          2.8,
		count:          func(a *Analysis) int { return a.LongExpiry },
	},
}

// Evaluate tallies records and applies the threshold rules. It is pure:
// the same records and instant always give the same result.
func Evaluate(url string, records []Record, now time.Time) *Analysis {
	a := &Analysis{
		Timestamp:  now.UTC(),
		URL:        url,
		TotalCount: len(records),
		Issues:     []Issue{},
	}

	ct := now.Add(LongExpiryWindow)
	cutoff := float64(ct.Unix()) + float64(ct.Nanosecond())/float64(time.Second)
	for _, c := range records {
		if c.Secure {
			a.Secure++
		}
		if c.HTTPOnly {
			a.HTTPOnly++
		}
		if strings.HasPrefix(c.Domain, ".") {
			a.ThirdParty++
		}
		if c.SameSite != "" && c.SameSite != sameSiteNone {
			a.SameSite++
		}
		// Compared as floats: JSON exports may carry expiries past int64 range.
		if c.ExpirationDate != nil && *c.ExpirationDate > cutoff {
			a.LongExpiry++
		}
	}

	for _, r := range rules {
		n := r.count(a)
		if n <= 0 {
			continue
		}
		a.Issues = append(a.Issues, Issue{
			Type:           r.typ,
			Message:        r.message,
			Count:          n,
			Recommendation: r.recommendation,
			CVSS:           r.score,
			Severity:       severity.Classify(r.score),
		})
		if r.score > a.CVSSScore {
			a.CVSSScore = r.score
		}
	}
	a.Severity = severity.Classify(a.CVSSScore)
	return a
}

// Checker fetches cookies from the host and evaluates them.
type Checker struct {
	source host.CookieSource
	logger *log.Logger
	now    func() time.Time
}

// NewChecker creates a Checker. A nil logger uses log.Default().
func NewChecker(source host.CookieSource, logger *log.Logger) *Checker {
	if logger == nil {
		logger = log.Default()
	}
	return &Checker{source: source, logger: logger, now: time.Now}
}

// Check evaluates the cookies for url. Host failures are returned as the
// host's *host.Error.
func (c *Checker) Check(ctx context.Context, url string) (*Analysis, error) {
	records, err := c.source.GetCookies(ctx, url)
	if err != nil {
		c.logger.Printf("cookies: enumerate %s: %v", url, err)
		return nil, err
	}
	return Evaluate(url, records, c.now()), nil
}
