// Package scanner is the background worker behind every surface: it gates
// the analyses on user preferences, builds and stores reports, runs
// automatic scans on page loads and raises alerts for risky pages.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"

	"github.com/privacycheck/privacycheck/internal/cookies"
	"github.com/privacycheck/privacycheck/internal/history"
	"github.com/privacycheck/privacycheck/internal/host"
	"github.com/privacycheck/privacycheck/internal/metrics"
	"github.com/privacycheck/privacycheck/internal/notify"
	"github.com/privacycheck/privacycheck/internal/prefs"
	"github.com/privacycheck/privacycheck/internal/privacy"
	"github.com/privacycheck/privacycheck/internal/report"
	"github.com/privacycheck/privacycheck/internal/severity"
)

const (
	alertTitle      = "Privacy Alert"
	alertMessageFmt = "High privacy risks detected on %s. Open the Privacy Checker to see details."

	defaultDedupeSize = 256
)

// Auto-scan skip reasons.
const (
	SkipAutoScanOff = "auto-scan is disabled in preferences"
	SkipRateLimited = "auto-scan rate limit exceeded"
)

// Config wires the service to its collaborators. Settings, Cookies, Prefs
// and History are required.
type Config struct {
	Settings host.SettingStore
	Cookies  host.CookieSource
	Prefs    prefs.Store
	History  history.Store
	Notifier notify.Notifier
	Metrics  *metrics.Metrics
	Logger   *log.Logger

	// ScanRate and ScanBurst throttle AutoScan. A zero ScanRate disables
	// throttling.
	ScanRate   rate.Limit
	ScanBurst  int
	DedupeSize int

	// AlertLevel is the lowest severity that raises an alert. Zero means High.
	AlertLevel severity.Severity
}

// Service runs analyses and manages report history.
type Service struct {
	analyzer   *privacy.Analyzer
	remediator *privacy.Remediator
	checker    *cookies.Checker
	builder    *report.Builder
	prefs      prefs.Store
	history    history.Store
	notifier   notify.Notifier
	metrics    *metrics.Metrics
	limiter    *rate.Limiter
	alerted    *lru.Cache[string, bool]
	alertLevel severity.Severity
	logger     *log.Logger
	now        func() time.Time
}

// New creates a Service from cfg.
func New(cfg Config) (*Service, error) {
	if cfg.Settings == nil || cfg.Cookies == nil || cfg.Prefs == nil || cfg.History == nil {
		return nil, errors.New("scanner: settings, cookies, prefs and history are required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	notifier := cfg.Notifier
	if notifier == nil {
		notifier = notify.NewLogNotifier(logger)
	}
	size := cfg.DedupeSize
	if size <= 0 {
		size = defaultDedupeSize
	}
	alerted, err := lru.New[string, bool](size)
	if err != nil {
		return nil, fmt.Errorf("scanner: alert cache: %w", err)
	}

	alertLevel := cfg.AlertLevel
	if alertLevel == severity.None {
		alertLevel = severity.High
	}

	limit, burst := cfg.ScanRate, cfg.ScanBurst
	if limit == 0 {
		limit = rate.Inf
	}
	if burst <= 0 {
		burst = 1
	}

	return &Service{
		analyzer:   privacy.NewAnalyzer(cfg.Settings, logger),
		remediator: privacy.NewRemediator(cfg.Settings, logger),
		checker:    cookies.NewChecker(cfg.Cookies, logger),
		builder:    report.NewBuilder(),
		prefs:      cfg.Prefs,
		history:    cfg.History,
		notifier:   notifier,
		metrics:    cfg.Metrics,
		limiter:    rate.NewLimiter(limit, burst),
		alerted:    alerted,
		alertLevel: alertLevel,
		logger:     logger,
		now:        time.Now,
	}, nil
}

// Install writes the first-run state: default preferences and an empty history.
func (s *Service) Install(ctx context.Context) error {
	s.logger.Printf("scanner: initializing defaults")
	if err := s.prefs.Save(ctx, prefs.Defaults()); err != nil {
		return fmt.Errorf("save default preferences: %w", err)
	}
	if err := s.history.Set(ctx, []report.Report{}); err != nil {
		return fmt.Errorf("reset history: %w", err)
	}
	return nil
}

// Preferences returns the stored preferences.
func (s *Service) Preferences(ctx context.Context) (prefs.Preferences, error) {
	return s.prefs.Load(ctx)
}

// SavePreferences replaces the stored preferences.
func (s *Service) SavePreferences(ctx context.Context, p prefs.Preferences) error {
	return s.prefs.Save(ctx, p)
}

// AnalyzePrivacy evaluates the host's privacy settings. When privacy
// analysis is turned off it returns an analysis with no results.
func (s *Service) AnalyzePrivacy(ctx context.Context) (*privacy.Analysis, error) {
	p, err := s.prefs.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load preferences: %w", err)
	}
	if !p.AnalyzePrivacy {
		return privacy.Evaluate(nil, s.now()), nil
	}

	a := s.analyzer.Analyze(ctx)
	if s.metrics != nil {
		s.metrics.AnalysesTotal.WithLabelValues("privacy").Inc()
		for _, d := range a.Details {
			if d.IsIssue() {
				s.metrics.ObserveIssue("privacy", d.Severity)
			}
		}
	}
	return a, nil
}

// CheckCookies evaluates the cookies for url, or returns the disabled
// sentinel when cookie checking is turned off.
func (s *Service) CheckCookies(ctx context.Context, url string) (*cookies.Analysis, error) {
	p, err := s.prefs.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load preferences: %w", err)
	}
	if !p.CheckCookies {
		return cookies.Disabled(), nil
	}

	a, err := s.checker.Check(ctx, url)
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.AnalysesTotal.WithLabelValues("cookie").Inc()
		for _, issue := range a.Issues {
			s.metrics.ObserveIssue("cookie", issue.Severity)
		}
	}
	return a, nil
}

// ApplySetting performs one remediation action.
func (s *Service) ApplySetting(ctx context.Context, action privacy.Action) privacy.Result {
	res := s.remediator.Apply(ctx, action)
	if s.metrics != nil {
		s.metrics.ObserveRemediation(string(action), res.Success)
	}
	return res
}

// GenerateReport builds a report from the given analyses and saves it to
// history. Either analysis may be nil.
func (s *Service) GenerateReport(ctx context.Context, tab host.Tab, p *privacy.Analysis, c *cookies.Analysis) (*report.Report, error) {
	r := s.builder.Build(tab.URL, tab.Title, p, c)
	if _, err := history.Append(ctx, s.history, r); err != nil {
		return r, fmt.Errorf("save report %s: %w", r.ID, err)
	}
	if s.metrics != nil {
		s.metrics.ReportsGenerated.Inc()
		if score, err := parseScore(r.Summary.MaxCVSS); err == nil {
			s.metrics.LastReportMaxCVSS.Set(score)
		}
	}
	s.logger.Printf("scanner: saved %s for %s (%s)", r.ID, r.URL, r.OverallRiskLevel)
	return r, nil
}

// Scan runs both analyses for tab and saves the report. A cookie host
// failure is logged and the report carries the host's reason in place of
// cookie results.
func (s *Service) Scan(ctx context.Context, tab host.Tab) (*report.Report, error) {
	p, err := s.AnalyzePrivacy(ctx)
	if err != nil {
		return nil, err
	}
	c, err := s.CheckCookies(ctx, tab.URL)
	if err != nil {
		s.logger.Printf("scanner: cookies unavailable for %s: %v", tab.URL, err)
		reason := err.Error()
		var hostErr *host.Error
		if errors.As(err, &hostErr) {
			reason = hostErr.Reason
		}
		c = cookies.Failed(tab.URL, reason, s.now())
	}
	return s.GenerateReport(ctx, tab, p, c)
}

// AutoScanResult describes what an automatic scan did.
type AutoScanResult struct {
	Scanned    bool           `json:"scanned"`
	SkipReason string         `json:"skipReason,omitempty"`
	Report     *report.Report `json:"report,omitempty"`
	Notified   bool           `json:"notified"`
}

// AutoScan handles a completed page load. It scans only when auto-scan is
// enabled and the rate limiter allows, then alerts when either analysis
// reaches the alert level. Repeat alerts for the same URL and risk are suppressed.
func (s *Service) AutoScan(ctx context.Context, tab host.Tab) (*AutoScanResult, error) {
	p, err := s.prefs.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load preferences: %w", err)
	}
	if !p.AutoScan {
		s.observeAutoScan("disabled")
		return &AutoScanResult{SkipReason: SkipAutoScanOff}, nil
	}
	if !s.limiter.Allow() {
		s.observeAutoScan("rate_limited")
		s.logger.Printf("scanner: auto-scan of %s throttled", tab.URL)
		return &AutoScanResult{SkipReason: SkipRateLimited}, nil
	}

	s.logger.Printf("scanner: auto-scanning %s", tab.URL)
	r, err := s.Scan(ctx, tab)
	if err != nil {
		s.observeAutoScan("error")
		return nil, fmt.Errorf("auto-scan %s: %w", tab.URL, err)
	}
	s.observeAutoScan("scanned")

	res := &AutoScanResult{Scanned: true, Report: r}
	if !p.Notifications || !needsAlert(r, s.alertLevel) {
		return res, nil
	}

	key := r.URL + "|" + r.OverallRiskLevel.String()
	if s.alerted.Contains(key) {
		return res, nil
	}

	n := notify.Notification{
		Title:     alertTitle,
		Message:   fmt.Sprintf(alertMessageFmt, r.Title),
		URL:       r.URL,
		RiskLevel: r.OverallRiskLevel,
		ReportID:  r.ID,
		Timestamp: s.now().UTC(),
	}
	if err := s.notifier.Notify(ctx, n); err != nil {
		s.logger.Printf("scanner: notify %s: %v", r.URL, err)
		return res, nil
	}
	s.alerted.Add(key, true)
	res.Notified = true
	if s.metrics != nil {
		s.metrics.NotificationsSent.Inc()
	}
	return res, nil
}

func needsAlert(r *report.Report, level severity.Severity) bool {
	if r.PrivacyResults != nil && r.PrivacyResults.Summary.RiskLevel.AtLeast(level) {
		return true
	}
	return r.CookieResults.Performed() && r.CookieResults.Severity.AtLeast(level)
}

func parseScore(s string) (float64, error) {
	return strconv.ParseFloat(s, 64)
}

func (s *Service) observeAutoScan(outcome string) {
	if s.metrics != nil {
		s.metrics.AutoScansTotal.WithLabelValues(outcome).Inc()
	}
}

// History returns the saved reports, newest first.
func (s *Service) History(ctx context.Context) ([]report.Report, error) {
	return s.history.Get(ctx)
}

// Report returns one saved report.
func (s *Service) Report(ctx context.Context, id string) (*report.Report, error) {
	return history.Find(ctx, s.history, id)
}

// ClearHistory deletes every saved report.
func (s *Service) ClearHistory(ctx context.Context) error {
	s.logger.Printf("scanner: clearing history")
	return s.history.Clear(ctx)
}
