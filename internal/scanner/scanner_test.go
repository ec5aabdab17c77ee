package scanner

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/privacycheck/privacycheck/internal/history"
	"github.com/privacycheck/privacycheck/internal/host"
	"github.com/privacycheck/privacycheck/internal/metrics"
	"github.com/privacycheck/privacycheck/internal/notify"
	"github.com/privacycheck/privacycheck/internal/prefs"
	"github.com/privacycheck/privacycheck/internal/privacy"
	"github.com/privacycheck/privacycheck/internal/severity"
)

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notify.Notification
	err  error
}

func (r *recordingNotifier) Notify(_ context.Context, n notify.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, n)
	return nil
}

type fixture struct {
	svc      *Service
	host     *host.Static
	prefs    *prefs.MemoryStore
	history  *history.MemoryStore
	notifier *recordingNotifier
}

func riskyHost() *host.Static {
	h := host.NewStatic(map[host.SettingID]bool{
		privacy.SettingThirdPartyCookies: true,
		privacy.SettingDoNotTrack:        false,
		privacy.SettingJavascript:        true,
		privacy.SettingHyperlinkAuditing: true,
	})
	h.SetCookies("", []host.Cookie{
		{Name: "sid", Domain: "shop.example", Secure: true, HTTPOnly: true},
		{Name: "_ga", Domain: ".shop.example"},
	})
	return h
}

func newFixture(t *testing.T, p prefs.Preferences, mutate func(*Config)) *fixture {
	t.Helper()
	f := &fixture{
		host:     riskyHost(),
		prefs:    prefs.NewMemoryStore(p),
		history:  history.NewMemoryStore(),
		notifier: &recordingNotifier{},
	}
	cfg := Config{
		Settings: f.host,
		Cookies:  f.host,
		Prefs:    f.prefs,
		History:  f.history,
		Notifier: f.notifier,
		Metrics:  metrics.New(prometheus.NewRegistry()),
		Logger:   log.New(io.Discard, "", 0),
	}
	if mutate != nil {
		mutate(&cfg)
	}
	svc, err := New(cfg)
	require.NoError(t, err)
	f.svc = svc
	return f
}

var shop = host.Tab{URL: "https://shop.example/", Title: "Shop"}

func autoScanPrefs() prefs.Preferences {
	p := prefs.Defaults()
	p.AutoScan = true
	return p
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestInstall(t *testing.T) {
	f := newFixture(t, prefs.Preferences{}, nil)
	ctx := context.Background()
	_, err := f.svc.Scan(ctx, shop)
	require.NoError(t, err)

	require.NoError(t, f.svc.Install(ctx))

	p, _ := f.prefs.Load(ctx)
	assert.Equal(t, prefs.Defaults(), p)
	reports, _ := f.history.Get(ctx)
	assert.Empty(t, reports)
}

func TestAnalyzePrivacy(t *testing.T) {
	f := newFixture(t, prefs.Defaults(), nil)
	a, err := f.svc.AnalyzePrivacy(context.Background())
	require.NoError(t, err)

	assert.Len(t, a.Details, 4)
	assert.Equal(t, 4, a.Summary.TotalIssues)
	assert.Equal(t, 6.5, a.Summary.MaxCVSS)
	assert.Equal(t, severity.Medium, a.Summary.RiskLevel)
}

func TestAnalyzePrivacy_Disabled(t *testing.T) {
	p := prefs.Defaults()
	p.AnalyzePrivacy = false
	f := newFixture(t, p, nil)

	a, err := f.svc.AnalyzePrivacy(context.Background())
	require.NoError(t, err)
	assert.Empty(t, a.Details)
	assert.Equal(t, severity.None, a.Summary.RiskLevel)
}

func TestCheckCookies_Disabled(t *testing.T) {
	p := prefs.Defaults()
	p.CheckCookies = false
	f := newFixture(t, p, nil)
	f.host.FailCookies(errors.New("must not be called"))

	c, err := f.svc.CheckCookies(context.Background(), shop.URL)
	require.NoError(t, err)
	assert.True(t, c.Disabled)
	assert.Equal(t, "Cookie checking is disabled in preferences", c.Message)
}

func TestCheckCookies_HostFailure(t *testing.T) {
	f := newFixture(t, prefs.Defaults(), nil)
	f.host.FailCookies(errors.New("profile locked"))

	_, err := f.svc.CheckCookies(context.Background(), shop.URL)
	assert.Error(t, err)
}

func TestScan_SavesReportNewestFirst(t *testing.T) {
	f := newFixture(t, prefs.Defaults(), nil)
	ctx := context.Background()

	first, err := f.svc.Scan(ctx, shop)
	require.NoError(t, err)
	second, err := f.svc.Scan(ctx, host.Tab{URL: "https://news.example/"})
	require.NoError(t, err)

	reports, err := f.svc.History(ctx)
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, second.ID, reports[0].ID)
	assert.Equal(t, first.ID, reports[1].ID)
	assert.Equal(t, "https://news.example/", reports[0].Title)

	got, err := f.svc.Report(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "Shop", got.Title)
}

func TestScan_CookieFailureStillReports(t *testing.T) {
	f := newFixture(t, prefs.Defaults(), nil)
	f.host.FailCookies(errors.New("profile locked"))

	r, err := f.svc.Scan(context.Background(), shop)
	require.NoError(t, err)
	require.NotNil(t, r.CookieResults)
	assert.False(t, r.CookieResults.Performed())
	assert.Equal(t, "profile locked", r.CookieResults.FailureReason())
	assert.Zero(t, r.Summary.CookieIssues)
	assert.NotNil(t, r.PrivacyResults)
	assert.Equal(t, "6.5", r.Summary.MaxCVSS)
}

func TestClearHistory(t *testing.T) {
	f := newFixture(t, prefs.Defaults(), nil)
	ctx := context.Background()
	_, err := f.svc.Scan(ctx, shop)
	require.NoError(t, err)

	require.NoError(t, f.svc.ClearHistory(ctx))
	reports, err := f.svc.History(ctx)
	require.NoError(t, err)
	assert.Empty(t, reports)
}

func TestApplySetting(t *testing.T) {
	f := newFixture(t, prefs.Defaults(), nil)
	ctx := context.Background()

	res := f.svc.ApplySetting(ctx, privacy.ActionEnableDoNotTrack)
	assert.True(t, res.Success)
	v, err := f.host.GetSetting(ctx, privacy.SettingDoNotTrack)
	require.NoError(t, err)
	assert.True(t, v)

	res = f.svc.ApplySetting(ctx, "rebootBrowser")
	assert.False(t, res.Success)
	assert.Equal(t, "Unknown setting type", res.Message)
}

func TestAutoScan_Disabled(t *testing.T) {
	f := newFixture(t, prefs.Defaults(), nil)

	res, err := f.svc.AutoScan(context.Background(), shop)
	require.NoError(t, err)
	assert.False(t, res.Scanned)
	assert.Equal(t, SkipAutoScanOff, res.SkipReason)

	reports, _ := f.history.Get(context.Background())
	assert.Empty(t, reports)
}

func TestAutoScan_DefaultLevelDoesNotAlertOnMedium(t *testing.T) {
	f := newFixture(t, autoScanPrefs(), nil)

	res, err := f.svc.AutoScan(context.Background(), shop)
	require.NoError(t, err)
	assert.True(t, res.Scanned)
	require.NotNil(t, res.Report)
	assert.Equal(t, severity.Medium, res.Report.OverallRiskLevel)
	assert.False(t, res.Notified)
	assert.Empty(t, f.notifier.sent)
}

func TestAutoScan_AlertsOncePerURLAndRisk(t *testing.T) {
	f := newFixture(t, autoScanPrefs(), func(c *Config) { c.AlertLevel = severity.Medium })
	ctx := context.Background()

	res, err := f.svc.AutoScan(ctx, shop)
	require.NoError(t, err)
	assert.True(t, res.Notified)
	require.Len(t, f.notifier.sent, 1)

	n := f.notifier.sent[0]
	assert.Equal(t, "Privacy Alert", n.Title)
	assert.Equal(t, "High privacy risks detected on Shop. Open the Privacy Checker to see details.", n.Message)
	assert.Equal(t, res.Report.ID, n.ReportID)

	again, err := f.svc.AutoScan(ctx, shop)
	require.NoError(t, err)
	assert.True(t, again.Scanned)
	assert.False(t, again.Notified)
	assert.Len(t, f.notifier.sent, 1)

	reports, _ := f.history.Get(ctx)
	assert.Len(t, reports, 2)
}

func TestAutoScan_NotificationsOff(t *testing.T) {
	p := autoScanPrefs()
	p.Notifications = false
	f := newFixture(t, p, func(c *Config) { c.AlertLevel = severity.Medium })

	res, err := f.svc.AutoScan(context.Background(), shop)
	require.NoError(t, err)
	assert.True(t, res.Scanned)
	assert.False(t, res.Notified)
	assert.Empty(t, f.notifier.sent)
}

func TestAutoScan_NotifierFailureIsNotFatal(t *testing.T) {
	f := newFixture(t, autoScanPrefs(), func(c *Config) { c.AlertLevel = severity.Medium })
	f.notifier.err = errors.New("bus down")

	res, err := f.svc.AutoScan(context.Background(), shop)
	require.NoError(t, err)
	assert.True(t, res.Scanned)
	assert.False(t, res.Notified)
}

func TestAutoScan_RateLimited(t *testing.T) {
	f := newFixture(t, autoScanPrefs(), func(c *Config) {
		c.ScanRate = rate.Limit(0.0001)
		c.ScanBurst = 1
	})
	ctx := context.Background()

	first, err := f.svc.AutoScan(ctx, shop)
	require.NoError(t, err)
	assert.True(t, first.Scanned)

	second, err := f.svc.AutoScan(ctx, shop)
	require.NoError(t, err)
	assert.False(t, second.Scanned)
	assert.Equal(t, SkipRateLimited, second.SkipReason)
}

func TestNeedsAlert_IgnoresDisabledCookies(t *testing.T) {
	f := newFixture(t, prefs.Defaults(), nil)
	r := f.svc.builder.Build(shop.URL, shop.Title, nil, nil)
	assert.False(t, needsAlert(r, severity.Low))
}
