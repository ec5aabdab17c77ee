package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/privacycheck/privacycheck/internal/severity"
)

// Metrics bundles prometheus collectors used by the scanner.
type Metrics struct {
	AnalysesTotal     *prometheus.CounterVec
	IssuesTotal       *prometheus.CounterVec
	ReportsGenerated  prometheus.Counter
	AutoScansTotal    *prometheus.CounterVec
	NotificationsSent prometheus.Counter
	RemediationsTotal *prometheus.CounterVec
	LastReportMaxCVSS prometheus.Gauge
	registry          *prometheus.Registry
}

func New(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		AnalysesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "privacycheck_analyses_total",
			Help: "Total number of analyses run.",
		}, []string{"kind"}),
		IssuesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "privacycheck_issues_total",
			Help: "Total number of issues found, by severity.",
		}, []string{"kind", "severity"}),
		ReportsGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "privacycheck_reports_generated_total",
			Help: "Total number of reports saved to history.",
		}),
		AutoScansTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "privacycheck_autoscans_total",
			Help: "Total number of automatic scan attempts, by outcome.",
		}, []string{"outcome"}),
		NotificationsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "privacycheck_notifications_sent_total",
			Help: "Total number of privacy alerts delivered.",
		}),
		RemediationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "privacycheck_remediations_total",
			Help: "Total number of setting changes applied, by action and outcome.",
		}, []string{"action", "outcome"}),
		LastReportMaxCVSS: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "privacycheck_last_report_max_cvss",
			Help: "Maximum CVSS score of the most recent report.",
		}),
		registry: registry,
	}

	registry.MustRegister(
		m.AnalysesTotal,
		m.IssuesTotal,
		m.ReportsGenerated,
		m.AutoScansTotal,
		m.NotificationsSent,
		m.RemediationsTotal,
		m.LastReportMaxCVSS,
	)

	return m
}

// ObserveIssue counts one issue of the given kind ("privacy" or "cookie").
func (m *Metrics) ObserveIssue(kind string, s severity.Severity) {
	m.IssuesTotal.WithLabelValues(kind, s.String()).Inc()
}

// ObserveRemediation counts one remediation attempt.
func (m *Metrics) ObserveRemediation(action string, success bool) {
	outcome := "failure"
	if success {
		outcome = "success"
	}
	m.RemediationsTotal.WithLabelValues(action, outcome).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
