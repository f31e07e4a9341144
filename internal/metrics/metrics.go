// Package metrics provides Prometheus metrics for logsentinel.
package metrics

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bryanwahyu/logsentinel/internal/domain/analysis"
)

const namespace = "sentinel"

// Analysis metrics
var (
	// SubmissionsTotal counts terminal submission outcomes.
	SubmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "submissions_total",
			Help:      "Total submissions by outcome",
		},
		[]string{"outcome"},
	)

	// AnomaliesTotal counts anomalous verdicts by criticality tier.
	AnomaliesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "anomalies_total",
			Help:      "Total anomalies detected by criticality tier",
		},
		[]string{"tier"},
	)

	// ServiceDuration tracks round-trip latency to the analysis service.
	ServiceDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "service_duration_seconds",
			Help:      "Analysis service round-trip latency in seconds",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"status"},
	)

	// SessionsActive tracks live console sessions.
	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "console",
			Name:      "sessions_active",
			Help:      "Number of console sessions holding a controller",
		},
	)
)

// HTTP metrics
var (
	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration tracks HTTP request latency.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// HTTPRequestsInFlight tracks concurrent HTTP requests.
	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_in_flight",
			Help:      "Number of HTTP requests currently being processed",
		},
	)
)

// OutcomeLabel maps a failure to a bounded label value; nil means success.
func OutcomeLabel(f *analysis.Failure) string {
	if f == nil {
		return "success"
	}
	switch {
	case errors.Is(f, analysis.ErrEmptyInput):
		return "empty_input"
	case errors.Is(f, analysis.ErrServiceUnreachable):
		return "service_unreachable"
	case errors.Is(f, analysis.ErrServiceError):
		return "service_error"
	case errors.Is(f, analysis.ErrMalformedResponse):
		return "malformed_response"
	default:
		return "unknown"
	}
}

// Observer feeds controller transitions into the analysis counters.
type Observer struct{}

func (Observer) Completed(_ context.Context, entry analysis.HistoryEntry) {
	SubmissionsTotal.WithLabelValues(OutcomeLabel(nil)).Inc()
	if entry.Result.IsAnomaly {
		AnomaliesTotal.WithLabelValues(analysis.TierOf(entry.Result.Criticality).String()).Inc()
	}
}

func (Observer) Rejected(_ context.Context, _ string, f *analysis.Failure) {
	SubmissionsTotal.WithLabelValues(OutcomeLabel(f)).Inc()
}
