package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttempts records login attempts by result (success|failure|locked).
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workpass_auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"result"},
	)

	// OTPIssued counts code issuance by outcome (issued|cooldown|rejected).
	OTPIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workpass_otp_issued_total",
			Help: "Total number of one-time code issue requests",
		},
		[]string{"result"},
	)

	// OTPVerifications counts verification attempts by outcome
	// (verified|incorrect|expired|missing|locked).
	OTPVerifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workpass_otp_verifications_total",
			Help: "Total number of one-time code verification attempts",
		},
		[]string{"result"},
	)

	// ReviewDecisions counts admin decisions on manual requests and waitlist entries.
	ReviewDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workpass_review_decisions_total",
			Help: "Total number of admin review decisions",
		},
		[]string{"queue", "decision"},
	)

	// Provisioning counts account provisioning outcomes (created|compensated|failed).
	Provisioning = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workpass_provisioning_total",
			Help: "Total number of account provisioning attempts",
		},
		[]string{"source", "result"},
	)

	// NotificationFailures counts best-effort notifications that could not be delivered.
	NotificationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workpass_notification_failures_total",
			Help: "Total number of notifications that failed to send",
		},
		[]string{"kind"},
	)

	// DependencyUp is 1 when the last readiness probe of a dependency succeeded.
	DependencyUp = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "workpass_dependency_up",
			Help: "Whether a backing dependency answered its last readiness probe",
		},
		[]string{"component"},
	)

	// InFlightRequests counts requests currently being served.
	InFlightRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "workpass_http_in_flight_requests",
			Help: "Requests currently being served",
		},
	)

	// PanicsRecovered counts handler panics turned into 500 responses.
	PanicsRecovered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "workpass_http_panics_recovered_total",
			Help: "Handler panics recovered by the HTTP middleware",
		},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "workpass_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
