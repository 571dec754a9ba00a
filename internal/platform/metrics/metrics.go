package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	SignupsAccepted    prometheus.Counter
	SignupConflicts    *prometheus.CounterVec
	ValidationFailures prometheus.Counter
	RateLimited        prometheus.Counter
	SubmitLatency      prometheus.Histogram
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		SignupsAccepted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "waitlistd_signups_accepted_total",
			Help: "Total number of accepted waitlist sign-ups",
		}),
		SignupConflicts: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "waitlistd_signup_conflicts_total",
			Help: "Total number of sign-ups rejected as duplicates, by attribute kind",
		}, []string{"kind"}),
		ValidationFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "waitlistd_validation_failures_total",
			Help: "Total number of sign-ups rejected by validation",
		}),
		RateLimited: promauto.NewCounter(prometheus.CounterOpts{
			Name: "waitlistd_rate_limited_total",
			Help: "Total number of submissions rejected by the rate limiter",
		}),
		SubmitLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "waitlistd_submit_duration_seconds",
			Help:    "Latency of submission handling",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// IncrementAccepted increments the accepted sign-ups counter by 1.
func (m *Metrics) IncrementAccepted() {
	m.SignupsAccepted.Inc()
}

// IncrementConflict records a duplicate rejection for the given kind ("email" or "phone").
func (m *Metrics) IncrementConflict(kind string) {
	m.SignupConflicts.WithLabelValues(kind).Inc()
}

// IncrementValidationFailure increments the validation failure counter by 1.
func (m *Metrics) IncrementValidationFailure() {
	m.ValidationFailures.Inc()
}

// IncrementRateLimited increments the rate-limited counter by 1.
func (m *Metrics) IncrementRateLimited() {
	m.RateLimited.Inc()
}

// ObserveSubmit records the duration of one submission.
func (m *Metrics) ObserveSubmit(d time.Duration) {
	m.SubmitLatency.Observe(d.Seconds())
}
