package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the session module.
type Metrics struct {
	// Stage settlement latencies by stage and status
	StageLatency *prometheus.HistogramVec

	// Final decision outcomes by outcome and tier
	DecisionOutcome *prometheus.CounterVec

	// Sessions that hit their deadline before deciding
	Expirations prometheus.Counter

	// Currently non-terminal sessions
	ActiveSessions prometheus.Gauge
}

// New creates a new Metrics instance with all session module metrics registered.
func New() *Metrics {
	return &Metrics{
		StageLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "zenid_session_stage_duration_seconds",
			Help:    "Duration from session creation to stage settlement",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"stage", "status"}),

		DecisionOutcome: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "zenid_session_decisions_total",
			Help: "Total final decisions by outcome and tier",
		}, []string{"outcome", "tier"}),

		Expirations: promauto.NewCounter(prometheus.CounterOpts{
			Name: "zenid_session_expirations_total",
			Help: "Sessions expired before reaching a decision",
		}),

		ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "zenid_session_active",
			Help: "Sessions currently in a non-terminal phase",
		}),
	}
}

// ObserveStageLatency records how long a stage took to settle.
func (m *Metrics) ObserveStageLatency(stage, status string, d time.Duration) {
	if m != nil {
		m.StageLatency.WithLabelValues(stage, status).Observe(d.Seconds())
	}
}

// IncrementDecision records a final decision.
func (m *Metrics) IncrementDecision(outcome, tier string) {
	if m != nil {
		m.DecisionOutcome.WithLabelValues(outcome, tier).Inc()
	}
}

// IncrementExpirations records a session deadline expiry.
func (m *Metrics) IncrementExpirations() {
	if m != nil {
		m.Expirations.Inc()
	}
}

// SessionStarted and SessionSettled track the active session gauge.
func (m *Metrics) SessionStarted() {
	if m != nil {
		m.ActiveSessions.Inc()
	}
}

func (m *Metrics) SessionSettled() {
	if m != nil {
		m.ActiveSessions.Dec()
	}
}
