// Package metrics provides Prometheus collectors for the advisor server.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder records conversation and advisor-call metrics.
// A nil *Recorder is valid and records nothing.
type Recorder struct {
	turnsTotal       *prometheus.CounterVec
	remoteCallsTotal *prometheus.CounterVec
	remoteDuration   *prometheus.HistogramVec
	onboardings      prometheus.Counter
	conversations    prometheus.Gauge
}

// NewRecorder creates collectors and registers them with reg.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		turnsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "advisor_turns_total",
				Help: "Total number of user turns by input kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		remoteCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "advisor_remote_calls_total",
				Help: "Total number of advisory service calls by operation and status",
			},
			[]string{"op", "status"},
		),
		remoteDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "advisor_remote_call_duration_seconds",
				Help:    "Duration of advisory service calls in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"op"},
		),
		onboardings: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "advisor_onboardings_completed_total",
				Help: "Total number of onboardings that reached the ready phase",
			},
		),
		conversations: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "advisor_conversations",
				Help: "Number of conversations currently held in memory",
			},
		),
	}
}

// ObserveTurn records a user turn. outcome is "accepted" or "ignored".
func (r *Recorder) ObserveTurn(kind, outcome string) {
	if r == nil {
		return
	}
	r.turnsTotal.WithLabelValues(kind, outcome).Inc()
}

// ObserveRemoteCall records a completed advisory service call.
func (r *Recorder) ObserveRemoteCall(op string, duration time.Duration, err error) {
	if r == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	r.remoteCallsTotal.WithLabelValues(op, status).Inc()
	r.remoteDuration.WithLabelValues(op).Observe(duration.Seconds())
}

// IncOnboardingCompleted counts a successful finalize.
func (r *Recorder) IncOnboardingCompleted() {
	if r == nil {
		return
	}
	r.onboardings.Inc()
}

// SetConversations reports the number of live conversations.
func (r *Recorder) SetConversations(n int) {
	if r == nil {
		return
	}
	r.conversations.Set(float64(n))
}

// Handler exposes the gathered metrics in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
