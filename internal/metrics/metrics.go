// Package metrics exposes Prometheus counters for the authentication
// lifecycle. A nil *Recorder is valid and records nothing, so embedders that
// do not export metrics pass nil.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Result label values.
const (
	ResultSuccess   = "success"
	ResultCancelled = "cancelled"
	ResultTimeout   = "timeout"
	ResultFailed    = "failed"
	ResultRejected  = "rejected"
	ResultExpired   = "expired"
	ResultTransient = "transient"
)

// Refresh trigger label values.
const (
	TriggerStartup   = "startup"
	TriggerScheduled = "scheduled"
	TriggerManual    = "manual"
	TriggerOnDemand  = "on_demand"
)

// Backend label values for sign-out.
const (
	BackendNotified = "notified"
	BackendFailed   = "failed"
	BackendSkipped  = "skipped"
)

// Recorder holds the auth metrics of one manager.
type Recorder struct {
	signIns        *prometheus.CounterVec
	signInDuration prometheus.Histogram
	refreshes      *prometheus.CounterVec
	signOuts       *prometheus.CounterVec
}

// NewRecorder creates the metrics and registers them with reg.
// Panics if registration fails (following prometheus convention).
func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		signIns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spherekit_sign_ins_total",
				Help: "Total number of interactive sign-in attempts",
			},
			[]string{"result"},
		),
		signInDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "spherekit_sign_in_duration_seconds",
				Help:    "Time from sign-in start until it completed or failed",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
		),
		refreshes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spherekit_token_refreshes_total",
				Help: "Total number of access token refresh attempts",
			},
			[]string{"trigger", "result"},
		),
		signOuts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spherekit_sign_outs_total",
				Help: "Total number of sign-outs by backend notification outcome",
			},
			[]string{"backend"},
		),
	}

	reg.MustRegister(r.signIns, r.signInDuration, r.refreshes, r.signOuts)
	return r
}

// SignIn records the outcome of one sign-in attempt.
func (r *Recorder) SignIn(result string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.signIns.WithLabelValues(result).Inc()
	r.signInDuration.Observe(elapsed.Seconds())
}

// Refresh records one refresh attempt.
func (r *Recorder) Refresh(trigger, result string) {
	if r == nil {
		return
	}
	r.refreshes.WithLabelValues(trigger, result).Inc()
}

// SignOut records one sign-out.
func (r *Recorder) SignOut(backend string) {
	if r == nil {
		return
	}
	r.signOuts.WithLabelValues(backend).Inc()
}
