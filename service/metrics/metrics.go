// Package metrics exposes Prometheus instrumentation of the orchestrator.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "chemflow"

// Metrics groups orchestrator collectors. A nil *Metrics records nothing.
type Metrics struct {
	gatherer    prometheus.Gatherer
	transitions *prometheus.CounterVec
	retries     *prometheus.CounterVec
	hostBusy    *prometheus.CounterVec
	runs        *prometheus.CounterVec
	inflight    *prometheus.GaugeVec
	step        prometheus.Histogram
}

// Transition counts a job state change
func (m *Metrics) Transition(engine, from, to string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(engine, from, to).Inc()
	if from == "staging" || from == "running" || from == "collecting" {
		m.inflight.WithLabelValues(engine).Dec()
	}
	if to == "staging" || to == "running" || to == "collecting" {
		m.inflight.WithLabelValues(engine).Inc()
	}
}

// Retry counts a scheduled automatic retry
func (m *Metrics) Retry(engine, kind string) {
	if m == nil {
		return
	}
	m.retries.WithLabelValues(engine, kind).Inc()
}

// HostBusy counts a dispatch deferred by a host concurrency cap
func (m *Metrics) HostBusy(host string) {
	if m == nil {
		return
	}
	m.hostBusy.WithLabelValues(host).Inc()
}

// RunFinished counts a run reaching a terminal state
func (m *Metrics) RunFinished(state string) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(state).Inc()
}

// ObserveStep records the duration of one orchestration step
func (m *Metrics) ObserveStep(elapsed time.Duration) {
	if m == nil {
		return
	}
	m.step.Observe(elapsed.Seconds())
}

// Handler returns the scrape handler for the registry the metrics were created with
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// New registers orchestrator collectors with registry
func New(registry *prometheus.Registry) *Metrics {
	factory := promauto.With(registry)
	return &Metrics{
		gatherer: registry,
		transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_transitions_total",
			Help:      "Job state transitions.",
		}, []string{"engine", "from", "to"}),
		retries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_retries_total",
			Help:      "Automatic job retries scheduled after transient failures.",
		}, []string{"engine", "kind"}),
		hostBusy: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "host_busy_total",
			Help:      "Dispatches deferred because a host had no free slot.",
		}, []string{"host"}),
		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_finished_total",
			Help:      "Runs that reached a terminal state.",
		}, []string{"state"}),
		inflight: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "jobs_inflight",
			Help:      "Jobs currently staging, running or collecting.",
		}, []string{"engine"}),
		step: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "step_duration_seconds",
			Help:      "Duration of one orchestration step.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}
