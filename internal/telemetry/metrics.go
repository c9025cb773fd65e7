package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels recorded for every processed event.
const (
	OutcomeIndexed = "indexed"
	OutcomeDeleted = "deleted"
	OutcomeFailed  = "failed"
	OutcomeTimeout = "timeout"
	OutcomeDropped = "dropped"
	OutcomeRetry   = "retry"
)

// Metrics holds the collectors of the indexer worker.
type Metrics struct {
	registry     *prometheus.Registry
	taskOutcomes *prometheus.CounterVec
	waitDuration *prometheus.HistogramVec
	mirrorErrors prometheus.Counter
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		taskOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ulroy",
			Subsystem: "indexer",
			Name:      "task_outcomes_total",
			Help:      "Processed indexing events by operation and outcome.",
		}, []string{"operation", "outcome"}),
		waitDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ulroy",
			Subsystem: "indexer",
			Name:      "task_wait_seconds",
			Help:      "Time spent submitting a task and waiting for it to finish.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		}, []string{"operation"}),
		mirrorErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ulroy",
			Subsystem: "indexer",
			Name:      "mirror_errors_total",
			Help:      "Failed writes to the secondary search index.",
		}),
	}
	m.registry.MustRegister(
		m.taskOutcomes,
		m.waitDuration,
		m.mirrorErrors,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) ObserveTask(operation, outcome string, took time.Duration) {
	m.taskOutcomes.WithLabelValues(operation, outcome).Inc()
	m.waitDuration.WithLabelValues(operation).Observe(took.Seconds())
}

func (m *Metrics) MirrorError() { m.mirrorErrors.Inc() }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry is exposed for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }
