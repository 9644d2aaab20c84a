package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects the counters and gauges the scheduler, pool, and
// conflict resolver report against. A nil *Metrics is valid and every
// method is a no-op against it, so components can be built without a
// metrics backend in tests.
type Metrics struct {
	registry *prometheus.Registry

	tasksStarted   *prometheus.CounterVec
	tasksCompleted *prometheus.CounterVec
	tasksFailed    *prometheus.CounterVec
	tasksInFlight  prometheus.Gauge

	agentsSpawned *prometheus.CounterVec
	agentsActive  prometheus.Gauge

	mergesTotal *prometheus.CounterVec
}

// NewMetrics builds a Metrics instance registered against a fresh registry.
func NewMetrics(namespace string) *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.tasksStarted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "scheduler", Name: "tasks_started_total",
		Help: "Total number of tasks dispatched to an agent.",
	}, []string{"workflow_id"})

	m.tasksCompleted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "scheduler", Name: "tasks_completed_total",
		Help: "Total number of tasks that completed successfully.",
	}, []string{"workflow_id"})

	m.tasksFailed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "scheduler", Name: "tasks_failed_total",
		Help: "Total number of tasks that ended in a terminal failure (Escalate/Abort).",
	}, []string{"workflow_id", "recovery_action"})

	m.tasksInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Subsystem: "scheduler", Name: "tasks_in_flight",
		Help: "Number of tasks currently dispatched to a running agent.",
	})

	m.agentsSpawned = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "pool", Name: "agents_spawned_total",
		Help: "Total number of agents spawned by the pool.",
	}, []string{"skill"})

	m.agentsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Subsystem: "pool", Name: "agents_active",
		Help: "Number of currently active agents.",
	})

	m.mergesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "conflictresolver", Name: "merges_total",
		Help: "Total number of staging merges, by outcome.",
	}, []string{"outcome"})

	m.registry.MustRegister(
		m.tasksStarted, m.tasksCompleted, m.tasksFailed, m.tasksInFlight,
		m.agentsSpawned, m.agentsActive, m.mergesTotal,
	)
	return m
}

func (m *Metrics) TaskStarted(workflowID string) {
	if m == nil {
		return
	}
	m.tasksStarted.WithLabelValues(workflowID).Inc()
	m.tasksInFlight.Inc()
}

func (m *Metrics) TaskCompleted(workflowID string) {
	if m == nil {
		return
	}
	m.tasksCompleted.WithLabelValues(workflowID).Inc()
	m.tasksInFlight.Dec()
}

func (m *Metrics) TaskFailed(workflowID, recoveryAction string) {
	if m == nil {
		return
	}
	m.tasksFailed.WithLabelValues(workflowID, recoveryAction).Inc()
	m.tasksInFlight.Dec()
}

func (m *Metrics) AgentSpawned(skill string) {
	if m == nil {
		return
	}
	m.agentsSpawned.WithLabelValues(skill).Inc()
	m.agentsActive.Inc()
}

func (m *Metrics) AgentTerminated() {
	if m == nil {
		return
	}
	m.agentsActive.Dec()
}

func (m *Metrics) MergeRecorded(outcome string) {
	if m == nil {
		return
	}
	m.mergesTotal.WithLabelValues(outcome).Inc()
}

// Handler returns the Prometheus scrape endpoint handler.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, e.g. to add Go-runtime
// collectors at process start.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}
