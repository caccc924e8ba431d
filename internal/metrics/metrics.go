// Package metrics exposes scheduler activity as Prometheus metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"cadence/internal/task"
)

const namespace = "cadence"

// Metrics holds the collectors on a private registry.
// It satisfies scheduler.Observer and poller.Recorder.
type Metrics struct {
	reg *prometheus.Registry

	ticks        prometheus.Counter
	tickDuration prometheus.Histogram
	executions   *prometheus.CounterVec
	evictions    prometheus.Counter
	registered   prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_total",
			Help:      "Polling ticks run.",
		}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tick_duration_seconds",
			Help:      "Wall time of one polling tick, payloads included.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 10),
		}),
		executions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "task_executions_total",
			Help:      "Task executions by task name.",
		}, []string{"task"}),
		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "task_evictions_total",
			Help:      "Tasks evicted after expiring.",
		}),
		registered: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tasks_registered",
			Help:      "Tasks currently in the registry.",
		}),
	}
	m.reg.MustRegister(
		m.ticks, m.tickDuration, m.executions, m.evictions, m.registered,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the private registry (for handlers and tests).
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

func (m *Metrics) TickObserved(took time.Duration, registered int) {
	m.ticks.Inc()
	m.tickDuration.Observe(took.Seconds())
	m.registered.Set(float64(registered))
}

func (m *Metrics) TaskAdded(*task.Task) { m.registered.Inc() }

func (m *Metrics) TaskRemoved(t *task.Task) {
	m.registered.Dec()
	m.executions.DeleteLabelValues(t.Name())
}

func (m *Metrics) TaskExecuted(t *task.Task) { m.executions.WithLabelValues(t.Name()).Inc() }

func (m *Metrics) TaskEvicted(t *task.Task) {
	m.evictions.Inc()
	m.registered.Dec()
	m.executions.DeleteLabelValues(t.Name())
}
