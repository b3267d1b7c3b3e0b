// Package metrics maps the scheduler's event stream onto Prometheus
// collectors so deadline misses and overruns show up on a dashboard
// instead of only in logs.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"edfsched/internal/sched"
)

// Collector aggregates scheduling events into Prometheus metrics.
type Collector struct {
	registry *prometheus.Registry

	admitted   prometheus.Counter
	rejected   prometheus.Counter
	dispatched prometheus.Counter
	deferred   prometheus.Counter
	misses     prometheus.Counter
	xruns      prometheus.Counter
	completed  prometheus.Counter

	queued      prometheus.Gauge
	dispatchLag prometheus.Histogram

	tickSeconds float64
}

// NewCollector builds a collector for a clock running at tickHZ.
func NewCollector(tickHZ int) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		admitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "edfsched_tasks_admitted_total",
			Help: "Tasks admitted to the scheduler registry.",
		}),
		rejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "edfsched_admissions_rejected_total",
			Help: "Admissions refused because the task was running.",
		}),
		dispatched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "edfsched_tasks_dispatched_total",
			Help: "Task bodies executed by the dispatcher.",
		}),
		deferred: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "edfsched_dispatches_deferred_total",
			Help: "Dispatch rounds that armed a future wake-up instead of running.",
		}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "edfsched_deadline_misses_total",
			Help: "Deadline misses repaired by rescheduling.",
		}),
		xruns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "edfsched_xruns_total",
			Help: "Unrecoverable deadline misses; the task was cancelled.",
		}),
		completed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "edfsched_tasks_completed_total",
			Help: "Tasks that completed and left the registry.",
		}),
		queued: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "edfsched_tasks_queued",
			Help: "Tasks currently on the scheduler registry.",
		}),
		dispatchLag: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "edfsched_dispatch_lag_seconds",
			Help:    "Delay between a task's start tick and its dispatch.",
			Buckets: prometheus.ExponentialBuckets(1e-6, 4, 12),
		}),
		tickSeconds: 1 / float64(tickHZ),
	}

	c.registry.MustRegister(c.admitted, c.rejected, c.dispatched, c.deferred,
		c.misses, c.xruns, c.completed, c.queued, c.dispatchLag)
	return c
}

// Observe folds one event into the metrics.
func (c *Collector) Observe(ev sched.Event) {
	switch ev.Kind {
	case sched.EventAdmit:
		c.admitted.Inc()
	case sched.EventReject:
		c.rejected.Inc()
	case sched.EventDispatch:
		c.dispatched.Inc()
		if ev.Tick >= ev.Start {
			c.dispatchLag.Observe(float64(ev.Tick-ev.Start) * c.tickSeconds)
		}
	case sched.EventDefer:
		c.deferred.Inc()
	case sched.EventMiss:
		c.misses.Inc()
	case sched.EventXrun:
		c.xruns.Inc()
	case sched.EventComplete, sched.EventDelete:
		c.completed.Inc()
	}
	c.queued.Set(float64(ev.Queued))
}

// Handler exposes the metrics in Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
