package api

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/queuectl/queuectl/job"
)

// collector is queuectl's Prometheus instrumentation: a handful of
// monotonic counters driven by the queuectl.Metrics hook, plus gauges
// that are recomputed from Core.Status on every scrape rather than kept
// up to date incrementally, since Core already holds the authoritative
// counts and a scrape is rare enough that the extra query is free.
type collector struct {
	jobsEnqueued   prometheus.Counter
	jobsDispatched prometheus.Counter
	jobsCompleted  prometheus.Counter
	jobsFailed     prometheus.Counter
	jobsDead       prometheus.Counter

	statusFn func(ctx context.Context) (jobs map[job.State]int, workers workerCounts, err error)

	jobsPending    *prometheus.Desc
	jobsProcessing *prometheus.Desc
	workersIdle    *prometheus.Desc
	workersLive    *prometheus.Desc
}

// workerCounts mirrors pool.Stats without importing pool, so this file
// has exactly one caller-supplied dependency: a function back onto Core.
type workerCounts struct {
	Processing int
	Idle       int
	Live       int
}

func newCollector(statusFn func(ctx context.Context) (map[job.State]int, workerCounts, error)) *collector {
	c := &collector{
		jobsEnqueued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "queuectl_jobs_enqueued_total",
			Help: "Total number of jobs accepted by Enqueue.",
		}),
		jobsDispatched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "queuectl_jobs_dispatched_total",
			Help: "Total number of jobs handed to a worker by the scheduler.",
		}),
		jobsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "queuectl_jobs_completed_total",
			Help: "Total number of jobs that reached the completed state.",
		}),
		jobsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "queuectl_jobs_failed_total",
			Help: "Total number of failed replies observed from a worker, including ones that were retried.",
		}),
		jobsDead: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "queuectl_jobs_dead_total",
			Help: "Total number of jobs that reached the dead state.",
		}),
		statusFn: statusFn,
		jobsPending: prometheus.NewDesc(
			"queuectl_jobs_pending", "Current number of pending jobs.", nil, nil),
		jobsProcessing: prometheus.NewDesc(
			"queuectl_jobs_processing", "Current number of processing jobs.", nil, nil),
		workersIdle: prometheus.NewDesc(
			"queuectl_workers_idle", "Current number of idle workers.", nil, nil),
		workersLive: prometheus.NewDesc(
			"queuectl_workers_live", "Current number of live workers (idle + processing).", nil, nil),
	}
	return c
}

func (c *collector) register(reg prometheus.Registerer) {
	reg.MustRegister(c.jobsEnqueued, c.jobsDispatched, c.jobsCompleted, c.jobsFailed, c.jobsDead, c)
}

// Describe implements prometheus.Collector.
func (c *collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.jobsPending
	ch <- c.jobsProcessing
	ch <- c.workersIdle
	ch <- c.workersLive
}

// Collect implements prometheus.Collector: it queries Core.Status once
// per scrape and emits the current gauge values. A status query failure
// simply skips this scrape's gauges; the counters registered alongside
// it are unaffected.
func (c *collector) Collect(ch chan<- prometheus.Metric) {
	jobs, workers, err := c.statusFn(context.Background())
	if err != nil {
		return
	}
	ch <- prometheus.MustNewConstMetric(c.jobsPending, prometheus.GaugeValue, float64(jobs[job.Pending]))
	ch <- prometheus.MustNewConstMetric(c.jobsProcessing, prometheus.GaugeValue, float64(jobs[job.Processing]))
	ch <- prometheus.MustNewConstMetric(c.workersIdle, prometheus.GaugeValue, float64(workers.Idle))
	ch <- prometheus.MustNewConstMetric(c.workersLive, prometheus.GaugeValue, float64(workers.Live))
}

// The methods below implement queuectl.Metrics.

func (c *collector) JobEnqueued()   { c.jobsEnqueued.Inc() }
func (c *collector) JobDispatched() { c.jobsDispatched.Inc() }
func (c *collector) JobCompleted()  { c.jobsCompleted.Inc() }
func (c *collector) JobFailed()     { c.jobsFailed.Inc() }
func (c *collector) JobDead()       { c.jobsDead.Inc() }
