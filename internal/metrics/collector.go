package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector exports pool activity as Prometheus metrics.
// All methods are safe on a nil *Collector so pools can call them unconditionally.
type Collector struct {
	dispatched       prometheus.Counter
	processed        *prometheus.CounterVec
	busyWorkers      prometheus.Gauge
	liveWorkers      prometheus.Gauge
	dispatchWait     prometheus.Histogram
	processingTime   prometheus.Histogram
	dispatchParks    prometheus.Counter
	registeredPrefix string
}

// NewCollector creates the pool metrics and registers them with reg.
// prefix is prepended to every metric name, e.g. "fixedpool_demo".
func NewCollector(reg prometheus.Registerer, prefix string) (*Collector, error) {
	if prefix == "" {
		prefix = "fixedpool"
	}

	c := &Collector{
		dispatched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: prefix + "_dispatched_total",
			Help: "Total work items handed to a worker",
		}),
		processed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "_processed_total",
			Help: "Total processor invocations by outcome",
		}, []string{"status"}),
		busyWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: prefix + "_busy_workers",
			Help: "Workers currently holding a work item",
		}),
		liveWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: prefix + "_live_workers",
			Help: "Worker goroutines that have not exited",
		}),
		dispatchWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    prefix + "_dispatch_wait_seconds",
			Help:    "Time a dispatch waited for an idle worker",
			Buckets: []float64{0.00001, 0.0001, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
		}),
		processingTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    prefix + "_processing_duration_seconds",
			Help:    "Time spent in the processor per work item",
			Buckets: []float64{0.0001, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}),
		dispatchParks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: prefix + "_dispatch_parks_total",
			Help: "Times a dispatcher parked because every worker was busy",
		}),
		registeredPrefix: prefix,
	}

	for _, col := range []prometheus.Collector{
		c.dispatched, c.processed, c.busyWorkers, c.liveWorkers,
		c.dispatchWait, c.processingTime, c.dispatchParks,
	} {
		if err := reg.Register(col); err != nil {
			return nil, fmt.Errorf("register %s metrics: %w", prefix, err)
		}
	}

	return c, nil
}

// Prefix returns the metric name prefix
func (c *Collector) Prefix() string {
	if c == nil {
		return ""
	}
	return c.registeredPrefix
}

// ObserveDispatch records an item claimed by a worker after waiting wait
func (c *Collector) ObserveDispatch(wait time.Duration) {
	if c == nil {
		return
	}
	c.dispatched.Inc()
	c.busyWorkers.Inc()
	c.dispatchWait.Observe(wait.Seconds())
}

// ObserveProcessed records a finished processor call
func (c *Collector) ObserveProcessed(d time.Duration, failed bool) {
	if c == nil {
		return
	}
	status := "success"
	if failed {
		status = "panic"
	}
	c.processed.WithLabelValues(status).Inc()
	c.busyWorkers.Dec()
	c.processingTime.Observe(d.Seconds())
}

// ObservePark records a dispatcher parking on a fully busy pool
func (c *Collector) ObservePark() {
	if c == nil {
		return
	}
	c.dispatchParks.Inc()
}

// WorkerStarted increments the live worker gauge
func (c *Collector) WorkerStarted() {
	if c == nil {
		return
	}
	c.liveWorkers.Inc()
}

// WorkerExited decrements the live worker gauge
func (c *Collector) WorkerExited() {
	if c == nil {
		return
	}
	c.liveWorkers.Dec()
}
