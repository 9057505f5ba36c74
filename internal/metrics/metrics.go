package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector holds all Prometheus metrics for tcplb.
type Collector struct {
	Registry *prometheus.Registry

	backendActive       *prometheus.GaugeVec
	backendLoadFraction *prometheus.GaugeVec
	dialFailuresTotal   *prometheus.CounterVec
	dialSuccessTotal    *prometheus.CounterVec
	dispatchTotal       *prometheus.CounterVec
	workerReadsTotal    *prometheus.CounterVec
	workerDisconnects   *prometheus.CounterVec
	pollTimeoutsTotal   *prometheus.CounterVec
	pollErrorsTotal     *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics using a custom registry.
// Safe to call multiple times (e.g. in tests) — each call creates an
// independent registry that doesn't conflict with others.
func New() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		Registry: reg,
		backendActive: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "tcplb_backend_active_connections",
				Help: "Number of clients currently assigned to a backend",
			},
			[]string{"backend"},
		),
		backendLoadFraction: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "tcplb_backend_load_fraction",
				Help: "active_connections / max_connections per backend",
			},
			[]string{"backend"},
		),
		dialFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tcplb_dial_failures_total",
				Help: "Backend dial attempts that failed during bootstrap",
			},
			[]string{"backend"},
		),
		dialSuccessTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tcplb_dial_success_total",
				Help: "Backend dial attempts that succeeded during bootstrap",
			},
			[]string{"backend"},
		),
		dispatchTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tcplb_dispatch_total",
				Help: "Dispatch outcomes by result",
			},
			[]string{"outcome"}, // "assigned" or "rejected"
		),
		workerReadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tcplb_worker_reads_total",
				Help: "Client reads forwarded to a backend",
			},
			[]string{"backend"},
		),
		workerDisconnects: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tcplb_worker_disconnects_total",
				Help: "Client disconnects observed by a backend's worker",
			},
			[]string{"backend"},
		),
		pollTimeoutsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tcplb_poll_timeouts_total",
				Help: "Readiness multiplex calls that returned zero ready descriptors",
			},
			[]string{"backend"},
		),
		pollErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tcplb_poll_errors_total",
				Help: "Readiness multiplex calls that returned an error",
			},
			[]string{"backend"},
		),
	}

	reg.MustRegister(
		c.backendActive,
		c.backendLoadFraction,
		c.dialFailuresTotal,
		c.dialSuccessTotal,
		c.dispatchTotal,
		c.workerReadsTotal,
		c.workerDisconnects,
		c.pollTimeoutsTotal,
		c.pollErrorsTotal,
	)

	return c
}

// SetBackendLoad updates the active-connection gauge and load-fraction
// gauge for one backend, typically called from Pool.Stats() snapshots.
func (c *Collector) SetBackendLoad(backend string, active, capacity int) {
	c.backendActive.WithLabelValues(backend).Set(float64(active))
	load := 1.0
	if capacity > 0 {
		load = float64(active) / float64(capacity)
	}
	c.backendLoadFraction.WithLabelValues(backend).Set(load)
}

// RecordDialSuccess increments the dial-success counter for a backend.
func (c *Collector) RecordDialSuccess(backend string) {
	c.dialSuccessTotal.WithLabelValues(backend).Inc()
}

// RecordDialFailure increments the dial-failure counter for a backend.
func (c *Collector) RecordDialFailure(backend string) {
	c.dialFailuresTotal.WithLabelValues(backend).Inc()
}

// RecordDispatchAssigned increments the dispatch-assigned counter.
func (c *Collector) RecordDispatchAssigned() {
	c.dispatchTotal.WithLabelValues("assigned").Inc()
}

// RecordDispatchRejected increments the dispatch-rejected counter, the
// metric for the "no backend available" path fixed per spec §9 (the
// original would have null-dereferenced here instead).
func (c *Collector) RecordDispatchRejected() {
	c.dispatchTotal.WithLabelValues("rejected").Inc()
}

// RecordWorkerRead increments the forwarded-read counter for a backend.
func (c *Collector) RecordWorkerRead(backend string) {
	c.workerReadsTotal.WithLabelValues(backend).Inc()
}

// RecordWorkerDisconnect increments the disconnect counter for a backend.
func (c *Collector) RecordWorkerDisconnect(backend string) {
	c.workerDisconnects.WithLabelValues(backend).Inc()
}

// RecordPollTimeout increments the poll-timeout counter for a backend.
func (c *Collector) RecordPollTimeout(backend string) {
	c.pollTimeoutsTotal.WithLabelValues(backend).Inc()
}

// RecordPollError increments the poll-error counter for a backend.
func (c *Collector) RecordPollError(backend string) {
	c.pollErrorsTotal.WithLabelValues(backend).Inc()
}
