// Package metrics collects agent telemetry in a private Prometheus registry.
package metrics

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/winlew/winlew_agent/internal/faucet"
	"github.com/winlew/winlew_agent/internal/price"
)

const namespace = "winlew"

// Collector implements price.Observer and faucet.Recorder.
type Collector struct {
	registry *prometheus.Registry

	priceFetches  *prometheus.CounterVec
	priceLatency  *prometheus.HistogramVec
	disbursements *prometheus.CounterVec
	jobRuns       *prometheus.CounterVec
	startTime     time.Time
}

// NewCollector registers every agent metric plus the Go runtime collectors.
func NewCollector() *Collector {
	c := &Collector{
		registry:  prometheus.NewRegistry(),
		startTime: time.Now(),
	}

	c.priceFetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "price",
			Name:      "source_fetches_total",
			Help:      "Price source calls by outcome (ok, invalid, unavailable, error)",
		},
		[]string{"source", "result"},
	)
	c.priceLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "price",
			Name:      "source_duration_seconds",
			Help:      "Price source call latency",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 15},
		},
		[]string{"source"},
	)
	c.disbursements = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "faucet",
			Name:      "disbursements_total",
			Help:      "Faucet and send requests by terminal status",
		},
		[]string{"operation", "status"},
	)
	c.jobRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "job_runs_total",
			Help:      "Scheduled job executions by result",
		},
		[]string{"job", "result"},
	)
	uptime := prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "uptime_seconds",
			Help:      "Seconds since the agent started",
		},
		func() float64 { return time.Since(c.startTime).Seconds() },
	)

	c.registry.MustRegister(
		c.priceFetches,
		c.priceLatency,
		c.disbursements,
		c.jobRuns,
		uptime,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Registry exposes the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// ObserveSource records one price source call.
func (c *Collector) ObserveSource(sourceID string, err error, elapsed time.Duration) {
	c.priceFetches.WithLabelValues(sourceID, sourceResult(err)).Inc()
	c.priceLatency.WithLabelValues(sourceID).Observe(elapsed.Seconds())
}

// ObserveDisbursement records the terminal status of a faucet or send.
func (c *Collector) ObserveDisbursement(operation string, status faucet.Status) {
	c.disbursements.WithLabelValues(operation, string(status)).Inc()
}

// ObserveJob records a scheduled job run.
func (c *Collector) ObserveJob(job string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.jobRuns.WithLabelValues(job, result).Inc()
}

// Uptime returns the time since the collector was created.
func (c *Collector) Uptime() time.Duration {
	return time.Since(c.startTime)
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{}))
}

func sourceResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, price.ErrInvalidPrice):
		return "invalid"
	case errors.Is(err, price.ErrSourceUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}
