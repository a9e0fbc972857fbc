// Package prometheus builds go-kit metrics backed by the default Prometheus
// registry.
package prometheus

import (
	"github.com/absmach/profiler/profiler"
	"github.com/go-kit/kit/metrics"
	kitprometheus "github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
)

// MakeMetrics returns the request counter and latency summary used by the
// service metrics middleware. Both are labelled by method.
func MakeMetrics(namespace, subsystem string) (metrics.Counter, metrics.Histogram) {
	counter := kitprometheus.NewCounterFrom(stdprometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "request_count",
		Help:      "Number of requests received.",
	}, []string{"method"})
	latency := kitprometheus.NewSummaryFrom(stdprometheus.SummaryOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "request_latency_microseconds",
		Help:      "Total duration of requests in microseconds.",
	}, []string{"method"})

	return counter, latency
}

// MakeInstruments returns the pipeline instruments.
func MakeInstruments(namespace string) profiler.Instruments {
	const subsystem = "pipeline"

	return profiler.Instruments{
		Snapshots: kitprometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "snapshots_total",
			Help:      "Snapshots queued for transmission.",
		}, []string{"kind"}),
		Dropped: kitprometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "urgent_dropped_total",
			Help:      "Urgent snapshots refused by a full queue.",
		}, []string{}),
		TransmitFailures: kitprometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "transmit_failures_total",
			Help:      "Failed transmissions.",
		}, []string{"stage"}),
		Latency: kitprometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "latency_seconds",
			Help:      "Dequeue to transmit-complete latency.",
			Buckets:   []float64{.001, .002, .005, .01, .02, .05, .1},
		}, []string{}),
	}
}
