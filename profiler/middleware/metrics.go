package middleware

import (
	"context"
	"time"

	"github.com/absmach/profiler/profiler"
	"github.com/go-kit/kit/metrics"
)

var _ profiler.Service = (*metricsMiddleware)(nil)

type metricsMiddleware struct {
	counter metrics.Counter
	latency metrics.Histogram
	svc     profiler.Service
}

func Metrics(counter metrics.Counter, latency metrics.Histogram, svc profiler.Service) profiler.Service {
	return &metricsMiddleware{
		counter: counter,
		latency: latency,
		svc:     svc,
	}
}

func (mm *metricsMiddleware) Health(ctx context.Context) (profiler.HealthReport, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "get-health").Add(1)
		mm.latency.With("method", "get-health").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.Health(ctx)
}

func (mm *metricsMiddleware) Snapshot(ctx context.Context, index int) (profiler.Snapshot, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "get-snapshot").Add(1)
		mm.latency.With("method", "get-snapshot").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.Snapshot(ctx, index)
}

func (mm *metricsMiddleware) Power(ctx context.Context) (profiler.PowerStatus, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "get-power").Add(1)
		mm.latency.With("method", "get-power").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.Power(ctx)
}

func (mm *metricsMiddleware) Dump(ctx context.Context) (profiler.Snapshot, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "dump").Add(1)
		mm.latency.With("method", "dump").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.Dump(ctx)
}
