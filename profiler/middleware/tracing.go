package middleware

import (
	"context"

	"github.com/absmach/profiler/profiler"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var _ profiler.Service = (*tracing)(nil)

type tracing struct {
	tracer trace.Tracer
	svc    profiler.Service
}

func Tracing(tracer trace.Tracer, svc profiler.Service) profiler.Service {
	return &tracing{tracer, svc}
}

func (tm *tracing) Health(ctx context.Context) (profiler.HealthReport, error) {
	ctx, span := tm.tracer.Start(ctx, "get-health")
	defer span.End()

	return tm.svc.Health(ctx)
}

func (tm *tracing) Snapshot(ctx context.Context, index int) (profiler.Snapshot, error) {
	ctx, span := tm.tracer.Start(ctx, "get-snapshot", trace.WithAttributes(
		attribute.Int("index", index),
	))
	defer span.End()

	return tm.svc.Snapshot(ctx, index)
}

func (tm *tracing) Power(ctx context.Context) (profiler.PowerStatus, error) {
	ctx, span := tm.tracer.Start(ctx, "get-power")
	defer span.End()

	return tm.svc.Power(ctx)
}

func (tm *tracing) Dump(ctx context.Context) (profiler.Snapshot, error) {
	ctx, span := tm.tracer.Start(ctx, "dump")
	defer span.End()

	return tm.svc.Dump(ctx)
}
