package profiler

import (
	"context"

	"github.com/absmach/profiler/pkg/aggregate"
)

// Service is the read-mostly diagnostics surface over a running pipeline.
type Service interface {
	// Health returns the aggregates and the outcome of the health checks.
	Health(ctx context.Context) (HealthReport, error)
	// Snapshot returns an archived snapshot; index 0 is the most recent.
	Snapshot(ctx context.Context, index int) (Snapshot, error)
	Power(ctx context.Context) (PowerStatus, error)
	// Dump injects an urgent snapshot ahead of the periodic ones, as a short
	// button press does.
	Dump(ctx context.Context) (Snapshot, error)
}

type HealthReport struct {
	Metrics aggregate.Metrics `json:"metrics"`
	Health  aggregate.Health  `json:"health"`
}

type PowerStatus struct {
	Mode   string     `json:"mode"`
	Button string     `json:"button"`
	Stats  SleepStats `json:"stats"`
}

type service struct {
	p *Pipeline
}

func NewService(p *Pipeline) Service {
	return &service{p: p}
}

func (svc *service) Health(_ context.Context) (HealthReport, error) {
	m := svc.p.agg.Metrics()

	return HealthReport{
		Metrics: m,
		Health:  m.Evaluate(svc.p.agg.Thresholds()),
	}, nil
}

func (svc *service) Snapshot(_ context.Context, index int) (Snapshot, error) {
	return svc.p.ring.Get(index)
}

func (svc *service) Power(_ context.Context) (PowerStatus, error) {
	return PowerStatus{
		Mode:   svc.p.power.Mode().String(),
		Button: svc.p.input.State().String(),
		Stats:  svc.p.power.Stats(),
	}, nil
}

func (svc *service) Dump(ctx context.Context) (Snapshot, error) {
	return svc.p.input.Dump(ctx)
}
