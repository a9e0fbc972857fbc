package profiler

import (
	"context"
	"log/slog"
	"time"

	"github.com/absmach/profiler/pkg/aggregate"
	"github.com/absmach/profiler/pkg/kernel"
)

const (
	reportTaskName = "Report"
	// reportFrame covers the output buffer plus one snapshot copy.
	reportFrame = 1024 + snapshotSize + 64
)

var lineEnd = []byte("\r\n")

// Reporter drains the snapshot queue and transmits each snapshot. The time
// from dequeue to transmit completion is recorded as end-to-end latency.
type Reporter struct {
	queue     *SnapshotQueue
	formatter Formatter
	transport Transport
	agg       *aggregate.Aggregator
	clock     kernel.Clock
	timeout   time.Duration
	compact   bool
	inst      Instruments
	logger    *slog.Logger
}

func NewReporter(q *SnapshotQueue, f Formatter, t Transport, agg *aggregate.Aggregator, clock kernel.Clock, timeout time.Duration, compact bool, inst Instruments, logger *slog.Logger) *Reporter {
	return &Reporter{
		queue:     q,
		formatter: f,
		transport: t,
		agg:       agg,
		clock:     clock,
		timeout:   timeout,
		compact:   compact,
		inst:      inst,
		logger:    logger,
	}
}

func (r *Reporter) Run(ctx context.Context, task Executor) error {
	for {
		snap, err := r.queue.Pop(ctx)
		if err != nil {
			return nil
		}

		task.Exec(func() {
			if err = task.Touch(reportFrame); err != nil {
				return
			}
			r.Deliver(ctx, snap)
		})
		if err != nil {
			return err
		}
	}
}

// Deliver formats and transmits one dequeued snapshot.
func (r *Reporter) Deliver(ctx context.Context, snap Snapshot) {
	start := r.clock.Now()

	payload := r.formatter.Verbose(snap)
	if r.compact {
		payload = r.formatter.Compact(snap)
	}
	if len(payload) == 0 {
		r.inst.TransmitFailures.With("stage", "format").Add(1)
		r.logger.Warn("snapshot does not fit the output buffer", slog.Duration("timestamp", snap.Timestamp))

		return
	}
	payload = append(payload, lineEnd...)

	if err := r.transport.Transmit(ctx, payload, r.timeout); err != nil {
		r.inst.TransmitFailures.With("stage", "snapshot").Add(1)
		r.logger.Warn("failed to transmit snapshot",
			slog.Duration("timestamp", snap.Timestamp),
			slog.Bool("urgent", snap.Urgent),
			slog.Any("error", err),
		)

		return
	}

	latency := r.clock.Now() - start
	r.agg.RecordLatency(latency)
	r.inst.Latency.Observe(latency.Seconds())
}
