package profiler

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/absmach/profiler/pkg/aggregate"
	"github.com/absmach/profiler/pkg/kernel"
)

const (
	samplerTaskName = "Sampler"
	samplerFrame    = snapshotSize + 96
)

// Sampler builds snapshots from the runtime. Periodic snapshots feed the
// aggregator; out-of-band ones requested through Collect do not. Every
// snapshot is archived in the ring buffer.
type Sampler struct {
	mu        sync.Mutex
	rt        Runtime
	agg       *aggregate.Aggregator
	ring      *RingBuffer
	thermo    Thermometer
	heartbeat Heartbeat
	idle      map[string]struct{}
	logger    *slog.Logger

	lastTotal   uint32
	lastIdle    uint32
	lastLoad    float64
	temperature float64
}

func NewSampler(rt Runtime, agg *aggregate.Aggregator, ring *RingBuffer, thermo Thermometer, idleNames []string, logger *slog.Logger) *Sampler {
	idle := make(map[string]struct{}, len(idleNames))
	for _, n := range idleNames {
		idle[n] = struct{}{}
	}

	return &Sampler{
		rt:        rt,
		agg:       agg,
		ring:      ring,
		thermo:    thermo,
		heartbeat: noopHeartbeat{},
		idle:      idle,
		logger:    logger,
	}
}

// SetHeartbeat installs an indicator toggled on every periodic sample.
func (s *Sampler) SetHeartbeat(h Heartbeat) {
	if h == nil {
		h = noopHeartbeat{}
	}
	s.heartbeat = h
}

// Sample takes a periodic snapshot and folds it into the aggregates.
func (s *Sampler) Sample(ctx context.Context) Snapshot {
	snap := s.collect(ctx, false)
	s.agg.RecordCPULoad(snap.CPULoad)
	s.agg.RecordHeapStatus(snap.HeapFree, snap.Fragmentation)
	s.heartbeat.Toggle()

	return snap
}

// Collect takes an urgent out-of-band snapshot.
func (s *Sampler) Collect(ctx context.Context) Snapshot {
	return s.collect(ctx, true)
}

func (s *Sampler) collect(ctx context.Context, urgent bool) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Timestamp: s.rt.Ticks(),
		HeapFree:  s.rt.FreeHeap(),
		HeapMin:   s.rt.MinEverFreeHeap(),
		Urgent:    urgent,
	}
	snap.Fragmentation = Fragmentation(snap.HeapFree, snap.HeapMin)

	statuses, release, err := s.rt.Scratch(s.rt.NumTasks())
	switch err {
	case nil:
		n, total := s.rt.SystemState(statuses)
		statuses = statuses[:n]
		snap.CPULoad = s.cpuLoad(statuses, total)
		for _, st := range statuses {
			if !snap.addTask(TaskSample{
				Name:           st.Name,
				RuntimePercent: RuntimeShare(st.RunTime, total),
				StackFree:      st.StackHighWaterMark,
			}) {
				break
			}
		}
		release()
	default:
		s.agg.IncrementAllocFailure()
		snap.CPULoad = s.lastLoad
		s.logger.Warn("failed to allocate task status array", slog.Any("error", err))
	}

	snap.Temperature = s.readTemperature(ctx)
	s.ring.Push(snap)

	return snap
}

func (s *Sampler) cpuLoad(statuses []kernel.TaskStatus, total uint32) float64 {
	var idle uint32
	for _, st := range statuses {
		if _, ok := s.idle[st.Name]; ok {
			idle += st.RunTime
		}
	}

	load := CPULoad(total-s.lastTotal, idle-s.lastIdle)
	s.lastTotal, s.lastIdle = total, idle
	s.lastLoad = load

	return load
}

func (s *Sampler) readTemperature(ctx context.Context) float64 {
	if s.thermo == nil {
		return s.temperature
	}

	t, err := s.thermo.Temperature(ctx)
	if err != nil {
		s.logger.Debug("failed to read temperature", slog.Any("error", err))

		return s.temperature
	}
	s.temperature = t

	return t
}

// Run samples every period and pushes every pushEvery-th snapshot onto q,
// waiting for space when q is full.
func (s *Sampler) Run(ctx context.Context, task Executor, clock kernel.Clock, period time.Duration, pushEvery int, q *SnapshotQueue, inst Instruments) error {
	last := clock.Now()
	count := 0
	for {
		if err := kernel.DelayUntil(ctx, clock, &last, period); err != nil {
			return nil
		}

		var (
			snap Snapshot
			err  error
		)
		task.Exec(func() {
			if err = task.Touch(samplerFrame); err != nil {
				return
			}
			snap = s.Sample(ctx)
		})
		if err != nil {
			return err
		}

		count++
		if count < pushEvery {
			continue
		}
		count = 0

		if err := q.Push(ctx, snap); err != nil {
			return nil
		}
		inst.Snapshots.With("kind", "periodic").Add(1)
	}
}

// CPULoad converts idle and total counter deltas into a busy percentage in
// [0, 100]. A zero total yields 0.
func CPULoad(deltaTotal, deltaIdle uint32) float64 {
	if deltaTotal == 0 {
		return 0
	}
	load := 100 * (1 - float64(deltaIdle)/float64(deltaTotal))

	return clampPercent(load)
}

// Fragmentation estimates heap fragmentation from current and minimum-ever
// free heap. A zero free heap yields 0.
func Fragmentation(free, minFree uint32) float64 {
	if free == 0 {
		return 0
	}

	return clampPercent(100 * (1 - float64(minFree)/float64(free)))
}

// RuntimeShare is the integer percentage of total spent in counter, with
// RuntimeShareFloor standing in for zero.
func RuntimeShare(counter, total uint32) float64 {
	unit := total / 100
	if unit == 0 {
		return RuntimeShareFloor
	}
	share := counter / unit
	if share == 0 {
		return RuntimeShareFloor
	}

	return math.Min(float64(share), 100)
}

func clampPercent(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}
