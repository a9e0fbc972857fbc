package profiler

import (
	"context"
	"log/slog"
	"time"

	"github.com/absmach/profiler/pkg/aggregate"
	"github.com/absmach/profiler/pkg/kernel"
	"golang.org/x/time/rate"
)

const (
	supervisorTaskName = "Supervisor"
	supervisorFrame    = 512 + 128
)

// Supervisor feeds the watchdog, watches free heap and periodically
// transmits the aggregate report. It runs at the highest task priority.
type Supervisor struct {
	rt          Runtime
	watchdog    Watchdog
	agg         *aggregate.Aggregator
	formatter   Formatter
	transport   Transport
	notes       *Notifier
	lowHeap     uint32
	reportEvery int
	timeout     time.Duration
	inst        Instruments
	logger      *slog.Logger

	warn   rate.Sometimes
	cycles int
}

type SupervisorConfig struct {
	LowHeapMark   uint32
	ReportEvery   int
	ReportTimeout time.Duration
}

func NewSupervisor(rt Runtime, wd Watchdog, agg *aggregate.Aggregator, f Formatter, t Transport, notes *Notifier, cfg SupervisorConfig, inst Instruments, logger *slog.Logger) *Supervisor {
	return &Supervisor{
		rt:          rt,
		watchdog:    wd,
		agg:         agg,
		formatter:   f,
		transport:   t,
		notes:       notes,
		lowHeap:     cfg.LowHeapMark,
		reportEvery: cfg.ReportEvery,
		timeout:     cfg.ReportTimeout,
		inst:        inst,
		logger:      logger,
		warn:        rate.Sometimes{First: 1, Interval: time.Minute},
	}
}

func (s *Supervisor) Run(ctx context.Context, task Executor, clock kernel.Clock, period time.Duration) error {
	last := clock.Now()
	for {
		if err := kernel.DelayUntil(ctx, clock, &last, period); err != nil {
			return nil
		}

		var err error
		task.Exec(func() {
			if err = task.Touch(supervisorFrame); err != nil {
				return
			}
			s.Cycle(ctx)
		})
		if err != nil {
			return err
		}
	}
}

// Cycle runs one supervision pass. The watchdog is fed on every pass,
// whatever happens to the heap check or the report.
func (s *Supervisor) Cycle(ctx context.Context) {
	if free := s.rt.FreeHeap(); free < s.lowHeap {
		s.agg.IncrementAllocFailure()
		s.warn.Do(func() {
			s.logger.Warn("low free heap", slog.Uint64("free", uint64(free)), slog.Uint64("mark", uint64(s.lowHeap)))
		})
		s.notes.Notify(ctx, NoticeLowHeap)
	}

	s.watchdog.Feed()
	s.agg.IncrementWatchdogFeed()

	s.cycles++
	if s.cycles >= s.reportEvery {
		s.cycles = 0
		s.Report(ctx)
	}
}

// Report transmits the aggregate report.
func (s *Supervisor) Report(ctx context.Context) {
	m := s.agg.Metrics()
	report := s.formatter.Report(m, m.Evaluate(s.agg.Thresholds()))

	if err := s.transport.Transmit(ctx, report, s.timeout); err != nil {
		s.inst.TransmitFailures.With("stage", "report").Add(1)
		s.logger.Warn("failed to transmit report", slog.Any("error", err))
	}
}
