package profiler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/absmach/profiler/pkg/aggregate"
	"github.com/absmach/profiler/pkg/hal"
	"github.com/absmach/profiler/pkg/kernel"
)

// SleepStats summarises completed low-power episodes.
type SleepStats struct {
	SleepEntries     uint32        `json:"sleep_entries"`
	DeepSleepEntries uint32        `json:"deep_sleep_entries"`
	TotalSleep       time.Duration `json:"total_sleep"`
	TotalDeepSleep   time.Duration `json:"total_deep_sleep"`
	LastWake         time.Duration `json:"last_wake"`
	LastWakeLatency  time.Duration `json:"last_wake_latency"`
}

// PowerController owns the power mode. Episodes are serialised: a second
// request waits for the current one to end.
type PowerController struct {
	entry  sync.Mutex
	mode   atomic.Uint32
	hal    PowerHAL
	clock  kernel.Clock
	agg    *aggregate.Aggregator
	notes  *Notifier
	logger *slog.Logger

	mu    sync.Mutex
	stats SleepStats
}

// NewPowerController builds a controller. notes may be nil.
func NewPowerController(h PowerHAL, clock kernel.Clock, agg *aggregate.Aggregator, notes *Notifier, logger *slog.Logger) *PowerController {
	return &PowerController{
		hal:    h,
		clock:  clock,
		agg:    agg,
		notes:  notes,
		logger: logger,
	}
}

// Init arms the button as a deep-sleep wake source.
func (p *PowerController) Init() error {
	if err := p.hal.ConfigureWake(hal.WakeButton); err != nil {
		return fmt.Errorf("failed to configure wake source: %w", err)
	}

	return nil
}

func (p *PowerController) Mode() hal.Mode {
	return hal.Mode(p.mode.Load())
}

func (p *PowerController) Stats() SleepStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.stats
}

// EnterDeepSleep blocks until a wake source fires or ctx ends.
func (p *PowerController) EnterDeepSleep(ctx context.Context) error {
	return p.enter(ctx, hal.DeepSleep)
}

// EnterSleep enters light sleep until the next interrupt.
func (p *PowerController) EnterSleep(ctx context.Context) error {
	return p.enter(ctx, hal.Sleep)
}

func (p *PowerController) enter(ctx context.Context, mode hal.Mode) error {
	p.entry.Lock()
	defer p.entry.Unlock()

	if mode == hal.DeepSleep {
		p.notes.Notify(ctx, NoticeStopMode)
	}

	start := p.clock.Now()
	p.mode.Store(uint32(mode))
	defer p.mode.Store(uint32(hal.Run))

	if err := p.hal.EnterLowPower(ctx, mode); err != nil {
		return fmt.Errorf("failed to enter %s: %w", mode, err)
	}
	woke := p.clock.Now()

	if mode == hal.DeepSleep {
		if r, ok := p.hal.(Resumer); ok {
			if err := r.Resume(ctx); err != nil {
				p.logger.Error("failed to resume after deep sleep", slog.Any("error", err))
			}
		}
		p.notes.Notify(ctx, NoticeWoken)
	}
	latency := p.clock.Now() - woke
	slept := woke - start

	p.mu.Lock()
	switch mode {
	case hal.DeepSleep:
		p.stats.DeepSleepEntries++
		p.stats.TotalDeepSleep += slept
	default:
		p.stats.SleepEntries++
	}
	p.stats.TotalSleep += slept
	p.stats.LastWake = woke
	p.stats.LastWakeLatency = latency
	p.mu.Unlock()

	if mode == hal.DeepSleep {
		p.agg.RecordDeepSleep(slept, latency)
		p.logger.Info("woke from deep sleep",
			slog.Duration("slept", slept),
			slog.Duration("wake_latency", latency),
		)
	}

	return nil
}
