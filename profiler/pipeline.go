package profiler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/absmach/profiler/pkg/aggregate"
	"github.com/absmach/profiler/pkg/kernel"
	"golang.org/x/sync/errgroup"
)

// queueControlBytes is the heap cost of one queue's control block. Queue
// storage itself is static.
const queueControlBytes = 80

type taskSpec struct {
	name     string
	priority int
	stack    uint32
}

var tasks = []taskSpec{
	{supervisorTaskName, 4, 1024},
	{samplerTaskName, 3, 2048},
	{inputTaskName, 2, 1024},
	{reportTaskName, 1, 2048},
	{backgroundTaskName, 0, 512},
}

// Deps are the pipeline's collaborators. Thermometer and Heartbeat may be
// nil.
type Deps struct {
	Kernel      *kernel.Kernel
	HAL         PowerHAL
	Pin         Pin
	Watchdog    Watchdog
	Thermometer Thermometer
	Heartbeat   Heartbeat
	Formatter   Formatter
	Transport   Transport
	Instruments Instruments
}

// Pipeline wires the five profiler tasks around the snapshot queue.
type Pipeline struct {
	cfg    Config
	kernel *kernel.Kernel
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	agg        *aggregate.Aggregator
	ring       *RingBuffer
	queue      *SnapshotQueue
	debouncer  *Debouncer
	notes      *Notifier
	halter     *Halter
	power      *PowerController
	sampler    *Sampler
	reporter   *Reporter
	input      *InputMonitor
	supervisor *Supervisor
	background *Background
	waker      Waker
	transport  Transport
	inst       Instruments
	tasks      map[string]*kernel.Task
}

func NewPipeline(ctx context.Context, cfg Config, deps Deps, logger *slog.Logger) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Kernel == nil || deps.HAL == nil || deps.Pin == nil || deps.Watchdog == nil || deps.Formatter == nil || deps.Transport == nil {
		return nil, errors.New("missing pipeline dependency")
	}
	if deps.Instruments.Snapshots == nil {
		deps.Instruments = NopInstruments()
	}

	ctx, cancel := context.WithCancel(ctx)
	k := deps.Kernel
	clock := k.Clock()
	agg := aggregate.New(clock, cfg.Thresholds)

	p := &Pipeline{
		cfg:       cfg,
		kernel:    k,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
		agg:       agg,
		inst:      deps.Instruments,
		transport: deps.Transport,
		ring:      NewRingBuffer(cfg.RingSize),
		queue:     NewSnapshotQueue(cfg.QueueCapacity),
		tasks:     make(map[string]*kernel.Task, len(tasks)),
	}
	p.waker, _ = deps.HAL.(Waker)
	p.notes = NewNotifier(deps.Transport, cfg.NoticeTimeout, deps.Instruments, logger)
	p.halter = NewHalter(agg, deps.Transport, cancel, logger)
	k.SetHooks(kernel.Hooks{
		StackOverflow: p.halter.StackOverflow,
		MallocFailed:  p.halter.MallocFailed,
	})

	// Snapshot queue and press event queue.
	for range 2 {
		if _, err := k.Malloc(queueControlBytes); err != nil {
			return nil, fmt.Errorf("failed to create queue: %w: %w", ErrHalted, err)
		}
	}

	p.debouncer = NewDebouncer(clock, cfg.Debounce, cfg.EventDepth)
	p.power = NewPowerController(deps.HAL, clock, agg, p.notes, logger)
	if err := p.power.Init(); err != nil {
		cancel()

		return nil, err
	}
	p.sampler = NewSampler(k, agg, p.ring, deps.Thermometer, cfg.IdleTaskNames, logger)
	p.sampler.SetHeartbeat(deps.Heartbeat)
	p.reporter = NewReporter(p.queue, deps.Formatter, deps.Transport, agg, clock, cfg.TransmitTimeout, cfg.Compact, deps.Instruments, logger)
	p.input = NewInputMonitor(p.debouncer.Events(), deps.Pin, clock, InputConfig{
		Poll:      cfg.InputPoll,
		LongPress: cfg.LongPress,
	}, p.sampler, p.queue, p.power, p.notes, deps.Instruments, logger)
	p.supervisor = NewSupervisor(k, deps.Watchdog, agg, deps.Formatter, deps.Transport, p.notes, SupervisorConfig{
		LowHeapMark:   cfg.LowHeapMark,
		ReportEvery:   cfg.ReportEvery,
		ReportTimeout: cfg.ReportTimeout,
	}, deps.Instruments, logger)
	p.background = NewBackground(p.power, cfg.IdleSleep, logger)

	for _, t := range tasks {
		p.tasks[t.name] = k.Spawn(t.name, t.priority, t.stack)
	}

	return p, nil
}

// Run starts every task and blocks until ctx ends or a fatal fault halts the
// pipeline, in which case ErrHalted is returned.
func (p *Pipeline) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, p.cancel)
	defer stop()

	if err := p.transport.Transmit(p.ctx, []byte(BannerStarted), p.cfg.BannerTimeout); err != nil {
		p.logger.Warn("failed to transmit banner", slog.Any("error", err))
	}
	p.logger.Info("profiler pipeline started",
		slog.Int("tasks", len(tasks)),
		slog.Duration("sample_period", p.cfg.SamplePeriod),
		slog.Int("queue_capacity", p.cfg.QueueCapacity),
	)

	clock := p.kernel.Clock()
	g, gctx := errgroup.WithContext(p.ctx)
	g.Go(func() error {
		return p.supervisor.Run(gctx, p.tasks[supervisorTaskName], clock, p.cfg.SupervisePeriod)
	})
	g.Go(func() error {
		return p.sampler.Run(gctx, p.tasks[samplerTaskName], clock, p.cfg.SamplePeriod, p.cfg.PushEvery, p.queue, p.inst)
	})
	g.Go(func() error {
		return p.input.Run(gctx, p.tasks[inputTaskName])
	})
	g.Go(func() error {
		return p.reporter.Run(gctx, p.tasks[reportTaskName])
	})
	g.Go(func() error {
		return p.background.Run(gctx, p.tasks[backgroundTaskName], clock, p.cfg.BackgroundPeriod)
	})

	err := g.Wait()
	select {
	case <-p.halter.Halted():
		return fmt.Errorf("%w: %s", ErrHalted, p.halter.Reason())
	default:
	}

	return err
}

// Edge is the button interrupt handler: it wakes the processor from any
// low-power mode and hands the edge to the debouncer.
func (p *Pipeline) Edge() {
	if p.waker != nil {
		p.waker.Wake()
	}
	p.debouncer.OnEdge()
}

func (p *Pipeline) Aggregator() *aggregate.Aggregator {
	return p.agg
}

func (p *Pipeline) Halted() <-chan struct{} {
	return p.halter.Halted()
}
