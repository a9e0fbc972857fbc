package profiler

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/absmach/profiler/pkg/kernel"
)

const (
	inputTaskName = "Input"
	inputFrame    = snapshotSize + 160
)

// PressEvent is queued by the edge handler for every accepted press.
type PressEvent struct {
	At time.Duration
}

// Debouncer filters button edges in interrupt context. An edge is accepted
// when strictly more than the window has elapsed since the last accepted
// one; the first edge is always accepted. Accepted edges are queued without
// blocking and dropped when the queue is full.
type Debouncer struct {
	mu       sync.Mutex
	clock    kernel.Clock
	window   time.Duration
	last     time.Duration
	accepted bool

	events  chan PressEvent
	dropped atomic.Uint64
}

func NewDebouncer(clock kernel.Clock, window time.Duration, depth int) *Debouncer {
	return &Debouncer{
		clock:  clock,
		window: window,
		events: make(chan PressEvent, depth),
	}
}

// OnEdge handles one falling edge and reports whether it was accepted.
func (d *Debouncer) OnEdge() bool {
	now := d.clock.Now()

	d.mu.Lock()
	if d.accepted && now-d.last <= d.window {
		d.mu.Unlock()

		return false
	}
	d.last = now
	d.accepted = true
	d.mu.Unlock()

	select {
	case d.events <- PressEvent{At: now}:
	default:
		d.dropped.Add(1)
	}

	return true
}

func (d *Debouncer) Events() <-chan PressEvent {
	return d.events
}

// Dropped reports accepted edges lost to a full event queue.
func (d *Debouncer) Dropped() uint64 {
	return d.dropped.Load()
}

// ButtonState is the input monitor's view of the button.
type ButtonState uint32

const (
	Idle ButtonState = iota
	Pressed
)

func (s ButtonState) String() string {
	if s == Pressed {
		return "pressed"
	}

	return "idle"
}

// PressKind classifies a completed press by hold duration.
type PressKind uint8

const (
	ShortPress PressKind = iota
	LongPress
)

func (k PressKind) String() string {
	if k == LongPress {
		return "long"
	}

	return "short"
}

// ClassifyHold returns LongPress when hold reaches threshold.
func ClassifyHold(hold, threshold time.Duration) PressKind {
	if hold >= threshold {
		return LongPress
	}

	return ShortPress
}

// InputMonitor turns press events into actions: a short press injects an
// urgent snapshot at the head of the queue, a long press enters deep sleep.
type InputMonitor struct {
	events    <-chan PressEvent
	pin       Pin
	clock     kernel.Clock
	poll      time.Duration
	longPress time.Duration
	sampler   *Sampler
	queue     *SnapshotQueue
	power     *PowerController
	notes     *Notifier
	inst      Instruments
	logger    *slog.Logger

	state      atomic.Uint32
	pressStart time.Duration
}

type InputConfig struct {
	Poll      time.Duration
	LongPress time.Duration
}

func NewInputMonitor(events <-chan PressEvent, pin Pin, clock kernel.Clock, cfg InputConfig, sampler *Sampler, q *SnapshotQueue, power *PowerController, notes *Notifier, inst Instruments, logger *slog.Logger) *InputMonitor {
	return &InputMonitor{
		events:    events,
		pin:       pin,
		clock:     clock,
		poll:      cfg.Poll,
		longPress: cfg.LongPress,
		sampler:   sampler,
		queue:     q,
		power:     power,
		notes:     notes,
		inst:      inst,
		logger:    logger,
	}
}

func (m *InputMonitor) State() ButtonState {
	return ButtonState(m.state.Load())
}

func (m *InputMonitor) Run(ctx context.Context, task Executor) error {
	for {
		event, ok, err := m.wait(ctx)
		if err != nil {
			return nil
		}

		var sleep bool
		task.Exec(func() {
			if err = task.Touch(inputFrame); err != nil {
				return
			}
			sleep = m.step(ctx, event, ok)
		})
		if err != nil {
			return err
		}
		// Time spent asleep is not charged to the task.
		if sleep {
			m.sleep(ctx)
		}
	}
}

func (m *InputMonitor) wait(ctx context.Context) (PressEvent, bool, error) {
	pollCtx, cancel := context.WithCancel(ctx)
	expired := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		if err := m.clock.Sleep(pollCtx, m.poll); err == nil {
			close(expired)
		}
	}()
	// The poll timer is gone from the clock before the next wait starts.
	defer func() {
		cancel()
		<-exited
	}()

	select {
	case <-ctx.Done():
		return PressEvent{}, false, ctx.Err()
	case ev := <-m.events:
		return ev, true, nil
	case <-expired:
		return PressEvent{}, false, nil
	}
}

// Step advances the button state machine by one poll. ok reports whether a
// press event arrived during the poll. Events that arrive while a press is
// in progress are ignored.
func (m *InputMonitor) Step(ctx context.Context, event PressEvent, ok bool) {
	if m.step(ctx, event, ok) {
		m.sleep(ctx)
	}
}

// step reports whether a long press now requires deep sleep.
func (m *InputMonitor) step(ctx context.Context, event PressEvent, ok bool) bool {
	if ok && m.State() == Idle {
		m.pressStart = event.At
		m.state.Store(uint32(Pressed))
		m.notes.Notify(ctx, NoticePressed)
	}

	if m.State() != Pressed || m.pin.Asserted() {
		return false
	}

	hold := m.clock.Now() - m.pressStart
	kind := ClassifyHold(hold, m.longPress)
	m.logger.Info("button released", slog.String("press", kind.String()), slog.Duration("hold", hold))

	if kind == LongPress {
		m.notes.Notify(ctx, NoticeLongPress)

		return true
	}

	m.notes.Notify(ctx, NoticeShortPress)
	if _, err := m.Dump(ctx); err != nil {
		m.logger.Warn("urgent snapshot dropped", slog.Any("error", err))
	}
	m.state.Store(uint32(Idle))

	return false
}

func (m *InputMonitor) sleep(ctx context.Context) {
	if err := m.power.EnterDeepSleep(ctx); err != nil && ctx.Err() == nil {
		m.logger.Error("failed to enter deep sleep", slog.Any("error", err))
	}
	m.state.Store(uint32(Idle))
}

// Dump collects an urgent snapshot and puts it at the head of the queue. The
// snapshot is returned even when the queue refused it with ErrQueueFull.
func (m *InputMonitor) Dump(ctx context.Context) (Snapshot, error) {
	snap := m.sampler.Collect(ctx)
	if err := m.queue.PushFront(snap); err != nil {
		m.inst.Dropped.Add(1)

		return snap, err
	}
	m.inst.Snapshots.With("kind", "urgent").Add(1)

	return snap, nil
}
