package profiler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/absmach/profiler/pkg/aggregate"
	"github.com/absmach/profiler/pkg/hal"
	"github.com/absmach/profiler/pkg/kernel"
	"github.com/go-kit/kit/metrics"
)

var errAlloc = errors.New("out of heap")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeRuntime reports a fixed task table whose counters advance by hand.
type fakeRuntime struct {
	mu       sync.Mutex
	ticks    time.Duration
	total    uint32
	statuses []kernel.TaskStatus
	free     uint32
	minFree  uint32
	failNext int
	releases int
}

func (r *fakeRuntime) Ticks() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.ticks
}

func (r *fakeRuntime) NumTasks() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.statuses)
}

func (r *fakeRuntime) Scratch(n int) ([]kernel.TaskStatus, func(), error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.failNext > 0 {
		r.failNext--

		return nil, nil, errAlloc
	}

	return make([]kernel.TaskStatus, n), func() {
		r.mu.Lock()
		r.releases++
		r.mu.Unlock()
	}, nil
}

func (r *fakeRuntime) SystemState(statuses []kernel.TaskStatus) (int, uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := copy(statuses, r.statuses)

	return n, r.total
}

func (r *fakeRuntime) FreeHeap() uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.free
}

func (r *fakeRuntime) MinEverFreeHeap() uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.minFree
}

// advance moves total time on by d and charges busy of it to task i; the
// rest goes to the idle task at index 0.
func (r *fakeRuntime) advance(d uint32, busy map[int]uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.total += d
	spent := uint32(0)
	for i, b := range busy {
		r.statuses[i].RunTime += b
		spent += b
	}
	r.statuses[0].RunTime += d - spent
}

func newFakeRuntime() *fakeRuntime {
	return &fakeRuntime{
		free:    15000,
		minFree: 14500,
		statuses: []kernel.TaskStatus{
			{Name: kernel.IdleTaskName, StackHighWaterMark: 512},
			{Name: "Supervisor", Priority: 4, StackHighWaterMark: 400},
			{Name: "Sampler", Priority: 3, StackHighWaterMark: 1500},
			{Name: "IdleMon", StackHighWaterMark: 448},
		},
	}
}

type recordTransport struct {
	mu   sync.Mutex
	sent []string
	err  error
	// onSend runs after each payload is recorded.
	onSend func(payload string)
}

func (t *recordTransport) Transmit(_ context.Context, payload []byte, _ time.Duration) error {
	t.mu.Lock()
	t.sent = append(t.sent, string(payload))
	err, fn := t.err, t.onSend
	t.mu.Unlock()

	if fn != nil {
		fn(string(payload))
	}

	return err
}

func (t *recordTransport) payloads() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	return append([]string(nil), t.sent...)
}

// textFormatter renders just enough to identify a snapshot.
type textFormatter struct{}

func (textFormatter) Verbose(s Snapshot) []byte {
	return []byte("verbose:" + s.Timestamp.String())
}

func (textFormatter) Compact(s Snapshot) []byte {
	return []byte("compact:" + s.Timestamp.String())
}

func (textFormatter) Report(_ aggregate.Metrics, h aggregate.Health) []byte {
	if h.PowerOK {
		return []byte("report:power")
	}

	return []byte("report")
}

type countingWatchdog struct {
	mu    sync.Mutex
	feeds int
}

func (w *countingWatchdog) Feed() {
	w.mu.Lock()
	w.feeds++
	w.mu.Unlock()
}

func (w *countingWatchdog) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.feeds
}

// advancingHAL sleeps by moving a manual clock.
type advancingHAL struct {
	*hal.SoftHAL
	clock *kernel.ManualClock
	sleep time.Duration
}

func (h *advancingHAL) EnterLowPower(_ context.Context, mode hal.Mode) error {
	switch mode {
	case hal.Sleep, hal.DeepSleep:
		h.clock.Advance(h.sleep)

		return nil
	default:
		return hal.ErrInvalidMode
	}
}

// stageCounter tallies Add calls per label value set.
type stageCounter struct {
	mu     sync.Mutex
	counts map[string]float64
	lvs    string
	root   *stageCounter
}

func newStageCounter() *stageCounter {
	return &stageCounter{counts: map[string]float64{}}
}

func (c *stageCounter) With(labelValues ...string) metrics.Counter {
	return &stageCounter{lvs: c.lvs + fmt.Sprint(labelValues), root: c.base()}
}

func (c *stageCounter) Add(delta float64) {
	b := c.base()
	b.mu.Lock()
	b.counts[c.lvs] += delta
	b.mu.Unlock()
}

func (c *stageCounter) value(labelValues ...string) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.counts[fmt.Sprint(labelValues)]
}

func (c *stageCounter) base() *stageCounter {
	if c.root != nil {
		return c.root
	}

	return c
}
