package profiler

import (
	"context"
	"time"

	"github.com/absmach/profiler/pkg/aggregate"
	"github.com/absmach/profiler/pkg/hal"
	"github.com/absmach/profiler/pkg/kernel"
)

// Runtime is the scheduler introspection the sampler reads.
type Runtime interface {
	Ticks() time.Duration
	NumTasks() int
	// Scratch allocates a status array for n tasks. The returned release
	// func must be called once the array is no longer needed.
	Scratch(n int) ([]kernel.TaskStatus, func(), error)
	SystemState(statuses []kernel.TaskStatus) (int, uint32)
	FreeHeap() uint32
	MinEverFreeHeap() uint32
}

// Executor charges work to a scheduler task and tracks its stack depth.
type Executor interface {
	Exec(fn func())
	Touch(depth uint32) error
}

// Formatter renders snapshots and reports to wire text. Output is bounded by
// the formatter; callers transmit what they get.
type Formatter interface {
	Verbose(s Snapshot) []byte
	Compact(s Snapshot) []byte
	Report(m aggregate.Metrics, h aggregate.Health) []byte
}

// Transport delivers a payload within timeout.
type Transport interface {
	Transmit(ctx context.Context, payload []byte, timeout time.Duration) error
}

// PowerHAL enters low-power modes. EnterLowPower blocks until the episode
// ends.
type PowerHAL interface {
	ConfigureWake(src hal.WakeSource) error
	EnterLowPower(ctx context.Context, mode hal.Mode) error
}

// Resumer is implemented by a PowerHAL that must restore peripherals after
// waking from deep sleep.
type Resumer interface {
	Resume(ctx context.Context) error
}

// Pin reads the user button level.
type Pin interface {
	Asserted() bool
}

type Watchdog interface {
	Feed()
}

type Thermometer interface {
	Temperature(ctx context.Context) (float64, error)
}

// Heartbeat is toggled once per sample.
type Heartbeat interface {
	Toggle()
}

// Waker is implemented by a PowerHAL whose low-power episodes end on an
// external interrupt.
type Waker interface {
	Wake()
}
