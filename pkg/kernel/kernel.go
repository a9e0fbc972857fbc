package kernel

import (
	"errors"
	"sync"
	"time"
)

const (
	IdleTaskName = "IDLE"

	// statusEntrySize is the per-task footprint of a status scratch array.
	statusEntrySize uint32 = 36
	idleStackBytes  uint32 = 512
)

var ErrStackOverflow = errors.New("stack overflow")

// TaskStatus is a point-in-time view of one task.
type TaskStatus struct {
	Name     string
	Priority int
	// RunTime is the cumulative execution time in microseconds. It wraps
	// like a hardware counter.
	RunTime uint32
	// StackHighWaterMark is the smallest stack headroom ever observed, in bytes.
	StackHighWaterMark uint32
}

// Hooks are invoked outside the kernel lock.
type Hooks struct {
	StackOverflow func(task string)
	MallocFailed  func()
}

// Kernel provides the scheduler services the profiler consumes on a Go host:
// per-task run time counters, a heap budget, stack watermarks and a tick clock.
type Kernel struct {
	mu    sync.Mutex
	clock Clock
	heap  *Heap
	tasks []*Task
	hooks Hooks
}

func New(clock Clock, heapSize uint32) *Kernel {
	return &Kernel{
		clock: clock,
		heap:  NewHeap(heapSize),
	}
}

func (k *Kernel) SetHooks(h Hooks) {
	k.mu.Lock()
	defer k.mu.Unlock()

	k.hooks = h
}

// Spawn registers a task. Tasks are reported in registration order after the
// synthetic idle task.
func (k *Kernel) Spawn(name string, priority int, stackBytes uint32) *Task {
	t := &Task{
		kernel:   k,
		name:     name,
		priority: priority,
		stack:    stackBytes,
	}

	k.mu.Lock()
	k.tasks = append(k.tasks, t)
	k.mu.Unlock()

	return t
}

func (k *Kernel) Clock() Clock {
	return k.clock
}

func (k *Kernel) Ticks() time.Duration {
	return k.clock.Now()
}

func (k *Kernel) NumTasks() int {
	k.mu.Lock()
	defer k.mu.Unlock()

	return len(k.tasks) + 1
}

// SystemState fills statuses with as many tasks as fit and returns the number
// written together with the total run time counter.
func (k *Kernel) SystemState(statuses []TaskStatus) (int, uint32) {
	total := uint32(k.clock.Now().Microseconds())

	k.mu.Lock()
	defer k.mu.Unlock()

	var busy uint32
	for _, t := range k.tasks {
		busy += t.runTime
	}

	n := 0
	if n < len(statuses) {
		statuses[n] = TaskStatus{
			Name:               IdleTaskName,
			RunTime:            total - busy,
			StackHighWaterMark: idleStackBytes,
		}
		n++
	}
	for _, t := range k.tasks {
		if n >= len(statuses) {
			break
		}
		statuses[n] = TaskStatus{
			Name:               t.name,
			Priority:           t.priority,
			RunTime:            t.runTime,
			StackHighWaterMark: t.stack - t.peak,
		}
		n++
	}

	return n, total
}

func (k *Kernel) FreeHeap() uint32 {
	return k.heap.Free()
}

func (k *Kernel) MinEverFreeHeap() uint32 {
	return k.heap.MinEverFree()
}

func (k *Kernel) HeapSize() uint32 {
	return k.heap.Total()
}

// Scratch allocates a status array for n tasks from the heap. A failure is
// reported to the caller only; it is not treated as fatal.
func (k *Kernel) Scratch(n int) ([]TaskStatus, func(), error) {
	release, err := k.heap.Alloc(uint32(n) * statusEntrySize)
	if err != nil {
		return nil, nil, err
	}

	return make([]TaskStatus, n), release, nil
}

// Malloc reserves size bytes for an allocation the caller cannot live
// without. On failure the malloc-failed hook runs before the error returns.
func (k *Kernel) Malloc(size uint32) (func(), error) {
	release, err := k.heap.Alloc(size)
	if err != nil {
		k.mu.Lock()
		hook := k.hooks.MallocFailed
		k.mu.Unlock()
		if hook != nil {
			hook()
		}

		return nil, err
	}

	return release, nil
}

// Task is a handle on a registered unit of execution.
type Task struct {
	kernel   *Kernel
	name     string
	priority int
	stack    uint32
	runTime  uint32
	peak     uint32
}

func (t *Task) Name() string {
	return t.name
}

func (t *Task) Priority() int {
	return t.priority
}

// Exec runs fn and charges its duration to the task.
func (t *Task) Exec(fn func()) {
	start := t.kernel.clock.Now()
	defer func() {
		elapsed := uint32((t.kernel.clock.Now() - start).Microseconds())
		t.kernel.mu.Lock()
		t.runTime += elapsed
		t.kernel.mu.Unlock()
	}()

	fn()
}

// Touch records that the task reached the given stack depth. Exceeding the
// stack size triggers the stack-overflow hook and returns ErrStackOverflow.
func (t *Task) Touch(depth uint32) error {
	k := t.kernel

	k.mu.Lock()
	if depth > t.stack {
		t.peak = t.stack
		hook := k.hooks.StackOverflow
		k.mu.Unlock()
		if hook != nil {
			hook(t.name)
		}

		return ErrStackOverflow
	}
	if depth > t.peak {
		t.peak = depth
	}
	k.mu.Unlock()

	return nil
}
