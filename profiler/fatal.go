package profiler

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/absmach/profiler/pkg/aggregate"
)

var ErrHalted = errors.New("profiler halted on fatal fault")

const haltNoticeTimeout = 100 * time.Millisecond

// Halter handles the unrecoverable faults: stack overflow and failed
// allocations the system cannot live without. The first fault is counted,
// announced and stops every task; the process then waits for the watchdog.
type Halter struct {
	agg       *aggregate.Aggregator
	transport Transport
	cancel    context.CancelFunc
	logger    *slog.Logger

	halted atomic.Bool
	done   chan struct{}
	reason atomic.Value
}

func NewHalter(agg *aggregate.Aggregator, t Transport, cancel context.CancelFunc, logger *slog.Logger) *Halter {
	return &Halter{
		agg:       agg,
		transport: t,
		cancel:    cancel,
		logger:    logger,
		done:      make(chan struct{}),
	}
}

// StackOverflow matches the kernel stack-overflow hook.
func (h *Halter) StackOverflow(task string) {
	h.agg.IncrementStackOverflow()
	h.halt(stackOverflowNotice(task), slog.String("task", task))
}

// MallocFailed matches the kernel malloc-failed hook.
func (h *Halter) MallocFailed() {
	h.agg.IncrementAllocFailure()
	h.halt(NoticeMalloc)
}

func (h *Halter) halt(msg string, attrs ...any) {
	if !h.halted.CompareAndSwap(false, true) {
		return
	}
	h.reason.Store(msg)

	h.logger.Error("fatal fault, halting", append(attrs, slog.String("notice", msg))...)
	if err := h.transport.Transmit(context.Background(), []byte(msg), haltNoticeTimeout); err != nil {
		h.logger.Error("failed to transmit fault notice", slog.Any("error", err))
	}

	h.cancel()
	close(h.done)
}

// Halted is closed once a fatal fault has been handled.
func (h *Halter) Halted() <-chan struct{} {
	return h.done
}

func (h *Halter) Reason() string {
	r, _ := h.reason.Load().(string)

	return r
}
