// Package hal contains software stand-ins for the board peripherals the
// profiler drives: low-power entry, the user button, the heartbeat LED and
// the independent watchdog.
package hal

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Mode is the processor power mode.
type Mode uint8

const (
	Run Mode = iota
	Sleep
	DeepSleep
)

func (m Mode) String() string {
	switch m {
	case Run:
		return "run"
	case Sleep:
		return "sleep"
	case DeepSleep:
		return "deep_sleep"
	default:
		return "unknown"
	}
}

// WakeSource identifies what may bring the processor out of a low-power mode.
type WakeSource uint8

const (
	WakeButton WakeSource = iota
	WakeTimer
)

var (
	ErrInvalidMode  = errors.New("invalid low-power mode")
	ErrNoWakeSource = errors.New("no wake source configured")
)

// SoftHAL blocks the caller for the duration of a low-power episode. Deep
// sleep ends only on Wake; light sleep also ends after one tick.
type SoftHAL struct {
	mu      sync.Mutex
	sources map[WakeSource]bool
	wake    chan struct{}
	tick    time.Duration
}

func NewSoftHAL(tick time.Duration) *SoftHAL {
	return &SoftHAL{
		sources: make(map[WakeSource]bool),
		wake:    make(chan struct{}, 1),
		tick:    tick,
	}
}

func (h *SoftHAL) ConfigureWake(src WakeSource) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.sources[src] = true

	return nil
}

func (h *SoftHAL) EnterLowPower(ctx context.Context, mode Mode) error {
	h.mu.Lock()
	armed := len(h.sources) > 0
	h.mu.Unlock()

	// Pending wake requests raised before entry are discarded.
	select {
	case <-h.wake:
	default:
	}

	switch mode {
	case Sleep:
		timer := time.NewTimer(h.tick)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-h.wake:
		case <-timer.C:
		}

		return nil
	case DeepSleep:
		if !armed {
			return ErrNoWakeSource
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-h.wake:
			return nil
		}
	default:
		return ErrInvalidMode
	}
}

// Wake is safe to call from an interrupt handler: it never blocks.
func (h *SoftHAL) Wake() {
	select {
	case h.wake <- struct{}{}:
	default:
	}
}
