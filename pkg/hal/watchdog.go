package hal

import (
	"sync"
	"time"
)

// SoftWatchdog calls reset when it has not been fed for a full timeout.
// Once expired it stays expired; the reset action is expected to restart
// the process.
type SoftWatchdog struct {
	mu      sync.Mutex
	timeout time.Duration
	reset   func()
	timer   *time.Timer
	expired bool
}

func NewSoftWatchdog(timeout time.Duration, reset func()) *SoftWatchdog {
	return &SoftWatchdog{
		timeout: timeout,
		reset:   reset,
	}
}

// Start arms the watchdog. It cannot be disarmed except by Stop, which only
// exists for tests and orderly shutdown.
func (w *SoftWatchdog) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		return
	}
	w.timer = time.AfterFunc(w.timeout, w.expire)
}

func (w *SoftWatchdog) Feed() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer == nil || w.expired {
		return
	}
	w.timer.Reset(w.timeout)
}

func (w *SoftWatchdog) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
}

func (w *SoftWatchdog) Expired() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.expired
}

func (w *SoftWatchdog) expire() {
	w.mu.Lock()
	if w.expired {
		w.mu.Unlock()

		return
	}
	w.expired = true
	w.mu.Unlock()

	if w.reset != nil {
		w.reset()
	}
}
