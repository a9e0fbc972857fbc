package hal

import (
	"sync"
	"sync/atomic"
)

// SimPin models an active-low push button with a pull-up: the line reads
// high while released.
type SimPin struct {
	high atomic.Bool

	mu     sync.Mutex
	onEdge func()
}

func NewSimPin() *SimPin {
	p := &SimPin{}
	p.high.Store(true)

	return p
}

// Asserted reports whether the button is currently held.
func (p *SimPin) Asserted() bool {
	return !p.high.Load()
}

// OnFallingEdge installs the interrupt callback.
func (p *SimPin) OnFallingEdge(fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.onEdge = fn
}

func (p *SimPin) Press() {
	if !p.high.CompareAndSwap(true, false) {
		return
	}

	p.mu.Lock()
	fn := p.onEdge
	p.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (p *SimPin) Release() {
	p.high.Store(true)
}

// LED is the heartbeat indicator.
type LED struct {
	on      atomic.Bool
	toggles atomic.Uint64
}

func (l *LED) Toggle() {
	for {
		cur := l.on.Load()
		if l.on.CompareAndSwap(cur, !cur) {
			break
		}
	}
	l.toggles.Add(1)
}

func (l *LED) On() bool {
	return l.on.Load()
}

func (l *LED) Toggles() uint64 {
	return l.toggles.Load()
}
