package profiler

import (
	"sync"

	pkgerrors "github.com/absmach/profiler/pkg/errors"
)

// DefaultRingSize is the number of snapshots kept for later retrieval.
const DefaultRingSize = 100

// RingBuffer archives the most recent snapshots, overwriting the oldest.
// Storage is allocated once.
type RingBuffer struct {
	mu    sync.RWMutex
	buf   []Snapshot
	next  int
	count int
}

func NewRingBuffer(capacity int) *RingBuffer {
	if capacity <= 0 {
		capacity = DefaultRingSize
	}

	return &RingBuffer{buf: make([]Snapshot, capacity)}
}

func (r *RingBuffer) Push(s Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.buf[r.next] = s
	r.next = (r.next + 1) % len(r.buf)
	if r.count < len(r.buf) {
		r.count++
	}
}

// Get returns the snapshot index positions back from the latest; 0 is the
// most recent.
func (r *RingBuffer) Get(index int) (Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if index < 0 || index >= r.count {
		return Snapshot{}, pkgerrors.ErrIndexOutOfRange
	}

	pos := (r.next - 1 - index + len(r.buf)) % len(r.buf)

	return r.buf[pos], nil
}

func (r *RingBuffer) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.count
}

func (r *RingBuffer) Cap() int {
	return len(r.buf)
}
