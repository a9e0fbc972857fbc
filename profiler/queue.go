package profiler

import (
	"context"
	"sync"

	pkgerrors "github.com/absmach/profiler/pkg/errors"
)

var ErrQueueFull = pkgerrors.ErrQueueFull

// SnapshotQueue is a fixed-capacity deque of snapshots. Push appends and
// blocks while the queue is full; PushFront inserts ahead of everything
// queued and never blocks; Pop blocks until an entry is available.
//
// slots holds one token per free position and items one token per queued
// snapshot, so blocking is plain channel semantics and ring is only touched
// by a goroutine that already owns a token.
type SnapshotQueue struct {
	slots chan struct{}
	items chan struct{}

	mu    sync.Mutex
	ring  []Snapshot
	head  int
	count int
}

func NewSnapshotQueue(capacity int) *SnapshotQueue {
	q := &SnapshotQueue{
		slots: make(chan struct{}, capacity),
		items: make(chan struct{}, capacity),
		ring:  make([]Snapshot, capacity),
	}
	for i := 0; i < capacity; i++ {
		q.slots <- struct{}{}
	}

	return q
}

// Push waits for a free slot for as long as ctx allows.
func (q *SnapshotQueue) Push(ctx context.Context, s Snapshot) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-q.slots:
	}

	q.mu.Lock()
	q.ring[(q.head+q.count)%len(q.ring)] = s
	q.count++
	q.mu.Unlock()

	q.items <- struct{}{}

	return nil
}

// PushFront makes s the next entry to be popped. It returns ErrQueueFull
// instead of waiting.
func (q *SnapshotQueue) PushFront(s Snapshot) error {
	select {
	case <-q.slots:
	default:
		return ErrQueueFull
	}

	q.mu.Lock()
	q.head = (q.head - 1 + len(q.ring)) % len(q.ring)
	q.ring[q.head] = s
	q.count++
	q.mu.Unlock()

	q.items <- struct{}{}

	return nil
}

func (q *SnapshotQueue) Pop(ctx context.Context) (Snapshot, error) {
	select {
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	case <-q.items:
	}

	q.mu.Lock()
	s := q.ring[q.head]
	q.ring[q.head] = Snapshot{}
	q.head = (q.head + 1) % len(q.ring)
	q.count--
	q.mu.Unlock()

	q.slots <- struct{}{}

	return s, nil
}

// Len reports the number of queued snapshots.
func (q *SnapshotQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.count
}

func (q *SnapshotQueue) Cap() int {
	return len(q.ring)
}
