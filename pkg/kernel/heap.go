package kernel

import (
	"errors"
	"sync"
)

// DefaultHeapSize matches the 15 KiB heap budget of the reference board.
const DefaultHeapSize uint32 = 15360

var ErrAllocFailed = errors.New("heap allocation failed")

// Heap is a byte-accounting arena. It never hands out memory, it only tracks
// how much of a fixed budget is reserved.
type Heap struct {
	mu      sync.Mutex
	total   uint32
	free    uint32
	minFree uint32
}

func NewHeap(total uint32) *Heap {
	return &Heap{
		total:   total,
		free:    total,
		minFree: total,
	}
}

// Alloc reserves size bytes. The returned release func is idempotent.
func (h *Heap) Alloc(size uint32) (func(), error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if size > h.free {
		return nil, ErrAllocFailed
	}

	h.free -= size
	if h.free < h.minFree {
		h.minFree = h.free
	}

	var once sync.Once

	return func() {
		once.Do(func() {
			h.mu.Lock()
			h.free += size
			h.mu.Unlock()
		})
	}, nil
}

func (h *Heap) Total() uint32 {
	return h.total
}

func (h *Heap) Free() uint32 {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.free
}

func (h *Heap) MinEverFree() uint32 {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.minFree
}
