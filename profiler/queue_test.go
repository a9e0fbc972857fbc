package profiler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stamp(ms int) Snapshot {
	return Snapshot{Timestamp: time.Duration(ms) * time.Millisecond}
}

func TestQueueOrder(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		name  string
		back  []int
		front []int
		want  []int
	}{
		{
			name: "fifo",
			back: []int{1, 2, 3},
			want: []int{1, 2, 3},
		},
		{
			name:  "urgent ahead of periodic",
			back:  []int{1, 2},
			front: []int{9},
			want:  []int{9, 1, 2},
		},
		{
			name:  "latest urgent first",
			back:  []int{1},
			front: []int{8, 9},
			want:  []int{9, 8, 1},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			q := NewSnapshotQueue(4)
			for _, ms := range tc.back {
				require.NoError(t, q.Push(ctx, stamp(ms)))
			}
			for _, ms := range tc.front {
				require.NoError(t, q.PushFront(stamp(ms)))
			}
			assert.Equal(t, len(tc.want), q.Len())

			for _, ms := range tc.want {
				s, err := q.Pop(ctx)
				require.NoError(t, err)
				assert.Equal(t, stamp(ms).Timestamp, s.Timestamp)
			}
			assert.Zero(t, q.Len())
		})
	}
}

func TestQueueWrapsAround(t *testing.T) {
	ctx := context.Background()
	q := NewSnapshotQueue(3)

	for i := range 10 {
		require.NoError(t, q.Push(ctx, stamp(i)))
		if i%2 == 1 {
			require.NoError(t, q.PushFront(stamp(100+i)))
		}
		s, err := q.Pop(ctx)
		require.NoError(t, err)
		if i%2 == 1 {
			assert.Equal(t, stamp(100+i).Timestamp, s.Timestamp)
			s, err = q.Pop(ctx)
			require.NoError(t, err)
		}
		assert.Equal(t, stamp(i).Timestamp, s.Timestamp)
	}
}

func TestQueueUrgentDroppedWhenFull(t *testing.T) {
	ctx := context.Background()
	q := NewSnapshotQueue(2)
	require.NoError(t, q.Push(ctx, stamp(1)))
	require.NoError(t, q.Push(ctx, stamp(2)))

	assert.ErrorIs(t, q.PushFront(stamp(9)), ErrQueueFull)
	assert.Equal(t, 2, q.Len())

	s, err := q.Pop(ctx)
	require.NoError(t, err)
	assert.Equal(t, stamp(1).Timestamp, s.Timestamp)
}

func TestQueueBackpressure(t *testing.T) {
	ctx := context.Background()
	q := NewSnapshotQueue(10)
	for i := range 10 {
		require.NoError(t, q.Push(ctx, stamp(i)))
	}

	pushed := make(chan error, 1)
	go func() {
		pushed <- q.Push(ctx, stamp(10))
	}()

	select {
	case <-pushed:
		t.Fatal("push into a full queue returned without a free slot")
	case <-time.After(50 * time.Millisecond):
	}

	s, err := q.Pop(ctx)
	require.NoError(t, err)
	assert.Equal(t, stamp(0).Timestamp, s.Timestamp)

	select {
	case err := <-pushed:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("blocked push not released by pop")
	}

	// Nothing was lost or reordered.
	for i := 1; i <= 10; i++ {
		s, err := q.Pop(ctx)
		require.NoError(t, err)
		assert.Equal(t, stamp(i).Timestamp, s.Timestamp)
	}
}

func TestQueueCancellation(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	q := NewSnapshotQueue(1)
	_, err := q.Pop(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, q.Push(context.Background(), stamp(1)))
	err = q.Push(ctx, stamp(2))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, q.Len())
}
