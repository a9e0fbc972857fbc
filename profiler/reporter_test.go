package profiler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/absmach/profiler/pkg/aggregate"
	"github.com/absmach/profiler/pkg/kernel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReporterDeliver(t *testing.T) {
	cases := []struct {
		name        string
		compact     bool
		transmitErr error
		want        string
		wantCount   uint32
	}{
		{
			name:      "verbose",
			want:      "verbose:1.5s\r\n",
			wantCount: 1,
		},
		{
			name:      "compact",
			compact:   true,
			want:      "compact:1.5s\r\n",
			wantCount: 1,
		},
		{
			name:        "transmit failure not recorded as latency",
			transmitErr: errors.New("link down"),
			want:        "verbose:1.5s\r\n",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			clock := kernel.NewManualClock()
			agg := aggregate.New(clock, aggregate.DefaultThresholds())
			tr := &recordTransport{err: tc.transmitErr}
			r := NewReporter(NewSnapshotQueue(1), textFormatter{}, tr, agg, clock, 100*time.Millisecond, tc.compact, NopInstruments(), discardLogger())

			r.Deliver(context.Background(), Snapshot{Timestamp: 1500 * time.Millisecond})

			assert.Equal(t, []string{tc.want}, tr.payloads())
			assert.Equal(t, tc.wantCount, agg.Metrics().TransmitCount)
		})
	}
}

// emptyFormatter renders nothing, as a formatter does when its buffer cannot
// hold even an empty frame.
type emptyFormatter struct{ textFormatter }

func (emptyFormatter) Verbose(Snapshot) []byte { return nil }

func (emptyFormatter) Compact(Snapshot) []byte { return nil }

func TestReporterDeliverEmptyPayload(t *testing.T) {
	clock := kernel.NewManualClock()
	agg := aggregate.New(clock, aggregate.DefaultThresholds())
	tr := &recordTransport{onSend: func(string) { clock.Advance(4 * time.Millisecond) }}
	failures := newStageCounter()
	inst := NopInstruments()
	inst.TransmitFailures = failures

	for _, compact := range []bool{false, true} {
		r := NewReporter(NewSnapshotQueue(1), emptyFormatter{}, tr, agg, clock, 100*time.Millisecond, compact, inst, discardLogger())
		r.Deliver(context.Background(), Snapshot{Timestamp: time.Second})
	}

	assert.Empty(t, tr.payloads())
	assert.Equal(t, uint32(0), agg.Metrics().TransmitCount)
	assert.Equal(t, float64(2), failures.value("stage", "format"))
	assert.Zero(t, failures.value("stage", "snapshot"))
}

func TestReporterLatency(t *testing.T) {
	clock := kernel.NewManualClock()
	agg := aggregate.New(clock, aggregate.DefaultThresholds())
	tr := &recordTransport{onSend: func(string) { clock.Advance(4 * time.Millisecond) }}
	r := NewReporter(NewSnapshotQueue(1), textFormatter{}, tr, agg, clock, 100*time.Millisecond, false, NopInstruments(), discardLogger())

	r.Deliver(context.Background(), Snapshot{})
	tr.onSend = func(string) { clock.Advance(7 * time.Millisecond) }
	r.Deliver(context.Background(), Snapshot{})

	m := agg.Metrics()
	assert.Equal(t, uint32(4), m.MinLatencyMs)
	assert.Equal(t, uint32(7), m.MaxLatencyMs)
	assert.True(t, agg.IsLatencyAcceptable())
}

func TestReporterRunDrainsQueue(t *testing.T) {
	clock := kernel.NewManualClock()
	k := kernel.New(clock, kernel.DefaultHeapSize)
	task := k.Spawn(reportTaskName, 1, 2048)
	agg := aggregate.New(clock, aggregate.DefaultThresholds())
	tr := &recordTransport{}
	q := NewSnapshotQueue(4)
	r := NewReporter(q, textFormatter{}, tr, agg, clock, 100*time.Millisecond, false, NopInstruments(), discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, q.Push(ctx, stamp(1)))
	require.NoError(t, q.PushFront(Snapshot{Timestamp: 9 * time.Millisecond, Urgent: true}))

	done := make(chan error, 1)
	go func() {
		done <- r.Run(ctx, task)
	}()

	require.Eventually(t, func() bool { return len(tr.payloads()) == 2 }, time.Second, time.Millisecond)
	cancel()
	assert.NoError(t, <-done)
	assert.Equal(t, []string{"verbose:9ms\r\n", "verbose:1ms\r\n"}, tr.payloads())
}

func TestReporterStackOverflowStopsTask(t *testing.T) {
	clock := kernel.NewManualClock()
	k := kernel.New(clock, kernel.DefaultHeapSize)
	var overflowed string
	k.SetHooks(kernel.Hooks{StackOverflow: func(name string) { overflowed = name }})
	task := k.Spawn(reportTaskName, 1, 256)
	q := NewSnapshotQueue(1)
	r := NewReporter(q, textFormatter{}, &recordTransport{}, aggregate.New(clock, aggregate.DefaultThresholds()), clock, time.Millisecond, false, NopInstruments(), discardLogger())

	require.NoError(t, q.Push(context.Background(), stamp(1)))
	err := r.Run(context.Background(), task)

	assert.ErrorIs(t, err, kernel.ErrStackOverflow)
	assert.Equal(t, reportTaskName, overflowed)
}
