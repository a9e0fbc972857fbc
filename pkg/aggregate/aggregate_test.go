package aggregate

import (
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/absmach/profiler/pkg/kernel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAggregator() (*Aggregator, *kernel.ManualClock) {
	clock := kernel.NewManualClock()

	return New(clock, DefaultThresholds()), clock
}

func TestCPULoadRunningStatistics(t *testing.T) {
	tests := []struct {
		name    string
		samples []float64
	}{
		{name: "single sample", samples: []float64{3.5}},
		{name: "first sample zero", samples: []float64{0, 4, 2}},
		{name: "ascending", samples: []float64{1, 2, 3, 4, 5}},
		{name: "full range", samples: []float64{100, 0, 42.5, 99.9, 0.1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, _ := newAggregator()

			sum, lo, hi := 0.0, tt.samples[0], tt.samples[0]
			for _, s := range tt.samples {
				a.RecordCPULoad(s)
				sum += s
				lo = min(lo, s)
				hi = max(hi, s)
			}

			m := a.Metrics()
			assert.True(t, m.HasCPUSample)
			assert.Equal(t, uint32(len(tt.samples)), m.CPUSamples)
			assert.InDelta(t, sum/float64(len(tt.samples)), m.AvgCPULoad, 1e-9)
			assert.Equal(t, lo, m.MinCPULoad)
			assert.Equal(t, hi, m.MaxCPULoad)
		})
	}
}

func TestZeroCPUSampleIsKeptAsMinimum(t *testing.T) {
	a, _ := newAggregator()

	a.RecordCPULoad(0)
	a.RecordCPULoad(7)

	assert.Equal(t, 0.0, a.Metrics().MinCPULoad)
}

func TestNoSamplesYet(t *testing.T) {
	a, _ := newAggregator()
	m := a.Metrics()

	assert.False(t, m.HasCPUSample)
	assert.False(t, m.HasLatencySample)
	assert.False(t, m.HasHeapSample)
}

func TestLatencyMinMaxIndependentOfOrder(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for round := 0; round < 50; round++ {
		samples := make([]time.Duration, 1+rng.Intn(40))
		for i := range samples {
			samples[i] = time.Duration(rng.Intn(500)) * time.Millisecond
		}
		lo, hi := samples[0], samples[0]
		for _, s := range samples {
			lo = min(lo, s)
			hi = max(hi, s)
		}

		for perm := 0; perm < 3; perm++ {
			rng.Shuffle(len(samples), func(i, j int) { samples[i], samples[j] = samples[j], samples[i] })

			a, _ := newAggregator()
			for _, s := range samples {
				a.RecordLatency(s)
			}

			m := a.Metrics()
			require.Equal(t, uint32(lo.Milliseconds()), m.MinLatencyMs)
			require.Equal(t, uint32(hi.Milliseconds()), m.MaxLatencyMs)
			require.Equal(t, uint32(len(samples)), m.TransmitCount)
		}
	}
}

func TestLatencyRunningAverageTruncates(t *testing.T) {
	a, _ := newAggregator()

	for _, ms := range []int{1, 2} {
		a.RecordLatency(time.Duration(ms) * time.Millisecond)
	}
	assert.Equal(t, uint32(1), a.Metrics().AvgLatencyMs)

	a.RecordLatency(6 * time.Millisecond)
	// (1*2 + 6) / 3
	assert.Equal(t, uint32(2), a.Metrics().AvgLatencyMs)
}

func TestFirstZeroLatencyIsASample(t *testing.T) {
	a, _ := newAggregator()

	a.RecordLatency(0)
	a.RecordLatency(4 * time.Millisecond)

	m := a.Metrics()
	assert.Equal(t, uint32(0), m.MinLatencyMs)
	assert.Equal(t, uint32(4), m.MaxLatencyMs)
}

func TestHeapHealth(t *testing.T) {
	tests := []struct {
		name    string
		free    uint32
		healthy bool
	}{
		{name: "about 91 percent free", free: 14000, healthy: true},
		{name: "about 84.6 percent free", free: 13000, healthy: false},
		{name: "exactly 90 percent free", free: 13824, healthy: false},
		{name: "everything free", free: 15360, healthy: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, _ := newAggregator()
			a.RecordHeapStatus(tt.free, 0)

			assert.Equal(t, tt.healthy, a.IsHeapHealthy())
		})
	}
}

func TestHeapStatistics(t *testing.T) {
	a, _ := newAggregator()

	a.RecordHeapStatus(14000, 2.5)
	a.RecordHeapStatus(12000, 7.5)
	a.RecordHeapStatus(13001, 1.0)

	m := a.Metrics()
	assert.Equal(t, uint32(13000), m.AvgHeapFree)
	assert.Equal(t, uint32(12000), m.MinHeapFree)
	assert.Equal(t, 7.5, m.MaxFragmentation)
}

func TestHealthChecks(t *testing.T) {
	a, _ := newAggregator()

	h := a.Health()
	assert.True(t, h.CPUOverheadAcceptable)
	assert.True(t, h.LatencyAcceptable)
	assert.False(t, h.HeapHealthy)
	assert.False(t, h.PowerOK)
	assert.Equal(t, 2, h.Passed)
	assert.Equal(t, 4, h.Total)

	a.RecordCPULoad(4.9)
	a.RecordLatency(9 * time.Millisecond)
	a.RecordHeapStatus(15000, 0)
	a.RecordDeepSleep(2*time.Second, 3*time.Millisecond)
	assert.Equal(t, 4, a.Health().Passed)

	a.RecordCPULoad(6)
	a.RecordLatency(10 * time.Millisecond)
	assert.False(t, a.IsCPUOverheadAcceptable())
	assert.False(t, a.IsLatencyAcceptable())
	assert.True(t, a.IsPowerOK())
	assert.Equal(t, 2, a.Health().Passed)
}

func TestCountersAndSleep(t *testing.T) {
	a, clock := newAggregator()

	a.IncrementWatchdogFeed()
	a.IncrementWatchdogFeed()
	a.IncrementStackOverflow()
	a.IncrementAllocFailure()
	a.RecordDeepSleep(time.Second, time.Millisecond)
	a.RecordDeepSleep(2*time.Second, 4*time.Millisecond)
	clock.Advance(90 * time.Second)

	m := a.Metrics()
	assert.Equal(t, uint32(2), m.WatchdogFeeds)
	assert.Equal(t, uint32(1), m.StackOverflows)
	assert.Equal(t, uint32(1), m.AllocFailures)
	assert.Equal(t, uint32(2), m.DeepSleepEntries)
	assert.Equal(t, 3*time.Second, m.TotalDeepSleep)
	assert.Equal(t, 4*time.Millisecond, m.LastWakeLatency)
	assert.Equal(t, 90*time.Second, m.Uptime)
}

func TestConcurrentUpdates(t *testing.T) {
	a, _ := newAggregator()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				a.RecordCPULoad(2)
				a.IncrementWatchdogFeed()
			}
		}()
	}
	wg.Wait()

	m := a.Metrics()
	assert.Equal(t, uint32(8000), m.CPUSamples)
	assert.Equal(t, uint32(8000), m.WatchdogFeeds)
	assert.InDelta(t, 2.0, m.AvgCPULoad, 1e-9)
}
