// Package aggregate keeps process-wide running statistics for the profiler
// pipeline and judges them against fixed pass/fail health criteria.
//
// Every update is append-only: no sample history is retained, and values are
// never reset while the process runs.
package aggregate

import (
	"sync"
	"time"
)

// Clock supplies the uptime timebase.
type Clock interface {
	Now() time.Duration
}

// Thresholds are the pass/fail criteria of the four health checks.
type Thresholds struct {
	// CPUOverheadPercent is the exclusive upper bound of the average CPU load.
	CPUOverheadPercent float64 `env:"CPU_OVERHEAD_PERCENT" envDefault:"5"`
	// HeapTotal is the known heap size the average free heap is judged against.
	HeapTotal uint32 `env:"HEAP_TOTAL" envDefault:"15360"`
	// HeapFreePercent is the exclusive lower bound of average free heap as a
	// percentage of HeapTotal.
	HeapFreePercent uint32 `env:"HEAP_FREE_PERCENT" envDefault:"90"`
	// MaxLatency is the exclusive upper bound of the worst end-to-end latency.
	MaxLatency time.Duration `env:"MAX_LATENCY" envDefault:"10ms"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		CPUOverheadPercent: 5.0,
		HeapTotal:          15360,
		HeapFreePercent:    90,
		MaxLatency:         10 * time.Millisecond,
	}
}

// Metrics is a consistent copy of the aggregates at one instant.
type Metrics struct {
	CPUSamples   uint32  `json:"cpu_samples"`
	HasCPUSample bool    `json:"has_cpu_sample"`
	AvgCPULoad   float64 `json:"avg_cpu_load"`
	MinCPULoad   float64 `json:"min_cpu_load"`
	MaxCPULoad   float64 `json:"max_cpu_load"`

	TransmitCount    uint32 `json:"transmit_count"`
	HasLatencySample bool   `json:"has_latency_sample"`
	MinLatencyMs     uint32 `json:"min_latency_ms"`
	AvgLatencyMs     uint32 `json:"avg_latency_ms"`
	MaxLatencyMs     uint32 `json:"max_latency_ms"`

	HeapSamples      uint32  `json:"heap_samples"`
	HasHeapSample    bool    `json:"has_heap_sample"`
	AvgHeapFree      uint32  `json:"avg_heap_free"`
	MinHeapFree      uint32  `json:"min_heap_free"`
	MaxFragmentation float64 `json:"max_fragmentation"`

	Uptime         time.Duration `json:"uptime"`
	WatchdogFeeds  uint32        `json:"watchdog_feeds"`
	StackOverflows uint32        `json:"stack_overflows"`
	AllocFailures  uint32        `json:"alloc_failures"`

	DeepSleepEntries uint32        `json:"deep_sleep_entries"`
	TotalDeepSleep   time.Duration `json:"total_deep_sleep"`
	LastWakeLatency  time.Duration `json:"last_wake_latency"`
}

// Health is the outcome of the four checks.
type Health struct {
	CPUOverheadAcceptable bool `json:"cpu_overhead_acceptable"`
	HeapHealthy           bool `json:"heap_healthy"`
	LatencyAcceptable     bool `json:"latency_acceptable"`
	PowerOK               bool `json:"power_ok"`
	Passed                int  `json:"passed"`
	Total                 int  `json:"total"`
}

// Aggregator is safe for concurrent use. Each update is a short critical
// section; readers get eventually consistent copies.
type Aggregator struct {
	mu         sync.Mutex
	clock      Clock
	start      time.Duration
	thresholds Thresholds

	m       Metrics
	cpuSum  float64
	heapSum uint64
}

func New(clock Clock, th Thresholds) *Aggregator {
	return &Aggregator{
		clock:      clock,
		start:      clock.Now(),
		thresholds: th,
	}
}

func (a *Aggregator) Thresholds() Thresholds {
	return a.thresholds
}

func (a *Aggregator) RecordCPULoad(load float64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.m.CPUSamples++
	a.cpuSum += load
	a.m.AvgCPULoad = a.cpuSum / float64(a.m.CPUSamples)

	if !a.m.HasCPUSample {
		a.m.HasCPUSample = true
		a.m.MinCPULoad = load
		a.m.MaxCPULoad = load

		return
	}
	if load < a.m.MinCPULoad {
		a.m.MinCPULoad = load
	}
	if load > a.m.MaxCPULoad {
		a.m.MaxCPULoad = load
	}
}

// RecordLatency records one end-to-end transmission. Latency is kept in whole
// milliseconds; the running average truncates.
func (a *Aggregator) RecordLatency(latency time.Duration) {
	ms := uint32(latency.Milliseconds())

	a.mu.Lock()
	defer a.mu.Unlock()

	a.m.TransmitCount++
	n := uint64(a.m.TransmitCount)
	a.m.AvgLatencyMs = uint32((uint64(a.m.AvgLatencyMs)*(n-1) + uint64(ms)) / n)

	if !a.m.HasLatencySample {
		a.m.HasLatencySample = true
		a.m.MinLatencyMs = ms
		a.m.MaxLatencyMs = ms

		return
	}
	if ms < a.m.MinLatencyMs {
		a.m.MinLatencyMs = ms
	}
	if ms > a.m.MaxLatencyMs {
		a.m.MaxLatencyMs = ms
	}
}

func (a *Aggregator) RecordHeapStatus(free uint32, fragmentation float64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.m.HeapSamples++
	a.heapSum += uint64(free)
	a.m.AvgHeapFree = uint32(a.heapSum / uint64(a.m.HeapSamples))

	if !a.m.HasHeapSample || free < a.m.MinHeapFree {
		a.m.MinHeapFree = free
	}
	a.m.HasHeapSample = true

	if fragmentation > a.m.MaxFragmentation {
		a.m.MaxFragmentation = fragmentation
	}
}

func (a *Aggregator) IncrementWatchdogFeed() {
	a.mu.Lock()
	a.m.WatchdogFeeds++
	a.mu.Unlock()
}

func (a *Aggregator) IncrementStackOverflow() {
	a.mu.Lock()
	a.m.StackOverflows++
	a.mu.Unlock()
}

func (a *Aggregator) IncrementAllocFailure() {
	a.mu.Lock()
	a.m.AllocFailures++
	a.mu.Unlock()
}

func (a *Aggregator) RecordDeepSleep(duration, wakeLatency time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.m.DeepSleepEntries++
	a.m.TotalDeepSleep += duration
	a.m.LastWakeLatency = wakeLatency
}

func (a *Aggregator) Metrics() Metrics {
	a.mu.Lock()
	m := a.m
	a.mu.Unlock()

	m.Uptime = a.Uptime()

	return m
}

func (a *Aggregator) AverageCPULoad() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.m.AvgCPULoad
}

func (a *Aggregator) Uptime() time.Duration {
	return a.clock.Now() - a.start
}

func (a *Aggregator) IsCPUOverheadAcceptable() bool {
	return a.Metrics().cpuOverheadAcceptable(a.thresholds)
}

func (a *Aggregator) IsHeapHealthy() bool {
	return a.Metrics().heapHealthy(a.thresholds)
}

func (a *Aggregator) IsLatencyAcceptable() bool {
	return a.Metrics().latencyAcceptable(a.thresholds)
}

func (a *Aggregator) IsPowerOK() bool {
	return a.Metrics().powerOK()
}

// Health evaluates all checks against one copy of the aggregates.
func (a *Aggregator) Health() Health {
	return a.Metrics().Evaluate(a.thresholds)
}

// Evaluate runs the four checks against m.
func (m Metrics) Evaluate(th Thresholds) Health {
	h := Health{
		CPUOverheadAcceptable: m.cpuOverheadAcceptable(th),
		HeapHealthy:           m.heapHealthy(th),
		LatencyAcceptable:     m.latencyAcceptable(th),
		PowerOK:               m.powerOK(),
		Total:                 4,
	}
	for _, ok := range []bool{h.CPUOverheadAcceptable, h.LatencyAcceptable, h.HeapHealthy, h.PowerOK} {
		if ok {
			h.Passed++
		}
	}

	return h
}

func (m Metrics) cpuOverheadAcceptable(th Thresholds) bool {
	return m.AvgCPULoad < th.CPUOverheadPercent
}

func (m Metrics) heapHealthy(th Thresholds) bool {
	if th.HeapTotal == 0 {
		return false
	}
	freePercent := uint64(m.AvgHeapFree) * 100 / uint64(th.HeapTotal)

	return freePercent > uint64(th.HeapFreePercent)
}

func (m Metrics) latencyAcceptable(th Thresholds) bool {
	return int64(m.MaxLatencyMs) < th.MaxLatency.Milliseconds()
}

func (m Metrics) powerOK() bool {
	return m.DeepSleepEntries > 0
}
