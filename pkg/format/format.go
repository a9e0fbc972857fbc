// Package format renders profiler snapshots and health reports as the
// line-oriented text written to the serial console.
package format

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/absmach/profiler/pkg/aggregate"
	"github.com/absmach/profiler/profiler"
)

const (
	// DefaultMaxSize is the output buffer of a single snapshot frame.
	DefaultMaxSize = 1024
	// MinSize always holds a verbose frame with no tasks. Smaller buffers
	// may render nothing.
	MinSize = 256

	ReportHeader = "\r\n========== TEST METRICS REPORT ==========\r\n"
	ReportFooter = "========================================\r\n"
)

// Formatter implements profiler.Formatter. Snapshot output never exceeds
// MaxSize: trailing tasks are left out until the frame fits, so the text is
// always complete JSON.
type Formatter struct {
	MaxSize    int
	Thresholds aggregate.Thresholds
}

var _ profiler.Formatter = (*Formatter)(nil)

func New(maxSize int, th aggregate.Thresholds) *Formatter {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}

	return &Formatter{
		MaxSize:    maxSize,
		Thresholds: th,
	}
}

// Verbose renders an indented multi-line JSON object with CRLF line ends.
func (f *Formatter) Verbose(s profiler.Snapshot) []byte {
	return f.fit(s, verbose)
}

// Compact renders a single-line JSON object with abbreviated keys.
func (f *Formatter) Compact(s profiler.Snapshot) []byte {
	return f.fit(s, compact)
}

func (f *Formatter) fit(s profiler.Snapshot, render func([]byte, profiler.Snapshot, int) []byte) []byte {
	buf := make([]byte, 0, f.MaxSize)
	for n := s.TaskCount; n >= 0; n-- {
		out := render(buf[:0], s, n)
		if len(out) <= f.MaxSize {
			return out
		}
	}

	// Not even the header fits.
	return nil
}

func verbose(b []byte, s profiler.Snapshot, tasks int) []byte {
	b = append(b, "{\r\n"...)
	b = append(b, `  "timestamp": `...)
	b = strconv.AppendInt(b, s.Timestamp.Milliseconds(), 10)
	b = append(b, ",\r\n"...)
	b = append(b, `  "cpu_load": `...)
	b = appendFixed(b, s.CPULoad)
	b = append(b, ",\r\n"...)
	b = append(b, `  "heap_free": `...)
	b = strconv.AppendUint(b, uint64(s.HeapFree), 10)
	b = append(b, ",\r\n"...)
	b = append(b, `  "heap_min": `...)
	b = strconv.AppendUint(b, uint64(s.HeapMin), 10)
	b = append(b, ",\r\n"...)
	b = append(b, `  "frag_pct": `...)
	b = appendFixed(b, s.Fragmentation)
	b = append(b, ",\r\n"...)
	b = append(b, `  "tasks": [`+"\r\n"...)
	for i := 0; i < tasks; i++ {
		t := s.Tasks[i]
		b = append(b, `    {"name": `...)
		b = appendString(b, t.Name)
		b = append(b, `, "runtime_pct": `...)
		b = appendFixed(b, t.RuntimePercent)
		b = append(b, `, "stack_free": `...)
		b = strconv.AppendUint(b, uint64(t.StackFree), 10)
		b = append(b, '}')
		if i < tasks-1 {
			b = append(b, ',')
		}
		b = append(b, "\r\n"...)
	}
	b = append(b, "  ],\r\n"...)
	b = append(b, `  "temp": `...)
	b = appendFixed(b, s.Temperature)
	b = append(b, "\r\n}"...)

	return b
}

func compact(b []byte, s profiler.Snapshot, tasks int) []byte {
	b = append(b, `{"ts":`...)
	b = strconv.AppendInt(b, s.Timestamp.Milliseconds(), 10)
	b = append(b, `,"cpu":`...)
	b = appendFixed(b, s.CPULoad)
	b = append(b, `,"heap":`...)
	b = strconv.AppendUint(b, uint64(s.HeapFree), 10)
	b = append(b, `,"min":`...)
	b = strconv.AppendUint(b, uint64(s.HeapMin), 10)
	b = append(b, `,"frag":`...)
	b = appendFixed(b, s.Fragmentation)
	b = append(b, `,"tasks":[`...)
	for i := 0; i < tasks; i++ {
		t := s.Tasks[i]
		if i > 0 {
			b = append(b, ',')
		}
		b = append(b, `{"n":`...)
		b = appendString(b, t.Name)
		b = append(b, `,"r":`...)
		b = appendFixed(b, t.RuntimePercent)
		b = append(b, `,"s":`...)
		b = strconv.AppendUint(b, uint64(t.StackFree), 10)
		b = append(b, '}')
	}
	b = append(b, `],"temp":`...)
	b = appendFixed(b, s.Temperature)
	b = append(b, '}')

	return b
}

func appendFixed(b []byte, v float64) []byte {
	return strconv.AppendFloat(b, v, 'f', 1, 64)
}

func appendString(b []byte, s string) []byte {
	q, err := json.Marshal(s)
	if err != nil {
		return append(b, `""`...)
	}

	return append(b, q...)
}

// Report renders the aggregate health report.
func (f *Formatter) Report(m aggregate.Metrics, h aggregate.Health) []byte {
	th := f.Thresholds
	cpuLimit := strconv.FormatFloat(th.CPUOverheadPercent, 'g', -1, 64)
	latLimit := strconv.FormatInt(th.MaxLatency.Milliseconds(), 10)
	uptime := uint64(m.Uptime / time.Second)

	b := make([]byte, 0, 768)
	b = append(b, ReportHeader...)
	b = fmt.Appendf(b, "CPU Load (avg/min/max): %.1f%% / %.1f%% / %.1f%%\r\n", m.AvgCPULoad, m.MinCPULoad, m.MaxCPULoad)
	b = fmt.Appendf(b, "CPU Overhead Check: %s\r\n", verdict(h.CPUOverheadAcceptable, "PASS (<"+cpuLimit+"%)", "FAIL (>"+cpuLimit+"%)"))
	b = fmt.Appendf(b, "IRQ->JSON Latency (min/avg/max): %d/%d/%d ms\r\n", m.MinLatencyMs, m.AvgLatencyMs, m.MaxLatencyMs)
	b = fmt.Appendf(b, "Latency Check: %s\r\n", verdict(h.LatencyAcceptable, "PASS (<"+latLimit+"ms)", "FAIL (>"+latLimit+"ms)"))
	b = fmt.Appendf(b, "Heap (avg free/min free): %d / %d bytes\r\n", m.AvgHeapFree, m.MinHeapFree)
	b = fmt.Appendf(b, "Max Fragmentation: %.1f%%\r\n", m.MaxFragmentation)
	b = fmt.Appendf(b, "Heap Health Check: %s\r\n", verdict(h.HeapHealthy,
		fmt.Sprintf("PASS (>%d%% free)", th.HeapFreePercent), fmt.Sprintf("FAIL (<%d%% free)", th.HeapFreePercent)))
	b = fmt.Appendf(b, "Uptime: %d seconds (%d hours)\r\n", uptime, uptime/3600)
	b = fmt.Appendf(b, "Watchdog Feeds: %d\r\n", m.WatchdogFeeds)
	b = fmt.Appendf(b, "Stack Overflows: %d\r\n", m.StackOverflows)
	b = fmt.Appendf(b, "Malloc Failures: %d\r\n", m.AllocFailures)
	b = fmt.Appendf(b, "Deep Sleep Entries: %d\r\n", m.DeepSleepEntries)
	b = fmt.Appendf(b, "Total Sleep Time: %d ms\r\n", m.TotalDeepSleep.Milliseconds())
	b = fmt.Appendf(b, "Last Wake Latency: %d ms\r\n", m.LastWakeLatency.Milliseconds())
	b = fmt.Appendf(b, "Power Check: %s\r\n", verdict(h.PowerOK, "PASS (deep sleep active)", "NOTE (no deep sleep yet)"))
	b = fmt.Appendf(b, "\r\nTest Results: %d/%d PASS\r\n", h.Passed, h.Total)
	b = append(b, ReportFooter...)

	return b
}

func verdict(ok bool, pass, fail string) string {
	if ok {
		return pass
	}

	return fail
}
