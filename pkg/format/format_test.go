package format_test

import (
	"encoding/json"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/absmach/profiler/pkg/aggregate"
	"github.com/absmach/profiler/pkg/format"
	"github.com/absmach/profiler/profiler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snapshot(tasks ...profiler.TaskSample) profiler.Snapshot {
	s := profiler.Snapshot{
		Timestamp:     12345 * time.Millisecond,
		CPULoad:       3.14159,
		HeapFree:      14000,
		HeapMin:       13000,
		Fragmentation: 7.142857,
		Temperature:   42.5,
	}
	for i, t := range tasks {
		s.Tasks[i] = t
	}
	s.TaskCount = len(tasks)

	return s
}

func TestVerbose(t *testing.T) {
	f := format.New(0, aggregate.DefaultThresholds())
	s := snapshot(
		profiler.TaskSample{Name: "IDLE", RuntimePercent: 95, StackFree: 400},
		profiler.TaskSample{Name: "Sampler", RuntimePercent: 0.01, StackFree: 1500},
	)

	want := "{\r\n" +
		"  \"timestamp\": 12345,\r\n" +
		"  \"cpu_load\": 3.1,\r\n" +
		"  \"heap_free\": 14000,\r\n" +
		"  \"heap_min\": 13000,\r\n" +
		"  \"frag_pct\": 7.1,\r\n" +
		"  \"tasks\": [\r\n" +
		"    {\"name\": \"IDLE\", \"runtime_pct\": 95.0, \"stack_free\": 400},\r\n" +
		"    {\"name\": \"Sampler\", \"runtime_pct\": 0.0, \"stack_free\": 1500}\r\n" +
		"  ],\r\n" +
		"  \"temp\": 42.5\r\n" +
		"}"
	assert.Equal(t, want, string(f.Verbose(s)))
}

func TestCompact(t *testing.T) {
	f := format.New(0, aggregate.DefaultThresholds())
	s := snapshot(
		profiler.TaskSample{Name: "IDLE", RuntimePercent: 95, StackFree: 400},
		profiler.TaskSample{Name: "Report", RuntimePercent: 2, StackFree: 900},
	)

	want := `{"ts":12345,"cpu":3.1,"heap":14000,"min":13000,"frag":7.1,` +
		`"tasks":[{"n":"IDLE","r":95.0,"s":400},{"n":"Report","r":2.0,"s":900}],"temp":42.5}`
	assert.Equal(t, want, string(f.Compact(s)))
}

func TestOutputIsValidJSON(t *testing.T) {
	f := format.New(0, aggregate.DefaultThresholds())

	cases := []struct {
		name  string
		snap  profiler.Snapshot
		field string
	}{
		{
			name:  "no tasks",
			snap:  snapshot(),
			field: "tasks",
		},
		{
			name:  "quoted name",
			snap:  snapshot(profiler.TaskSample{Name: `a"b\c`, RuntimePercent: 1}),
			field: "tasks",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for _, out := range [][]byte{f.Verbose(tc.snap), f.Compact(tc.snap)} {
				var v map[string]any
				require.NoError(t, json.Unmarshal(out, &v))
				assert.Contains(t, v, "temp")
			}
		})
	}
}

func TestOutputBoundedBySize(t *testing.T) {
	var tasks []profiler.TaskSample
	for range profiler.MaxTasks {
		tasks = append(tasks, profiler.TaskSample{Name: "TaskNameLenXXXX", RuntimePercent: 6.25, StackFree: 4096})
	}
	s := snapshot(tasks...)

	cases := []struct {
		name    string
		maxSize int
	}{
		{"default", format.DefaultMaxSize},
		{"small", 256},
		{"header only", 180},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := format.New(tc.maxSize, aggregate.DefaultThresholds())
			out := f.Verbose(s)
			assert.LessOrEqual(t, len(out), tc.maxSize)

			var v struct {
				Tasks []map[string]any `json:"tasks"`
			}
			require.NoError(t, json.Unmarshal(out, &v))
			assert.Less(t, len(v.Tasks), profiler.MaxTasks)
		})
	}
}

func TestReport(t *testing.T) {
	f := format.New(0, aggregate.DefaultThresholds())
	m := aggregate.Metrics{
		AvgCPULoad:       2.5,
		MinCPULoad:       1,
		MaxCPULoad:       4,
		MinLatencyMs:     1,
		AvgLatencyMs:     2,
		MaxLatencyMs:     3,
		AvgHeapFree:      15000,
		MinHeapFree:      14800,
		MaxFragmentation: 1.3,
		Uptime:           7300 * time.Second,
		WatchdogFeeds:    14600,
		DeepSleepEntries: 1,
		TotalDeepSleep:   1500 * time.Millisecond,
	}
	h := m.Evaluate(f.Thresholds)
	out := string(f.Report(m, h))

	assert.True(t, strings.HasPrefix(out, format.ReportHeader))
	assert.True(t, strings.HasSuffix(out, format.ReportFooter))
	for _, line := range []string{
		"CPU Load (avg/min/max): 2.5% / 1.0% / 4.0%\r\n",
		"CPU Overhead Check: PASS (<5%)\r\n",
		"IRQ->JSON Latency (min/avg/max): 1/2/3 ms\r\n",
		"Latency Check: PASS (<10ms)\r\n",
		"Heap Health Check: PASS (>90% free)\r\n",
		"Uptime: 7300 seconds (2 hours)\r\n",
		"Watchdog Feeds: 14600\r\n",
		"Total Sleep Time: 1500 ms\r\n",
		"Power Check: PASS (deep sleep active)\r\n",
		"Test Results: 4/4 PASS\r\n",
	} {
		assert.Contains(t, out, line)
	}
}

func TestReportFailures(t *testing.T) {
	f := format.New(0, aggregate.DefaultThresholds())
	m := aggregate.Metrics{AvgCPULoad: 9, MaxLatencyMs: 12, AvgHeapFree: 1000}
	out := string(f.Report(m, m.Evaluate(f.Thresholds)))

	for _, line := range []string{
		"CPU Overhead Check: FAIL (>5%)\r\n",
		"Latency Check: FAIL (>10ms)\r\n",
		"Heap Health Check: FAIL (<90% free)\r\n",
		"Power Check: NOTE (no deep sleep yet)\r\n",
		"Test Results: 0/4 PASS\r\n",
	} {
		assert.Contains(t, out, line)
	}
}

func TestMinSize(t *testing.T) {
	s := profiler.Snapshot{
		Timestamp:     time.Duration(math.MaxInt64),
		CPULoad:       100,
		HeapFree:      math.MaxUint32,
		HeapMin:       math.MaxUint32,
		Fragmentation: 100,
		Temperature:   -273.15,
		TaskCount:     1,
	}
	s.Tasks[0] = profiler.TaskSample{Name: "IDLE", RuntimePercent: 100, StackFree: 128}

	f := format.New(format.MinSize, aggregate.DefaultThresholds())
	out := f.Verbose(s)
	require.NotEmpty(t, out)
	assert.True(t, json.Valid(out))

	tiny := format.New(32, aggregate.DefaultThresholds())
	assert.Empty(t, tiny.Verbose(s))
	assert.Empty(t, tiny.Compact(s))
}
