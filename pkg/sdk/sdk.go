package sdk

import (
	"bytes"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

const (
	CTJSON string = "application/json"

	reportEndpoint    = "/report"
	snapshotsEndpoint = "/snapshots"
	powerEndpoint     = "/power"
	dumpEndpoint      = "/dump"
)

var ErrUnexpectedStatus = errors.New("unexpected response code")

type SDK interface {
	// Report fetches the aggregate metrics and health checks.
	//
	// example:
	//  report, _ := sdk.Report()
	//  fmt.Println(report.Health.Passed, "/", report.Health.Total)
	Report() (Report, error)

	// Snapshot fetches an archived snapshot; index 0 is the most recent.
	//
	// example:
	//  snap, _ := sdk.Snapshot(0)
	//  fmt.Println(snap.CPULoad)
	Snapshot(index int) (Snapshot, error)

	// Power fetches the power mode, button state and sleep statistics.
	//
	// example:
	//  status, _ := sdk.Power()
	//  fmt.Println(status.Mode)
	Power() (PowerStatus, error)

	// Dump requests an urgent snapshot ahead of the periodic ones.
	//
	// example:
	//  snap, _ := sdk.Dump()
	//  fmt.Println(snap.Urgent)
	Dump() (Snapshot, error)
}

type Task struct {
	Name           string  `json:"name"`
	RuntimePercent float64 `json:"runtime_pct"`
	StackFree      uint32  `json:"stack_free"`
}

type Snapshot struct {
	Timestamp     int64   `json:"timestamp"`
	CPULoad       float64 `json:"cpu_load"`
	HeapFree      uint32  `json:"heap_free"`
	HeapMin       uint32  `json:"heap_min"`
	Fragmentation float64 `json:"frag_pct"`
	Tasks         []Task  `json:"tasks"`
	Temperature   float64 `json:"temp"`
	Urgent        bool    `json:"urgent"`
}

type Metrics struct {
	CPUSamples       uint32        `json:"cpu_samples"`
	AvgCPULoad       float64       `json:"avg_cpu_load"`
	MinCPULoad       float64       `json:"min_cpu_load"`
	MaxCPULoad       float64       `json:"max_cpu_load"`
	TransmitCount    uint32        `json:"transmit_count"`
	MinLatencyMs     uint32        `json:"min_latency_ms"`
	AvgLatencyMs     uint32        `json:"avg_latency_ms"`
	MaxLatencyMs     uint32        `json:"max_latency_ms"`
	HeapSamples      uint32        `json:"heap_samples"`
	AvgHeapFree      uint32        `json:"avg_heap_free"`
	MinHeapFree      uint32        `json:"min_heap_free"`
	MaxFragmentation float64       `json:"max_fragmentation"`
	Uptime           time.Duration `json:"uptime"`
	WatchdogFeeds    uint32        `json:"watchdog_feeds"`
	StackOverflows   uint32        `json:"stack_overflows"`
	AllocFailures    uint32        `json:"alloc_failures"`
	DeepSleepEntries uint32        `json:"deep_sleep_entries"`
	TotalDeepSleep   time.Duration `json:"total_deep_sleep"`
	LastWakeLatency  time.Duration `json:"last_wake_latency"`
}

type Health struct {
	CPUOverheadAcceptable bool `json:"cpu_overhead_acceptable"`
	HeapHealthy           bool `json:"heap_healthy"`
	LatencyAcceptable     bool `json:"latency_acceptable"`
	PowerOK               bool `json:"power_ok"`
	Passed                int  `json:"passed"`
	Total                 int  `json:"total"`
}

type Report struct {
	Metrics Metrics `json:"metrics"`
	Health  Health  `json:"health"`
}

type SleepStats struct {
	SleepEntries     uint32        `json:"sleep_entries"`
	DeepSleepEntries uint32        `json:"deep_sleep_entries"`
	TotalSleep       time.Duration `json:"total_sleep"`
	TotalDeepSleep   time.Duration `json:"total_deep_sleep"`
	LastWake         time.Duration `json:"last_wake"`
	LastWakeLatency  time.Duration `json:"last_wake_latency"`
}

type PowerStatus struct {
	Mode   string     `json:"mode"`
	Button string     `json:"button"`
	Stats  SleepStats `json:"stats"`
}

type profilerSDK struct {
	profilerURL string
	client      *http.Client
}

type Config struct {
	ProfilerURL     string
	TLSVerification bool
	Timeout         time.Duration
}

func NewSDK(cfg Config) SDK {
	return &profilerSDK{
		profilerURL: cfg.ProfilerURL,
		client: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					InsecureSkipVerify: !cfg.TLSVerification,
				},
			},
		},
	}
}

func (sdk *profilerSDK) Report() (Report, error) {
	var r Report
	if err := sdk.get(sdk.profilerURL+reportEndpoint, &r); err != nil {
		return Report{}, err
	}

	return r, nil
}

func (sdk *profilerSDK) Snapshot(index int) (Snapshot, error) {
	var s Snapshot
	if err := sdk.get(sdk.profilerURL+snapshotsEndpoint+"/"+strconv.Itoa(index), &s); err != nil {
		return Snapshot{}, err
	}

	return s, nil
}

func (sdk *profilerSDK) Power() (PowerStatus, error) {
	var p PowerStatus
	if err := sdk.get(sdk.profilerURL+powerEndpoint, &p); err != nil {
		return PowerStatus{}, err
	}

	return p, nil
}

func (sdk *profilerSDK) Dump() (Snapshot, error) {
	body, err := sdk.processRequest(http.MethodPost, sdk.profilerURL+dumpEndpoint, nil, http.StatusAccepted)
	if err != nil {
		return Snapshot{}, err
	}

	var s Snapshot
	if err := json.Unmarshal(body, &s); err != nil {
		return Snapshot{}, err
	}

	return s, nil
}

func (sdk *profilerSDK) get(url string, out any) error {
	body, err := sdk.processRequest(http.MethodGet, url, nil, http.StatusOK)
	if err != nil {
		return err
	}

	return json.Unmarshal(body, out)
}

func (sdk *profilerSDK) processRequest(method, reqURL string, data []byte, expectedRespCode int) ([]byte, error) {
	req, err := http.NewRequest(method, reqURL, bytes.NewReader(data))
	if err != nil {
		return []byte{}, err
	}

	req.Header.Add("Content-Type", CTJSON)

	resp, err := sdk.client.Do(req)
	if err != nil {
		return []byte{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return []byte{}, err
	}

	if resp.StatusCode != expectedRespCode {
		var e struct {
			Err string `json:"error"`
		}
		if json.Unmarshal(body, &e) == nil && e.Err != "" {
			return []byte{}, fmt.Errorf("%w: %d: %s", ErrUnexpectedStatus, resp.StatusCode, e.Err)
		}

		return []byte{}, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	return body, nil
}
