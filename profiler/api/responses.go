package api

import (
	"net/http"

	"github.com/absmach/profiler/profiler"
	"github.com/absmach/supermq"
)

var (
	_ supermq.Response = (*healthResponse)(nil)
	_ supermq.Response = (*snapshotResponse)(nil)
	_ supermq.Response = (*powerResponse)(nil)
)

type healthResponse struct {
	profiler.HealthReport
}

func (r healthResponse) Code() int {
	return http.StatusOK
}

func (r healthResponse) Headers() map[string]string {
	return map[string]string{}
}

func (r healthResponse) Empty() bool {
	return false
}

type taskView struct {
	Name           string  `json:"name"`
	RuntimePercent float64 `json:"runtime_pct"`
	StackFree      uint32  `json:"stack_free"`
}

type snapshotResponse struct {
	Timestamp     int64      `json:"timestamp"`
	CPULoad       float64    `json:"cpu_load"`
	HeapFree      uint32     `json:"heap_free"`
	HeapMin       uint32     `json:"heap_min"`
	Fragmentation float64    `json:"frag_pct"`
	Tasks         []taskView `json:"tasks"`
	Temperature   float64    `json:"temp"`
	Urgent        bool       `json:"urgent"`

	queued bool
}

func newSnapshotResponse(s profiler.Snapshot, queued bool) snapshotResponse {
	tasks := make([]taskView, 0, s.TaskCount)
	for _, t := range s.TaskList() {
		tasks = append(tasks, taskView{
			Name:           t.Name,
			RuntimePercent: t.RuntimePercent,
			StackFree:      t.StackFree,
		})
	}

	return snapshotResponse{
		Timestamp:     s.Timestamp.Milliseconds(),
		CPULoad:       s.CPULoad,
		HeapFree:      s.HeapFree,
		HeapMin:       s.HeapMin,
		Fragmentation: s.Fragmentation,
		Tasks:         tasks,
		Temperature:   s.Temperature,
		Urgent:        s.Urgent,
		queued:        queued,
	}
}

func (r snapshotResponse) Code() int {
	if r.queued {
		return http.StatusAccepted
	}

	return http.StatusOK
}

func (r snapshotResponse) Headers() map[string]string {
	return map[string]string{}
}

func (r snapshotResponse) Empty() bool {
	return false
}

type powerResponse struct {
	profiler.PowerStatus
}

func (r powerResponse) Code() int {
	return http.StatusOK
}

func (r powerResponse) Headers() map[string]string {
	return map[string]string{}
}

func (r powerResponse) Empty() bool {
	return false
}
