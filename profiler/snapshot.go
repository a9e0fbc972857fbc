package profiler

import (
	"time"
	"unicode/utf8"
)

const (
	// MaxTasks bounds the per-snapshot task list. Extra tasks are dropped.
	MaxTasks = 16
	// MaxTaskNameLen is the longest task name kept in a snapshot, in bytes.
	MaxTaskNameLen = 15
	// RuntimeShareFloor stands in for a share that rounds to zero, so a task
	// that was scheduled but negligible is not mistaken for an absent one.
	RuntimeShareFloor = 0.01

	// snapshotSize is the fixed wire footprint of one snapshot on the target.
	snapshotSize = 412
)

// TaskSample is one task's share of the scheduler and its stack headroom.
type TaskSample struct {
	Name           string
	RuntimePercent float64
	// StackFree is the high-water-mark headroom in bytes. It never grows
	// over a task's lifetime.
	StackFree uint32
}

// Snapshot is one complete sampled system state. It is a value type: the
// fixed task array is copied along with it, so a produced snapshot cannot be
// changed through another copy.
type Snapshot struct {
	// Timestamp is the scheduler time at which the snapshot was taken.
	Timestamp     time.Duration
	CPULoad       float64
	HeapFree      uint32
	HeapMin       uint32
	Fragmentation float64
	TaskCount     int
	Tasks         [MaxTasks]TaskSample
	Temperature   float64
	// Urgent marks an out-of-band snapshot requested by the user.
	Urgent bool
}

// TaskList returns the recorded task samples.
func (s Snapshot) TaskList() []TaskSample {
	out := make([]TaskSample, s.TaskCount)
	copy(out, s.Tasks[:s.TaskCount])

	return out
}

// addTask appends t unless the task array is full.
func (s *Snapshot) addTask(t TaskSample) bool {
	if s.TaskCount >= MaxTasks {
		return false
	}
	t.Name = truncateName(t.Name)
	s.Tasks[s.TaskCount] = t
	s.TaskCount++

	return true
}

func truncateName(name string) string {
	if len(name) <= MaxTaskNameLen {
		return name
	}

	end := MaxTaskNameLen
	for end > 0 && !utf8.RuneStart(name[end]) {
		end--
	}

	return name[:end]
}
