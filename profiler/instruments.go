package profiler

import (
	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/discard"
)

// Instruments count pipeline events for export. The zero value is unusable;
// use NopInstruments or build one from real collectors.
type Instruments struct {
	// Snapshots is labelled with kind=periodic|urgent.
	Snapshots metrics.Counter
	// Dropped counts urgent snapshots refused by a full queue.
	Dropped metrics.Counter
	// TransmitFailures is labelled with stage=format|snapshot|report|notice.
	TransmitFailures metrics.Counter
	// Latency observes queue-pop to transmit-complete in seconds.
	Latency metrics.Histogram
}

func NopInstruments() Instruments {
	return Instruments{
		Snapshots:        discard.NewCounter(),
		Dropped:          discard.NewCounter(),
		TransmitFailures: discard.NewCounter(),
		Latency:          discard.NewHistogram(),
	}
}
