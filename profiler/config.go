package profiler

import (
	"errors"
	"fmt"
	"time"

	"github.com/absmach/profiler/pkg/aggregate"
)

// Config holds the pipeline's timing, capacity and threshold parameters.
// Fields carry env tags so the daemon can parse them with a prefix.
type Config struct {
	SamplePeriod     time.Duration `env:"SAMPLE_PERIOD"     envDefault:"100ms"        toml:"sample_period"`
	PushEvery        int           `env:"PUSH_EVERY"        envDefault:"10"           toml:"push_every"`
	QueueCapacity    int           `env:"QUEUE_CAPACITY"    envDefault:"10"           toml:"queue_capacity"`
	EventDepth       int           `env:"EVENT_DEPTH"       envDefault:"5"            toml:"event_depth"`
	RingSize         int           `env:"RING_SIZE"         envDefault:"100"          toml:"ring_size"`
	Debounce         time.Duration `env:"DEBOUNCE"          envDefault:"50ms"         toml:"debounce"`
	LongPress        time.Duration `env:"LONG_PRESS"        envDefault:"3s"           toml:"long_press"`
	InputPoll        time.Duration `env:"INPUT_POLL"        envDefault:"100ms"        toml:"input_poll"`
	SupervisePeriod  time.Duration `env:"SUPERVISE_PERIOD"  envDefault:"500ms"        toml:"supervise_period"`
	ReportEvery      int           `env:"REPORT_EVERY"      envDefault:"120"          toml:"report_every"`
	BackgroundPeriod time.Duration `env:"BACKGROUND_PERIOD" envDefault:"500ms"        toml:"background_period"`
	LowHeapMark      uint32        `env:"LOW_HEAP_MARK"     envDefault:"10240"        toml:"low_heap_mark"`
	IdleSleep        bool          `env:"IDLE_SLEEP"        envDefault:"false"        toml:"idle_sleep"`
	Compact          bool          `env:"COMPACT"           envDefault:"false"        toml:"compact"`
	TransmitTimeout  time.Duration `env:"TRANSMIT_TIMEOUT"  envDefault:"1s"           toml:"transmit_timeout"`
	NoticeTimeout    time.Duration `env:"NOTICE_TIMEOUT"    envDefault:"100ms"        toml:"notice_timeout"`
	BannerTimeout    time.Duration `env:"BANNER_TIMEOUT"    envDefault:"1m"           toml:"banner_timeout"`
	ReportTimeout    time.Duration `env:"REPORT_TIMEOUT"    envDefault:"1s"           toml:"report_timeout"`
	IdleTaskNames    []string      `env:"IDLE_TASK_NAMES"   envDefault:"IDLE,IdleMon" toml:"idle_task_names"`

	Thresholds aggregate.Thresholds `envPrefix:"HEALTH_" toml:"-"`
}

func DefaultConfig() Config {
	return Config{
		SamplePeriod:     100 * time.Millisecond,
		PushEvery:        10,
		QueueCapacity:    10,
		EventDepth:       5,
		RingSize:         DefaultRingSize,
		Debounce:         50 * time.Millisecond,
		LongPress:        3 * time.Second,
		InputPoll:        100 * time.Millisecond,
		SupervisePeriod:  500 * time.Millisecond,
		ReportEvery:      120,
		BackgroundPeriod: 500 * time.Millisecond,
		LowHeapMark:      10240,
		TransmitTimeout:  time.Second,
		NoticeTimeout:    100 * time.Millisecond,
		BannerTimeout:    time.Minute,
		ReportTimeout:    time.Second,
		IdleTaskNames:    []string{"IDLE", backgroundTaskName},
		Thresholds:       aggregate.DefaultThresholds(),
	}
}

var errInvalidConfig = errors.New("invalid config")

func (c Config) Validate() error {
	positive := []struct {
		name string
		d    time.Duration
	}{
		{"sample_period", c.SamplePeriod},
		{"input_poll", c.InputPoll},
		{"supervise_period", c.SupervisePeriod},
		{"background_period", c.BackgroundPeriod},
		{"transmit_timeout", c.TransmitTimeout},
		{"notice_timeout", c.NoticeTimeout},
		{"banner_timeout", c.BannerTimeout},
		{"report_timeout", c.ReportTimeout},
	}
	for _, p := range positive {
		if p.d <= 0 {
			return fmt.Errorf("%w: %s must be positive", errInvalidConfig, p.name)
		}
	}

	switch {
	case c.PushEvery <= 0:
		return fmt.Errorf("%w: push_every must be positive", errInvalidConfig)
	case c.QueueCapacity <= 0:
		return fmt.Errorf("%w: queue_capacity must be positive", errInvalidConfig)
	case c.EventDepth <= 0:
		return fmt.Errorf("%w: event_depth must be positive", errInvalidConfig)
	case c.RingSize <= 0:
		return fmt.Errorf("%w: ring_size must be positive", errInvalidConfig)
	case c.ReportEvery <= 0:
		return fmt.Errorf("%w: report_every must be positive", errInvalidConfig)
	case c.Debounce < 0:
		return fmt.Errorf("%w: debounce must not be negative", errInvalidConfig)
	case c.LongPress <= c.Debounce:
		return fmt.Errorf("%w: long_press must exceed debounce", errInvalidConfig)
	}

	return nil
}
