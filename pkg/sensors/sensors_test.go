package sensors

import (
	"context"
	"errors"
	"testing"

	"github.com/shirou/gopsutil/v3/host"
	"github.com/stretchr/testify/assert"
)

func TestHostTemperature(t *testing.T) {
	errWarn := errors.New("warnings")

	cases := []struct {
		name    string
		match   string
		stats   []host.TemperatureStat
		err     error
		want    float64
		wantErr bool
	}{
		{
			name:  "first reading",
			stats: []host.TemperatureStat{{SensorKey: "acpitz", Temperature: 0}, {SensorKey: "coretemp_package_id_0", Temperature: 51}},
			want:  51,
		},
		{
			name:  "matching key",
			match: "k10temp",
			stats: []host.TemperatureStat{{SensorKey: "nvme", Temperature: 38}, {SensorKey: "k10temp_tctl", Temperature: 60.5}},
			want:  60.5,
		},
		{
			name:  "partial readings with warnings",
			stats: []host.TemperatureStat{{SensorKey: "cpu_thermal", Temperature: 47}},
			err:   errWarn,
			want:  47,
		},
		{
			name:    "no match",
			match:   "gpu",
			stats:   []host.TemperatureStat{{SensorKey: "nvme", Temperature: 38}},
			wantErr: true,
		},
		{
			name:    "no sensors",
			err:     errWarn,
			wantErr: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewHost(tc.match)
			h.read = func(context.Context) ([]host.TemperatureStat, error) {
				return tc.stats, tc.err
			}

			got, err := h.Temperature(context.Background())
			if tc.wantErr {
				assert.Error(t, err)

				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestFallback(t *testing.T) {
	h := NewHost("")
	h.read = func(context.Context) ([]host.TemperatureStat, error) {
		return nil, nil
	}

	got, err := Fallback{Primary: h, Secondary: Fixed(DefaultTemperature)}.Temperature(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, DefaultTemperature, got)
}
