// Package sensors reads the die temperature reported in snapshots.
package sensors

import (
	"context"
	"errors"
	"strings"

	"github.com/shirou/gopsutil/v3/host"
)

// DefaultTemperature is reported by Fixed when no sensor is available.
const DefaultTemperature = 42.5

var ErrNoSensor = errors.New("no matching temperature sensor")

// Host reads a host temperature sensor. The first sensor whose key contains
// Match is used; an empty Match takes the first sensor reporting a reading.
type Host struct {
	Match string
	read  func(ctx context.Context) ([]host.TemperatureStat, error)
}

func NewHost(match string) *Host {
	return &Host{
		Match: match,
		read:  host.SensorsTemperaturesWithContext,
	}
}

func (h *Host) Temperature(ctx context.Context) (float64, error) {
	stats, err := h.read(ctx)
	// gopsutil returns partial readings together with a warnings error.
	if len(stats) == 0 {
		if err == nil {
			err = ErrNoSensor
		}

		return 0, err
	}

	for _, s := range stats {
		if s.Temperature <= 0 {
			continue
		}
		if h.Match == "" || strings.Contains(s.SensorKey, h.Match) {
			return s.Temperature, nil
		}
	}

	return 0, ErrNoSensor
}

// Fixed always reports the same temperature.
type Fixed float64

func (f Fixed) Temperature(context.Context) (float64, error) {
	return float64(f), nil
}

// Fallback reads Primary and returns Secondary's reading when it fails.
type Fallback struct {
	Primary interface {
		Temperature(context.Context) (float64, error)
	}
	Secondary interface {
		Temperature(context.Context) (float64, error)
	}
}

func (f Fallback) Temperature(ctx context.Context) (float64, error) {
	if t, err := f.Primary.Temperature(ctx); err == nil {
		return t, nil
	}

	return f.Secondary.Temperature(ctx)
}
