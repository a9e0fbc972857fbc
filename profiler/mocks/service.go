package mocks

import (
	"context"

	"github.com/absmach/profiler/profiler"
	"github.com/stretchr/testify/mock"
)

var _ profiler.Service = (*MockService)(nil)

// MockService is a mock implementation of the profiler.Service interface
type MockService struct {
	mock.Mock
}

// Health returns the aggregate health report
func (m *MockService) Health(ctx context.Context) (profiler.HealthReport, error) {
	args := m.Called(ctx)
	return args.Get(0).(profiler.HealthReport), args.Error(1)
}

// Snapshot returns an archived snapshot by index
func (m *MockService) Snapshot(ctx context.Context, index int) (profiler.Snapshot, error) {
	args := m.Called(ctx, index)
	return args.Get(0).(profiler.Snapshot), args.Error(1)
}

// Power returns the power mode and sleep statistics
func (m *MockService) Power(ctx context.Context) (profiler.PowerStatus, error) {
	args := m.Called(ctx)
	return args.Get(0).(profiler.PowerStatus), args.Error(1)
}

// Dump injects an urgent snapshot
func (m *MockService) Dump(ctx context.Context) (profiler.Snapshot, error) {
	args := m.Called(ctx)
	return args.Get(0).(profiler.Snapshot), args.Error(1)
}
