package voice

import (
	"context"
	"fmt"
	"sync"
)

// MockCaller records calls for tests.
type MockCaller struct {
	mu      sync.Mutex
	started []SessionConfig
	stopped []string
	next    int

	// StartErr and StopErr, when set, are returned by Start and Stop.
	StartErr error
	StopErr  error
}

var _ Caller = (*MockCaller)(nil)

// Start implements Caller.
func (m *MockCaller) Start(_ context.Context, cfg SessionConfig) (Call, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started = append(m.started, cfg)
	if m.StartErr != nil {
		return Call{}, m.StartErr
	}
	m.next++
	return Call{ID: fmt.Sprintf("call-%d", m.next), Status: "queued"}, nil
}

// Stop implements Caller.
func (m *MockCaller) Stop(_ context.Context, callID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = append(m.stopped, callID)
	return m.StopErr
}

// Started returns the configs passed to Start.
func (m *MockCaller) Started() []SessionConfig {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SessionConfig(nil), m.started...)
}

// Stopped returns the call ids passed to Stop.
func (m *MockCaller) Stopped() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.stopped...)
}
