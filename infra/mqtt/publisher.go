package mqtt

import (
	"fmt"
	"sync"

	"github.com/kilianp07/fleetpulse/core/model"
	coremqtt "github.com/kilianp07/fleetpulse/core/mqtt"
)

// Publisher mirrors the core mqtt.Publisher interface.
type Publisher = coremqtt.Publisher

// MockPublisher records published results. It is used in tests.
type MockPublisher struct {
	Results map[string]*model.PipelineResult
	Fail    bool
	mu      sync.Mutex
}

// NewMockPublisher creates a new MockPublisher.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{Results: make(map[string]*model.PipelineResult)}
}

// PublishResult records the result or returns an error if configured to fail.
func (m *MockPublisher) PublishResult(runID string, res *model.PipelineResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail {
		return fmt.Errorf("publish failed")
	}
	m.Results[runID] = res
	return nil
}

// Count returns the number of recorded results.
func (m *MockPublisher) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Results)
}
