package testutils

import (
	"context"
	"sync"

	"github.com/papercomputeco/mnemo/pkg/eventstream"
)

// MockPublisher records published capture events.
type MockPublisher struct {
	mu     sync.Mutex
	events []*eventstream.CaptureDecidedEvent

	// Err is returned by PublishCapture when set.
	Err error

	Closed bool
}

// NewMockPublisher creates a new recording publisher.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (m *MockPublisher) PublishCapture(_ context.Context, event *eventstream.CaptureDecidedEvent) error {
	if event == nil {
		return eventstream.ErrNilEvent
	}
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

// Events returns a snapshot of the published events.
func (m *MockPublisher) Events() []*eventstream.CaptureDecidedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*eventstream.CaptureDecidedEvent(nil), m.events...)
}

func (m *MockPublisher) Close() error {
	m.Closed = true
	return nil
}
