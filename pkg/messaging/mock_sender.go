package messaging

import (
	"context"
	"sync"

	"github.com/erain9/meshmock/pkg/core"
)

// MockEventSender records events instead of sending them. Used when messaging
// is disabled and in tests.
type MockEventSender struct {
	mu     sync.Mutex
	events []*core.OrderEvent
	err    error
}

// NewMockEventSender creates a new MockEventSender.
func NewMockEventSender() *MockEventSender {
	return &MockEventSender{}
}

// FailWith makes later sends return err.
func (m *MockEventSender) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// SendOrderEvents records events.
func (m *MockEventSender) SendOrderEvents(_ context.Context, events []*core.OrderEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, events...)
	return nil
}

// Sent returns a copy of every recorded event.
func (m *MockEventSender) Sent() []*core.OrderEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*core.OrderEvent(nil), m.events...)
}

// Close does nothing.
func (m *MockEventSender) Close() error {
	return nil
}

// Ensure MockEventSender implements EventSender
var _ EventSender = (*MockEventSender)(nil)
