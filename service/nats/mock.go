package nats

import (
	"context"
	"errors"
	"sync"
)

var errMockClosed = errors.New("mock publisher is closed")

// MockPublisher is an in-memory Publisher for tests. Events are kept in
// publish order and indexed by subject.
type MockPublisher struct {
	mu        sync.Mutex
	events    []*TransactionEvent
	bySubject map[string][]*TransactionEvent
	failWith  error
	closed    bool
}

// NewMockPublisher creates an empty mock publisher.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{bySubject: make(map[string][]*TransactionEvent)}
}

func (m *MockPublisher) PublishTransaction(ctx context.Context, event *TransactionEvent) error {
	return m.PublishTransactionBatch(ctx, []*TransactionEvent{event})
}

// PublishTransactionBatch records events unless the mock is failing, closed
// or ctx is done. Nothing is recorded when it returns an error.
func (m *MockPublisher) PublishTransactionBatch(ctx context.Context, events []*TransactionEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case m.closed:
		return errMockClosed
	case m.failWith != nil:
		return m.failWith
	}

	for _, event := range events {
		m.events = append(m.events, event)
		subject := event.Subject()
		m.bySubject[subject] = append(m.bySubject[subject], event)
	}
	return nil
}

// Close makes every later publish fail.
func (m *MockPublisher) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Fail makes every publish return err until Reset. A nil err clears it.
func (m *MockPublisher) Fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWith = err
}

// Events returns a copy of everything published, in order.
func (m *MockPublisher) Events() []*TransactionEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*TransactionEvent(nil), m.events...)
}

// EventsOn returns the events published on subject.
func (m *MockPublisher) EventsOn(subject string) []*TransactionEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*TransactionEvent(nil), m.bySubject[subject]...)
}

// Reset forgets all events and reopens the mock.
func (m *MockPublisher) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = nil
	m.bySubject = make(map[string][]*TransactionEvent)
	m.failWith = nil
	m.closed = false
}
