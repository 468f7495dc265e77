// Package testutil provides test utilities including mocks, fixtures, and test database helpers.
package testutil

import (
	"sync"
	"time"

	"github.com/mescon/Cachearr/internal/clock"
	"github.com/mescon/Cachearr/internal/domain"
	"github.com/mescon/Cachearr/internal/eventbus"
)

// =============================================================================
// MockClock - Testable time abstraction
// =============================================================================

// MockClock implements clock.Clock with manually controlled time. In auto
// mode every AfterFunc advances time and fires at once, so waits between
// entries cost nothing in tests but are still recorded.
type MockClock struct {
	mu           sync.Mutex
	now          time.Time
	auto         bool
	waits        []time.Duration
	pendingFuncs []pendingFunc
}

type pendingFunc struct {
	executeAt time.Time
	fn        func()
	stopped   bool
}

// MockTimer implements clock.Timer for testing.
type MockTimer struct {
	clock *MockClock
	index int
}

var _ clock.Clock = (*MockClock)(nil)

// NewMockClock creates a new MockClock with the current time as initial value.
func NewMockClock() *MockClock {
	return &MockClock{now: time.Now()}
}

// NewAutoClock creates a MockClock in auto mode.
func NewAutoClock() *MockClock {
	return &MockClock{now: time.Now(), auto: true}
}

// Now returns the mock's current time.
func (m *MockClock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// AfterFunc schedules f to be called after duration d.
func (m *MockClock) AfterFunc(d time.Duration, f func()) clock.Timer {
	m.mu.Lock()
	m.waits = append(m.waits, d)

	if m.auto {
		m.now = m.now.Add(d)
		index := len(m.pendingFuncs)
		m.pendingFuncs = append(m.pendingFuncs, pendingFunc{executeAt: m.now, fn: f, stopped: true})
		m.mu.Unlock()
		f()
		return &MockTimer{clock: m, index: index}
	}

	index := len(m.pendingFuncs)
	m.pendingFuncs = append(m.pendingFuncs, pendingFunc{
		executeAt: m.now.Add(d),
		fn:        f,
	})
	m.mu.Unlock()
	return &MockTimer{clock: m, index: index}
}

// Advance moves time forward by the given duration and executes any functions
// whose scheduled time has passed. Returns the number of functions executed.
func (m *MockClock) Advance(d time.Duration) int {
	m.mu.Lock()
	newTime := m.now.Add(d)
	m.now = newTime

	var toExecute []func()
	for i := range m.pendingFuncs {
		pf := &m.pendingFuncs[i]
		if !pf.stopped && !pf.executeAt.After(newTime) {
			toExecute = append(toExecute, pf.fn)
			pf.stopped = true
		}
	}
	m.mu.Unlock()

	// outside the lock; callbacks may schedule again
	for _, fn := range toExecute {
		fn()
	}
	return len(toExecute)
}

// PendingCount returns the number of scheduled functions that haven't been
// executed or stopped.
func (m *MockClock) PendingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, pf := range m.pendingFuncs {
		if !pf.stopped {
			count++
		}
	}
	return count
}

// Waits returns every duration passed to AfterFunc, in order.
func (m *MockClock) Waits() []time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]time.Duration, len(m.waits))
	copy(out, m.waits)
	return out
}

// Stop prevents the timer from firing. Returns true if the timer was stopped,
// false if it had already fired or been stopped.
func (t *MockTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.index < len(t.clock.pendingFuncs) && !t.clock.pendingFuncs[t.index].stopped {
		t.clock.pendingFuncs[t.index].stopped = true
		return true
	}
	return false
}

// =============================================================================
// MockEventBus
// =============================================================================

// MockEventBus captures published events and delivers them to subscribers
// synchronously.
type MockEventBus struct {
	mu              sync.Mutex
	PublishedEvents []domain.Event
	Subscribers     map[domain.EventType][]func(domain.Event)
	// PublishErr, when set, is returned by Publish after recording the event.
	PublishErr error
}

var _ eventbus.Publisher = (*MockEventBus)(nil)

// NewMockEventBus creates a new mock event bus.
func NewMockEventBus() *MockEventBus {
	return &MockEventBus{
		Subscribers: make(map[domain.EventType][]func(domain.Event)),
	}
}

// Publish stores the event and notifies subscribers synchronously.
func (m *MockEventBus) Publish(event domain.Event) error {
	m.mu.Lock()
	m.PublishedEvents = append(m.PublishedEvents, event)
	subscribers := m.Subscribers[event.EventType]
	err := m.PublishErr
	m.mu.Unlock()

	for _, handler := range subscribers {
		handler(event)
	}
	return err
}

// Subscribe registers a handler for the given event type.
func (m *MockEventBus) Subscribe(eventType domain.EventType, handler func(domain.Event)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Subscribers[eventType] = append(m.Subscribers[eventType], handler)
}

// GetEvents returns all published events of a given type.
func (m *MockEventBus) GetEvents(eventType domain.EventType) []domain.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []domain.Event
	for _, e := range m.PublishedEvents {
		if e.EventType == eventType {
			result = append(result, e)
		}
	}
	return result
}

// EventCount returns the number of events of a given type.
func (m *MockEventBus) EventCount(eventType domain.EventType) int {
	return len(m.GetEvents(eventType))
}

// =============================================================================
// MockRecorder - in-memory run history
// =============================================================================

// MockRecorder keeps run history in memory with the same method set the
// pipeline uses on the SQLite repository.
type MockRecorder struct {
	mu      sync.Mutex
	Runs    map[string]domain.RunSummary
	Records map[string][]domain.ProcessedRecord
	// Err, when set, is returned by every method.
	Err error
}

// NewMockRecorder creates an empty recorder.
func NewMockRecorder() *MockRecorder {
	return &MockRecorder{
		Runs:    make(map[string]domain.RunSummary),
		Records: make(map[string][]domain.ProcessedRecord),
	}
}

func (m *MockRecorder) CreateRun(s domain.RunSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Runs[s.RunID] = s
	return nil
}

func (m *MockRecorder) FinishRun(s domain.RunSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Runs[s.RunID] = s
	return nil
}

func (m *MockRecorder) SaveRecord(runID string, position int, rec domain.ProcessedRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Records[runID] = append(m.Records[runID], rec)
	return nil
}

// Run returns the stored summary for id.
func (m *MockRecorder) Run(id string) (domain.RunSummary, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.Runs[id]
	return s, ok
}

// RecordsFor returns a copy of the records saved for runID.
func (m *MockRecorder) RecordsFor(runID string) []domain.ProcessedRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.ProcessedRecord, len(m.Records[runID]))
	copy(out, m.Records[runID])
	return out
}
