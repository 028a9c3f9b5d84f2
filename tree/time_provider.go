package tree

import (
	"sync"
	"time"
)

// TimeProvider provides an abstraction for time-related operations
type TimeProvider interface {
	// After returns a channel that will send the current time after the duration has elapsed
	After(d time.Duration) <-chan time.Time
}

// RealTimeProvider implements TimeProvider using real time
type RealTimeProvider struct{}

func (r *RealTimeProvider) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}

// MockTimeProvider implements TimeProvider for testing
type MockTimeProvider struct {
	mu      sync.Mutex
	timers  []*mockTimer
	nowTime time.Time
}

type mockTimer struct {
	deadline time.Time
	ch       chan time.Time
	fired    bool
}

// NewMockTimeProvider creates a new MockTimeProvider
func NewMockTimeProvider() *MockTimeProvider {
	return &MockTimeProvider{
		nowTime: time.Now(),
	}
}

func (m *MockTimeProvider) After(d time.Duration) <-chan time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()

	ch := make(chan time.Time, 1)
	m.timers = append(m.timers, &mockTimer{
		deadline: m.nowTime.Add(d),
		ch:       ch,
	})
	m.checkTimers()
	return ch
}

// Advance advances the mock time by the given duration
func (m *MockTimeProvider) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nowTime = m.nowTime.Add(d)
	m.checkTimers()
}

// Pending returns the number of timers that have not fired yet
func (m *MockTimeProvider) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.timers)
}

// checkTimers fires any timers that have passed their deadline and forgets them
func (m *MockTimeProvider) checkTimers() {
	pending := m.timers[:0]
	for _, timer := range m.timers {
		if !timer.fired && !m.nowTime.Before(timer.deadline) {
			timer.fired = true
			timer.ch <- m.nowTime
			close(timer.ch)
			continue
		}
		pending = append(pending, timer)
	}
	m.timers = pending
}
