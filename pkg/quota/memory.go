package quota

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
)

// Memory is a process-local Counter.
// Usage resets when the process restarts or a new month begins.
type Memory struct {
	lock    sync.Mutex
	limit   int
	used    int
	pending int
	period  string
	now     func() time.Time
}

// NewMemory returns an in-memory Counter with the given monthly limit.
func NewMemory(limit int) *Memory {
	return &Memory{
		limit: limit,
		now:   time.Now,
	}
}

// WithClock overrides the time source, for tests.
func (m *Memory) WithClock(now func() time.Time) *Memory {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.now = now
	return m
}

// Name returns the backend name.
func (m *Memory) Name() string {
	return "memory"
}

// Status returns current usage.
func (m *Memory) Status(_ context.Context) (Status, error) {
	m.lock.Lock()
	defer m.lock.Unlock()
	now := m.rollover()
	return newStatus(m.used, m.limit, now), nil
}

// Reserve claims a unit for an in-flight search.
func (m *Memory) Reserve(_ context.Context) (Status, error) {
	m.lock.Lock()
	defer m.lock.Unlock()
	now := m.rollover()
	if m.used+m.pending >= m.limit {
		return newStatus(m.used, m.limit, now), errors.WithStack(ErrExceeded)
	}
	m.pending++
	return newStatus(m.used, m.limit, now), nil
}

// Commit consumes a reserved unit.
func (m *Memory) Commit(_ context.Context) (Status, error) {
	m.lock.Lock()
	defer m.lock.Unlock()
	now := m.rollover()
	if m.pending > 0 {
		m.pending--
	}
	m.used++
	return newStatus(m.used, m.limit, now), nil
}

// Cancel releases a reserved unit.
func (m *Memory) Cancel(_ context.Context) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.pending > 0 {
		m.pending--
	}
	return nil
}

// rollover resets usage on a period change; callers hold the lock.
func (m *Memory) rollover() time.Time {
	now := m.now()
	if p := Period(now); p != m.period {
		if m.period != "" {
			m.used = 0
		}
		m.period = p
	}
	return now
}
