package alert

import (
	"context"
	"sync"
	"time"
)

// Status reports the throttle state of one sensor.
type Status struct {
	LastAlertAt  *time.Time `json:"last_alert_at,omitempty"`
	MaySend      bool       `json:"may_send"`
	RemainingSec int        `json:"remaining_sec"`
}

// ThrottleStore tracks the last successful dispatch per sensor and enforces
// the cool-down window. TryAcquire atomically checks the window and reserves
// the dispatch slot; Release gives the slot back when the transport fails, so
// a failed send never arms the cool-down.
type ThrottleStore interface {
	TryAcquire(ctx context.Context, sensorID uint, now time.Time) (bool, error)
	Release(ctx context.Context, sensorID uint) error
	Status(ctx context.Context, sensorID uint, now time.Time) (Status, error)
	Reset(ctx context.Context) error
}

// MemoryThrottle keeps last-alert timestamps in a mutex-guarded map.
// State lives as long as the process; swap in the redis store when alerts must
// survive a restart.
type MemoryThrottle struct {
	window time.Duration

	mu   sync.Mutex
	last map[uint]time.Time
}

func NewMemoryThrottle(window time.Duration) *MemoryThrottle {
	return &MemoryThrottle{
		window: window,
		last:   map[uint]time.Time{},
	}
}

func (m *MemoryThrottle) TryAcquire(_ context.Context, sensorID uint, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if last, ok := m.last[sensorID]; ok && now.Sub(last) < m.window {
		return false, nil
	}
	m.last[sensorID] = now
	return true, nil
}

func (m *MemoryThrottle) Release(_ context.Context, sensorID uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.last, sensorID)
	return nil
}

func (m *MemoryThrottle) Status(_ context.Context, sensorID uint, now time.Time) (Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	last, ok := m.last[sensorID]
	if !ok {
		return Status{MaySend: true}, nil
	}

	elapsed := now.Sub(last)
	st := Status{LastAlertAt: &last, MaySend: elapsed >= m.window}
	if !st.MaySend {
		st.RemainingSec = int((m.window - elapsed).Seconds())
	}
	return st, nil
}

// Reset clears every timer. Defeats throttling for all sensors at once; meant
// for tests and operational recovery only.
func (m *MemoryThrottle) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.last = map[uint]time.Time{}
	return nil
}
