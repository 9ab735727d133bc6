// Package tick supplies the periodic pulses that drive an engine. Production
// code uses a wall-clock Ticker; tests substitute a Manual source and fire
// pulses explicitly.
package tick

import (
	"sync"
	"time"
)

// DefaultInterval is the pulse period used when none is configured.
const DefaultInterval = time.Second

// Source emits one value per elapsed unit until stopped. Stop is idempotent
// and must be called to release the source.
type Source interface {
	C() <-chan time.Time
	Stop()
}

// Ticker is a Source backed by time.Ticker.
type Ticker struct {
	ticker *time.Ticker
	once   sync.Once
}

// NewTicker starts a wall-clock source. A non-positive interval falls back to
// DefaultInterval.
func NewTicker(interval time.Duration) *Ticker {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Ticker{ticker: time.NewTicker(interval)}
}

// C returns the pulse channel.
func (t *Ticker) C() <-chan time.Time {
	return t.ticker.C
}

// Stop halts the underlying ticker.
func (t *Ticker) Stop() {
	t.once.Do(t.ticker.Stop)
}

// Manual is a Source whose pulses are fired by hand.
type Manual struct {
	ch      chan time.Time
	done    chan struct{}
	once    sync.Once
	mu      sync.Mutex
	now     time.Time
	step    time.Duration
	stopped bool
}

// NewManual returns a source whose reported time starts at start and moves by
// DefaultInterval on every Fire.
func NewManual(start time.Time) *Manual {
	return &Manual{
		ch:   make(chan time.Time),
		done: make(chan struct{}),
		now:  start,
		step: DefaultInterval,
	}
}

// C returns the pulse channel.
func (m *Manual) C() <-chan time.Time {
	return m.ch
}

// Fire delivers one pulse and blocks until it is received. It returns false
// if the source was stopped before the pulse was taken.
func (m *Manual) Fire() bool {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return false
	}
	m.now = m.now.Add(m.step)
	now := m.now
	m.mu.Unlock()

	select {
	case m.ch <- now:
		return true
	case <-m.done:
		return false
	}
}

// FireN delivers n pulses and returns how many were received.
func (m *Manual) FireN(n int) int {
	sent := 0
	for i := 0; i < n; i++ {
		if !m.Fire() {
			break
		}
		sent++
	}
	return sent
}

// Stop releases any blocked Fire call.
func (m *Manual) Stop() {
	m.once.Do(func() {
		m.mu.Lock()
		m.stopped = true
		m.mu.Unlock()
		close(m.done)
	})
}

// Stopped reports whether Stop has been called.
func (m *Manual) Stopped() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopped
}
