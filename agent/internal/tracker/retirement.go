package tracker

import (
	"sync"
	"time"
)

// Monitor implements level-triggered retirement: a token retires only after
// its market cap has stayed below the threshold for a full window. A single
// dip that recovers before the window elapses resets the clock.
type Monitor struct {
	threshold float64
	window    time.Duration

	mu        sync.Mutex
	firstSeen map[string]time.Time

	now func() time.Time
}

// NewMonitor builds a retirement monitor. threshold is the market-cap floor
// in USD, window how long a token must stay under it.
func NewMonitor(threshold float64, window time.Duration) *Monitor {
	return &Monitor{
		threshold: threshold,
		window:    window,
		firstSeen: make(map[string]time.Time),
		now:       time.Now,
	}
}

// Observe records a refresh observation and reports whether the contract
// should retire now. A cap at or above the threshold clears any pending
// countdown.
func (m *Monitor) Observe(contract string, marketCap float64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if marketCap >= m.threshold {
		delete(m.firstSeen, contract)
		return false
	}

	now := m.now()
	first, ok := m.firstSeen[contract]
	if !ok {
		m.firstSeen[contract] = now
		return false
	}
	return now.Sub(first) >= m.window
}

// Forget drops any pending countdown, e.g. after the contract retired or
// was removed from tracking.
func (m *Monitor) Forget(contract string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.firstSeen, contract)
}

// Threshold returns the configured market-cap floor.
func (m *Monitor) Threshold() float64 { return m.threshold }
