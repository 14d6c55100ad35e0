package tracker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestMonitor(threshold float64, window time.Duration) (*Monitor, *time.Time) {
	m := NewMonitor(threshold, window)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	return m, &now
}

func TestMonitorRetiresAfterFullWindow(t *testing.T) {
	m, now := newTestMonitor(4000, 20*time.Minute)

	assert.False(t, m.Observe("abc", 3000), "first low observation only starts the clock")

	*now = now.Add(10 * time.Minute)
	assert.False(t, m.Observe("abc", 3500), "window not elapsed yet")

	*now = now.Add(10 * time.Minute)
	assert.True(t, m.Observe("abc", 3900), "low for the full window")
}

func TestMonitorRecoveryResetsClock(t *testing.T) {
	m, now := newTestMonitor(4000, 20*time.Minute)

	assert.False(t, m.Observe("abc", 3000))

	*now = now.Add(15 * time.Minute)
	assert.False(t, m.Observe("abc", 5000), "recovery above threshold clears the countdown")

	*now = now.Add(30 * time.Minute)
	assert.False(t, m.Observe("abc", 3000), "dip after recovery starts a fresh window")

	*now = now.Add(20 * time.Minute)
	assert.True(t, m.Observe("abc", 3000))
}

func TestMonitorThresholdIsExclusive(t *testing.T) {
	m, now := newTestMonitor(4000, 20*time.Minute)

	assert.False(t, m.Observe("abc", 4000), "cap exactly at the floor is not low")
	*now = now.Add(time.Hour)
	assert.False(t, m.Observe("abc", 4000))
}

func TestMonitorForget(t *testing.T) {
	m, now := newTestMonitor(4000, 20*time.Minute)

	m.Observe("abc", 3000)
	m.Forget("abc")

	*now = now.Add(time.Hour)
	assert.False(t, m.Observe("abc", 3000), "forgotten contract starts over")
}

func TestMonitorTracksContractsIndependently(t *testing.T) {
	m, now := newTestMonitor(4000, 20*time.Minute)

	m.Observe("aaa", 3000)
	*now = now.Add(20 * time.Minute)
	assert.False(t, m.Observe("bbb", 3000), "bbb just started its window")
	assert.True(t, m.Observe("aaa", 3000))
}
