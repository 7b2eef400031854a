package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSessionClockRemainingDerivesFromDeadlines(t *testing.T) {
	start := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	clock := NewSessionClock(start.Add(60*time.Minute), start.Add(20*time.Minute))

	overall, section := clock.Remaining(start)
	assert.Equal(t, 60*time.Minute, overall)
	assert.Equal(t, 20*time.Minute, section)

	// A 10 minute gap (disconnect, suspended tab) must cost exactly 10
	// minutes; nothing is counted down locally.
	overall, section = clock.Remaining(start.Add(10 * time.Minute))
	assert.Equal(t, 50*time.Minute, overall)
	assert.Equal(t, 10*time.Minute, section)

	// Past the deadline the budget clamps at zero, it never goes negative.
	overall, section = clock.Remaining(start.Add(2 * time.Hour))
	assert.Equal(t, time.Duration(0), overall)
	assert.Equal(t, time.Duration(0), section)
}

func TestSessionClockSectionExpiresExactlyOnce(t *testing.T) {
	start := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	clock := NewSessionClock(start.Add(time.Hour), start.Add(time.Minute))

	assert.Equal(t, ClockNone, clock.Tick(start.Add(59*time.Second)))
	assert.Equal(t, ClockSectionExpired, clock.Tick(start.Add(60*time.Second)))

	// Repeated ticks after expiry must not re-fire.
	assert.Equal(t, ClockNone, clock.Tick(start.Add(61*time.Second)))
	assert.Equal(t, ClockNone, clock.Tick(start.Add(90*time.Second)))
}

func TestSessionClockOverallWinsWhenBothExpireOnSameTick(t *testing.T) {
	start := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	deadline := start.Add(time.Minute)
	clock := NewSessionClock(deadline, deadline)

	assert.Equal(t, ClockOverallExpired, clock.Tick(deadline))
	// The section event is swallowed; a single submission is the outcome.
	assert.Equal(t, ClockNone, clock.Tick(deadline.Add(time.Second)))
}

func TestSessionClockOverallExpiresExactlyOnce(t *testing.T) {
	start := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	clock := NewSessionClock(start.Add(time.Minute), start.Add(30*time.Minute))

	assert.Equal(t, ClockOverallExpired, clock.Tick(start.Add(2*time.Minute)))
	assert.Equal(t, ClockNone, clock.Tick(start.Add(3*time.Minute)))
}

func TestSessionClockEnterSectionRearmsAndClamps(t *testing.T) {
	start := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	overall := start.Add(10 * time.Minute)
	clock := NewSessionClock(overall, start.Add(5*time.Minute))

	assert.Equal(t, ClockSectionExpired, clock.Tick(start.Add(5*time.Minute)))

	// New section of 4 minutes fits inside the overall budget.
	deadline := clock.EnterSection(start.Add(5*time.Minute), 4*time.Minute)
	assert.Equal(t, start.Add(9*time.Minute), deadline)
	assert.Equal(t, ClockSectionExpired, clock.Tick(start.Add(9*time.Minute)))

	// A section longer than what remains is clamped to the overall deadline.
	deadline = clock.EnterSection(start.Add(9*time.Minute), 30*time.Minute)
	assert.Equal(t, overall, deadline)
}

func TestSectionDeadlineForClampsToOverall(t *testing.T) {
	entry := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	overall := entry.Add(10 * time.Minute)

	assert.Equal(t, entry.Add(5*time.Minute), SectionDeadlineFor(entry, 5*time.Minute, overall))
	assert.Equal(t, overall, SectionDeadlineFor(entry, 15*time.Minute, overall))
}
