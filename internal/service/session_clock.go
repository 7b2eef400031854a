package service

import "time"

// ClockEvent is raised by SessionClock.Tick when a deadline lapses. Each
// kind fires at most once per clock instance.
type ClockEvent int

const (
	ClockNone ClockEvent = iota
	ClockSectionExpired
	ClockOverallExpired
)

// SessionClock owns only absolute deadlines; remaining time is always
// derived from "now", never counted down locally, so a suspended or resumed
// session recovers the correct budget instead of restarting a stale
// countdown. The host drives it with periodic Tick calls.
type SessionClock struct {
	overallDeadline time.Time
	sectionDeadline time.Time

	sectionFired bool
	overallFired bool
}

func NewSessionClock(overallDeadline, sectionDeadline time.Time) *SessionClock {
	return &SessionClock{
		overallDeadline: overallDeadline,
		sectionDeadline: sectionDeadline,
	}
}

// Remaining returns the (overall, section) budgets at the given instant,
// clamped at zero.
func (c *SessionClock) Remaining(now time.Time) (overall, section time.Duration) {
	overall = c.overallDeadline.Sub(now)
	if overall < 0 {
		overall = 0
	}
	section = c.sectionDeadline.Sub(now)
	if section < 0 {
		section = 0
	}
	return overall, section
}

// Tick reports the single event due at this instant, if any. Overall expiry
// wins when both deadlines lapse on the same tick, and each event is
// reported exactly once; repeated ticks after expiry return ClockNone.
func (c *SessionClock) Tick(now time.Time) ClockEvent {
	if !c.overallFired && !now.Before(c.overallDeadline) {
		c.overallFired = true
		c.sectionFired = true
		return ClockOverallExpired
	}
	if !c.sectionFired && !now.Before(c.sectionDeadline) {
		c.sectionFired = true
		return ClockSectionExpired
	}
	return ClockNone
}

// EnterSection re-arms the section deadline for a newly entered section.
// The deadline is clamped to the overall deadline so the section budget can
// never outlive the attempt.
func (c *SessionClock) EnterSection(entry time.Time, duration time.Duration) time.Time {
	deadline := entry.Add(duration)
	if deadline.After(c.overallDeadline) {
		deadline = c.overallDeadline
	}
	c.sectionDeadline = deadline
	c.sectionFired = false
	return deadline
}

// SectionDeadlineFor computes the clamped section deadline without any clock
// instance: entry + duration, capped at the overall deadline.
func SectionDeadlineFor(entry time.Time, duration time.Duration, overallDeadline time.Time) time.Time {
	deadline := entry.Add(duration)
	if deadline.After(overallDeadline) {
		deadline = overallDeadline
	}
	return deadline
}
