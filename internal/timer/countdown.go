// Package timer holds the two tick-driven counters the procedure engine
// composes: a single clamped Countdown and the endless active/rest Cycler.
// Neither reads a clock; each Tick call stands for one elapsed Unit.
package timer

import "time"

// Unit is the amount of time one tick represents.
const Unit = time.Second

// Countdown decrements an optional duration once per tick and never goes
// below zero. The zero value is disarmed.
type Countdown struct {
	remaining time.Duration
	armed     bool
}

// NewCountdown arms a countdown for d. A nil d yields a disarmed countdown, so
// "no timer" stays distinguishable from "timer reached zero".
func NewCountdown(d *time.Duration) Countdown {
	if d == nil {
		return Countdown{}
	}
	remaining := *d
	if remaining < 0 {
		remaining = 0
	}
	return Countdown{remaining: remaining, armed: true}
}

// Tick subtracts one Unit when time remains. It returns true only on the tick
// that brings the countdown to zero.
func (c *Countdown) Tick() bool {
	if !c.armed || c.remaining <= 0 {
		return false
	}
	c.remaining -= Unit
	if c.remaining <= 0 {
		c.remaining = 0
		return true
	}
	return false
}

// Remaining returns the time left and whether the countdown is armed.
func (c Countdown) Remaining() (time.Duration, bool) {
	return c.remaining, c.armed
}

// HasElapsed is true once an armed countdown has reached zero.
func (c Countdown) HasElapsed() bool {
	return c.armed && c.remaining == 0
}

// Armed reports whether the countdown was created with a duration.
func (c Countdown) Armed() bool {
	return c.armed
}
