package timer

import (
	"fmt"
	"time"
)

// Phase is the state of a Cycler.
type Phase int

const (
	PhaseInactive Phase = iota
	PhaseActive
	PhaseResting
)

func (p Phase) String() string {
	switch p {
	case PhaseInactive:
		return "inactive"
	case PhaseActive:
		return "active"
	case PhaseResting:
		return "resting"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// MarshalText renders the phase name for JSON and YAML consumers.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Cycler alternates between an active countdown and a rest countdown for as
// long as it is ticked. It never finishes on its own; the owner discards it.
type Cycler struct {
	active    time.Duration
	rest      time.Duration
	phase     Phase
	remaining time.Duration
}

// NewCycler starts in the active phase. A non-positive active duration yields
// an inert cycler that ignores ticks. Negative rest is treated as zero.
func NewCycler(active, rest time.Duration) Cycler {
	if active <= 0 {
		return Cycler{}
	}
	if rest < 0 {
		rest = 0
	}
	return Cycler{active: active, rest: rest, phase: PhaseActive, remaining: active}
}

// Tick advances the cycle by one Unit and reports whether the phase flipped.
// An active phase that runs out with a zero rest gap restarts immediately, so
// the cycler is never observed resting for a full tick.
func (c *Cycler) Tick() bool {
	switch c.phase {
	case PhaseActive:
		c.remaining -= Unit
		if c.remaining > 0 {
			return false
		}
		if c.rest > 0 {
			c.phase = PhaseResting
			c.remaining = c.rest
			return true
		}
		c.remaining = c.active
		return false
	case PhaseResting:
		c.remaining -= Unit
		if c.remaining > 0 {
			return false
		}
		c.phase = PhaseActive
		c.remaining = c.active
		return true
	default:
		return false
	}
}

// Phase returns the current phase.
func (c Cycler) Phase() Phase {
	return c.phase
}

// Remaining returns the time left in the current phase; zero when inactive.
func (c Cycler) Remaining() time.Duration {
	return c.remaining
}

// Period is one full active plus rest cycle.
func (c Cycler) Period() time.Duration {
	return c.active + c.rest
}
