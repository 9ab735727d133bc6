package engine

import (
	"time"

	"github.com/kingrea/lab-assistant/internal/procedure"
	"github.com/kingrea/lab-assistant/internal/timer"
)

// SubstepState mirrors the cycler of the current step.
type SubstepState struct {
	Title     string        `json:"title,omitempty"`
	Phase     timer.Phase   `json:"phase"`
	Remaining time.Duration `json:"remaining_ns"`
}

// Active reports whether a cycle is running for the current step.
func (s SubstepState) Active() bool {
	return s.Phase != timer.PhaseInactive
}

// State is a read-only snapshot of the engine. Primary is nil when the current
// step has no primary countdown; consumers render that as "not applicable".
type State struct {
	Loaded    bool           `json:"loaded"`
	Index     int            `json:"index"`
	StepCount int            `json:"step_count"`
	Step      procedure.Step `json:"step"`
	Primary   *time.Duration `json:"primary_remaining_ns"`
	Substep   SubstepState   `json:"substep"`
	Paused    bool           `json:"paused"`
}

// AtLastStep reports whether the snapshot is on the final step.
func (s State) AtLastStep() bool {
	return s.Loaded && s.Index == s.StepCount-1
}

// Finished is true on the last step once its primary countdown is spent.
func (s State) Finished() bool {
	return s.AtLastStep() && s.Primary != nil && *s.Primary == 0
}

// TickReport describes what a single Tick changed.
type TickReport struct {
	// Ignored is set when the engine was paused or not loaded.
	Ignored bool
	// PrimaryElapsed is set on the tick that brought the primary countdown to zero.
	PrimaryElapsed bool
	// Advanced is set when the tick moved to the next step.
	Advanced bool
	// SubstepFlipped is set when the substep switched between active and resting.
	SubstepFlipped bool
}
