package engine

import (
	"errors"
	"fmt"

	"github.com/kingrea/lab-assistant/internal/procedure"
	"github.com/kingrea/lab-assistant/internal/timer"
)

var (
	// ErrInvalidProcedure is returned by Load for an empty or malformed step list.
	ErrInvalidProcedure = errors.New("engine: invalid procedure")
	// ErrOutOfRange is returned by GoToStep for an index outside the procedure.
	ErrOutOfRange = errors.New("engine: step index out of range")
)

// Engine is the timed-procedure state machine. The zero value is usable and
// behaves as an engine with nothing loaded.
type Engine struct {
	steps   []procedure.Step
	index   int
	primary timer.Countdown
	cycler  timer.Cycler
	paused  bool
}

// New returns an engine with no procedure loaded.
func New() *Engine {
	return &Engine{}
}

// Load validates steps and starts the procedure at its first step, running.
// On error the previously loaded procedure and its timers are left as they
// were.
func (e *Engine) Load(steps []procedure.Step) error {
	if len(steps) == 0 {
		return fmt.Errorf("%w: no steps", ErrInvalidProcedure)
	}
	if err := procedure.CheckOrder(steps); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidProcedure, err)
	}
	for i, step := range steps {
		if err := procedure.CheckDurations(step); err != nil {
			return fmt.Errorf("%w: steps[%d]: %w", ErrInvalidProcedure, i, err)
		}
	}
	ordered := make([]procedure.Step, len(steps))
	for _, step := range steps {
		ordered[step.Order] = step.Clone()
	}
	e.steps = ordered
	e.enter(0)
	return nil
}

// LoadProcedure loads the steps of p.
func (e *Engine) LoadProcedure(p procedure.Procedure) error {
	return e.Load(p.Steps)
}

// Loaded reports whether a procedure has been loaded.
func (e *Engine) Loaded() bool {
	return len(e.steps) > 0
}

// StepCount returns the number of steps in the loaded procedure.
func (e *Engine) StepCount() int {
	return len(e.steps)
}

// CurrentStep returns the active step. The bool is false before Load succeeds.
func (e *Engine) CurrentStep() (procedure.Step, bool) {
	if !e.Loaded() {
		return procedure.Step{}, false
	}
	return e.steps[e.index].Clone(), true
}

// GoToStep moves to index and restarts both timers from that step's
// definition, clearing any pause. Auto-advance goes through the same path.
func (e *Engine) GoToStep(index int) error {
	if !e.Loaded() {
		return fmt.Errorf("%w: no procedure loaded", ErrOutOfRange)
	}
	if index < 0 || index >= len(e.steps) {
		return fmt.Errorf("%w: %d not in [0, %d]", ErrOutOfRange, index, len(e.steps)-1)
	}
	e.enter(index)
	return nil
}

// StepForward moves to the next step; it does nothing on the last step.
func (e *Engine) StepForward() {
	if e.CanStepForward() {
		e.enter(e.index + 1)
	}
}

// StepBackward moves to the previous step; it does nothing on the first step.
func (e *Engine) StepBackward() {
	if e.CanStepBackward() {
		e.enter(e.index - 1)
	}
}

// CanStepForward reports whether a next step exists.
func (e *Engine) CanStepForward() bool {
	return e.Loaded() && e.index+1 < len(e.steps)
}

// CanStepBackward reports whether a previous step exists.
func (e *Engine) CanStepBackward() bool {
	return e.Loaded() && e.index > 0
}

// Pause freezes all countdowns until Resume.
func (e *Engine) Pause() {
	e.paused = true
}

// Resume lets ticks through again.
func (e *Engine) Resume() {
	e.paused = false
}

// TogglePause flips the paused flag and returns the new value.
func (e *Engine) TogglePause() bool {
	e.paused = !e.paused
	return e.paused
}

// Paused reports whether ticks are currently ignored.
func (e *Engine) Paused() bool {
	return e.paused
}

// Tick applies one elapsed unit. The primary countdown is decremented first;
// if it reaches zero on this tick and the step auto-advances to an existing
// next step, the engine moves there and the substep is not ticked, so the
// tick is never counted against both steps. Otherwise the substep cycle
// advances independently of the primary countdown.
func (e *Engine) Tick() TickReport {
	if !e.Loaded() || e.paused {
		return TickReport{Ignored: true}
	}
	var report TickReport
	if e.primary.Tick() {
		report.PrimaryElapsed = true
		if e.steps[e.index].AutoAdvance && e.index+1 < len(e.steps) {
			e.enter(e.index + 1)
			report.Advanced = true
			return report
		}
	}
	report.SubstepFlipped = e.cycler.Tick()
	return report
}

// Snapshot returns a copy of the engine state for display.
func (e *Engine) Snapshot() State {
	if !e.Loaded() {
		return State{Paused: e.paused}
	}
	step := e.steps[e.index]
	state := State{
		Loaded:    true,
		Index:     e.index,
		StepCount: len(e.steps),
		Step:      step.Clone(),
		Paused:    e.paused,
		Substep: SubstepState{
			Phase:     e.cycler.Phase(),
			Remaining: e.cycler.Remaining(),
		},
	}
	if remaining, armed := e.primary.Remaining(); armed {
		state.Primary = &remaining
	}
	if step.Substep != nil && state.Substep.Active() {
		state.Substep.Title = step.Substep.Title
	}
	return state
}

func (e *Engine) enter(index int) {
	step := e.steps[index]
	e.index = index
	e.primary = timer.NewCountdown(step.Duration)
	if step.Substep != nil {
		e.cycler = timer.NewCycler(step.Substep.Active, step.Substep.Rest)
	} else {
		e.cycler = timer.Cycler{}
	}
	e.paused = false
}
