package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kingrea/lab-assistant/internal/procedure"
	"github.com/kingrea/lab-assistant/internal/timer"
)

// scenarioSteps is a 30s manual step with a 10s/5s cycle followed by a 10s
// auto-advancing final step.
func scenarioSteps() []procedure.Step {
	return []procedure.Step{
		{
			Order:    0,
			Title:    "Develop",
			Duration: procedure.Seconds(30),
			Substep:  &procedure.Substep{Title: "Agitate", Active: 10 * time.Second, Rest: 5 * time.Second},
		},
		{
			Order:       1,
			Title:       "Stop",
			Duration:    procedure.Seconds(10),
			AutoAdvance: true,
		},
	}
}

func newLoadedEngine(t *testing.T, steps []procedure.Step) *Engine {
	t.Helper()
	eng := New()
	require.NoError(t, eng.Load(steps))
	return eng
}

func tickN(eng *Engine, n int) {
	for i := 0; i < n; i++ {
		eng.Tick()
	}
}

func primary(t *testing.T, s State) time.Duration {
	t.Helper()
	require.NotNil(t, s.Primary)
	return *s.Primary
}

func TestLoadStartsAtFirstStepRunning(t *testing.T) {
	eng := newLoadedEngine(t, scenarioSteps())
	state := eng.Snapshot()
	assert.True(t, state.Loaded)
	assert.Equal(t, 0, state.Index)
	assert.Equal(t, 2, state.StepCount)
	assert.False(t, state.Paused)
	assert.Equal(t, 30*time.Second, primary(t, state))
	assert.Equal(t, timer.PhaseActive, state.Substep.Phase)
	assert.Equal(t, 10*time.Second, state.Substep.Remaining)
	assert.Equal(t, "Agitate", state.Substep.Title)

	step, ok := eng.CurrentStep()
	require.True(t, ok)
	assert.Equal(t, "Develop", step.Title)
}

func TestLoadSortsByOrder(t *testing.T) {
	steps := scenarioSteps()
	steps[0], steps[1] = steps[1], steps[0]
	eng := newLoadedEngine(t, steps)
	step, _ := eng.CurrentStep()
	assert.Equal(t, "Develop", step.Title)
}

func TestScenarioTrace(t *testing.T) {
	eng := newLoadedEngine(t, scenarioSteps())

	tickN(eng, 10)
	state := eng.Snapshot()
	assert.Equal(t, 20*time.Second, primary(t, state))
	assert.Equal(t, timer.PhaseResting, state.Substep.Phase)
	assert.Equal(t, 5*time.Second, state.Substep.Remaining)

	tickN(eng, 10)
	state = eng.Snapshot()
	assert.Equal(t, 10*time.Second, primary(t, state))
	assert.Equal(t, timer.PhaseActive, state.Substep.Phase)
	assert.Equal(t, 5*time.Second, state.Substep.Remaining)

	tickN(eng, 10)
	state = eng.Snapshot()
	assert.Equal(t, 0, state.Index, "manual step must not auto-advance")
	assert.Equal(t, time.Duration(0), primary(t, state))

	tickN(eng, 100)
	state = eng.Snapshot()
	assert.Equal(t, 0, state.Index)
	assert.Equal(t, time.Duration(0), primary(t, state))
	assert.True(t, state.Substep.Active(), "substep keeps cycling after the primary countdown ends")
}

func TestAutoAdvanceAfterExactlyDTicks(t *testing.T) {
	steps := []procedure.Step{
		{Order: 0, Title: "Presoak", Duration: procedure.Seconds(5), AutoAdvance: true,
			Substep: &procedure.Substep{Active: 3 * time.Second, Rest: 1 * time.Second}},
		{Order: 1, Title: "Develop", Duration: procedure.Seconds(40),
			Substep: &procedure.Substep{Active: 4 * time.Second, Rest: 2 * time.Second}},
		{Order: 2, Title: "Fix", Duration: procedure.Seconds(20)},
	}
	eng := newLoadedEngine(t, steps)

	for i := 0; i < 4; i++ {
		report := eng.Tick()
		require.False(t, report.Advanced, "tick %d", i+1)
	}
	report := eng.Tick()
	assert.True(t, report.PrimaryElapsed)
	assert.True(t, report.Advanced)
	assert.False(t, report.SubstepFlipped)

	fresh := newLoadedEngine(t, steps)
	require.NoError(t, fresh.GoToStep(1))
	assert.Equal(t, fresh.Snapshot(), eng.Snapshot(), "advance must fully reinitialise the next step")
}

func TestAutoAdvanceAtLastStepStays(t *testing.T) {
	eng := newLoadedEngine(t, scenarioSteps())
	require.NoError(t, eng.GoToStep(1))

	tickN(eng, 10)
	state := eng.Snapshot()
	assert.Equal(t, 1, state.Index)
	assert.Equal(t, time.Duration(0), primary(t, state))
	assert.True(t, state.Finished())

	report := eng.Tick()
	assert.False(t, report.Advanced)
	assert.False(t, report.PrimaryElapsed)
	assert.Equal(t, state, eng.Snapshot())
}

func TestPauseFreezesEverything(t *testing.T) {
	eng := newLoadedEngine(t, scenarioSteps())
	tickN(eng, 3)
	eng.Pause()
	frozen := eng.Snapshot()
	assert.True(t, frozen.Paused)

	for i := 0; i < 50; i++ {
		assert.True(t, eng.Tick().Ignored)
	}
	assert.Equal(t, frozen, eng.Snapshot())
}

func TestPauseResumeIsTransparent(t *testing.T) {
	paused := newLoadedEngine(t, scenarioSteps())
	plain := newLoadedEngine(t, scenarioSteps())

	tickN(paused, 4)
	tickN(plain, 4)
	paused.Pause()
	tickN(paused, 17)
	paused.Resume()
	paused.Tick()
	plain.Tick()

	assert.Equal(t, plain.Snapshot(), paused.Snapshot())
}

func TestTogglePause(t *testing.T) {
	eng := newLoadedEngine(t, scenarioSteps())
	assert.True(t, eng.TogglePause())
	assert.True(t, eng.Paused())
	assert.False(t, eng.TogglePause())
	assert.False(t, eng.Paused())
}

func TestGoToStepClearsPauseAndResetsTimers(t *testing.T) {
	eng := newLoadedEngine(t, scenarioSteps())
	tickN(eng, 12)
	eng.Pause()

	require.NoError(t, eng.GoToStep(0))
	state := eng.Snapshot()
	assert.False(t, state.Paused)
	assert.Equal(t, 30*time.Second, primary(t, state))
	assert.Equal(t, timer.PhaseActive, state.Substep.Phase)
	assert.Equal(t, 10*time.Second, state.Substep.Remaining)

	require.NoError(t, eng.GoToStep(1))
	state = eng.Snapshot()
	assert.Equal(t, timer.PhaseInactive, state.Substep.Phase)
	assert.False(t, state.Substep.Active())
	assert.Empty(t, state.Substep.Title)
}

func TestGoToStepOutOfRangeLeavesStateUntouched(t *testing.T) {
	eng := newLoadedEngine(t, scenarioSteps())
	tickN(eng, 7)
	eng.Pause()
	before := eng.Snapshot()

	for _, idx := range []int{-1, 2, 99} {
		err := eng.GoToStep(idx)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrOutOfRange))
		assert.Equal(t, before, eng.Snapshot())
	}
}

func TestStepForwardBackwardAreSafeAtBoundaries(t *testing.T) {
	eng := newLoadedEngine(t, scenarioSteps())
	assert.False(t, eng.CanStepBackward())
	tickN(eng, 3)
	before := eng.Snapshot()
	eng.StepBackward()
	assert.Equal(t, before, eng.Snapshot())

	eng.StepForward()
	assert.Equal(t, 1, eng.Snapshot().Index)
	assert.False(t, eng.CanStepForward())
	tickN(eng, 2)
	before = eng.Snapshot()
	eng.StepForward()
	assert.Equal(t, before, eng.Snapshot())

	eng.StepBackward()
	state := eng.Snapshot()
	assert.Equal(t, 0, state.Index)
	assert.Equal(t, 30*time.Second, primary(t, state))
}

func TestLoadRejectsInvalidProcedures(t *testing.T) {
	cases := map[string][]procedure.Step{
		"empty":          nil,
		"gap":            {{Order: 0}, {Order: 2}},
		"duplicate":      {{Order: 0}, {Order: 0}},
		"one-based":      {{Order: 1}},
		"negative":       {{Order: 0, Duration: procedure.Seconds(-1)}},
		"negative-rest":  {{Order: 0, Substep: &procedure.Substep{Active: time.Second, Rest: -time.Second}}},
		"negative-cycle": {{Order: 0, Substep: &procedure.Substep{Active: -time.Second}}},
	}
	for name, steps := range cases {
		t.Run(name, func(t *testing.T) {
			eng := newLoadedEngine(t, scenarioSteps())
			tickN(eng, 11)
			before := eng.Snapshot()

			err := eng.Load(steps)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidProcedure))
			assert.Equal(t, before, eng.Snapshot())
		})
	}
}

func TestUnloadedEngineIsInert(t *testing.T) {
	eng := New()
	assert.False(t, eng.Loaded())
	_, ok := eng.CurrentStep()
	assert.False(t, ok)
	assert.True(t, eng.Tick().Ignored)
	assert.True(t, errors.Is(eng.GoToStep(0), ErrOutOfRange))
	eng.StepForward()
	eng.StepBackward()

	err := eng.Load(nil)
	assert.True(t, errors.Is(err, ErrInvalidProcedure))
	assert.Equal(t, State{}, eng.Snapshot())
}

func TestUntimedStepOnlyCycles(t *testing.T) {
	eng := newLoadedEngine(t, []procedure.Step{
		{Order: 0, Title: "Agitate until clear", AutoAdvance: true,
			Substep: &procedure.Substep{Active: 2 * time.Second}},
		{Order: 1, Title: "Rinse"},
	})
	tickN(eng, 25)
	state := eng.Snapshot()
	assert.Equal(t, 0, state.Index)
	assert.Nil(t, state.Primary)
	assert.Equal(t, timer.PhaseActive, state.Substep.Phase)
}

func TestZeroLengthPrimaryDoesNotAutoAdvance(t *testing.T) {
	eng := newLoadedEngine(t, []procedure.Step{
		{Order: 0, Title: "Instant", Duration: procedure.Seconds(0), AutoAdvance: true},
		{Order: 1, Title: "Next"},
	})
	tickN(eng, 3)
	assert.Equal(t, 0, eng.Snapshot().Index)
}

func TestSnapshotIsACopy(t *testing.T) {
	eng := newLoadedEngine(t, scenarioSteps())
	state := eng.Snapshot()
	*state.Primary = time.Hour
	state.Step.Substep.Active = time.Hour

	fresh := eng.Snapshot()
	assert.Equal(t, 30*time.Second, primary(t, fresh))
	assert.Equal(t, 10*time.Second, fresh.Step.Substep.Active)
}
