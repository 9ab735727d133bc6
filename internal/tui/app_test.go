package tui

import (
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kingrea/lab-assistant/internal/config"
	"github.com/kingrea/lab-assistant/internal/inventory"
	"github.com/kingrea/lab-assistant/internal/procedure"
	"github.com/kingrea/lab-assistant/internal/store/sqlite"
	"github.com/kingrea/lab-assistant/internal/timer"
)

func TestMainMenuExitQuits(t *testing.T) {
	app := newTestApp(t)
	items := app.mainMenu.Items()
	require.NotEmpty(t, items)
	app.mainMenu.Select(len(items) - 1)

	model, cmd := app.Update(tea.KeyMsg{Type: tea.KeyEnter})
	_, ok := model.(*App)
	require.True(t, ok, "expected app model, got %T", model)
	require.NotNil(t, cmd, "expected quit command")
	msg := cmd()
	_, ok = msg.(tea.QuitMsg)
	assert.True(t, ok, "expected tea.QuitMsg, got %T", msg)
}

func TestDevelopTicksDriveEngine(t *testing.T) {
	app := newTestApp(t)
	model, cmd := app.startDevelop(scenarioProcedure())
	app = model.(*App)
	require.NotNil(t, cmd, "expected first tick to be scheduled")
	require.Equal(t, stateDevelop, app.state)

	gen := app.developView.gen
	for i := 0; i < 10; i++ {
		_, cmd = app.Update(developTickMsg{gen: gen})
		require.NotNil(t, cmd, "tick %d did not reschedule", i)
	}
	state := app.developView.engine.Snapshot()
	require.NotNil(t, state.Primary)
	assert.Equal(t, 20*time.Second, *state.Primary)
	assert.Equal(t, timer.PhaseResting, state.Substep.Phase)
	assert.Equal(t, 5*time.Second, state.Substep.Remaining)

	view := app.View()
	assert.Contains(t, view, "00:20")
	assert.Contains(t, view, "resting")
}

func TestLeavingDevelopDropsStaleTicks(t *testing.T) {
	app := newTestApp(t)
	model, _ := app.startDevelop(scenarioProcedure())
	app = model.(*App)
	stale := app.developView.gen

	model, _ = app.Update(tea.KeyMsg{Type: tea.KeyEsc})
	app = model.(*App)
	require.Equal(t, stateMainMenu, app.state)
	assert.Nil(t, app.developView)

	_, cmd := app.Update(developTickMsg{gen: stale})
	assert.Nil(t, cmd, "stale tick must not be rescheduled")

	model, _ = app.startDevelop(scenarioProcedure())
	app = model.(*App)
	require.NotEqual(t, stale, app.developView.gen)
	_, cmd = app.Update(developTickMsg{gen: stale})
	assert.Nil(t, cmd)
	state := app.developView.engine.Snapshot()
	require.NotNil(t, state.Primary)
	assert.Equal(t, 30*time.Second, *state.Primary)
}

func TestDevelopKeysNavigateAndPause(t *testing.T) {
	app := newTestApp(t)
	model, _ := app.startDevelop(threeStepProcedure())
	app = model.(*App)
	index := func() int { return app.developView.engine.Snapshot().Index }

	app = press(t, app, 'b')
	assert.Equal(t, 0, index(), "back is disabled on the first step")
	app = press(t, app, 'n')
	assert.Equal(t, 1, index())
	model, _ = app.Update(tea.KeyMsg{Type: tea.KeyRight})
	app = model.(*App)
	assert.Equal(t, 2, index())
	app = press(t, app, 'l')
	assert.Equal(t, 2, index(), "forward is disabled on the last step")
	app = press(t, app, 'h')
	assert.Equal(t, 1, index())

	gen := app.developView.gen
	app = press(t, app, 'p')
	require.True(t, app.developView.engine.Paused())
	assert.Equal(t, "Paused", app.statusMsg)
	assert.Contains(t, app.View(), "PAUSED")
	app.Update(developTickMsg{gen: gen})
	assert.Equal(t, 3*time.Second, *app.developView.engine.Snapshot().Primary)

	app = press(t, app, 'p')
	require.False(t, app.developView.engine.Paused())
	for i := 0; i < 3; i++ {
		app.Update(developTickMsg{gen: gen})
	}
	state := app.developView.engine.Snapshot()
	assert.Equal(t, 2, state.Index, "stop bath auto-advances into fix")
	assert.Equal(t, 2*time.Second, *state.Primary)

	app.Update(developTickMsg{gen: gen})
	app.Update(developTickMsg{gen: gen})
	assert.True(t, app.developView.engine.Snapshot().Finished())
	assert.Equal(t, "HP5 quick complete", app.statusMsg)
}

func TestUntimedStepRendersNotApplicable(t *testing.T) {
	app := newTestApp(t)
	model, _ := app.startDevelop(procedure.Procedure{
		Nickname: "Mix",
		Steps:    []procedure.Step{{Order: 0, Title: "Mix chemicals"}},
	})
	app = model.(*App)
	view := app.developView.View()
	assert.Equal(t, 2, strings.Count(view, notApplicable))
	assert.NotContains(t, view, "00:00")
}

func TestStartDevelopRejectsInvalidProcedure(t *testing.T) {
	app := newTestApp(t)
	model, cmd := app.startDevelop(procedure.Procedure{Nickname: "Broken"})
	app = model.(*App)
	assert.Nil(t, cmd)
	assert.Equal(t, stateMainMenu, app.state)
	assert.Contains(t, app.statusMsg, "Cannot start Broken")
}

func TestProcedureSelectionPersistsDefault(t *testing.T) {
	app := newTestApp(t)
	model, _ := app.beginProcedureSelection()
	app = model.(*App)
	require.Equal(t, stateProcedureSelect, app.state)
	require.NotEmpty(t, app.procedureChoices)
	preset := procedure.Presets()[0]
	assert.Equal(t, preset.ID, app.procedureChoices[0].ref())

	app.procedureMenu.Select(0)
	model, cmd := app.Update(tea.KeyMsg{Type: tea.KeyEnter})
	app = model.(*App)
	require.NotNil(t, cmd)
	require.Equal(t, stateDevelop, app.state)
	assert.Equal(t, preset.ID, app.config.DefaultProcedure())

	reloaded, err := config.Load(app.config.HomeDir)
	require.NoError(t, err)
	assert.Equal(t, preset.ID, reloaded.DefaultProcedure())

	model, _ = app.Update(tea.KeyMsg{Type: tea.KeyEsc})
	app = model.(*App)
	first, ok := app.mainMenu.Items()[0].(menuItem)
	require.True(t, ok)
	assert.Equal(t, "Quick Start (HP5+ in DD-X)", first.title)

	app.mainMenu.Select(0)
	model, _ = app.Update(tea.KeyMsg{Type: tea.KeyEnter})
	app = model.(*App)
	require.Equal(t, stateDevelop, app.state)
	assert.Equal(t, preset.Nickname, app.developView.procedure.Nickname)
}

func TestInventoryViewFlagsExpiredChemicals(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	app := newTestApp(t, WithClock(func() time.Time { return now }))
	ctx := context.Background()
	past := now.Add(-24 * time.Hour)
	soon := now.Add(48 * time.Hour)
	_, err := app.ledger.Add(ctx, inventory.Chemical{Nickname: "DD-X", Max: 1000, Current: 250, Expiry: &past})
	require.NoError(t, err)
	_, err = app.ledger.Add(ctx, inventory.Chemical{Nickname: "Rapid Fixer", Max: 1000, Current: 1000, Expiry: &soon})
	require.NoError(t, err)
	_, err = app.ledger.Add(ctx, inventory.Chemical{Nickname: "Water", Units: inventory.UnitLitre, Max: 10, Current: 10})
	require.NoError(t, err)

	app.mainMenu.Select(1)
	model, cmd := app.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.Equal(t, stateInventory, model.(*App).state)
	app = runCommands(t, model, cmd)

	rows := app.inventoryView.table.Rows()
	require.Len(t, rows, 3)
	assert.Equal(t, "DD-X", rows[0][0])
	assert.Equal(t, "250 / 1000 ml", rows[0][1])
	assert.Equal(t, "25%", rows[0][2])
	assert.Equal(t, "expired", rows[0][4])
	assert.Equal(t, "expiring", rows[1][4])
	assert.Equal(t, "", rows[2][4])
	assert.Equal(t, "3 chemicals · 2 need attention", app.statusMsg)
	assert.Contains(t, app.View(), "Rapid Fixer")
}

func TestLogPanelShowsSessionJournal(t *testing.T) {
	app := newTestApp(t)
	model, _ := app.startDevelop(threeStepProcedure())
	app = model.(*App)
	app = press(t, app, 'n')

	panel := app.renderLogPanel()
	assert.Contains(t, panel, "sessions.log")
	assert.Contains(t, panel, "Develop · HP5 quick started (3 steps)")
	assert.Contains(t, panel, "Step 2/3 · Stop")
}

func TestFormatClock(t *testing.T) {
	cases := map[time.Duration]string{
		0:                               "00:00",
		9 * time.Second:                 "00:09",
		9 * time.Minute:                 "09:00",
		time.Hour + 5*time.Second:       "1:00:05",
		-3 * time.Second:                "00:00",
		1500 * time.Millisecond:         "00:01",
		59*time.Minute + 59*time.Second: "59:59",
	}
	for in, want := range cases {
		assert.Equal(t, want, formatClock(in), in.String())
	}
}

func scenarioProcedure() procedure.Procedure {
	return procedure.Procedure{
		Nickname: "Scenario",
		Steps: []procedure.Step{
			{Order: 0, Title: "Develop", Duration: procedure.Seconds(30),
				Substep: &procedure.Substep{Title: "Agitate", Active: 10 * time.Second, Rest: 5 * time.Second}},
			{Order: 1, Title: "Stop", Duration: procedure.Seconds(10), AutoAdvance: true},
		},
	}
}

func threeStepProcedure() procedure.Procedure {
	return procedure.Procedure{
		Nickname: "HP5 quick",
		Steps: []procedure.Step{
			{Order: 0, Title: "Develop", Duration: procedure.Seconds(30),
				Substep: &procedure.Substep{Title: "Agitate", Active: 10 * time.Second, Rest: 5 * time.Second}},
			{Order: 1, Title: "Stop", Duration: procedure.Seconds(3), AutoAdvance: true},
			{Order: 2, Title: "Fix", Duration: procedure.Seconds(2)},
		},
	}
}

func press(t *testing.T, app *App, r rune) *App {
	t.Helper()
	model, _ := app.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	next, ok := model.(*App)
	require.True(t, ok, "unexpected model type: %T", model)
	return next
}

func newTestApp(t *testing.T, opts ...AppOption) *App {
	t.Helper()
	home := t.TempDir()
	require.NoError(t, config.InitDir(home))
	cfg, err := config.Load(home)
	require.NoError(t, err)
	store, err := sqlite.Open(cfg.DatabasePath())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	library, err := procedure.NewLibrary(store, procedure.WithDir(cfg.ProceduresDir()))
	require.NoError(t, err)
	ledger, err := inventory.NewLedger(store)
	require.NoError(t, err)
	app, err := NewApp(cfg, library, ledger, opts...)
	require.NoError(t, err)
	return app
}

func runCommands(t *testing.T, model tea.Model, cmd tea.Cmd) *App {
	t.Helper()
	app, ok := model.(*App)
	if !ok {
		t.Fatalf("unexpected model type: %T", model)
	}
	for cmd != nil {
		msg := cmd()
		if msg == nil {
			break
		}
		nextModel, nextCmd := app.Update(msg)
		var ok bool
		app, ok = nextModel.(*App)
		if !ok {
			t.Fatalf("unexpected model type: %T", nextModel)
		}
		cmd = nextCmd
	}
	return app
}
