package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/lab-assistant/internal/engine"
	"github.com/kingrea/lab-assistant/internal/procedure"
	"github.com/kingrea/lab-assistant/internal/timer"
)

const notApplicable = "n/a"

var (
	titleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#5B8DEF")).Bold(true)
	labelStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")).Width(10)
	clockStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF")).Bold(true)
	activeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#F7B801")).Bold(true)
	restingStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50"))
	pausedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
	doneStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50")).Bold(true)
	notesStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#A0AEC0"))
	currentStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#5B8DEF")).Bold(true)
	upcomingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#CCCCCC"))
	pastStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#999999"))
)

// developTickMsg is one tick of a develop run. gen ties it to the run that
// scheduled it.
type developTickMsg struct {
	gen int
	at  time.Time
}

type developKeys struct {
	forward key.Binding
	back    key.Binding
	pause   key.Binding
	leave   key.Binding
}

func newDevelopKeys() developKeys {
	return developKeys{
		forward: key.NewBinding(key.WithKeys("right", "l", "n"), key.WithHelp("→/n", "next step")),
		back:    key.NewBinding(key.WithKeys("left", "h", "b"), key.WithHelp("←/b", "previous step")),
		pause:   key.NewBinding(key.WithKeys("p", " ", "space"), key.WithHelp("p/space", "pause")),
		leave:   key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "leave")),
	}
}

func (k developKeys) short() []key.Binding {
	return []key.Binding{k.back, k.forward, k.pause, k.leave}
}

type developView struct {
	app       *App
	procedure procedure.Procedure
	steps     []procedure.Step
	engine    *engine.Engine
	gen       int
	interval  time.Duration
	keys      developKeys
	help      help.Model
	bar       progress.Model
	finished  bool
}

func newDevelopView(app *App, p procedure.Procedure, gen int) (*developView, error) {
	eng := engine.New()
	if err := eng.LoadProcedure(p); err != nil {
		return nil, err
	}
	interval := app.config.TickInterval()
	if interval <= 0 {
		interval = time.Second
	}
	v := &developView{
		app:       app,
		procedure: p,
		steps:     p.SortedSteps(),
		engine:    eng,
		gen:       gen,
		interval:  interval,
		keys:      newDevelopKeys(),
		help:      help.New(),
		bar:       progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage(), progress.WithWidth(40)),
	}
	v.syncKeys()
	app.logInfo("Develop · %s started (%d steps)", p.Nickname, eng.StepCount())
	app.logger.Info("procedure started", "procedure", p.Nickname, "steps", eng.StepCount(), "interval", interval)
	v.logStep(eng.Snapshot())
	return v, nil
}

func (v *developView) Init() tea.Cmd {
	return v.scheduleTick()
}

func (v *developView) scheduleTick() tea.Cmd {
	gen := v.gen
	return tea.Tick(v.interval, func(at time.Time) tea.Msg {
		return developTickMsg{gen: gen, at: at}
	})
}

// tick advances the engine by one unit and schedules the next tick.
func (v *developView) tick() tea.Cmd {
	before := v.engine.Snapshot()
	report := v.engine.Tick()
	if report.Ignored {
		return v.scheduleTick()
	}
	state := v.engine.Snapshot()
	if report.PrimaryElapsed {
		v.app.logger.Info("step timer elapsed", "step", before.Index, "title", before.Step.Title)
		if !report.Advanced && !state.AtLastStep() {
			v.app.statusMsg = fmt.Sprintf("%s done · press → for %s", before.Step.Title, v.steps[state.Index+1].Title)
		}
	}
	if report.SubstepFlipped {
		v.app.logger.Debug("substep phase", "step", state.Index, "phase", state.Substep.Phase.String())
	}
	if report.Advanced {
		v.logStep(state)
		v.syncKeys()
	}
	if state.Finished() && !v.finished {
		v.finished = true
		v.app.statusMsg = fmt.Sprintf("%s complete", v.procedure.Nickname)
		v.app.logInfo("Develop · %s finished", v.procedure.Nickname)
		v.app.logger.Info("procedure finished", "procedure", v.procedure.Nickname)
	}
	return v.scheduleTick()
}

func (v *developView) Update(msg tea.Msg) tea.Cmd {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return nil
	}
	v.syncKeys()
	switch {
	case key.Matches(keyMsg, v.keys.forward):
		v.engine.StepForward()
		v.stepChanged()
	case key.Matches(keyMsg, v.keys.back):
		v.engine.StepBackward()
		v.stepChanged()
	case key.Matches(keyMsg, v.keys.pause):
		if v.engine.TogglePause() {
			v.app.statusMsg = "Paused"
			v.app.logInfo("Develop · paused at step %d", v.engine.Snapshot().Index+1)
		} else {
			v.app.statusMsg = fmt.Sprintf("Running %s", v.procedure.Nickname)
			v.app.logInfo("Develop · resumed")
		}
	}
	return nil
}

func (v *developView) stepChanged() {
	state := v.engine.Snapshot()
	v.finished = false
	v.app.statusMsg = fmt.Sprintf("Running %s", v.procedure.Nickname)
	v.logStep(state)
	v.syncKeys()
}

// syncKeys disables navigation that would run off either end.
func (v *developView) syncKeys() {
	v.keys.forward.SetEnabled(v.engine.CanStepForward())
	v.keys.back.SetEnabled(v.engine.CanStepBackward())
}

func (v *developView) logStep(state engine.State) {
	v.app.logInfo("Step %d/%d · %s", state.Index+1, state.StepCount, state.Step.Title)
}

func (v *developView) leave() {
	state := v.engine.Snapshot()
	if !v.finished {
		v.app.logInfo("Develop · left %s at step %d", v.procedure.Nickname, state.Index+1)
	}
	v.app.logger.Info("procedure closed", "procedure", v.procedure.Nickname, "step", state.Index)
}

func (v *developView) resize(width int) {
	v.bar.Width = max(10, min(60, width/2-16))
	v.help.Width = width
}

func (v *developView) View() string {
	state := v.engine.Snapshot()
	lines := []string{
		titleStyle.Render(fmt.Sprintf("%s · step %d/%d", v.procedure.Nickname, state.Index+1, state.StepCount)),
		clockStyle.Render(state.Step.Title),
	}
	if notes := strings.TrimSpace(state.Step.Notes); notes != "" {
		lines = append(lines, notesStyle.Render(notes))
	}
	if len(state.Step.Chemicals) > 0 {
		lines = append(lines, notesStyle.Render("Chemicals: "+strings.Join(state.Step.Chemicals, ", ")))
	}
	lines = append(lines, "", v.renderPrimary(state), v.renderSubstep(state))
	switch {
	case state.Paused:
		lines = append(lines, "", pausedStyle.Render("PAUSED"))
	case state.Finished():
		lines = append(lines, "", doneStyle.Render("DONE"))
	case state.Step.AutoAdvance && state.Primary != nil && !state.AtLastStep():
		lines = append(lines, "", notesStyle.Render("Moves on automatically"))
	}
	lines = append(lines, "", v.help.ShortHelpView(v.keys.short()))
	return strings.Join(lines, "\n")
}

func (v *developView) renderPrimary(state engine.State) string {
	label := labelStyle.Render("Timer")
	if state.Primary == nil {
		return label + notesStyle.Render(notApplicable)
	}
	fraction := 1.0
	if total := state.Step.Duration; total != nil && *total > 0 {
		fraction = 1 - float64(*state.Primary)/float64(*total)
	}
	return fmt.Sprintf("%s%s  %s", label, clockStyle.Render(formatClock(*state.Primary)), v.bar.ViewAs(fraction))
}

func (v *developView) renderSubstep(state engine.State) string {
	name := "Substep"
	if state.Step.Substep != nil && strings.TrimSpace(state.Step.Substep.Title) != "" {
		name = state.Step.Substep.Title
	}
	label := labelStyle.Render(name)
	if !state.Substep.Active() {
		return label + notesStyle.Render(notApplicable)
	}
	clock := formatClock(state.Substep.Remaining)
	if state.Substep.Phase == timer.PhaseActive {
		return fmt.Sprintf("%s%s  %s", label, activeStyle.Render("ACTIVE"), clock)
	}
	return fmt.Sprintf("%s%s %s", label, restingStyle.Render("resting"), clock)
}

// renderOutline lists every step with the current one highlighted.
func (v *developView) renderOutline(width int) string {
	state := v.engine.Snapshot()
	lines := []string{titleStyle.Render("Steps")}
	for i, step := range v.steps {
		length := "untimed"
		if step.Duration != nil {
			length = formatClock(*step.Duration)
		}
		text := fmt.Sprintf("%d. %s (%s)", i+1, step.Title, length)
		switch {
		case i == state.Index:
			lines = append(lines, currentStyle.Render("▸ "+text))
		case i < state.Index:
			lines = append(lines, pastStyle.Render("  "+text))
		default:
			lines = append(lines, upcomingStyle.Render("  "+text))
		}
	}
	if total := v.procedure.EstimatedDuration(); total != nil {
		lines = append(lines, "", notesStyle.Render("Total ~"+formatClock(*total)))
	}
	return lipgloss.NewStyle().Width(max(20, width)).Render(strings.Join(lines, "\n"))
}
