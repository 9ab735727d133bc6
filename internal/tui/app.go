// internal/tui/app.go
//
// This is the interactive front end for LabAssistant. It uses bubbletea,
// which follows The Elm Architecture:
//
// 1. Model: Your application state
// 2. Update: A function that updates state based on messages
// 3. View: A function that renders state to a string
//
// The develop view owns a procedure engine; every engine call happens inside
// Update, and tea.Tick is the clock that drives it.

package tui

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/lab-assistant/internal/config"
	"github.com/kingrea/lab-assistant/internal/inventory"
	"github.com/kingrea/lab-assistant/internal/logbook"
	"github.com/kingrea/lab-assistant/internal/logging"
	"github.com/kingrea/lab-assistant/internal/procedure"
)

// appState represents which "screen" we're on
type appState int

const (
	stateMainMenu        appState = iota // Main menu
	stateProcedureSelect                 // Procedure picker before developing
	stateDevelop                         // Running a procedure
	stateInventory                       // Chemical inventory table
)

const (
	logPanelLines   = 8
	menuStart       = "Start Procedure"
	menuQuickStart  = "Quick Start"
	menuChemicals   = "Chemicals"
	menuExit        = "Exit"
	quickStartLabel = menuQuickStart + " (%s)"
)

// AppOption customizes App construction for tests and alternate runtimes.
type AppOption func(*App)

// WithLogbook uses lb for the session journal instead of opening the one
// under the config's logs directory.
func WithLogbook(lb *logbook.Logbook) AppOption {
	return func(a *App) {
		if lb != nil {
			a.logbook = lb
		}
	}
}

// WithLogger routes diagnostics to logger.
func WithLogger(logger *slog.Logger) AppOption {
	return func(a *App) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithClock overrides the wall clock used for expiry checks.
func WithClock(clock func() time.Time) AppOption {
	return func(a *App) {
		if clock != nil {
			a.clock = clock
		}
	}
}

// App is the main application model. In bubbletea, this holds ALL your state.
type App struct {
	state   appState
	config  *config.Config
	library *procedure.Library
	ledger  *inventory.Ledger
	logbook *logbook.Logbook
	logger  *slog.Logger
	clock   func() time.Time

	procedureMenu    list.Model
	procedureChoices []procedureOption
	developView      *developView
	inventoryView    *inventoryView
	// tickGen identifies the current develop run. Tick messages carrying an
	// older generation are dropped.
	tickGen int

	// UI components
	mainMenu  list.Model
	statusMsg string

	// Window size (we get this from bubbletea)
	width  int
	height int
}

// menuItem implements list.Item interface for our menu items
type menuItem struct {
	title string
	desc  string
}

func (i menuItem) Title() string       { return i.title }
func (i menuItem) Description() string { return i.desc }
func (i menuItem) FilterValue() string { return i.title }

type procedureOption struct {
	entry procedure.Entry
}

func (o procedureOption) Title() string { return o.entry.Procedure.Nickname }

func (o procedureOption) Description() string {
	p := o.entry.Procedure
	parts := []string{fmt.Sprintf("%d steps", len(p.Steps))}
	if total := p.EstimatedDuration(); total != nil {
		parts = append(parts, "~"+formatClock(*total))
	}
	parts = append(parts, string(o.entry.Source))
	return strings.Join(parts, " · ")
}

func (o procedureOption) FilterValue() string { return o.entry.Procedure.Nickname }

// ref is the value persisted as default_procedure.
func (o procedureOption) ref() string {
	if id := strings.TrimSpace(o.entry.Procedure.ID); id != "" {
		return id
	}
	return o.entry.Procedure.Nickname
}

// NewApp creates a new App instance
func NewApp(cfg *config.Config, library *procedure.Library, ledger *inventory.Ledger, opts ...AppOption) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("tui: config is required")
	}
	if library == nil {
		return nil, fmt.Errorf("tui: procedure library is required")
	}
	mainMenu := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	mainMenu.Title = "⚗ LAB ASSISTANT"
	mainMenu.SetShowStatusBar(false)
	mainMenu.SetFilteringEnabled(false)
	procedureMenu := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	procedureMenu.Title = "Select Procedure"
	procedureMenu.SetShowStatusBar(false)
	procedureMenu.SetFilteringEnabled(false)

	app := &App{
		state:         stateMainMenu,
		config:        cfg,
		library:       library,
		ledger:        ledger,
		logger:        logging.Discard(),
		clock:         time.Now,
		mainMenu:      mainMenu,
		procedureMenu: procedureMenu,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(app)
		}
	}
	if app.logbook == nil {
		lb, err := logbook.New(cfg.JournalPath())
		if err != nil {
			app.logger.Warn("session journal unavailable", "err", err)
		} else {
			app.logbook = lb
		}
	}
	app.logInfo("Session opened")
	app.refreshMainMenu()
	return app, nil
}

// refreshMainMenu rebuilds the menu; Quick Start appears once a default
// procedure has been chosen.
func (a *App) refreshMainMenu() {
	items := []list.Item{}
	if name := a.defaultProcedureName(); name != "" {
		items = append(items, menuItem{
			title: fmt.Sprintf(quickStartLabel, name),
			desc:  "Run the last procedure again",
		})
	}
	items = append(items,
		menuItem{title: menuStart, desc: "Pick a procedure and start the timers"},
		menuItem{title: menuChemicals, desc: "Stock levels, expiry and tags"},
		menuItem{title: menuExit, desc: "Quit LabAssistant"},
	)
	a.mainMenu.SetItems(items)
}

func (a *App) defaultProcedureName() string {
	ref := a.config.DefaultProcedure()
	if ref == "" {
		return ""
	}
	p, err := a.library.Find(context.Background(), ref)
	if err != nil {
		return ""
	}
	return p.Nickname
}

func (a *App) refreshProcedureMenu() {
	entries, err := a.library.List(context.Background())
	if err != nil {
		a.logWarn("Procedure library: %v", err)
		a.logger.Warn("procedure library incomplete", "err", err)
	}
	options := make([]procedureOption, len(entries))
	items := make([]list.Item, len(entries))
	selected := 0
	current := a.config.DefaultProcedure()
	for i, entry := range entries {
		options[i] = procedureOption{entry: entry}
		items[i] = options[i]
		if current != "" && options[i].ref() == current {
			selected = i
		}
	}
	a.procedureChoices = options
	a.procedureMenu.SetItems(items)
	if len(items) > 0 {
		a.procedureMenu.Select(selected)
	}
}

func (a *App) logInfo(format string, args ...any) {
	if a.logbook == nil {
		return
	}
	a.logbook.Info(format, args...)
}

func (a *App) logWarn(format string, args ...any) {
	if a.logbook == nil {
		return
	}
	a.logbook.Warn(format, args...)
}

func (a *App) logError(format string, args ...any) {
	if a.logbook == nil {
		return
	}
	a.logbook.Error(format, args...)
}

// Init is called once when the program starts.
func (a *App) Init() tea.Cmd {
	return nil
}

// Update is called when a message is received.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.mainMenu.SetSize(max(0, msg.Width-6), max(0, msg.Height-10))
		a.procedureMenu.SetSize(max(0, msg.Width-6), max(0, msg.Height-10))
		if a.developView != nil {
			a.developView.resize(msg.Width)
		}
		if a.inventoryView != nil {
			a.inventoryView.resize(msg.Height)
		}
		return a, nil

	case developTickMsg:
		if a.state != stateDevelop || a.developView == nil || msg.gen != a.developView.gen {
			return a, nil
		}
		return a, a.developView.tick()

	case inventoryLoadedMsg:
		if a.inventoryView != nil {
			a.inventoryView.load(msg)
		}
		return a, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return a, tea.Quit
		case "q":
			if a.state == stateMainMenu {
				return a, tea.Quit
			}
		case "esc":
			if a.state != stateMainMenu {
				return a.returnToMainMenu()
			}
		case "enter":
			switch a.state {
			case stateMainMenu:
				return a.handleMainMenuSelection()
			case stateProcedureSelect:
				return a.confirmProcedureSelection()
			}
		}
	}

	var cmd tea.Cmd
	switch a.state {
	case stateMainMenu:
		a.mainMenu, cmd = a.mainMenu.Update(msg)
	case stateProcedureSelect:
		a.procedureMenu, cmd = a.procedureMenu.Update(msg)
	case stateDevelop:
		if a.developView != nil {
			cmd = a.developView.Update(msg)
		}
	case stateInventory:
		if a.inventoryView != nil {
			cmd = a.inventoryView.Update(msg)
		}
	}
	return a, cmd
}

// handleMainMenuSelection processes menu item selection
func (a *App) handleMainMenuSelection() (tea.Model, tea.Cmd) {
	item, ok := a.mainMenu.SelectedItem().(menuItem)
	if !ok {
		return a, nil
	}

	switch {
	case strings.HasPrefix(item.title, menuQuickStart):
		a.logInfo("Menu · Quick Start selected")
		p, err := a.library.Find(context.Background(), a.config.DefaultProcedure())
		if err != nil {
			a.statusMsg = fmt.Sprintf("Default procedure unavailable: %v", err)
			a.logError("Default procedure unavailable: %v", err)
			a.refreshMainMenu()
			return a, nil
		}
		return a.startDevelop(p)

	case item.title == menuStart:
		a.logInfo("Menu · Start Procedure selected")
		return a.beginProcedureSelection()

	case item.title == menuChemicals:
		a.logInfo("Menu · Chemicals selected")
		return a.openInventory()

	case item.title == menuExit:
		a.logInfo("Menu · Exit selected")
		return a, tea.Quit
	}

	return a, nil
}

func (a *App) beginProcedureSelection() (tea.Model, tea.Cmd) {
	a.refreshProcedureMenu()
	a.state = stateProcedureSelect
	if a.width > 0 && a.height > 0 {
		a.procedureMenu.SetSize(max(0, a.width-6), max(0, a.height-10))
	}
	if len(a.procedureChoices) == 0 {
		a.statusMsg = "No procedures available"
	} else {
		a.statusMsg = "Select a procedure to start"
	}
	return a, nil
}

func (a *App) confirmProcedureSelection() (tea.Model, tea.Cmd) {
	item, ok := a.procedureMenu.SelectedItem().(procedureOption)
	if !ok {
		a.statusMsg = "Procedure selection unavailable"
		return a, nil
	}
	if err := a.config.SetDefaultProcedure(item.ref()); err != nil {
		a.statusMsg = fmt.Sprintf("Could not remember procedure: %v", err)
		a.logError("Could not remember procedure: %v", err)
		a.logger.Error("persist default procedure", "err", err)
	}
	a.logInfo("Procedure · %s selected", item.entry.Procedure.Nickname)
	return a.startDevelop(item.entry.Procedure)
}

// startDevelop loads p into a fresh engine and schedules the first tick.
func (a *App) startDevelop(p procedure.Procedure) (tea.Model, tea.Cmd) {
	a.tickGen++
	view, err := newDevelopView(a, p, a.tickGen)
	if err != nil {
		a.statusMsg = fmt.Sprintf("Cannot start %s: %v", p.Nickname, err)
		a.logError("Cannot start %s: %v", p.Nickname, err)
		a.logger.Warn("procedure rejected", "procedure", p.Nickname, "err", err)
		return a, nil
	}
	if a.width > 0 {
		view.resize(a.width)
	}
	a.developView = view
	a.state = stateDevelop
	a.statusMsg = fmt.Sprintf("Running %s", p.Nickname)
	return a, view.Init()
}

func (a *App) openInventory() (tea.Model, tea.Cmd) {
	a.inventoryView = newInventoryView(a)
	if a.height > 0 {
		a.inventoryView.resize(a.height)
	}
	a.state = stateInventory
	a.statusMsg = "r reload · esc back"
	return a, a.inventoryView.Init()
}

// returnToMainMenu transitions back to the main menu. Bumping the generation
// stops the develop view's tick chain.
func (a *App) returnToMainMenu() (tea.Model, tea.Cmd) {
	if a.developView != nil {
		a.developView.leave()
	}
	a.tickGen++
	a.state = stateMainMenu
	a.developView = nil
	a.inventoryView = nil
	a.statusMsg = ""
	a.refreshMainMenu()
	return a, nil
}

// View renders the current state to a string.
func (a *App) View() string {
	width := a.width
	if width <= 0 {
		width = 100
	}
	rightWidth := max(32, width/3)
	leftWidth := width - rightWidth - 4
	if leftWidth < 40 || a.state != stateDevelop {
		leftWidth = width - 4
		rightWidth = 0
	}
	var content string
	switch a.state {
	case stateMainMenu:
		content = a.mainMenu.View()
	case stateProcedureSelect:
		content = a.renderProcedureSelection()
	case stateDevelop:
		if a.developView != nil {
			content = a.developView.View()
		}
	case stateInventory:
		if a.inventoryView != nil {
			content = a.inventoryView.View()
		}
	}
	return a.renderBoard(content, leftWidth, rightWidth)
}

func (a *App) renderProcedureSelection() string {
	hint := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#888888")).
		Render("enter start · esc back")
	return fmt.Sprintf("%s\n%s", a.procedureMenu.View(), hint)
}

func (a *App) renderLogPanel() string {
	if a.logbook == nil {
		return ""
	}
	lines, total := a.logbook.Tail(logPanelLines)
	if len(lines) == 0 {
		return ""
	}
	fileName := filepath.Base(a.logbook.Path())
	if fileName == "." || fileName == "" {
		fileName = "log"
	}
	head := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#5B8DEF")).
		Render(fmt.Sprintf("LOG · %s · %d entries", fileName, total))
	body := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#AAAAAA")).
		Render(strings.Join(lines, "\n"))
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#444444")).
		Padding(0, 1).
		Render(fmt.Sprintf("%s\n%s", head, body))
	return box
}

func (a *App) renderBoard(mainContent string, leftWidth, rightWidth int) string {
	header := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#FF6B6B")).
		MarginBottom(1).
		Render("⚗ LAB ASSISTANT")
	leftBox := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#444444")).
		Padding(0, 1).
		Width(max(20, leftWidth)).
		Render(mainContent)
	body := leftBox
	if rightWidth > 0 && a.developView != nil {
		rightBox := lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(0, 1).
			Width(max(20, rightWidth)).
			Render(a.developView.renderOutline(rightWidth - 4))
		body = lipgloss.JoinHorizontal(lipgloss.Top, leftBox, rightBox)
	}
	sections := []string{header, body}
	if logPanel := a.renderLogPanel(); logPanel != "" {
		sections = append(sections, logPanel)
	}
	footer := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#888888")).
		MarginTop(1).
		Render(a.statusMsg)
	sections = append(sections, footer)
	return strings.Join(sections, "\n")
}

// formatClock renders d as mm:ss, or h:mm:ss from an hour up.
func formatClock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	h, m, s := total/3600, (total/60)%60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
