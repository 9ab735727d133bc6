package tui

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/lab-assistant/internal/inventory"
)

type inventoryLoadedMsg struct {
	chemicals []inventory.Chemical
	err       error
}

type inventoryView struct {
	app       *App
	table     table.Model
	chemicals []inventory.Chemical
	err       error
	loaded    bool
}

func newInventoryView(app *App) *inventoryView {
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "Chemical", Width: 22},
			{Title: "Stock", Width: 18},
			{Title: "Left", Width: 6},
			{Title: "Expiry", Width: 12},
			{Title: "Status", Width: 10},
			{Title: "Tags", Width: 24},
		}),
		table.WithFocused(true),
		table.WithHeight(10),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("#444444")).
		BorderBottom(true).
		Bold(true)
	styles.Selected = styles.Selected.
		Foreground(lipgloss.Color("#FFFFFF")).
		Background(lipgloss.Color("#5B8DEF"))
	t.SetStyles(styles)
	return &inventoryView{app: app, table: t}
}

func (v *inventoryView) Init() tea.Cmd {
	ledger := v.app.ledger
	return func() tea.Msg {
		if ledger == nil {
			return inventoryLoadedMsg{err: fmt.Errorf("inventory ledger unavailable")}
		}
		chems, err := ledger.List(context.Background())
		return inventoryLoadedMsg{chemicals: chems, err: err}
	}
}

func (v *inventoryView) load(msg inventoryLoadedMsg) {
	v.loaded = true
	v.err = msg.err
	if msg.err != nil {
		v.app.statusMsg = fmt.Sprintf("Inventory unavailable: %v", msg.err)
		v.app.logError("Inventory unavailable: %v", msg.err)
		return
	}
	v.chemicals = msg.chemicals
	now := v.app.clock()
	window := v.app.config.ExpiryWarning()
	rows := make([]table.Row, 0, len(msg.chemicals))
	flagged := 0
	for _, chem := range msg.chemicals {
		status := chemicalStatus(chem, now, window)
		if status != "" {
			flagged++
		}
		rows = append(rows, table.Row{
			chem.Nickname,
			fmt.Sprintf("%s / %s %s", formatAmount(chem.Current), formatAmount(chem.Max), chem.Units),
			fmt.Sprintf("%d%%", int(chem.Fraction()*100+0.5)),
			formatExpiry(chem),
			status,
			tagTitles(chem.Tags),
		})
	}
	v.table.SetRows(rows)
	switch {
	case len(rows) == 0:
		v.app.statusMsg = "No chemicals yet · add some with labassistant chem add"
	case flagged > 0:
		v.app.statusMsg = fmt.Sprintf("%d chemicals · %d need attention", len(rows), flagged)
	default:
		v.app.statusMsg = fmt.Sprintf("%d chemicals", len(rows))
	}
}

func (v *inventoryView) Update(msg tea.Msg) tea.Cmd {
	if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.String() == "r" {
		return v.Init()
	}
	var cmd tea.Cmd
	v.table, cmd = v.table.Update(msg)
	return cmd
}

func (v *inventoryView) resize(height int) {
	v.table.SetHeight(max(3, height-16))
}

func (v *inventoryView) View() string {
	head := titleStyle.Render("Chemicals")
	switch {
	case !v.loaded:
		return head + "\nLoading..."
	case v.err != nil:
		return head + "\n" + pausedStyle.Render(v.err.Error())
	}
	return head + "\n" + v.table.View()
}

func chemicalStatus(chem inventory.Chemical, now time.Time, window time.Duration) string {
	switch {
	case chem.Expired(now):
		return "expired"
	case chem.ExpiresWithin(now, window):
		return "expiring"
	case chem.Current == 0:
		return "empty"
	default:
		return ""
	}
}

func formatExpiry(chem inventory.Chemical) string {
	if chem.Expiry == nil {
		return "-"
	}
	return chem.Expiry.Format("2006-01-02")
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func tagTitles(tags []inventory.Tag) string {
	titles := make([]string, len(tags))
	for i, tag := range tags {
		titles[i] = tag.Title
	}
	return strings.Join(titles, ", ")
}
