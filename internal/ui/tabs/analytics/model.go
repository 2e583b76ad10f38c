// Package analytics provides the analytics tab: the per-provider request chart,
// resolved totals and the daily token roll-up.
package analytics

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/j-veylop/gateway-usage-tui/internal/app"
	"github.com/j-veylop/gateway-usage-tui/internal/ui/components"
)

// keyMap defines the key bindings specific to the analytics tab.
type keyMap struct {
	Up   key.Binding
	Down key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "scroll up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "scroll down"),
		),
	}
}

// Model represents the analytics tab state.
type Model struct {
	state    *app.State
	width    int
	height   int
	keys     keyMap
	viewport viewport.Model
	activity components.Activity
}

// New creates a new analytics tab.
func New(state *app.State) *Model {
	return &Model{
		state:    state,
		keys:     defaultKeyMap(),
		viewport: viewport.New(0, 0),
		activity: components.NewActivity("Loading analytics..."),
	}
}

// Init initializes the analytics tab.
func (m *Model) Init() tea.Cmd {
	return m.activity.Tick()
}

// Update handles messages for the analytics tab.
func (m *Model) Update(msg tea.Msg) (app.Tab, tea.Cmd) {
	var cmd tea.Cmd
	switch msg := msg.(type) {
	case tea.KeyMsg, tea.MouseMsg:
		m.viewport, cmd = m.viewport.Update(msg)
	case app.FiltersChangedMsg:
		m.viewport.GotoTop()
	default:
		m.activity, cmd = m.activity.Update(msg)
	}
	return m, cmd
}

// SetSize sets the available size for the analytics tab.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = height
}

// ShortHelp returns the key bindings for the short help view.
func (m *Model) ShortHelp() []key.Binding {
	return []key.Binding{m.keys.Up, m.keys.Down}
}

// FullHelp returns the key bindings for the full help view.
func (m *Model) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{m.keys.Up, m.keys.Down},
	}
}
