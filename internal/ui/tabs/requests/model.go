// Package requests provides the request log tab: a scrollable table of usage
// requests with filter controls and resolved totals.
package requests

import (
	"slices"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/j-veylop/gateway-usage-tui/internal/app"
	"github.com/j-veylop/gateway-usage-tui/internal/models"
	"github.com/j-veylop/gateway-usage-tui/internal/ui/components"
)

// nearEdge is how many rows from either end still count as at the top or bottom.
const nearEdge = 3

// hourChoices are the windows the hours filter cycles through.
var hourChoices = []int{1, 6, 24, 24 * 7, 24 * 30}

// keyMap defines the key bindings specific to the requests tab.
type keyMap struct {
	Up            key.Binding
	Down          key.Binding
	PageUp        key.Binding
	PageDown      key.Binding
	Home          key.Binding
	End           key.Binding
	CycleHours    key.Binding
	CycleProvider key.Binding
	ToggleFilters key.Binding
	ClearFilters  key.Binding
	LoadMore      key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Up:            key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:          key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		PageUp:        key.NewBinding(key.WithKeys("pgup", "ctrl+u"), key.WithHelp("pgup", "page up")),
		PageDown:      key.NewBinding(key.WithKeys("pgdown", "ctrl+d"), key.WithHelp("pgdn", "page down")),
		Home:          key.NewBinding(key.WithKeys("home", "g"), key.WithHelp("g", "newest")),
		End:           key.NewBinding(key.WithKeys("end", "G"), key.WithHelp("G", "oldest")),
		CycleHours:    key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "cycle window")),
		CycleProvider: key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "cycle provider")),
		ToggleFilters: key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "show/hide filters")),
		ClearFilters:  key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "clear filters")),
		LoadMore:      key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "load more")),
	}
}

// Model represents the requests tab state.
type Model struct {
	state    *app.State
	width    int
	height   int
	keys     keyMap
	activity components.Activity

	cursor int
	top    int
}

// New creates a new requests tab.
func New(state *app.State) *Model {
	return &Model{
		state:    state,
		keys:     defaultKeyMap(),
		activity: components.NewActivity("Loading requests..."),
	}
}

// Init initializes the requests tab.
func (m *Model) Init() tea.Cmd {
	return m.activity.Tick()
}

// Update handles messages for the requests tab.
func (m *Model) Update(msg tea.Msg) (app.Tab, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m, m.handleKeyMsg(msg)

	case app.FiltersChangedMsg, app.FiltersHiddenMsg:
		m.cursor, m.top = 0, 0

	case app.PageLoadedMsg, app.MergeLoadedMsg:
		m.clamp()

	default:
		var cmd tea.Cmd
		m.activity, cmd = m.activity.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) handleKeyMsg(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.Up):
		return m.move(-1)
	case key.Matches(msg, m.keys.Down):
		return m.move(1)
	case key.Matches(msg, m.keys.PageUp):
		return m.move(-m.visibleRows())
	case key.Matches(msg, m.keys.PageDown):
		return m.move(m.visibleRows())
	case key.Matches(msg, m.keys.Home):
		return m.move(-m.cursor)
	case key.Matches(msg, m.keys.End):
		return m.move(len(m.state.Snapshot().Rows()))

	case key.Matches(msg, m.keys.CycleHours):
		f := m.state.Filters()
		f.Hours = nextHours(f.Hours)
		return filtersChanged(f)

	case key.Matches(msg, m.keys.CycleProvider):
		f := m.state.Filters()
		if p := nextProvider(f.Providers, m.state.Snapshot().KnownProviders); p == "" {
			f.Providers = nil
		} else {
			f = f.WithProviders(p)
		}
		return filtersChanged(f)

	case key.Matches(msg, m.keys.ToggleFilters):
		hidden := !m.state.View().FiltersHidden
		return func() tea.Msg { return app.FiltersHiddenMsg{Hidden: hidden} }

	case key.Matches(msg, m.keys.ClearFilters):
		return filtersChanged(models.RequestFilters{Hours: m.state.Filters().Hours})

	case key.Matches(msg, m.keys.LoadMore):
		return func() tea.Msg { return app.LoadMoreMsg{} }
	}
	return nil
}

func filtersChanged(f models.RequestFilters) tea.Cmd {
	return func() tea.Msg { return app.FiltersChangedMsg{Filters: f} }
}

// move shifts the cursor and reports the new scroll position.
func (m *Model) move(delta int) tea.Cmd {
	m.cursor += delta
	m.clamp()
	n := len(m.state.Snapshot().Rows())
	msg := app.ScrollMsg{
		NearTop:    m.cursor < nearEdge,
		NearBottom: n > 0 && m.cursor >= n-nearEdge,
	}
	return func() tea.Msg { return msg }
}

// clamp keeps the cursor on a row and inside the visible window.
func (m *Model) clamp() {
	n := len(m.state.Snapshot().Rows())
	m.cursor = min(max(m.cursor, 0), max(n-1, 0))
	visible := m.visibleRows()
	if m.cursor < m.top {
		m.top = m.cursor
	}
	if m.cursor >= m.top+visible {
		m.top = m.cursor - visible + 1
	}
	m.top = min(max(m.top, 0), max(n-visible, 0))
}

func nextHours(current int) int {
	i := slices.Index(hourChoices, current)
	if i < 0 {
		return hourChoices[0]
	}
	return hourChoices[(i+1)%len(hourChoices)]
}

// nextProvider walks unrestricted → each known provider → unrestricted. An empty
// result means unrestricted.
func nextProvider(selected, known []string) string {
	if len(known) == 0 {
		return ""
	}
	if len(selected) != 1 {
		return known[0]
	}
	i := slices.Index(known, selected[0])
	if i < 0 || i+1 >= len(known) {
		return ""
	}
	return known[i+1]
}

// SetSize sets the available size for the requests tab.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.clamp()
}

// ShortHelp returns the key bindings for the short help view.
func (m *Model) ShortHelp() []key.Binding {
	return []key.Binding{
		m.keys.CycleHours,
		m.keys.CycleProvider,
		m.keys.ToggleFilters,
		m.keys.ClearFilters,
		m.keys.LoadMore,
	}
}

// FullHelp returns the key bindings for the full help view.
func (m *Model) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{m.keys.Up, m.keys.Down, m.keys.PageUp, m.keys.PageDown, m.keys.Home, m.keys.End},
		m.ShortHelp(),
	}
}
