package components

import (
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/j-veylop/gateway-usage-tui/internal/ui/styles"
)

var activityTextStyle = lipgloss.NewStyle().Foreground(styles.TextSecondary)

// Activity animates the fetch streams in flight. It renders nothing while idle.
type Activity struct {
	spinner spinner.Model
	label   string
}

// NewActivity creates an indicator. label is shown while a view has nothing
// cached to render yet.
func NewActivity(label string) Activity {
	s := spinner.New()
	s.Spinner = spinner.MiniDot
	s.Style = lipgloss.NewStyle().Foreground(styles.Primary)
	return Activity{spinner: s, label: label}
}

// Tick starts the animation.
func (a Activity) Tick() tea.Cmd {
	return a.spinner.Tick
}

// Update advances the animation on its own tick messages and ignores the rest.
func (a Activity) Update(msg tea.Msg) (Activity, tea.Cmd) {
	if _, ok := msg.(spinner.TickMsg); !ok {
		return a, nil
	}
	var cmd tea.Cmd
	a.spinner, cmd = a.spinner.Update(msg)
	return a, cmd
}

// Frame is the current animation frame.
func (a Activity) Frame() string {
	return a.spinner.View()
}

// Status names the streams still loading, or is empty when there are none.
func (a Activity) Status(streams ...string) string {
	if len(streams) == 0 {
		return ""
	}
	return a.Frame() + " " + activityTextStyle.Render("loading "+strings.Join(streams, ", "))
}

// Placeholder fills a width by height area with the frame and label.
func (a Activity) Placeholder(width, height int) string {
	return styles.CenterBoth(a.Frame()+" "+activityTextStyle.Render(a.label), width, height)
}
