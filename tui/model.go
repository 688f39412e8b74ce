package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"note-gate/debug"
	"note-gate/midi"
	"note-gate/router"
	"note-gate/theme"
	"note-gate/widgets"
)

// layoutBounds holds cached layout info
type layoutBounds struct {
	cycleTop int // row of the slot line
}

type Model struct {
	Router    *router.Router
	DeviceMgr *midi.DeviceManager // nil when the input is opened directly
	Theme     *theme.Theme
	quitting  bool
	mouseX    int
	mouseY    int
	tooltip   string
	bounds    *layoutBounds
	inputID   string // connected input (may be empty)
}

type UpdateMsg struct{}

type DeviceEventMsg midi.DeviceEvent

// NewModel builds the TUI. inputID names an input that is already attached.
func NewModel(r *router.Router, deviceMgr *midi.DeviceManager, th *theme.Theme, inputID string) Model {
	return Model{
		Router:    r,
		DeviceMgr: deviceMgr,
		Theme:     th,
		bounds:    &layoutBounds{},
		inputID:   inputID,
	}
}

func ListenForUpdates(r *router.Router) tea.Cmd {
	return func() tea.Msg {
		<-r.UpdateChan
		return UpdateMsg{}
	}
}

func ListenForDevices(deviceMgr *midi.DeviceManager) tea.Cmd {
	if deviceMgr == nil {
		return nil
	}
	return func() tea.Msg {
		event, ok := <-deviceMgr.Events()
		if !ok {
			return nil
		}
		return DeviceEventMsg(event)
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		ListenForUpdates(m.Router),
		ListenForDevices(m.DeviceMgr),
	)
}

var keyHelp = []widgets.KeySection{
	{Keys: []widgets.KeyBinding{
		{Key: "+ / -", Desc: "ON length"},
		{Key: "] / [", Desc: "OFF length"},
		{Key: "r", Desc: "reset cycle"},
		{Key: "f", Desc: "release held notes"},
		{Key: "q", Desc: "quit"},
	}},
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit

		case "+", "=":
			m.Router.Adjust(1, 0)

		case "-", "_":
			m.Router.Adjust(-1, 0)

		case "]":
			m.Router.Adjust(0, 1)

		case "[":
			m.Router.Adjust(0, -1)

		case "r":
			m.Router.ResetCycle()

		case "f":
			m.Router.Flush()
		}

	case tea.MouseMsg:
		m.mouseX, m.mouseY = msg.X, msg.Y
		m.tooltip = m.hitTest(msg.X, msg.Y)

	case UpdateMsg:
		return m, ListenForUpdates(m.Router)

	case DeviceEventMsg:
		event := midi.DeviceEvent(msg)
		if event.Type == midi.DeviceConnected {
			m.inputID = event.ID
			m.Router.Attach(event.Source)
		} else if event.Type == midi.DeviceDisconnected && m.inputID == event.ID {
			m.inputID = ""
		}
		debug.Log("tui", "input %s: %s", event.Type, event.ID)
		return m, ListenForDevices(m.DeviceMgr)
	}

	return m, nil
}

func (m Model) hitTest(x, y int) string {
	if y != m.bounds.cycleTop {
		return ""
	}
	p := m.Router.Snapshot().State.Pattern
	slot := widgets.SlotAt(p, x)
	if slot == 0 {
		return ""
	}
	if p.Passes(slot - 1) {
		return fmt.Sprintf("slot %d/%d: ON, note-ons pass", slot, p.Length())
	}
	return fmt.Sprintf("slot %d/%d: OFF, note-ons blocked", slot, p.Length())
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	v := m.Router.Snapshot()
	st := v.State

	// Styles
	headerStyle := lipgloss.NewStyle().Foreground(m.Theme.Accent())
	dimStyle := lipgloss.NewStyle().Foreground(m.Theme.Muted())
	passStyle := lipgloss.NewStyle().Foreground(m.Theme.Pass())
	blockStyle := lipgloss.NewStyle().Foreground(m.Theme.Block())
	tooltipStyle := lipgloss.NewStyle().
		Foreground(m.Theme.FG()).
		Background(m.Theme.Muted()).
		Padding(0, 1)

	input := "no input"
	if m.inputID != "" {
		input = "in: " + m.inputID
	}
	header := headerStyle.Render(fmt.Sprintf("note-gate  %s  pos:%d  %s", st.Pattern, st.Position, input))

	cycle := widgets.RenderCycle(st.Pattern, st.NextSlot, widgets.CycleStyle{
		Pass:   m.Theme.RGB(theme.RolePass),
		Block:  m.Theme.RGB(theme.RoleBlock),
		Cursor: m.Theme.RGB(theme.RoleAccent),
		On:     m.Theme.Symbols.SlotOn,
		Off:    m.Theme.Symbols.SlotOff,
		Next:   m.Theme.Symbols.SlotNext,
	})

	held := dimStyle.Render("held: -")
	if len(st.Held) > 0 {
		names := make([]string, len(st.Held))
		for i, p := range st.Held {
			names[i] = noteName(p)
		}
		held = passStyle.Render(fmt.Sprintf("held: %c %s", m.Theme.Symbols.Held, strings.Join(names, " ")))
	}

	s := v.Stats
	counters := dimStyle.Render(fmt.Sprintf("pass %d  block %d  release %d  absorb %d  thru %d  drop %d  err %d",
		s.Passed, s.Blocked, s.Released, s.Absorbed, s.Forwarded, s.Dropped, s.SendErrors))

	var history []string
	for _, line := range v.History {
		switch {
		case strings.Contains(line, ": PASS"):
			history = append(history, passStyle.Render(line))
		case strings.Contains(line, ": BLOCK"):
			history = append(history, blockStyle.Render(line))
		default:
			history = append(history, headerStyle.Render(line))
		}
	}

	help := dimStyle.Render(widgets.RenderKeyHelp(keyHelp))

	// header, blank, marker row, then the slot row
	m.bounds.cycleTop = 1 + lipgloss.Height(header) + 1 + 1

	// Build output
	var out strings.Builder
	out.WriteString("\n")
	out.WriteString(header)
	out.WriteString("\n\n")
	out.WriteString(cycle)
	out.WriteString("\n\n")
	out.WriteString(held)
	out.WriteString("\n")
	out.WriteString(counters)
	out.WriteString("\n\n")
	out.WriteString(strings.Join(history, "\n"))
	out.WriteString("\n\n")
	out.WriteString(help)

	if m.tooltip != "" {
		out.WriteString("\n")
		out.WriteString(tooltipStyle.Render(m.tooltip))
	}

	return out.String()
}

var noteNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// noteName spells a MIDI pitch with middle C as C4
func noteName(p int) string {
	if p < 0 || p > 127 {
		return fmt.Sprintf("#%d", p)
	}
	return fmt.Sprintf("%s%d", noteNames[p%12], p/12-1)
}
