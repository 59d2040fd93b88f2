package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"go-synthwave/debug"
	"go-synthwave/instrument"
	"go-synthwave/midi"
	"go-synthwave/sequencer"
	"go-synthwave/theme"
	"go-synthwave/widgets"
)

// Display refresh for the playhead
const refreshRate = 100 * time.Millisecond

// Volume change per [ or ] press, in dB
const volumeStep = 2

// How long an error stays in the status line
const statusTTL = 4 * time.Second

type Model struct {
	Manager   *sequencer.Manager
	DeviceMgr *midi.DeviceManager // nil when no controllers are watched
	Surface   *sequencer.Surface
	Theme     *theme.Theme

	ctx        context.Context
	track      sequencer.Track
	bar        int
	showPads   bool
	status     string
	statusAt   time.Time
	controller midi.Controller
	quitting   bool
}

type UpdateMsg struct{}

type TickMsg time.Time

type DeviceEventMsg midi.DeviceEvent

// toggledMsg carries the result of a play/stop started from a key press
type toggledMsg struct{ err error }

// NewModel builds the UI. ctx bounds playback started from the UI and the
// pad listeners of attached controllers.
func NewModel(ctx context.Context, manager *sequencer.Manager, deviceMgr *midi.DeviceManager, surface *sequencer.Surface, th *theme.Theme) Model {
	return Model{
		Manager:   manager,
		DeviceMgr: deviceMgr,
		Surface:   surface,
		Theme:     th,
		ctx:       ctx,
		showPads:  true,
	}
}

func ListenForUpdates(manager *sequencer.Manager) tea.Cmd {
	return func() tea.Msg {
		<-manager.Updates()
		return UpdateMsg{}
	}
}

func ListenForDevices(deviceMgr *midi.DeviceManager) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-deviceMgr.Events()
		if !ok {
			return nil
		}
		return DeviceEventMsg(event)
	}
}

// toggle starts or stops playback off the UI loop. The first start opens
// the audio device, which can take a while.
func toggle(ctx context.Context, manager *sequencer.Manager) tea.Cmd {
	return func() tea.Msg {
		return toggledMsg{err: manager.Toggle(ctx)}
	}
}

func tick() tea.Cmd {
	return tea.Tick(refreshRate, func(t time.Time) tea.Msg { return TickMsg(t) })
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{ListenForUpdates(m.Manager), tick()}
	if m.DeviceMgr != nil {
		cmds = append(cmds, ListenForDevices(m.DeviceMgr))
	}
	return tea.Batch(cmds...)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case UpdateMsg:
		return m, ListenForUpdates(m.Manager)

	case toggledMsg:
		m.setErr(msg.err)
		return m, nil

	case TickMsg:
		if m.status != "" && time.Time(msg).Sub(m.statusAt) > statusTTL {
			m.status = ""
		}
		return m, tick()

	case DeviceEventMsg:
		event := midi.DeviceEvent(msg)
		switch event.Type {
		case midi.DeviceConnected:
			m.controller = event.Controller
			if m.Surface != nil {
				m.Surface.Attach(m.ctx, event.Controller)
			}
		case midi.DeviceDisconnected:
			if m.controller != nil && m.controller.ID() == event.ID {
				m.controller = nil
			}
			if m.Surface != nil {
				m.Surface.Detach(event.ID)
			}
		}
		return m, ListenForDevices(m.DeviceMgr)
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key := msg.String(); key {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "h", "left":
		if m.bar > 0 {
			m.bar--
		}
	case "l", "right":
		if m.bar < sequencer.NumBars-1 {
			m.bar++
		}
	case "k", "up":
		if m.track > 0 {
			m.track--
		}
	case "j", "down":
		if m.track < sequencer.NumTracks-1 {
			m.track++
		}

	case " ", "space", "enter":
		m.setErr(m.Manager.ToggleStep(m.track, m.bar))

	case "p":
		return m, toggle(m.ctx, m.Manager)

	case "+", "=":
		m.Manager.SetTempo(m.Manager.Tempo() + 5)
	case "-", "_":
		m.Manager.SetTempo(m.Manager.Tempo() - 5)

	case "[", "]":
		g := m.track.Group()
		db := m.Manager.Volume(g) - volumeStep
		if key == "]" {
			db = m.Manager.Volume(g) + volumeStep
		}
		_, err := m.Manager.SetVolume(g, db)
		m.setErr(err)

	case "1", "2", "3", "4", "5", "6", "7", "8", "9":
		idx := int(key[0] - '1')
		if names := m.Manager.Presets(); idx < len(names) {
			m.setErr(m.Manager.ApplyPreset(names[idx]))
		}

	case "g":
		m.showPads = !m.showPads
	}
	return m, nil
}

func (m *Model) setErr(err error) {
	if err == nil {
		return
	}
	debug.Error("tui", err)
	m.status = err.Error()
	m.statusAt = time.Now()
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	st := m.Manager.Status()

	headerStyle := lipgloss.NewStyle().Foreground(m.Theme.Accent()).Bold(true)
	dimStyle := lipgloss.NewStyle().Foreground(m.Theme.Muted())
	errStyle := lipgloss.NewStyle().Foreground(m.Theme.Warning())

	playState := "STOP"
	if st.Playing {
		playState = "PLAY"
	}
	device := ""
	if m.controller != nil {
		device = "  LP:X"
	}
	header := headerStyle.Render(fmt.Sprintf("go-synthwave  %s  %3.0fbpm  Current measure: %d%s",
		playState, st.Tempo, st.Bar+1, device))

	var out strings.Builder
	out.WriteString("\n")
	out.WriteString(header)
	out.WriteString("\n\n")
	out.WriteString(m.renderGrid(st))
	out.WriteString("\n\n")
	out.WriteString(m.renderMixer(st))

	if m.showPads && m.Surface != nil {
		out.WriteString("\n\n")
		out.WriteString(widgets.RenderPadGrid(widgets.PadsFromLEDs(m.Surface.Render()), false))
	}

	out.WriteString("\n\n")
	out.WriteString(dimStyle.Render(m.presetLine()))
	out.WriteString("\n")
	out.WriteString(dimStyle.Render("hjkl:move  space:toggle  p:play  +/-:tempo  [ ]:volume  1-5:preset  g:pads  q:quit"))
	if m.status != "" {
		out.WriteString("\n")
		out.WriteString(errStyle.Render(m.status))
	}
	return out.String()
}

// renderGrid draws one row per track and one column per bar
func (m Model) renderGrid(st sequencer.Status) string {
	sym := m.Theme.Symbols
	cursorStyle := lipgloss.NewStyle().Foreground(m.Theme.Cursor())
	headStyle := lipgloss.NewStyle().Foreground(m.Theme.FG())
	set := m.Manager.Snapshot()

	var lines []string
	for t := sequencer.Track(0); t < sequencer.NumTracks; t++ {
		var line strings.Builder
		line.WriteString(m.Theme.Track(t.Color(), true).Render(fmt.Sprintf("%-6s", t)))
		for bar := 0; bar < sequencer.NumBars; bar++ {
			on := set[t][bar]
			head := st.Playing && bar == st.Bar
			cursor := t == m.track && bar == m.bar

			var cell string
			switch {
			case cursor && on:
				cell = cursorStyle.Render(string(sym.CursorOn))
			case cursor && head:
				cell = cursorStyle.Render(string(sym.CursorPlayhead))
			case cursor:
				cell = cursorStyle.Render(string(sym.CursorOff))
			case on:
				cell = m.Theme.Track(t.Color(), head).Render(string(sym.StepOn))
			case head:
				cell = headStyle.Render(string(sym.StepPlayhead))
			default:
				cell = m.Theme.Track(t.Color(), false).Render(string(sym.StepOff))
			}
			line.WriteString(" ")
			line.WriteString(cell)
		}
		lines = append(lines, line.String())
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderMixer(st sequencer.Status) string {
	sym := m.Theme.Symbols
	sel := m.track.Group()
	var lines []string
	for g := sequencer.Group(0); g < sequencer.NumGroups; g++ {
		row := widgets.Fader(g.String(), st.Levels[g], instrument.MinVolume, instrument.MaxVolume, 12, sym.FaderFull, sym.FaderEmpty)
		style := lipgloss.NewStyle().Foreground(m.Theme.Muted())
		if g == sel {
			style = style.Foreground(m.Theme.FG())
		}
		lines = append(lines, style.Render(row))
	}
	if !st.Ready {
		lines = append(lines, lipgloss.NewStyle().Foreground(m.Theme.Muted()).Render("(audio starts on first play)"))
	}
	return strings.Join(lines, "\n")
}

func (m Model) presetLine() string {
	names := m.Manager.Presets()
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = fmt.Sprintf("%d:%s", i+1, n)
	}
	return "presets  " + strings.Join(parts, "  ")
}
