package tui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"go-synthwave/instrument"
	"go-synthwave/sequencer"
	"go-synthwave/theme"
)

func newModel(t *testing.T) (Model, *sequencer.Manager) {
	t.Helper()
	m, err := sequencer.NewManager(instrument.NewRecorder(), sequencer.WithInitialPreset("Minimal"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { m.Close() })
	return NewModel(context.Background(), m, nil, sequencer.NewSurface(m), theme.Default()), m
}

func press(t *testing.T, model Model, keys ...string) Model {
	t.Helper()
	for _, k := range keys {
		var msg tea.KeyMsg
		switch k {
		case "down":
			msg = tea.KeyMsg{Type: tea.KeyDown}
		case "right":
			msg = tea.KeyMsg{Type: tea.KeyRight}
		default:
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
		}
		next, cmd := model.Update(msg)
		model = next.(Model)
		if cmd == nil {
			continue
		}
		if res, ok := cmd().(toggledMsg); ok {
			next, _ = model.Update(res)
			model = next.(Model)
		}
	}
	return model
}

func TestCursorAndToggle(t *testing.T) {
	model, m := newModel(t)

	model = press(t, model, "j", "down", "l", "right", "right", " ")
	if model.track != sequencer.Arp || model.bar != 3 {
		t.Fatalf("cursor at %s bar %d", model.track, model.bar)
	}
	// minimal arp is ..x...x.
	if !m.Pattern(sequencer.Arp)[3] {
		t.Fatal("space did not toggle arp bar 3")
	}

	model = press(t, model, "h", "h", "h", "h", "h", "k", "k", "k", "k")
	if model.track != sequencer.Bass || model.bar != 0 {
		t.Fatalf("cursor should stop at the edges, at %s bar %d", model.track, model.bar)
	}
}

func TestTransportKeys(t *testing.T) {
	model, m := newModel(t)

	model = press(t, model, "+", "+", "-")
	if m.Tempo() != sequencer.DefaultTempo+5 {
		t.Fatalf("tempo = %v", m.Tempo())
	}

	model = press(t, model, "p")
	if !m.Playing() {
		t.Fatal("p did not start playback")
	}
	if !strings.Contains(model.View(), "PLAY") {
		t.Fatal("header does not show PLAY")
	}
	model = press(t, model, "p")
	if m.Playing() {
		t.Fatal("p did not stop playback")
	}
}

func TestPlayKeyTogglesOffTheUILoop(t *testing.T) {
	model, m := newModel(t)

	next, cmd := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("p")})
	if cmd == nil {
		t.Fatal("p returned no command")
	}
	if m.Playing() {
		t.Fatal("p started playback inside Update")
	}
	res := cmd()
	if _, ok := res.(toggledMsg); !ok {
		t.Fatalf("command returned %T", res)
	}
	if !m.Playing() {
		t.Fatal("command did not start playback")
	}
	next, _ = next.Update(res)

	next, _ = next.Update(toggledMsg{err: errors.New("audio device: busy")})
	if got := next.(Model).status; got != "audio device: busy" {
		t.Fatalf("status = %q", got)
	}
}

func TestVolumeKeysFollowCursorGroup(t *testing.T) {
	model, m := newModel(t)
	model = press(t, model, "j", "j", "j", "j") // kick
	press(t, model, "[", "[", "[")
	if got := m.Volume(sequencer.GroupDrums); got != sequencer.DefaultLevels[sequencer.GroupDrums]-3*volumeStep {
		t.Fatalf("drums = %v", got)
	}
	if got := m.Volume(sequencer.GroupBass); got != sequencer.DefaultLevels[sequencer.GroupBass] {
		t.Fatalf("bass moved to %v", got)
	}
}

func TestPresetKeys(t *testing.T) {
	model, m := newModel(t)
	press(t, model, "2")
	if m.Pattern(sequencer.Lead).Count() != sequencer.NumBars {
		t.Fatal("2 should load All On")
	}
	press(t, model, "9")
}

func TestViewShowsMeasureOneBased(t *testing.T) {
	model, _ := newModel(t)
	view := model.View()
	if !strings.Contains(view, "Current measure: 1") {
		t.Fatalf("view = %q", view)
	}
	for _, tr := range []string{"bass", "pad", "arp", "lead", "kick", "snare", "hat"} {
		if !strings.Contains(view, tr) {
			t.Fatalf("view missing %s", tr)
		}
	}
}

func TestStatusLineExpires(t *testing.T) {
	model, _ := newModel(t)
	model.status = "boom"
	model.statusAt = time.Unix(0, 0)

	next, cmd := model.Update(TickMsg(time.Unix(1, 0)))
	if next.(Model).status != "boom" || cmd == nil {
		t.Fatal("status cleared too early")
	}
	next, _ = model.Update(TickMsg(time.Unix(10, 0)))
	if next.(Model).status != "" {
		t.Fatal("status not cleared")
	}
}

func TestQuit(t *testing.T) {
	model, _ := newModel(t)
	next, cmd := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil || next.View() != "" {
		t.Fatal("q should quit")
	}
}
