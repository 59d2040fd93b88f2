package sequencer

import (
	"context"
	"sync"
	"time"

	"go-synthwave/debug"
	"go-synthwave/midi"
)

// LED refresh rate
const ledFPS = 30

// Tempo change per press of the top-row buttons
const tempoStep = 5

// Grid layout on an 8x8 pad controller (row 0 at the bottom):
//
//	top strip   col 0 tempo down, col 1 tempo up
//	rows 7..1   tracks bass..hat, one column per bar
//	row 0       preset buttons from col 0, play/stop at col 7
const (
	presetRow = 0
	playCol   = midi.GridSize - 1
)

func rowForTrack(t Track) int { return midi.GridSize - 1 - int(t) }

func trackForRow(row int) (Track, bool) {
	t := Track(midi.GridSize - 1 - row)
	return t, row >= 1 && row < midi.GridSize && t.Valid()
}

var (
	colorPlayhead = [3]uint8{70, 70, 70}
	colorPreset   = [3]uint8{255, 100, 0}
	colorPlay     = [3]uint8{0, 255, 0}
	colorStopped  = [3]uint8{90, 20, 20}
	colorTempo    = [3]uint8{0, 220, 220}
)

func dim(c [3]uint8) [3]uint8 {
	return [3]uint8{c[0] / 3, c[1] / 3, c[2] / 3}
}

// Surface mirrors the sequencer on a grid controller and turns pad
// presses into edits. It renders every frame and only sends LEDs that
// changed since the last frame.
type Surface struct {
	m *Manager

	mu       sync.Mutex
	ctrl     midi.Controller
	prevLEDs map[[2]int]midi.LEDUpdate
}

func NewSurface(m *Manager) *Surface {
	return &Surface{m: m, prevLEDs: make(map[[2]int]midi.LEDUpdate)}
}

// Attach starts mirroring onto ctrl and routes its pads until the
// controller closes its event channel.
func (s *Surface) Attach(ctx context.Context, ctrl midi.Controller) {
	s.mu.Lock()
	s.ctrl = ctrl
	s.prevLEDs = make(map[[2]int]midi.LEDUpdate)
	s.mu.Unlock()
	debug.Log("surface", "attached %s", ctrl.ID())

	go func() {
		for ev := range ctrl.PadEvents() {
			s.HandlePad(ctx, ev)
		}
	}()
}

// Detach stops mirroring if ctrl (by ID) is the attached controller
func (s *Surface) Detach(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctrl != nil && s.ctrl.ID() == id {
		s.ctrl = nil
		debug.Log("surface", "detached %s", id)
	}
}

// Run refreshes LEDs at a fixed rate until ctx is done
func (s *Surface) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Second / ledFPS)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.flush()
		}
	}
}

// flush sends only LEDs that changed since the previous frame
func (s *Surface) flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctrl == nil {
		return
	}

	leds := s.Render()
	next := make(map[[2]int]midi.LEDUpdate, len(leds))
	var updates []midi.LEDUpdate
	for _, led := range leds {
		key := [2]int{led.Row, led.Col}
		next[key] = led
		if prev, ok := s.prevLEDs[key]; !ok || prev != led {
			updates = append(updates, led)
		}
	}
	for key := range s.prevLEDs {
		if _, ok := next[key]; !ok {
			updates = append(updates, midi.LEDUpdate{Row: key[0], Col: key[1]})
		}
	}

	if len(updates) == 0 {
		return
	}
	if err := s.ctrl.SetLEDBatch(updates); err != nil {
		debug.Error("surface", err)
		// resend everything next frame
		s.prevLEDs = make(map[[2]int]midi.LEDUpdate)
		return
	}
	s.prevLEDs = next
}

// Render returns the full light state for the current sequencer state
func (s *Surface) Render() []midi.LEDUpdate {
	st := s.m.Status()
	set := s.m.Snapshot()
	leds := make([]midi.LEDUpdate, 0, 72)

	for t := Track(0); t < NumTracks; t++ {
		row := rowForTrack(t)
		for bar := 0; bar < NumBars; bar++ {
			led := midi.LEDUpdate{Row: row, Col: bar}
			on := set[t][bar]
			head := st.Playing && bar == st.Bar
			switch {
			case on && head:
				led.Color, led.Channel = t.Color(), midi.ChannelPulse
			case on:
				led.Color = dim(t.Color())
			case head:
				led.Color = colorPlayhead
			}
			if led.Color != ([3]uint8{}) {
				leds = append(leds, led)
			}
		}
	}

	for i := range s.m.Presets() {
		if i >= playCol {
			break
		}
		leds = append(leds, midi.LEDUpdate{Row: presetRow, Col: i, Color: colorPreset})
	}
	play := midi.LEDUpdate{Row: presetRow, Col: playCol, Color: colorStopped}
	if st.Playing {
		play.Color, play.Channel = colorPlay, midi.ChannelPulse
	}
	leds = append(leds, play,
		midi.LEDUpdate{Row: midi.GridSize, Col: 0, Color: dim(colorTempo)},
		midi.LEDUpdate{Row: midi.GridSize, Col: 1, Color: colorTempo},
	)
	return leds
}

// HandlePad applies one pad press
func (s *Surface) HandlePad(ctx context.Context, ev midi.PadEvent) {
	var err error
	switch {
	case ev.Row == midi.GridSize && ev.Col == 0:
		s.m.SetTempo(s.m.Tempo() - tempoStep)
	case ev.Row == midi.GridSize && ev.Col == 1:
		s.m.SetTempo(s.m.Tempo() + tempoStep)
	case ev.Row == presetRow && ev.Col == playCol:
		err = s.m.Toggle(ctx)
	case ev.Row == presetRow:
		names := s.m.Presets()
		if ev.Col < len(names) {
			err = s.m.ApplyPreset(names[ev.Col])
		}
	case ev.Col < NumBars:
		if t, ok := trackForRow(ev.Row); ok {
			err = s.m.ToggleStep(t, ev.Col)
		}
	}
	if err != nil {
		debug.Error("surface", err)
	}
}
