package midi

import (
	"fmt"
	"sync"

	"go-synthwave/debug"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

// Launchpad X SysEx payloads (without F0/F7)
var (
	sysexProgrammerMode = []byte{0x00, 0x20, 0x29, 0x02, 0x0C, 0x00, 0x7F}
	sysexBrightnessMax  = []byte{0x00, 0x20, 0x29, 0x02, 0x0C, 0x08, 0x7F}
	sysexExternalLEDs   = []byte{0x00, 0x20, 0x29, 0x02, 0x0C, 0x0A, 0x01, 0x01}
	sysexLiveMode       = []byte{0x00, 0x20, 0x29, 0x02, 0x0C, 0x00, 0x00}
)

// Launchpad drives a Novation Launchpad X in programmer mode
type Launchpad struct {
	id   string
	send func(msg gomidi.Message) error
	stop func()

	pads chan PadEvent

	closeOnce sync.Once
}

// OpenLaunchpad puts the device in programmer mode and starts listening.
// Either port may be nil (input-only or lights-only use).
func OpenLaunchpad(id string, in drivers.In, out drivers.Out) (*Launchpad, error) {
	lp := &Launchpad{
		id:   id,
		pads: make(chan PadEvent, 32),
	}

	if out != nil {
		send, err := gomidi.SendTo(out)
		if err != nil {
			return nil, fmt.Errorf("open output %s: %w", out, err)
		}
		lp.send = send
		for _, sx := range [][]byte{sysexProgrammerMode, sysexBrightnessMax, sysexExternalLEDs} {
			if err := send(gomidi.SysEx(sx)); err != nil {
				debug.Log("launchpad", "sysex failed: %v", err)
			}
		}
	}

	if in != nil {
		stop, err := gomidi.ListenTo(in, lp.receive)
		if err != nil {
			return nil, fmt.Errorf("open input %s: %w", in, err)
		}
		lp.stop = stop
	}

	return lp, nil
}

func (lp *Launchpad) receive(msg gomidi.Message, timestampms int32) {
	var ch, key, vel uint8
	row, col := -1, -1
	switch {
	case msg.GetNoteOn(&ch, &key, &vel) && vel > 0:
		row, col = padFromNote(key)
	case msg.GetControlChange(&ch, &key, &vel) && vel > 0:
		row, col = padFromCC(key)
	}
	if row < 0 {
		return
	}
	select {
	case lp.pads <- PadEvent{Row: row, Col: col, Velocity: vel}:
	default:
	}
}

func (lp *Launchpad) ID() string           { return lp.id }
func (lp *Launchpad) Type() ControllerType { return ControllerLaunchpad }

func (lp *Launchpad) PadEvents() <-chan PadEvent { return lp.pads }

// SetLEDBatch sends one NoteOn per update. Callers diff against what is
// already lit so a batch only carries changes.
func (lp *Launchpad) SetLEDBatch(updates []LEDUpdate) error {
	if lp.send == nil {
		return nil
	}
	for _, u := range updates {
		if err := lp.send(gomidi.NoteOn(u.Channel, noteFromPad(u.Row, u.Col), NearestColor(u.Color))); err != nil {
			return fmt.Errorf("led %d,%d: %w", u.Row, u.Col, err)
		}
	}
	debug.LogEvery(20, "lp-send", "batch=%d", len(updates))
	return nil
}

// ClearLEDs turns every light off, edge strips included
func (lp *Launchpad) ClearLEDs() error {
	updates := make([]LEDUpdate, 0, (GridSize+1)*(GridSize+1)-1)
	for row := 0; row <= GridSize; row++ {
		for col := 0; col <= GridSize; col++ {
			if row == GridSize && col == GridSize {
				continue
			}
			updates = append(updates, LEDUpdate{Row: row, Col: col})
		}
	}
	return lp.SetLEDBatch(updates)
}

// Close darkens the device, hands it back to live mode and stops input
func (lp *Launchpad) Close() error {
	var err error
	lp.closeOnce.Do(func() {
		if lp.send != nil {
			err = lp.ClearLEDs()
			lp.send(gomidi.SysEx(sysexLiveMode))
		}
		if lp.stop != nil {
			lp.stop()
		}
		close(lp.pads)
	})
	return err
}

// Launchpad X layout: grid rows are notes 11-18 (bottom) to 81-88 (top),
// side buttons are x9, the top strip is 91-98 (CC on input).

func noteFromPad(row, col int) uint8 {
	if row == GridSize {
		return uint8(91 + col)
	}
	return uint8((row+1)*10 + col + 1)
}

func padFromNote(note uint8) (row, col int) {
	if note >= 91 && note <= 98 {
		return GridSize, int(note - 91)
	}
	row = int(note/10) - 1
	col = int(note%10) - 1
	if row < 0 || row >= GridSize || col < 0 || col > GridSize {
		return -1, -1
	}
	return row, col
}

func padFromCC(cc uint8) (row, col int) {
	if cc >= 91 && cc <= 98 {
		return GridSize, int(cc - 91)
	}
	return -1, -1
}

// Approximate RGB of the Launchpad X velocity palette entries we use
var lpPalette = [...]struct {
	vel     uint8
	r, g, b int
}{
	{0, 0, 0, 0},
	{3, 200, 200, 200},
	{5, 255, 0, 0},
	{7, 90, 20, 20},
	{9, 255, 100, 0},
	{13, 255, 220, 0},
	{15, 90, 80, 0},
	{21, 0, 255, 0},
	{23, 0, 80, 0},
	{37, 0, 220, 220},
	{39, 0, 70, 70},
	{45, 0, 80, 255},
	{47, 0, 20, 90},
	{49, 150, 0, 220},
	{51, 50, 0, 80},
	{53, 255, 60, 190},
	{55, 90, 20, 60},
	{119, 255, 255, 255},
}

// NearestColor maps an RGB colour to the closest palette velocity
func NearestColor(rgb [3]uint8) uint8 {
	r, g, b := int(rgb[0]), int(rgb[1]), int(rgb[2])
	best, bestDist := uint8(0), 1<<31-1
	for _, p := range lpPalette {
		d := (r-p.r)*(r-p.r) + (g-p.g)*(g-p.g) + (b-p.b)*(b-p.b)
		if d < bestDist {
			best, bestDist = p.vel, d
		}
	}
	return best
}
