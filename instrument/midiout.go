package instrument

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go-synthwave/debug"
	"go-synthwave/midi"

	gomidi "gitlab.com/gomidi/midi/v2"
)

// General MIDI drum map
const (
	GMKick        uint8 = 36
	GMSnare       uint8 = 38
	GMClosedHat   uint8 = 42
	GMDrumChannel uint8 = 10
)

const (
	ccVolume      = 7
	ccAllNotesOff = 123
	noteVelocity  = 100
)

// MIDIBackend plays patches on an external MIDI device. Messages are
// held in a time-ordered queue and written by one goroutine when due.
type MIDIBackend struct {
	port    string
	connect func(port string) (func(gomidi.Message) error, error)

	mu     sync.Mutex
	send   func(gomidi.Message) error
	queue  *timedQueue[gomidi.Message]
	cancel context.CancelFunc
	done   chan struct{}
	used   map[uint8]bool
}

// NewMIDIBackend targets the output port called port (see midi.FindOut
// for matching rules).
func NewMIDIBackend(port string) *MIDIBackend {
	return &MIDIBackend{
		port:    port,
		connect: dialMIDI,
		queue:   newTimedQueue[gomidi.Message](),
		used:    make(map[uint8]bool),
	}
}

func dialMIDI(port string) (func(gomidi.Message) error, error) {
	out, err := midi.FindOut(port)
	if err != nil {
		return nil, err
	}
	return gomidi.SendTo(out)
}

func (b *MIDIBackend) Name() string { return "midi" }

func (b *MIDIBackend) Open(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.send != nil {
		return nil
	}

	send, err := b.connect(b.port)
	if err != nil {
		return fmt.Errorf("midi output %q: %w", b.port, err)
	}
	b.send = send

	loopCtx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel
	b.done = make(chan struct{})
	go func(done chan struct{}) {
		defer close(done)
		b.queue.run(loopCtx, b.emit)
	}(b.done)

	debug.Log("backend", "midi output open on %q", b.port)
	return nil
}

func (b *MIDIBackend) emit(msg gomidi.Message) {
	if err := b.send(msg); err != nil {
		debug.Error("midi-out", err)
	}
}

func (b *MIDIBackend) Instrument(p Patch) (Instrument, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.send == nil {
		return nil, ErrNotOpen
	}

	ch := uint8(0)
	if p.Channel > 0 {
		ch = (p.Channel - 1) & 0x0F
	}
	b.used[ch] = true
	if p.Program > 0 && !p.Percussive() {
		b.queue.push(time.Time{}, gomidi.ProgramChange(ch, p.Program-1))
	}
	return &midiInstrument{b: b, patch: p, ch: ch}, nil
}

// Close stops the writer, releases any held notes and silences every
// channel that was used.
func (b *MIDIBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.send == nil {
		return nil
	}
	b.cancel()
	<-b.done

	var ch, key, vel uint8
	for _, msg := range b.queue.drain() {
		if msg.GetNoteOff(&ch, &key, &vel) {
			b.emit(msg)
		}
	}
	for c := range b.used {
		b.emit(gomidi.ControlChange(c, ccAllNotesOff, 0))
	}
	b.send = nil
	debug.Log("backend", "midi output closed")
	return nil
}

type midiInstrument struct {
	b     *MIDIBackend
	patch Patch
	ch    uint8
}

func (m *midiInstrument) Play(notes []uint8, dur time.Duration, at time.Time) {
	if m.patch.Percussive() && m.patch.DrumNote != 0 {
		m.note(m.patch.DrumNote, dur, at)
		return
	}
	for _, n := range notes {
		m.note(n, dur, at)
	}
}

func (m *midiInstrument) Hit(dur time.Duration, at time.Time) {
	m.note(m.patch.DrumNote, dur, at)
}

func (m *midiInstrument) note(key uint8, dur time.Duration, at time.Time) {
	m.b.queue.push(at, gomidi.NoteOn(m.ch, key, noteVelocity))
	m.b.queue.push(at.Add(dur), gomidi.NoteOff(m.ch, key))
}

func (m *midiInstrument) SetVolume(db float64) {
	m.b.queue.push(time.Time{}, gomidi.ControlChange(m.ch, ccVolume, MIDIVolume(db)))
}
