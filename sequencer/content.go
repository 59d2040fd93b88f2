package sequencer

import (
	"go-synthwave/clock"
	"go-synthwave/midi"
)

// Event is one step of a track's phrase. Nil Notes means an unpitched hit.
type Event struct {
	Notes  []uint8
	Length int64 // ticks
}

// Phrase is the looping content a track steps through, one event per firing
type Phrase []Event

// Advance returns the cursor after one firing. It wraps at the phrase
// length and is the only way a cursor moves.
func (p Phrase) Advance(cursor int) int {
	if len(p) == 0 {
		return 0
	}
	return (cursor + 1) % len(p)
}

// Cadence is when a track fires: every Interval ticks from Offset
type Cadence struct {
	Interval int64
	Offset   int64
}

func notes(names ...string) []uint8 {
	out := make([]uint8, len(names))
	for i, n := range names {
		out[i] = midi.MustParseNote(n)
	}
	return out
}

func each(length string, names ...string) Phrase {
	ticks := clock.MustParseDuration(length)
	p := make(Phrase, len(names))
	for i, n := range names {
		p[i] = Event{Notes: notes(n), Length: ticks}
	}
	return p
}

func ev(length string, names ...string) Event {
	return Event{Notes: notes(names...), Length: clock.MustParseDuration(length)}
}

var cadences = [NumTracks]Cadence{
	Bass:  {Interval: clock.Eighth},
	Pad:   {Interval: clock.Measure},
	Arp:   {Interval: clock.Sixteenth},
	Lead:  {Interval: clock.Eighth},
	Kick:  {Interval: clock.Half},
	Snare: {Interval: clock.Quarter, Offset: clock.Quarter},
	Hat:   {Interval: clock.Eighth},
}

var phrases = [NumTracks]Phrase{
	Bass: each("16n", "F1", "F1", "F1", "F1", "Ab1", "Ab1", "Ab1", "Ab1", "C2", "C2", "Bb1", "Bb1"),
	Pad: {
		ev("2n", "F3", "Ab3", "C4"),
		ev("2n", "F3", "Ab3", "C4"),
		ev("2n", "Ab3", "C4", "Eb4"),
		ev("2n", "Bb3", "D4", "F4"),
	},
	Arp: each("16n", "F4", "Ab4", "C5", "F5", "C5", "Ab4"),
	Lead: {
		ev("8n", "C5"),
		ev("8n", "F5"),
		ev("8n", "Ab5"),
		ev("8n", "G5"),
		ev("4n", "F5"),
		ev("8n", "Eb5"),
		ev("8n", "D5"),
		ev("4n", "C5"),
	},
	Kick:  {ev("8n", "C1")},
	Snare: {{Length: clock.Sixteenth}},
	Hat:   {{Length: clock.ThirtySecond}},
}

// CadenceOf returns when track t fires
func CadenceOf(t Track) Cadence {
	return cadences[t]
}

// PhraseOf returns the content track t steps through
func PhraseOf(t Track) Phrase {
	return phrases[t]
}
