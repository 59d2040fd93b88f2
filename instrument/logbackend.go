package instrument

import (
	"context"
	"time"

	"go-synthwave/debug"
	"go-synthwave/midi"
)

// LogBackend writes every trigger to the debug log. Useful for dry runs
// on machines without an audio device.
type LogBackend struct{}

func (LogBackend) Name() string { return "log" }

func (LogBackend) Open(ctx context.Context) error {
	debug.Log("backend", "log backend open")
	return ctx.Err()
}

func (LogBackend) Instrument(p Patch) (Instrument, error) {
	return logInstrument{name: p.Name}, nil
}

func (LogBackend) Close() error { return nil }

type logInstrument struct {
	name string
}

func (l logInstrument) Play(notes []uint8, dur time.Duration, at time.Time) {
	if !debug.Enabled() {
		return
	}
	names := make([]string, len(notes))
	for i, n := range notes {
		names[i] = midi.NoteName(n)
	}
	debug.Log("play", "%-5s %v dur=%v in=%v", l.name, names, dur, time.Until(at).Round(time.Millisecond))
}

func (l logInstrument) Hit(dur time.Duration, at time.Time) {
	debug.Log("play", "%-5s hit dur=%v in=%v", l.name, dur, time.Until(at).Round(time.Millisecond))
}

func (l logInstrument) SetVolume(db float64) {
	debug.Log("mix", "%-5s %.1f dB", l.name, db)
}
