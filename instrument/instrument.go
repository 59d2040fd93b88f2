package instrument

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotOpen = errors.New("backend not open")
	ErrNoPort  = errors.New("no matching output port")
)

// Melodic plays pitched content: one note, or several for a chord.
type Melodic interface {
	Play(notes []uint8, dur time.Duration, at time.Time)
}

// Percussive fires an unpitched hit.
type Percussive interface {
	Hit(dur time.Duration, at time.Time)
}

// Leveled has an output level in decibels.
type Leveled interface {
	SetVolume(db float64)
}

// Instrument is what a backend hands out per patch. Play and Hit are
// called from the transport dispatcher and must not block: backends
// queue work and return.
type Instrument interface {
	Melodic
	Percussive
	Leveled
}

// Backend builds instruments on some sound engine. Open may wait for
// the engine to come up (audio devices start asynchronously).
type Backend interface {
	Name() string
	Open(ctx context.Context) error
	Instrument(p Patch) (Instrument, error)
	Close() error
}
