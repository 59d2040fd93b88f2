package sequencer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go-synthwave/debug"
	"go-synthwave/instrument"
)

var ErrBackendInit = errors.New("audio backend failed to start")

type rack [NumTracks]instrument.Instrument

// Bindings connects tracks to instruments. The instruments appear all at
// once after the backend comes up; until then triggers are dropped.
type Bindings struct {
	patches [NumTracks]instrument.Patch

	initMu  sync.Mutex
	backend instrument.Backend

	rack atomic.Pointer[rack]

	levelMu sync.Mutex
	levels  Levels
}

func NewBindings(patches [NumTracks]instrument.Patch, levels Levels) *Bindings {
	b := &Bindings{patches: patches}
	for g := range levels {
		b.levels[g] = instrument.ClampVolume(levels[g])
	}
	return b
}

// Init opens backend and builds every instrument. It runs once: calls
// after a success return nil straight away, calls after a failure try
// again.
func (b *Bindings) Init(ctx context.Context, backend instrument.Backend) error {
	b.initMu.Lock()
	defer b.initMu.Unlock()
	if b.rack.Load() != nil {
		return nil
	}

	debug.Log("bindings", "opening %s backend", backend.Name())
	if err := backend.Open(ctx); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrBackendInit, backend.Name(), err)
	}

	var r rack
	for t := Track(0); t < NumTracks; t++ {
		in, err := backend.Instrument(b.patches[t])
		if err != nil {
			backend.Close()
			return fmt.Errorf("%w: %s instrument: %w", ErrBackendInit, t, err)
		}
		r[t] = in
	}

	b.levelMu.Lock()
	for t := Track(0); t < NumTracks; t++ {
		r[t].SetVolume(trackLevel(t, b.levels[t.Group()]))
	}
	b.rack.Store(&r)
	b.levelMu.Unlock()

	b.backend = backend
	debug.Log("bindings", "%s backend ready", backend.Name())
	return nil
}

// Ready reports whether instruments are installed
func (b *Bindings) Ready() bool {
	return b.rack.Load() != nil
}

// Trigger plays notes on the track's instrument, or a hit when notes is
// empty. Before Init it does nothing.
func (b *Bindings) Trigger(t Track, notes []uint8, dur time.Duration, at time.Time) {
	r := b.rack.Load()
	if r == nil || !t.Valid() {
		return
	}
	if len(notes) == 0 {
		r[t].Hit(dur, at)
		return
	}
	r[t].Play(notes, dur, at)
}

// SetVolume sets a group fader, clamped to the mixer range, and applies
// it at once when instruments exist. The clamped value is returned.
func (b *Bindings) SetVolume(g Group, db float64) (float64, error) {
	if !g.Valid() {
		return 0, fmt.Errorf("%w: %d", ErrUnknownGroup, int(g))
	}
	db = instrument.ClampVolume(db)

	b.levelMu.Lock()
	defer b.levelMu.Unlock()
	b.levels[g] = db
	if r := b.rack.Load(); r != nil {
		for t := Track(0); t < NumTracks; t++ {
			if t.Group() == g {
				r[t].SetVolume(trackLevel(t, db))
			}
		}
	}
	return db, nil
}

// Levels returns the current fader values
func (b *Bindings) Levels() Levels {
	b.levelMu.Lock()
	defer b.levelMu.Unlock()
	return b.levels
}

// Close shuts the backend down. A later Init starts over.
func (b *Bindings) Close() error {
	b.initMu.Lock()
	defer b.initMu.Unlock()
	if b.backend == nil {
		return nil
	}
	b.rack.Store(nil)
	err := b.backend.Close()
	b.backend = nil
	return err
}
