package sequencer

import "go-synthwave/clock"

// positioner is the part of the transport the bar clock needs
type positioner interface {
	Position() int64
	Audible() int64
}

// BarClock derives the current bar of the 8-bar loop from the transport.
// Current follows the dispatch playhead, so inside a loop callback it is
// the bar of the firing being dispatched. Heard follows the wall clock
// and is what displays show.
type BarClock struct {
	pos positioner
}

func NewBarClock(p positioner) *BarClock {
	return &BarClock{pos: p}
}

// Current returns the bar in [0, NumBars). Lock-free.
func (b *BarClock) Current() int {
	return int(clock.Bar(b.pos.Position()) % NumBars)
}

// Position returns the transport tick the bar is derived from
func (b *BarClock) Position() int64 {
	return b.pos.Position()
}

// Heard returns the bar sounding now, in [0, NumBars)
func (b *BarClock) Heard() int {
	return int(clock.Bar(b.pos.Audible()) % NumBars)
}

// HeardPosition returns the tick sounding now
func (b *BarClock) HeardPosition() int64 {
	return b.pos.Audible()
}
