package sequencer

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go-synthwave/clock"
	"go-synthwave/debug"
)

// Triggerer plays a track's content. Implementations must not block.
type Triggerer interface {
	Trigger(t Track, notes []uint8, dur time.Duration, at time.Time)
}

// SchedulerState is the lifecycle of a TrackScheduler
type SchedulerState int32

const (
	Unscheduled SchedulerState = iota // no loop registered
	Scheduled                         // loop registered, clock not started
	Running                           // loop registered, clock running
)

func (s SchedulerState) String() string {
	switch s {
	case Unscheduled:
		return "unscheduled"
	case Scheduled:
		return "scheduled"
	case Running:
		return "running"
	}
	return "unknown"
}

// TrackScheduler fires one track at its cadence. Each firing reads the
// bar and the live pattern, triggers the instrument when the step is on,
// and then moves the content cursor whether or not anything sounded, so
// a phrase keeps its place through muted bars.
type TrackScheduler struct {
	track   Track
	cadence Cadence
	phrase  Phrase

	tr    *clock.Transport
	store *Store
	bars  *BarClock
	out   Triggerer

	cursor atomic.Int64
	state  atomic.Int32
	fired  atomic.Uint64

	mu   sync.Mutex
	loop *clock.Loop
}

func NewTrackScheduler(t Track, tr *clock.Transport, store *Store, bars *BarClock, out Triggerer) *TrackScheduler {
	return &TrackScheduler{
		track:   t,
		cadence: CadenceOf(t),
		phrase:  PhraseOf(t),
		tr:      tr,
		store:   store,
		bars:    bars,
		out:     out,
	}
}

func (s *TrackScheduler) Track() Track { return s.track }

func (s *TrackScheduler) State() SchedulerState {
	return SchedulerState(s.state.Load())
}

// Cursor returns the index of the next phrase event
func (s *TrackScheduler) Cursor() int {
	return int(s.cursor.Load())
}

// Fired returns how many times the loop has run
func (s *TrackScheduler) Fired() uint64 {
	return s.fired.Load()
}

// Schedule registers a fresh loop on the transport, dropping any old one
func (s *TrackScheduler) Schedule() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loop != nil {
		s.loop.Cancel()
	}
	loop, err := s.tr.Schedule(s.cadence.Interval, s.cadence.Offset, s.fire)
	if err != nil {
		return fmt.Errorf("schedule %s: %w", s.track, err)
	}
	s.loop = loop
	if s.tr.Running() {
		s.state.Store(int32(Running))
	} else {
		s.state.Store(int32(Scheduled))
	}
	return nil
}

// started marks the scheduler running once the clock has started
func (s *TrackScheduler) started() {
	s.mu.Lock()
	if s.loop != nil {
		s.state.Store(int32(Running))
	}
	s.mu.Unlock()
}

// Unschedule cancels the loop. The cursor is kept.
func (s *TrackScheduler) Unschedule() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loop != nil {
		s.loop.Cancel()
		s.loop = nil
	}
	s.state.Store(int32(Unscheduled))
}

func (s *TrackScheduler) fire(at time.Time) {
	s.fired.Add(1)
	cur := int(s.cursor.Load())
	bar := s.bars.Current()

	if s.store.Step(s.track, bar) {
		e := s.phrase[cur]
		s.out.Trigger(s.track, e.Notes, s.tr.Duration(e.Length), at)
	}

	if s.track.Melodic() {
		s.cursor.Store(int64(s.phrase.Advance(cur)))
	}
	if debug.Enabled() {
		debug.LogEvery(64, "sched", "%s bar=%d cursor=%d", s.track, bar, cur)
	}
}
