package instrument

import (
	"context"
	"slices"
	"sync"
	"time"
)

// Trigger is one recorded Play or Hit.
type Trigger struct {
	Instrument string
	Notes      []uint8 // nil for hits
	Duration   time.Duration
	At         time.Time
}

// Recorder is a Backend that makes no sound and remembers every call.
// Tests use it in place of a real engine.
type Recorder struct {
	mu       sync.Mutex
	triggers []Trigger
	volumes  map[string]float64
	opens    int
	openErr  error
	closed   bool
}

func NewRecorder() *Recorder {
	return &Recorder{volumes: make(map[string]float64)}
}

func (r *Recorder) Name() string { return "recorder" }

// SetOpenErr makes Open fail with err until cleared with nil.
func (r *Recorder) SetOpenErr(err error) {
	r.mu.Lock()
	r.openErr = err
	r.mu.Unlock()
}

func (r *Recorder) Open(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.opens++
	return r.openErr
}

func (r *Recorder) Instrument(p Patch) (Instrument, error) {
	return &recorded{r: r, name: p.Name}, nil
}

func (r *Recorder) Close() error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	return nil
}

// Opens returns how many times Open was called.
func (r *Recorder) Opens() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.opens
}

// Closed reports whether Close was called.
func (r *Recorder) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// Triggers returns a copy of everything recorded so far.
func (r *Recorder) Triggers() []Trigger {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.triggers)
}

// Count returns the number of triggers for one instrument.
func (r *Recorder) Count(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, t := range r.triggers {
		if t.Instrument == name {
			n++
		}
	}
	return n
}

// Volume returns the last level set on an instrument.
func (r *Recorder) Volume(name string) (float64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	db, ok := r.volumes[name]
	return db, ok
}

// Reset forgets recorded triggers.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.triggers = nil
	r.mu.Unlock()
}

func (r *Recorder) record(t Trigger) {
	r.mu.Lock()
	r.triggers = append(r.triggers, t)
	r.mu.Unlock()
}

type recorded struct {
	r    *Recorder
	name string
}

func (i *recorded) Play(notes []uint8, dur time.Duration, at time.Time) {
	i.r.record(Trigger{Instrument: i.name, Notes: slices.Clone(notes), Duration: dur, At: at})
}

func (i *recorded) Hit(dur time.Duration, at time.Time) {
	i.r.record(Trigger{Instrument: i.name, Duration: dur, At: at})
}

func (i *recorded) SetVolume(db float64) {
	i.r.mu.Lock()
	i.r.volumes[i.name] = db
	i.r.mu.Unlock()
}
