package clock

import (
	"cmp"
	"context"
	"errors"
	"math"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"go-synthwave/debug"
)

var (
	ErrRunning     = errors.New("transport already running")
	ErrStopped     = errors.New("transport not running")
	ErrTempo       = errors.New("tempo must be positive")
	ErrLoopSpacing = errors.New("loop interval must be positive and offset non-negative")
)

// The playhead packs a start generation with the tick position so a single
// atomic word tells readers both where we are and which run it belongs to.
// Dispatch batches from a previous run fail the generation check and drop
// their remaining firings, which is how Stop cancels without waiting.
const (
	genBits  = 20
	tickBits = 64 - genBits
	tickMask = 1<<tickBits - 1
	genMask  = 1<<genBits - 1
)

func pack(gen uint64, tick int64) uint64 {
	return gen<<tickBits | uint64(tick)&tickMask
}

func unpack(v uint64) (gen uint64, tick int64) {
	return v >> tickBits, int64(v & tickMask)
}

// Defaults for the real-time dispatcher
const (
	DefaultLookahead = 100 * time.Millisecond
	DefaultInterval  = 25 * time.Millisecond
)

// Transport is the shared musical clock. Loops registered with Schedule
// fire at fixed tick intervals; each firing receives the wall-clock time
// its tick maps to, which is ahead of now by up to the lookahead.
type Transport struct {
	mu         sync.Mutex
	bpm        float64
	anchorTick float64
	anchorTime time.Time
	gen        uint64
	loops      []*Loop
	order      int

	dispatchMu sync.Mutex
	batch      []firing // guarded by dispatchMu

	running  atomic.Bool
	playhead atomic.Uint64
	bpmBits  atomic.Uint64

	now       func() time.Time
	lookahead time.Duration
	interval  time.Duration
	wake      chan struct{}
}

type Option func(*Transport)

// WithNow replaces the wall clock (tests drive time by hand).
func WithNow(now func() time.Time) Option {
	return func(t *Transport) {
		t.now = now
	}
}

// WithLookahead sets how far ahead of real time Run dispatches firings.
func WithLookahead(d time.Duration) Option {
	return func(t *Transport) {
		if d >= 0 {
			t.lookahead = d
		}
	}
}

// WithInterval sets how often Run wakes to dispatch.
func WithInterval(d time.Duration) Option {
	return func(t *Transport) {
		if d > 0 {
			t.interval = d
		}
	}
}

// New creates a stopped transport at the given tempo.
func New(bpm float64, opts ...Option) *Transport {
	t := &Transport{
		now:       time.Now,
		lookahead: DefaultLookahead,
		interval:  DefaultInterval,
		wake:      make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(t)
	}
	if bpm <= 0 || math.IsNaN(bpm) {
		bpm = 120
	}
	t.bpm = bpm
	t.bpmBits.Store(math.Float64bits(bpm))
	return t
}

// Loop is a repeating task registered against the transport.
type Loop struct {
	t         *Transport
	interval  int64
	offset    int64
	next      int64 // guarded by t.mu
	order     int
	fn        func(at time.Time)
	cancelled atomic.Bool
}

// Interval returns the loop period in ticks.
func (l *Loop) Interval() int64 { return l.interval }

// Offset returns the tick of the first firing after a start.
func (l *Loop) Offset() int64 { return l.offset }

// Cancelled reports whether the loop will fire again.
func (l *Loop) Cancelled() bool { return l.cancelled.Load() }

// Cancel stops future firings. Safe to call from inside the loop callback.
func (l *Loop) Cancel() {
	if l.cancelled.Swap(true) {
		return
	}
	l.t.remove(l)
}

type firing struct {
	tick int64
	at   time.Time
	loop *Loop
}

// Schedule registers fn to fire every interval ticks starting at offset.
// Registered while running, the loop joins at its next aligned tick.
func (t *Transport) Schedule(interval, offset int64, fn func(at time.Time)) (*Loop, error) {
	if interval <= 0 || offset < 0 || fn == nil {
		return nil, ErrLoopSpacing
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	l := &Loop{
		t:        t,
		interval: interval,
		offset:   offset,
		order:    t.order,
		fn:       fn,
	}
	t.order++
	l.next = firstAtOrAfter(offset, interval, t.Position())
	t.loops = append(t.loops, l)
	return l, nil
}

func firstAtOrAfter(offset, interval, pos int64) int64 {
	if pos <= offset {
		return offset
	}
	k := (pos - offset + interval - 1) / interval
	return offset + k*interval
}

func (t *Transport) remove(l *Loop) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.loops = slices.DeleteFunc(t.loops, func(x *Loop) bool { return x == l })
}

// Loops returns the number of live loops.
func (t *Transport) Loops() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.loops)
}

// Start resets the position to zero and starts the clock.
func (t *Transport) Start() error {
	t.mu.Lock()
	if t.running.Load() {
		t.mu.Unlock()
		return ErrRunning
	}
	t.gen = (t.gen + 1) & genMask
	t.playhead.Store(pack(t.gen, 0))
	t.anchorTick = 0
	t.anchorTime = t.now()
	for _, l := range t.loops {
		l.next = l.offset
	}
	t.running.Store(true)
	gen, bpm, loops := t.gen, t.bpm, len(t.loops)
	t.mu.Unlock()

	debug.Log("clock", "start gen=%d bpm=%.1f loops=%d", gen, bpm, loops)
	t.poke()
	return nil
}

// Stop halts the clock, cancels every loop and returns the position to
// zero. Firings already handed to an in-flight dispatch are dropped.
func (t *Transport) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running.Load() {
		return ErrStopped
	}
	t.running.Store(false)
	t.gen = (t.gen + 1) & genMask
	t.playhead.Store(pack(t.gen, 0))
	for _, l := range t.loops {
		l.cancelled.Store(true)
	}
	t.loops = nil

	debug.Log("clock", "stop gen=%d", t.gen)
	return nil
}

// Running reports whether the clock is advancing.
func (t *Transport) Running() bool {
	return t.running.Load()
}

// Position returns the current tick. During a loop callback this is the
// tick being fired. Lock-free and allocation-free.
func (t *Transport) Position() int64 {
	_, tick := unpack(t.playhead.Load())
	return tick
}

// Audible returns the tick sounding now. Position runs up to a lookahead
// ahead of it, so displays read this instead. It never passes Position.
func (t *Transport) Audible() int64 {
	pos := t.Position()
	if !t.running.Load() {
		return pos
	}
	tick := int64(math.Floor(t.TickAt(t.now())))
	return max(0, min(tick, pos))
}

// BPM returns the current tempo.
func (t *Transport) BPM() float64 {
	return math.Float64frombits(t.bpmBits.Load())
}

// SetBPM changes tempo. The clock is re-anchored at the current musical
// position so no phase is lost: later ticks simply arrive at a new rate.
func (t *Transport) SetBPM(bpm float64) error {
	if bpm <= 0 || math.IsNaN(bpm) || math.IsInf(bpm, 0) {
		return ErrTempo
	}

	t.mu.Lock()
	if t.running.Load() {
		now := t.now()
		t.anchorTick = t.tickAtLocked(now)
		t.anchorTime = now
	}
	t.bpm = bpm
	t.bpmBits.Store(math.Float64bits(bpm))
	t.mu.Unlock()

	t.poke()
	return nil
}

// TickAt maps a wall-clock time to a (fractional) tick.
func (t *Transport) TickAt(at time.Time) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running.Load() {
		return float64(t.Position())
	}
	return t.tickAtLocked(at)
}

// TimeAt maps a tick to the wall-clock time it sounds at.
func (t *Transport) TimeAt(tick int64) time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.timeAtLocked(tick)
}

// Duration converts ticks to real time at the current tempo.
func (t *Transport) Duration(ticks int64) time.Duration {
	return ticksToDuration(float64(ticks), t.BPM())
}

func ticksToDuration(ticks, bpm float64) time.Duration {
	seconds := ticks / PPQ * 60 / bpm
	return time.Duration(seconds * float64(time.Second))
}

func (t *Transport) tickAtLocked(at time.Time) float64 {
	elapsed := at.Sub(t.anchorTime).Seconds()
	return t.anchorTick + elapsed*t.bpm/60*PPQ
}

func (t *Transport) timeAtLocked(tick int64) time.Time {
	return t.anchorTime.Add(ticksToDuration(float64(tick)-t.anchorTick, t.bpm))
}

// AdvanceTo fires every loop occurrence with tick < target in tick order
// (registration order breaks ties) and leaves the position at target.
// It returns the number of callbacks invoked. Run calls it from the
// real-time dispatcher; tests call it directly.
func (t *Transport) AdvanceTo(target int64) int {
	t.dispatchMu.Lock()
	defer t.dispatchMu.Unlock()

	t.mu.Lock()
	if !t.running.Load() {
		t.mu.Unlock()
		return 0
	}
	gen := t.gen
	batch := t.batch[:0]
	for _, l := range t.loops {
		for l.next < target {
			batch = append(batch, firing{tick: l.next, loop: l})
			l.next += l.interval
		}
	}
	slices.SortStableFunc(batch, func(a, b firing) int {
		if c := cmp.Compare(a.tick, b.tick); c != 0 {
			return c
		}
		return cmp.Compare(a.loop.order, b.loop.order)
	})
	for i := range batch {
		batch[i].at = t.timeAtLocked(batch[i].tick)
	}
	t.batch = batch
	t.mu.Unlock()

	fired := 0
	for i := range batch {
		f := &batch[i]
		if f.loop.cancelled.Load() {
			continue
		}
		if !t.advance(gen, f.tick) {
			return fired
		}
		f.loop.fn(f.at)
		fired++
	}
	t.advance(gen, target)
	return fired
}

// advance moves the playhead forward within generation gen. It reports
// false once the generation has been superseded by Stop or Start.
func (t *Transport) advance(gen uint64, tick int64) bool {
	for {
		old := t.playhead.Load()
		g, cur := unpack(old)
		if g != gen {
			return false
		}
		if tick <= cur {
			return true
		}
		if t.playhead.CompareAndSwap(old, pack(gen, tick)) {
			return true
		}
	}
}

// poke wakes the dispatcher (non-blocking)
func (t *Transport) poke() {
	select {
	case t.wake <- struct{}{}:
	default:
	}
}

// Run dispatches firings in real time until ctx is done.
func (t *Transport) Run(ctx context.Context) error {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.wake:
			t.dispatch()
		case <-ticker.C:
			t.dispatch()
		}
	}
}

func (t *Transport) dispatch() {
	if !t.running.Load() {
		return
	}
	now := t.now()

	t.mu.Lock()
	pos := float64(t.Position())
	if lag := t.tickAtLocked(now) - pos; lag > TicksPerBar {
		// We fell a whole bar behind (suspend, debugger). Resume from the
		// playhead instead of bursting every missed note at once.
		debug.Log("clock", "resync: %.0f ticks behind", lag)
		t.anchorTick = pos
		t.anchorTime = now
	}
	horizon := t.tickAtLocked(now.Add(t.lookahead))
	t.mu.Unlock()

	t.AdvanceTo(int64(math.Floor(horizon)) + 1)
}
